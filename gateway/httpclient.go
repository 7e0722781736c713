// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	luxcrypto "github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	log "github.com/luxfi/log"

	"github.com/stablerail/orchestrator/chains"
)

// HTTPClient implements Client over the settlement service's REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     log.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the service at baseURL. A nil
// httpClient gets a 30-second-timeout default.
func NewHTTPClient(baseURL string, httpClient *http.Client, logger log.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    httpClient,
		log:     logger,
	}
}

type balanceEntry struct {
	Chain   chains.Key `json:"chain"`
	Balance string     `json:"balance"` // minor units, decimal string
}

type authorizedResponse struct {
	Authorized bool `json:"authorized"`
}

type transferRequest struct {
	Intent    *BurnIntent   `json:"burnIntent"`
	Signature hexutil.Bytes `json:"signature"`
}

type mintRequest struct {
	Attestation       hexutil.Bytes  `json:"attestation"`
	OperatorSignature hexutil.Bytes  `json:"operatorSignature"`
	Relayer           common.Address `json:"relayer"`
	RelayerSignature  hexutil.Bytes  `json:"relayerSignature"`
}

type mintResponse struct {
	TxHash common.Hash `json:"txHash"`
}

type apiErrorBody struct {
	Selector string `json:"selector"`
	Message  string `json:"message"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("gateway response %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorBody
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return &APIError{StatusCode: resp.StatusCode, Selector: apiErr.Selector, Message: apiErr.Message}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func parseMinor(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("gateway: malformed balance %q", s)
	}
	return v, nil
}

func (c *HTTPClient) DepositedBalances(ctx context.Context, wallet common.Address) ([]ChainBalance, error) {
	var entries []balanceEntry
	if err := c.do(ctx, http.MethodGet, "/v1/balances/"+wallet.Hex(), nil, &entries); err != nil {
		return nil, err
	}
	out := make([]ChainBalance, 0, len(entries))
	for _, e := range entries {
		v, err := parseMinor(e.Balance)
		if err != nil {
			return nil, err
		}
		out = append(out, ChainBalance{Chain: e.Chain, Balance: v})
	}
	return out, nil
}

func (c *HTTPClient) OnChainBalance(ctx context.Context, chain chains.Key, wallet common.Address) (*big.Int, error) {
	var entry balanceEntry
	path := fmt.Sprintf("/v1/chains/%s/balances/%s", chain, wallet.Hex())
	if err := c.do(ctx, http.MethodGet, path, nil, &entry); err != nil {
		return nil, err
	}
	return parseMinor(entry.Balance)
}

func (c *HTTPClient) IsDelegateAuthorized(ctx context.Context, chain chains.Key, depositor, delegate common.Address) (bool, error) {
	var resp authorizedResponse
	path := fmt.Sprintf("/v1/chains/%s/delegates/%s/%s", chain, depositor.Hex(), delegate.Hex())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Authorized, nil
}

func (c *HTTPClient) SignAndSubmitBurnIntent(ctx context.Context, intent *BurnIntent, delegateKey *ecdsa.PrivateKey) (*Attestation, error) {
	sig, err := intent.Sign(delegateKey)
	if err != nil {
		return nil, fmt.Errorf("sign burn intent: %w", err)
	}

	var att Attestation
	req := transferRequest{Intent: intent, Signature: sig}
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", req, &att); err != nil {
		return nil, err
	}
	c.log.Debug("burn intent accepted",
		"source", intent.SourceChain,
		"destination", intent.DestinationChain,
		"amount", intent.Amount.String())
	return &att, nil
}

func (c *HTTPClient) ExecuteMint(ctx context.Context, chain chains.Key, att *Attestation, relayerKey *ecdsa.PrivateKey) (common.Hash, error) {
	digest := luxcrypto.Keccak256(att.Attestation, att.OperatorSignature)
	relayerSig, err := luxcrypto.Sign(digest, relayerKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign mint request: %w", err)
	}

	req := mintRequest{
		Attestation:       att.Attestation,
		OperatorSignature: att.OperatorSignature,
		Relayer:           common.Address(luxcrypto.PubkeyToAddress(relayerKey.PublicKey)),
		RelayerSignature:  relayerSig,
	}
	var resp mintResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/chains/%s/mints", chain), req, &resp); err != nil {
		return common.Hash{}, err
	}
	return resp.TxHash, nil
}

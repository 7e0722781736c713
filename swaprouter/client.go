// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package swaprouter fetches executable swap quotes from the aggregator and
// turns them into gateway-wallet call lists.
package swaprouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	log "github.com/luxfi/log"

	"github.com/stablerail/orchestrator/calls"
	"github.com/stablerail/orchestrator/chains"
)

var ErrNoQuote = errors.New("no route for swap")

// QuoteRequest describes the swap the aggregator should route. FromChain and
// ToChain are equal for same-chain swaps. Slippage is fractional (0.005 is
// half a percent).
type QuoteRequest struct {
	FromChain   chains.Key     `json:"fromChain"`
	ToChain     chains.Key     `json:"toChain"`
	FromToken   common.Address `json:"fromToken"`
	ToToken     common.Address `json:"toToken"`
	FromAmount  *big.Int       `json:"fromAmount"`
	FromAddress common.Address `json:"fromAddress"`
	ToAddress   common.Address `json:"toAddress,omitempty"`
	Slippage    float64        `json:"slippage"`
}

// Estimate carries the aggregator's output projection in the output token's
// minor units.
type Estimate struct {
	ToAmount          *big.Int `json:"toAmount"`
	ToAmountMin       *big.Int `json:"toAmountMin"`
	ExecutionDuration int64    `json:"executionDuration"` // seconds
}

// TransactionRequest is the executable leg of a quote.
type TransactionRequest struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value,omitempty"`
}

// Quote is one routed swap, valid for a short window; stale quotes must be
// refetched, never replayed.
type Quote struct {
	Tool               string             `json:"tool"`
	Action             string             `json:"action"`
	Estimate           Estimate           `json:"estimate"`
	TransactionRequest TransactionRequest `json:"transactionRequest"`
}

// Client is the aggregator facade the planner and reconciler depend on.
type Client interface {
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

// BuildSwapCalls produces the approve+swap call list for a quote. The approve
// is skipped for the native-token placeholder (zero address), which has no
// allowance to grant.
func BuildSwapCalls(q *Quote, fromToken common.Address, amt *big.Int) ([]calls.Call, error) {
	swap := calls.Call{
		To:    q.TransactionRequest.To,
		Data:  q.TransactionRequest.Data,
		Value: q.TransactionRequest.Value,
	}
	if fromToken == chains.NativeToken {
		return []calls.Call{swap}, nil
	}
	approve, err := calls.Approve(fromToken, q.TransactionRequest.To, amt)
	if err != nil {
		return nil, err
	}
	return []calls.Call{approve, swap}, nil
}

// HTTPClient implements Client against the aggregator's REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     log.Logger
}

var _ Client = (*HTTPClient)(nil)

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

func (c *HTTPClient) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/quote", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("swap router request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("swap router response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s -> %s on %s", ErrNoQuote, req.FromToken, req.ToToken, req.FromChain)
	default:
		return nil, fmt.Errorf("swap router status %d: %s", resp.StatusCode, body)
	}

	var q Quote
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if q.Estimate.ToAmountMin == nil || q.Estimate.ToAmountMin.Sign() <= 0 {
		return nil, fmt.Errorf("quote missing minimum output")
	}
	c.log.Debug("swap quote",
		"tool", q.Tool,
		"fromChain", req.FromChain,
		"toChain", req.ToChain,
		"toAmountMin", q.Estimate.ToAmountMin.String())
	return &q, nil
}

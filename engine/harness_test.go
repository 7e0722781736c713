// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	luxcrypto "github.com/luxfi/crypto"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/stablerail/orchestrator/amount"
	"github.com/stablerail/orchestrator/chains"
	"github.com/stablerail/orchestrator/gateway"
	"github.com/stablerail/orchestrator/swaprouter"
)

var (
	testWallet    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRecipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testWETH      = common.HexToAddress("0x4200000000000000000000000000000000000006")
	testRouterTo  = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func usdc(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := amount.ParseUSDC(s)
	require.NoError(t, err)
	return v
}

// fakeGateway is an in-memory settlement service.
type fakeGateway struct {
	mu sync.Mutex

	deposited    map[chains.Key]*big.Int
	onChain      map[chains.Key]*big.Int
	unauthorized map[chains.Key]bool

	burnErr error
	mintErr error

	burns []*gateway.BurnIntent
	mints int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		deposited:    make(map[chains.Key]*big.Int),
		onChain:      make(map[chains.Key]*big.Int),
		unauthorized: make(map[chains.Key]bool),
	}
}

func (f *fakeGateway) DepositedBalances(ctx context.Context, wallet common.Address) ([]gateway.ChainBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gateway.ChainBalance
	for key, bal := range f.deposited {
		out = append(out, gateway.ChainBalance{Chain: key, Balance: new(big.Int).Set(bal)})
	}
	return out, nil
}

func (f *fakeGateway) OnChainBalance(ctx context.Context, chain chains.Key, wallet common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bal, ok := f.onChain[chain]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (f *fakeGateway) IsDelegateAuthorized(ctx context.Context, chain chains.Key, depositor, delegate common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unauthorized[chain], nil
}

func (f *fakeGateway) SignAndSubmitBurnIntent(ctx context.Context, intent *gateway.BurnIntent, delegateKey *ecdsa.PrivateKey) (*gateway.Attestation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.burnErr != nil {
		return nil, f.burnErr
	}
	f.burns = append(f.burns, intent)
	spec := intent.TransferSpecHash()
	return &gateway.Attestation{
		Attestation:       spec[:],
		OperatorSignature: []byte{0x01},
	}, nil
}

func (f *fakeGateway) ExecuteMint(ctx context.Context, chain chains.Key, att *gateway.Attestation, relayerKey *ecdsa.PrivateKey) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mintErr != nil {
		return common.Hash{}, f.mintErr
	}
	f.mints++
	return common.BytesToHash([]byte(fmt.Sprintf("mint-%d", f.mints))), nil
}

// fakeRouter serves canned quotes: minimum output is 99% of input.
type fakeRouter struct {
	mu      sync.Mutex
	err     error
	quotes  int
	lastReq swaprouter.QuoteRequest
}

func (f *fakeRouter) GetQuote(ctx context.Context, req swaprouter.QuoteRequest) (*swaprouter.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.quotes++
	f.lastReq = req
	min := new(big.Int).Div(new(big.Int).Mul(req.FromAmount, big.NewInt(99)), big.NewInt(100))
	return &swaprouter.Quote{
		Tool:   "testrouter",
		Action: "swap",
		Estimate: swaprouter.Estimate{
			ToAmount:          new(big.Int).Set(req.FromAmount),
			ToAmountMin:       min,
			ExecutionDuration: 30,
		},
		TransactionRequest: swaprouter.TransactionRequest{
			To:   testRouterTo,
			Data: []byte{0xab, 0xcd},
		},
	}, nil
}

type fakeAccounts struct {
	wallet      common.Address
	delegate    common.Address
	delegateKey *ecdsa.PrivateKey
}

func (f *fakeAccounts) WalletAddress(ctx context.Context, userID string) (common.Address, error) {
	return f.wallet, nil
}

func (f *fakeAccounts) DelegateAddress(ctx context.Context, userID string) (common.Address, error) {
	return f.delegate, nil
}

func (f *fakeAccounts) DelegateKey(ctx context.Context, userID string) (*ecdsa.PrivateKey, error) {
	return f.delegateKey, nil
}

type fixture struct {
	engine *Engine
	store  *Store
	gw     *fakeGateway
	router *fakeRouter
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	delegateKey, err := luxcrypto.GenerateKey()
	require.NoError(t, err)
	relayerKey, err := luxcrypto.GenerateKey()
	require.NoError(t, err)

	store := NewStore(memdb.New())
	gw := newFakeGateway()
	router := &fakeRouter{}
	accounts := &fakeAccounts{
		wallet:      testWallet,
		delegate:    common.Address(luxcrypto.PubkeyToAddress(delegateKey.PublicKey)),
		delegateKey: delegateKey,
	}

	cfg := DefaultConfig()
	cfg.RelayerKeyHex = common.Bytes2Hex(luxcrypto.FromECDSA(relayerKey))

	e, err := New(cfg, store, gw, router, accounts,
		log.NewTestLogger(log.InfoLevel), prometheus.NewRegistry())
	require.NoError(t, err)

	now := time.Now()
	e.now = func() time.Time { return now }

	seq := 0
	e.newID = func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	}

	return &fixture{engine: e, store: store, gw: gw, router: router, clock: &now}
}

func (fx *fixture) reconciler(t *testing.T) *Reconciler {
	t.Helper()
	return NewReconciler(fx.engine, time.Second, log.NewTestLogger(log.InfoLevel))
}

// stepsByType filters an operation's steps.
func stepsByType(steps []*Step, typ StepType) []*Step {
	var out []*Step
	for _, st := range steps {
		if st.Type == typ {
			out = append(out, st)
		}
	}
	return out
}

// requireDenseIndices asserts stepIndex values form 0..n-1.
func requireDenseIndices(t *testing.T, steps []*Step) {
	t.Helper()
	for i, st := range steps {
		require.Equal(t, i, st.StepIndex)
	}
}

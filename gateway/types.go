// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gateway talks to the cross-chain USDC settlement service: deposited
// balances, on-chain balances, delegate authorization, burn-intent submission
// and relayer mints. The engine consumes the Client interface; the HTTP
// implementation lives in this package too.
package gateway

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"

	"github.com/stablerail/orchestrator/chains"
)

// ChainBalance is one chain's USDC balance held inside the settlement
// service for a wallet.
type ChainBalance struct {
	Chain   chains.Key
	Balance *big.Int // minor units
}

// Attestation is the operator-signed record produced when a burn intent is
// accepted; the destination mint contract consumes it.
type Attestation struct {
	Attestation       hexutil.Bytes `json:"attestation"`
	OperatorSignature hexutil.Bytes `json:"operatorSignature"`
}

// Client is the settlement-service facade the engine depends on. Every
// method suspends on the network and honors ctx.
type Client interface {
	// DepositedBalances returns per-chain balances already deposited in the
	// settlement service for wallet.
	DepositedBalances(ctx context.Context, wallet common.Address) ([]ChainBalance, error)

	// OnChainBalance reads the wallet's ERC-20 USDC balance on chain.
	OnChainBalance(ctx context.Context, chain chains.Key, wallet common.Address) (*big.Int, error)

	// IsDelegateAuthorized reports whether delegate may sign burn intents
	// against depositor's balance on chain.
	IsDelegateAuthorized(ctx context.Context, chain chains.Key, depositor, delegate common.Address) (bool, error)

	// SignAndSubmitBurnIntent signs intent with the delegate key and submits
	// it. The key is used for this call only and never retained.
	SignAndSubmitBurnIntent(ctx context.Context, intent *BurnIntent, delegateKey *ecdsa.PrivateKey) (*Attestation, error)

	// ExecuteMint performs the destination-chain mint for an attestation
	// through the relayer identified by relayerKey.
	ExecuteMint(ctx context.Context, chain chains.Key, att *Attestation, relayerKey *ecdsa.PrivateKey) (common.Hash, error)
}

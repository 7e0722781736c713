// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"math/big"
	"testing"

	luxcrypto "github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/stablerail/orchestrator/chains"
)

var (
	testDepositor = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRecipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func mustIntent(t *testing.T, amt int64) *BurnIntent {
	t.Helper()
	bi, err := NewBurnIntent(chains.Arbitrum, chains.Base, big.NewInt(amt), testDepositor, testRecipient, nil)
	require.NoError(t, err)
	return bi
}

func TestNewBurnIntentDomains(t *testing.T) {
	bi := mustIntent(t, 1_000_000)

	src, _ := chains.Lookup(chains.Arbitrum)
	dst, _ := chains.Lookup(chains.Base)
	require.Equal(t, src.Domain, bi.SourceDomain)
	require.Equal(t, dst.Domain, bi.DestinationDomain)
}

func TestNewBurnIntentDefaultMaxFee(t *testing.T) {
	// 1 USDC: the 0.05 USDC floor dominates the 3% cap.
	bi := mustIntent(t, 1_000_000)
	require.Equal(t, big.NewInt(50_000), bi.MaxFee)

	// 100 USDC: 3% cap dominates.
	bi = mustIntent(t, 100_000_000)
	require.Equal(t, big.NewInt(3_000_000), bi.MaxFee)
}

func TestNewBurnIntentValidation(t *testing.T) {
	_, err := NewBurnIntent("unknownchain", chains.Base, big.NewInt(1), testDepositor, testRecipient, nil)
	require.ErrorIs(t, err, ErrUnknownChain)

	_, err = NewBurnIntent(chains.Arbitrum, "unknownchain", big.NewInt(1), testDepositor, testRecipient, nil)
	require.ErrorIs(t, err, ErrUnknownChain)

	_, err = NewBurnIntent(chains.Arbitrum, chains.Base, big.NewInt(0), testDepositor, testRecipient, nil)
	require.ErrorIs(t, err, ErrZeroAmount)

	_, err = NewBurnIntent(chains.Arbitrum, chains.Base, nil, testDepositor, testRecipient, nil)
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestTransferSpecHashDeterministic(t *testing.T) {
	a := mustIntent(t, 5_000_000)
	b := mustIntent(t, 5_000_000)
	require.Equal(t, a.TransferSpecHash(), b.TransferSpecHash())

	c := mustIntent(t, 5_000_001)
	require.NotEqual(t, a.TransferSpecHash(), c.TransferSpecHash())
}

func TestSigningDigestBindsMaxFee(t *testing.T) {
	a := mustIntent(t, 5_000_000)
	b := mustIntent(t, 5_000_000)
	b.MaxFee = big.NewInt(1)

	// Same transfer identity, different fee ceiling: the spec hash must not
	// move but the signing digest must.
	require.Equal(t, a.TransferSpecHash(), b.TransferSpecHash())
	require.NotEqual(t, a.SigningDigest(), b.SigningDigest())
}

func TestSignRecovers(t *testing.T) {
	key, err := luxcrypto.GenerateKey()
	require.NoError(t, err)

	bi := mustIntent(t, 7_500_000)
	sig, err := bi.Sign(key)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	digest := bi.SigningDigest()
	pub, err := luxcrypto.SigToPub(digest[:], sig)
	require.NoError(t, err)
	require.Equal(t, luxcrypto.PubkeyToAddress(key.PublicKey), luxcrypto.PubkeyToAddress(*pub))
}

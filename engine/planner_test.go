// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/stablerail/orchestrator/amount"
	"github.com/stablerail/orchestrator/chains"
)

func TestPrepareCollect(t *testing.T) {
	fx := newFixture(t)
	fx.gw.onChain[chains.Arbitrum] = usdc(t, "102.05")
	fx.gw.onChain[chains.Optimism] = usdc(t, "51.025")
	fx.gw.unauthorized[chains.Optimism] = true

	op, err := fx.engine.PrepareCollect(context.Background(), "user-1", CollectRequest{
		Sources: []chains.Key{chains.Arbitrum, chains.Optimism, chains.Polygon},
	})
	require.NoError(t, err)

	require.Equal(t, OpCollect, op.Type)
	require.Equal(t, OpAwaitingSignature, op.Status)
	requireDenseIndices(t, op.Steps)

	// Polygon has no balance and is dropped: 2 deposits + 2 burns + 1 mint.
	require.Len(t, op.Steps, 5)
	deposits := stepsByType(op.Steps, StepApproveAndDeposit)
	burns := stepsByType(op.Steps, StepBurnIntent)
	mints := stepsByType(op.Steps, StepMint)
	require.Len(t, deposits, 2)
	require.Len(t, burns, 2)
	require.Len(t, mints, 1)

	// Deposits precede burns, burns precede the mint.
	require.Less(t, deposits[1].StepIndex, burns[0].StepIndex)
	require.Less(t, burns[1].StepIndex, mints[0].StepIndex)
	require.Equal(t, chains.Hub, mints[0].Chain)

	for _, st := range deposits {
		require.Equal(t, StepAwaitingSignature, st.Status)
	}
	for _, st := range burns {
		require.Equal(t, StepPending, st.Status)
		require.NotNil(t, st.Burn)
		require.Equal(t, chains.Hub, st.Burn.DestinationChain)
		require.Equal(t, testWallet, st.Burn.Recipient)
	}

	// 102.05 deposits as-is, burns net to exactly 100.
	require.Equal(t, usdc(t, "100"), burns[0].Burn.Amount)

	// The unauthorized source gets the delegate call prepended.
	require.Len(t, deposits[0].Calls, 2)
	require.Len(t, deposits[1].Calls, 3)

	// Client requests for the deposits, informational ones for the burns.
	var client, server int
	for _, sr := range op.SignRequests {
		if sr.ServerSide {
			server++
		} else {
			client++
		}
	}
	require.Equal(t, 2, client)
	require.Equal(t, 2, server)

	require.Len(t, op.Summary.Deposits, 2)
	require.Equal(t, "102.050000", op.Summary.Deposits[0].DepositAmount)
	require.Equal(t, "100.000000", op.Summary.Deposits[0].BurnAmount)
	require.Equal(t, "15-20 minutes", op.Summary.EstimatedTime)
}

func TestPrepareCollectNoBalance(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.engine.PrepareCollect(context.Background(), "user-1", CollectRequest{
		Sources: []chains.Key{chains.Arbitrum, chains.Optimism},
	})
	require.Error(t, err)
	require.True(t, IsValidation(err))
	require.Contains(t, err.Error(), "No on-chain USDC balance found")

	// Nothing was persisted.
	ops, err := fx.store.ListUserOperations("user-1")
	require.NoError(t, err)
	require.Empty(t, ops)
}

func TestPrepareCollectUnknownChain(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.engine.PrepareCollect(context.Background(), "user-1", CollectRequest{
		Sources: []chains.Key{"hyperspace"},
	})
	require.True(t, IsValidation(err))
}

func TestPrepareSendInternal(t *testing.T) {
	fx := newFixture(t)

	op, err := fx.engine.PrepareSend(context.Background(), "user-1", SendRequest{
		Recipients: []Recipient{{Chain: chains.Hub, Amount: "10", Address: &testRecipient}},
	})
	require.NoError(t, err)

	require.Equal(t, OpSend, op.Type)
	require.Equal(t, OpAwaitingSignature, op.Status)
	require.Len(t, op.Steps, 1)

	st := op.Steps[0]
	require.Equal(t, StepTransfer, st.Type)
	require.Equal(t, StepAwaitingSignature, st.Status)
	require.Equal(t, testRecipient, st.Transfer.To)
	require.Equal(t, usdc(t, "10"), st.Transfer.Amount)
	require.Len(t, st.Calls, 1)

	require.Equal(t, "0.000000", op.FeeAmount)
	require.Equal(t, "instant", op.Summary.EstimatedTime)
}

func TestPrepareSendBridgeWithDeposit(t *testing.T) {
	fx := newFixture(t)
	fx.gw.onChain[chains.Arbitrum] = usdc(t, "120")

	op, err := fx.engine.PrepareSend(context.Background(), "user-1", SendRequest{
		SourceChain: chains.Arbitrum,
		Recipients:  []Recipient{{Chain: chains.Hub, Amount: "100"}},
	})
	require.NoError(t, err)

	require.Equal(t, OpBridge, op.Type)
	require.Len(t, op.Steps, 3)

	deposit := op.Steps[0]
	burn := op.Steps[1]
	mint := op.Steps[2]

	require.Equal(t, StepApproveAndDeposit, deposit.Type)
	require.Equal(t, StepAwaitingSignature, deposit.Status)
	// grossDepositAmount(100) = 100 * 10205 / 10000.
	require.Contains(t, op.SignRequests[0].Description, "102.050000")

	require.Equal(t, StepBurnIntent, burn.Type)
	require.Equal(t, StepPending, burn.Status)
	require.Equal(t, usdc(t, "100"), burn.Burn.Amount)
	require.Equal(t, chains.Arbitrum, burn.Burn.SourceChain)
	require.Equal(t, chains.Hub, burn.Burn.DestinationChain)
	require.Equal(t, testWallet, burn.Burn.Recipient)

	require.Equal(t, StepMint, mint.Type)
	require.Equal(t, StepPending, mint.Status)

	// Σ deposits covers grossDepositAmount(cross-chain total).
	require.Equal(t, "0.250000", op.FeeAmount)
}

func TestPrepareSendInsufficient(t *testing.T) {
	fx := newFixture(t)
	fx.gw.onChain[chains.Arbitrum] = usdc(t, "50")

	_, err := fx.engine.PrepareSend(context.Background(), "user-1", SendRequest{
		SourceChain: chains.Arbitrum,
		Recipients:  []Recipient{{Chain: chains.Hub, Amount: "100"}},
	})
	require.True(t, IsValidation(err))
	// netBurnAmount(50) = 50 * 10000 / 10205.
	require.Contains(t, err.Error(), "48.995590")
}

func TestPrepareSendBatchMixed(t *testing.T) {
	fx := newFixture(t)
	fx.gw.onChain[chains.Hub] = usdc(t, "120")
	other := common.HexToAddress("0x3333333333333333333333333333333333333333")

	op, err := fx.engine.PrepareSend(context.Background(), "user-1", SendRequest{
		Recipients: []Recipient{
			{Chain: chains.Hub, Amount: "50", Address: &testRecipient},
			{Chain: chains.Arbitrum, Amount: "100", Address: &other},
		},
	})
	require.NoError(t, err)

	require.Equal(t, OpBatchSend, op.Type)
	// (50+100) * 25 / 10000 = 0.375.
	require.Equal(t, "0.375000", op.FeeAmount)
	require.Equal(t, "0.25", op.FeePercent)

	require.Len(t, op.Steps, 4)
	require.Equal(t, StepApproveAndDeposit, op.Steps[0].Type)
	require.Equal(t, StepTransfer, op.Steps[1].Type)
	require.Equal(t, usdc(t, "50"), op.Steps[1].Transfer.Amount)
	require.Equal(t, StepBurnIntent, op.Steps[2].Type)
	require.Equal(t, usdc(t, "100"), op.Steps[2].Burn.Amount)
	require.Equal(t, other, op.Steps[2].Burn.Recipient)
	require.Equal(t, StepMint, op.Steps[3].Type)
}

func TestPrepareSendSameChainSwapOptimization(t *testing.T) {
	fx := newFixture(t)
	fx.gw.onChain[chains.Arbitrum] = usdc(t, "200")

	op, err := fx.engine.PrepareSend(context.Background(), "user-1", SendRequest{
		SourceChain: chains.Arbitrum,
		Recipients: []Recipient{{
			Chain:               chains.Arbitrum,
			Amount:              "100",
			Address:             &testRecipient,
			OutputToken:         &testWETH,
			OutputTokenDecimals: 18,
		}},
	})
	require.NoError(t, err)

	burns := stepsByType(op.Steps, StepBurnIntent)
	mints := stepsByType(op.Steps, StepMint)
	swaps := stepsByType(op.Steps, StepLifiSwap)
	require.Len(t, burns, 1)
	require.Len(t, mints, 1)
	require.Len(t, swaps, 1)

	// The USDC never needs to move: the bridge pair is skipped and the swap
	// is ready to sign immediately.
	require.Equal(t, StepSkipped, burns[0].Status)
	require.Equal(t, StepSkipped, mints[0].Status)
	require.Equal(t, StepAwaitingSignature, swaps[0].Status)
	require.NotEmpty(t, swaps[0].Calls)
	require.Equal(t, OpAwaitingSignature, op.Status)

	// The skipped burn's informational request is gone.
	for _, sr := range op.SignRequests {
		require.NotEqual(t, burns[0].ID, sr.StepID)
	}
	require.Len(t, op.Summary.SwapEstimates, 1)
}

func TestPrepareSendPostMintSwap(t *testing.T) {
	fx := newFixture(t)
	fx.gw.deposited[chains.Hub] = usdc(t, "200")

	op, err := fx.engine.PrepareSend(context.Background(), "user-1", SendRequest{
		Recipients: []Recipient{{
			Chain:               chains.Arbitrum,
			Amount:              "100",
			Address:             &testRecipient,
			OutputToken:         &testWETH,
			OutputTokenDecimals: 18,
		}},
	})
	require.NoError(t, err)

	require.Len(t, op.Steps, 3)
	burn, mint, swap := op.Steps[0], op.Steps[1], op.Steps[2]

	require.Equal(t, StepBurnIntent, burn.Type)
	require.Equal(t, StepPending, burn.Status)
	// Post-mint swaps receive USDC into the user's own wallet first.
	require.Equal(t, testWallet, burn.Burn.Recipient)

	require.Equal(t, StepMint, mint.Type)
	require.Equal(t, StepPending, mint.Status)

	require.Equal(t, StepLifiSwap, swap.Type)
	require.Equal(t, StepPending, swap.Status)
	require.Equal(t, testWETH, swap.Swap.OutputToken)
	require.Equal(t, testRecipient, swap.Swap.Recipient)
	require.Equal(t, usdc(t, "100"), swap.Swap.USDCAmount)
	// 100 USDC lands in the 0.5% default slippage tier.
	require.InDelta(t, 0.005, swap.Swap.Slippage, 1e-9)

	// No client-signable work yet.
	require.Equal(t, OpProcessing, op.Status)
	for _, sr := range op.SignRequests {
		require.True(t, sr.ServerSide || sr.PendingMint)
	}
}

func TestPrepareSwapDeposit(t *testing.T) {
	fx := newFixture(t)

	op, err := fx.engine.PrepareSwapDeposit(context.Background(), "user-1", SwapDepositRequest{
		SourceChain:   chains.Arbitrum,
		SourceToken:   testWETH,
		Amount:        "0.5",
		TokenDecimals: 18,
	})
	require.NoError(t, err)

	require.Equal(t, OpSwapDeposit, op.Type)
	require.Len(t, op.Steps, 3)

	swap := op.Steps[0]
	require.Equal(t, StepLifiSwap, swap.Type)
	require.Equal(t, StepAwaitingSignature, swap.Status)
	// swap calls (approve+swap) then approve+deposit of the proceeds.
	require.Len(t, swap.Calls, 4)

	burn := op.Steps[1]
	require.Equal(t, StepBurnIntent, burn.Type)
	require.Equal(t, chains.Hub, burn.Burn.DestinationChain)
	// The fake quotes 99% of the input as minimum output; the burn nets the
	// gateway fee out of that.
	minOut := new(big.Int)
	minOut.SetString("495000000000000000", 10)
	require.Equal(t, amount.NetBurnAmount(minOut), burn.Burn.Amount)

	require.Equal(t, StepMint, op.Steps[2].Type)
	require.Equal(t, chains.Hub, op.Steps[2].Chain)
}

func TestPrepareSwapDepositOnHub(t *testing.T) {
	fx := newFixture(t)

	op, err := fx.engine.PrepareSwapDeposit(context.Background(), "user-1", SwapDepositRequest{
		SourceChain:   chains.Hub,
		SourceToken:   testWETH,
		Amount:        "1",
		TokenDecimals: 18,
	})
	require.NoError(t, err)

	// Already on the hub: no bridge pair.
	require.Len(t, op.Steps, 1)
	require.Equal(t, StepLifiSwap, op.Steps[0].Type)
	require.Equal(t, "instant", op.Summary.EstimatedTime)
}

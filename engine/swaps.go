// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"

	"github.com/stablerail/orchestrator/chains"
	"github.com/stablerail/orchestrator/swaprouter"
)

// requoteSwap fetches a fresh quote for a swap step, installs the new call
// data, moves the step to AWAITING_SIGNATURE and replaces the operation's
// outstanding sign-request for it. The caller persists the operation.
func (e *Engine) requoteSwap(ctx context.Context, op *Operation, steps []*Step, st *Step) error {
	wallet, err := e.accounts.WalletAddress(ctx, op.UserID)
	if err != nil {
		return err
	}
	cfg, ok := chains.Lookup(st.Chain)
	if !ok {
		return validationf("chain %q not in catalogue", st.Chain)
	}

	quote, err := e.router.GetQuote(ctx, swaprouter.QuoteRequest{
		FromChain:   st.Chain,
		ToChain:     st.Chain,
		FromToken:   cfg.USDC,
		ToToken:     st.Swap.OutputToken,
		FromAmount:  st.Swap.USDCAmount,
		FromAddress: wallet,
		ToAddress:   st.Swap.Recipient,
		Slippage:    st.Swap.Slippage,
	})
	if err != nil {
		return err
	}
	swapCalls, err := swaprouter.BuildSwapCalls(quote, cfg.USDC, st.Swap.USDCAmount)
	if err != nil {
		return err
	}

	st.Calls = swapCalls
	st.Status = StepAwaitingSignature
	if err := e.store.UpdateStep(st); err != nil {
		return err
	}

	// Replace the swap's own request and shed requests whose steps have
	// since reached a terminal state.
	live := make(map[string]bool, len(steps))
	for _, s := range steps {
		if !s.Status.Terminal() {
			live[s.ID] = true
		}
	}
	out := op.SignRequests[:0]
	for _, sr := range op.SignRequests {
		if sr.StepID != st.ID && live[sr.StepID] {
			out = append(out, sr)
		}
	}
	op.SignRequests = append(out, SignRequest{
		StepID:      st.ID,
		Chain:       st.Chain,
		Type:        st.Type,
		Calls:       st.Calls,
		Description: "Swap USDC for the requested token",
	})
	e.log.Info("swap requoted", "operation", op.ID, "step", st.StepIndex, "tool", quote.Tool)
	return nil
}

// RefreshSwap re-quotes an operation's swap step on demand: either a stale
// AWAITING_SIGNATURE swap whose quote has expired, or a PENDING post-mint
// swap whose prerequisites have all landed.
func (e *Engine) RefreshSwap(ctx context.Context, userID, operationID string) (*Operation, error) {
	op, steps, err := e.load(userID, operationID)
	if err != nil {
		return nil, err
	}

	// A swap-deposit's bundle swaps the source token and deposits the
	// proceeds, and the bridge burn is sized off that quote. A USDC-side
	// requote cannot be spliced into it; the user plans a new operation.
	if op.Type == OpSwapDeposit {
		return nil, validationf("operation %s bundles its swap with a deposit and cannot be requoted", operationID)
	}

	var target *Step
	for i, st := range steps {
		if st.Type != StepLifiSwap || st.Swap == nil {
			continue
		}
		switch st.Status {
		case StepAwaitingSignature:
			target = st
		case StepPending:
			ready := true
			for _, prior := range steps[:i] {
				if !prior.Status.Terminal() {
					ready = false
					break
				}
			}
			if ready {
				target = st
			}
		}
		if target != nil {
			break
		}
	}
	if target == nil {
		return nil, validationf("operation %s has no refreshable swap step", operationID)
	}

	if err := e.requoteSwap(ctx, op, steps, target); err != nil {
		return nil, err
	}
	op.Status = DeriveOperationStatus(steps)
	if err := e.store.UpdateOperation(op); err != nil {
		return nil, err
	}
	op.Steps = steps
	return op, nil
}

// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"

	"github.com/stablerail/orchestrator/gateway"
)

// advance pushes an operation's server-driven steps as far as they will go:
// pending burn intents are signed and submitted, and confirmed burns feed
// their paired mints. Both the executor and the reconciler run this same
// routine, so the eager path and the retry path cannot drift apart.
//
// Transient failures leave the step PENDING for the next reconciler tick.
func (e *Engine) advance(ctx context.Context, op *Operation, steps []*Step) error {
	if err := e.submitBurnIntents(ctx, op, steps); err != nil {
		return err
	}
	return e.executeMints(ctx, op, steps)
}

func (e *Engine) submitBurnIntents(ctx context.Context, op *Operation, steps []*Step) error {
	for _, st := range steps {
		if st.Type != StepBurnIntent || st.Status != StepPending || st.Burn == nil {
			continue
		}

		intent, err := gateway.NewBurnIntent(
			st.Burn.SourceChain,
			st.Burn.DestinationChain,
			st.Burn.Amount,
			st.Burn.Depositor,
			st.Burn.Recipient,
			nil,
		)
		if err != nil {
			if ferr := e.failStep(st, err.Error()); ferr != nil {
				return ferr
			}
			continue
		}

		// The delegate key is fetched per call and dropped; it never outlives
		// the submission.
		key, err := e.accounts.DelegateKey(ctx, op.UserID)
		if err != nil {
			return err
		}
		att, err := e.gateway.SignAndSubmitBurnIntent(ctx, intent, key)
		if err != nil {
			// Deposit finality is the usual cause; the reconciler retries.
			e.log.Info("burn intent not accepted yet",
				"operation", op.ID,
				"step", st.StepIndex,
				"err", err)
			e.metrics.BurnRetries.Inc()
			continue
		}

		st.Attestation = att.Attestation
		st.OperatorSignature = att.OperatorSignature
		if err := e.confirmStep(st); err != nil {
			return err
		}
		e.log.Info("burn intent confirmed", "operation", op.ID, "step", st.StepIndex)
	}
	return nil
}

// executeMints pairs confirmed burns with mint steps by ascending index: the
// Nth mint consumes the Nth attested burn. Already-terminal mints advance the
// pairing cursor without work, which keeps the correspondence stable across
// partial failures.
func (e *Engine) executeMints(ctx context.Context, op *Operation, steps []*Step) error {
	var attested []*Step
	for _, st := range steps {
		if st.Type == StepBurnIntent && st.Status == StepConfirmed && len(st.Attestation) > 0 {
			attested = append(attested, st)
		}
	}

	cursor := 0
	for _, st := range steps {
		if st.Type != StepMint {
			continue
		}
		// A skipped mint pairs with a skipped burn, which never produced an
		// attestation; it must not consume the cursor.
		if st.Status == StepSkipped {
			continue
		}
		if st.Status.Terminal() {
			cursor++
			continue
		}
		if st.Status != StepPending || cursor >= len(attested) {
			continue
		}
		burn := attested[cursor]
		cursor++

		// A recorded txHash means a previous attempt landed before the
		// status write; confirm without resubmitting.
		if st.TxHash != nil {
			if err := e.confirmStep(st); err != nil {
				return err
			}
			continue
		}
		if e.relayerKey == nil {
			continue
		}

		att := &gateway.Attestation{
			Attestation:       burn.Attestation,
			OperatorSignature: burn.OperatorSignature,
		}
		txHash, err := e.gateway.ExecuteMint(ctx, st.Chain, att, e.relayerKey)
		switch {
		case err == nil:
			st.TxHash = &txHash
			if uerr := e.confirmStep(st); uerr != nil {
				return uerr
			}
			e.log.Info("mint confirmed", "operation", op.ID, "step", st.StepIndex, "tx", txHash)

		case gateway.IsTransferSpecHashUsed(err):
			// A previous attempt already consumed the attestation: done.
			st.ErrorMessage = "attestation already consumed by a previous attempt"
			if uerr := e.confirmStep(st); uerr != nil {
				return uerr
			}
			e.log.Info("mint already landed", "operation", op.ID, "step", st.StepIndex)

		case gateway.IsAttestationExpired(err):
			if uerr := e.failStep(st, "attestation expired before the mint could execute"); uerr != nil {
				return uerr
			}
			e.log.Error("mint failed terminally", "operation", op.ID, "step", st.StepIndex, "err", err)

		default:
			e.log.Warn("mint attempt failed, will retry",
				"operation", op.ID,
				"step", st.StepIndex,
				"err", err)
			e.metrics.MintRetries.Inc()
		}
	}
	return nil
}

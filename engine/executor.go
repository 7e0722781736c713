// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"

	"github.com/luxfi/geth/common"
)

// StepSignature reports one user-signed transaction.
type StepSignature struct {
	StepID string      `json:"stepId"`
	TxHash common.Hash `json:"txHash"`
}

// SubmitOperation records the user's signed transactions and eagerly runs
// any server-driven work they unblocked. The eager path is a latency
// optimization only; the reconciler would reach the same state.
func (e *Engine) SubmitOperation(ctx context.Context, userID, operationID string, signatures []StepSignature) (*Operation, error) {
	op, steps, err := e.load(userID, operationID)
	if err != nil {
		return nil, err
	}
	if op.Status != OpAwaitingSignature {
		return nil, validationf("operation %s is %s, not awaiting signature", operationID, op.Status)
	}

	byID := make(map[string]*Step, len(steps))
	for _, st := range steps {
		byID[st.ID] = st
	}
	for _, sig := range signatures {
		st, ok := byID[sig.StepID]
		if !ok {
			return nil, validationf("unknown step %q", sig.StepID)
		}
		if st.Status != StepAwaitingSignature {
			return nil, validationf("step %q is %s, not awaiting signature", sig.StepID, st.Status)
		}
		txHash := sig.TxHash
		st.TxHash = &txHash
		if err := e.confirmStep(st); err != nil {
			return nil, err
		}
		e.dropOperationSignRequest(op, st.ID)
	}

	if err := e.advance(ctx, op, steps); err != nil {
		return nil, err
	}

	op.Status = DeriveOperationStatus(steps)
	if op.Status == OpCompleted || op.Status == OpFailed {
		t := e.now()
		op.CompletedAt = &t
	}
	if op.Status == OpFailed && op.ErrorMessage == "" {
		for _, st := range steps {
			if st.Status == StepFailed {
				op.ErrorMessage = st.ErrorMessage
				break
			}
		}
	}
	if err := e.store.UpdateOperation(op); err != nil {
		return nil, err
	}

	op.Steps = steps
	return op, nil
}

func (e *Engine) dropOperationSignRequest(op *Operation, stepID string) {
	out := op.SignRequests[:0]
	for _, sr := range op.SignRequests {
		if sr.StepID != stepID {
			out = append(out, sr)
		}
	}
	op.SignRequests = out
}

// load fetches an operation with steps, scoped to the requesting user.
func (e *Engine) load(userID, operationID string) (*Operation, []*Step, error) {
	op, err := e.store.GetOperation(operationID)
	if err != nil {
		return nil, nil, err
	}
	if op.UserID != userID {
		return nil, nil, ErrNotFound
	}
	steps, err := e.store.GetSteps(operationID)
	if err != nil {
		return nil, nil, err
	}
	return op, steps, nil
}

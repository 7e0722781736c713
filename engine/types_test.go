// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func steps(statuses ...StepStatus) []*Step {
	out := make([]*Step, len(statuses))
	for i, st := range statuses {
		out[i] = &Step{StepIndex: i, Status: st}
	}
	return out
}

func TestDeriveOperationStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []StepStatus
		want     OperationStatus
	}{
		{"all confirmed", []StepStatus{StepConfirmed, StepConfirmed}, OpCompleted},
		{"confirmed and skipped", []StepStatus{StepConfirmed, StepSkipped}, OpCompleted},
		{"any failed wins", []StepStatus{StepConfirmed, StepFailed, StepAwaitingSignature}, OpFailed},
		{"awaiting beats pending", []StepStatus{StepPending, StepAwaitingSignature}, OpAwaitingSignature},
		{"pending only", []StepStatus{StepPending, StepConfirmed}, OpProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DeriveOperationStatus(steps(tt.statuses...)))
		})
	}
}

func TestStepStatusTerminal(t *testing.T) {
	require.True(t, StepConfirmed.Terminal())
	require.True(t, StepSkipped.Terminal())
	require.True(t, StepFailed.Terminal())
	require.False(t, StepPending.Terminal())
	require.False(t, StepAwaitingSignature.Terminal())
}

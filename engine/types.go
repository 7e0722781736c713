// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine plans, executes and reconciles multi-step cross-chain USDC
// operations. The planner turns a user intent into an ordered step list, the
// executor records user signatures and opportunistically advances
// server-driven steps, and the reconciler retries whatever is left.
package engine

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"

	"github.com/stablerail/orchestrator/calls"
	"github.com/stablerail/orchestrator/chains"
)

type OperationType string

const (
	OpCollect     OperationType = "COLLECT"
	OpSend        OperationType = "SEND"
	OpBridge      OperationType = "BRIDGE"
	OpBatchSend   OperationType = "BATCH_SEND"
	OpSwapDeposit OperationType = "SWAP_DEPOSIT"
)

type OperationStatus string

const (
	OpAwaitingSignature OperationStatus = "AWAITING_SIGNATURE"
	OpProcessing        OperationStatus = "PROCESSING"
	OpCompleted         OperationStatus = "COMPLETED"
	OpFailed            OperationStatus = "FAILED"
)

type StepType string

const (
	StepApproveAndDeposit StepType = "APPROVE_AND_DEPOSIT"
	StepAddDelegate       StepType = "ADD_DELEGATE"
	StepTransfer          StepType = "TRANSFER"
	StepBurnIntent        StepType = "BURN_INTENT"
	StepMint              StepType = "MINT"
	StepLifiSwap          StepType = "LIFI_SWAP"
)

type StepStatus string

const (
	StepAwaitingSignature StepStatus = "AWAITING_SIGNATURE"
	StepPending           StepStatus = "PENDING"
	StepConfirmed         StepStatus = "CONFIRMED"
	StepSkipped           StepStatus = "SKIPPED"
	StepFailed            StepStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s StepStatus) Terminal() bool {
	return s == StepConfirmed || s == StepSkipped || s == StepFailed
}

// BurnParams parameterizes a BURN_INTENT step.
type BurnParams struct {
	SourceChain      chains.Key     `json:"sourceChain"`
	DestinationChain chains.Key     `json:"destinationChain"`
	Amount           *big.Int       `json:"amount"`
	Depositor        common.Address `json:"depositor"`
	Recipient        common.Address `json:"recipient"`
}

// SwapParams parameterizes a LIFI_SWAP step. USDCAmount is the input the
// swap consumes once the funding mint lands.
type SwapParams struct {
	OutputToken         common.Address `json:"outputToken"`
	OutputTokenDecimals uint8          `json:"outputTokenDecimals"`
	Slippage            float64        `json:"slippage"`
	Recipient           common.Address `json:"recipientAddress"`
	USDCAmount          *big.Int       `json:"usdcAmount"`
}

// TransferParams parameterizes an internal hub TRANSFER step.
type TransferParams struct {
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

// Step is one atomic unit of work inside an operation. Exactly one of Burn,
// Swap and Transfer is set, matching Type.
type Step struct {
	ID          string     `json:"id"`
	OperationID string     `json:"operationId"`
	StepIndex   int        `json:"stepIndex"`
	Chain       chains.Key `json:"chain"`
	Type        StepType   `json:"type"`
	Status      StepStatus `json:"status"`

	Calls    []calls.Call    `json:"calls,omitempty"`
	Burn     *BurnParams     `json:"burn,omitempty"`
	Swap     *SwapParams     `json:"swap,omitempty"`
	Transfer *TransferParams `json:"transfer,omitempty"`

	Attestation       hexutil.Bytes `json:"attestation,omitempty"`
	OperatorSignature hexutil.Bytes `json:"operatorSignature,omitempty"`
	TxHash            *common.Hash  `json:"txHash,omitempty"`

	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// SignRequest is one outstanding client-signable action. ServerSide requests
// are informational: the engine completes them without a user transaction.
// PendingMint marks a request whose calls depend on a mint that has not
// confirmed yet.
type SignRequest struct {
	StepID      string       `json:"stepId"`
	Chain       chains.Key   `json:"chain"`
	Type        StepType     `json:"type"`
	Calls       []calls.Call `json:"calls,omitempty"`
	Description string       `json:"description"`
	ServerSide  bool         `json:"serverSide"`
	PendingMint bool         `json:"pendingMint"`
}

// DepositLeg is one source chain's contribution in a summary.
type DepositLeg struct {
	Chain         chains.Key `json:"chain"`
	DepositAmount string     `json:"depositAmount"`
	BurnAmount    string     `json:"burnAmount"`
}

// SwapEstimate projects a planned swap for display.
type SwapEstimate struct {
	Chain             chains.Key `json:"chain"`
	Tool              string     `json:"tool"`
	ToAmount          string     `json:"toAmount"`
	ToAmountMin       string     `json:"toAmountMin"`
	ExecutionDuration int64      `json:"executionDuration"`
}

// Summary is the human-oriented projection of a plan. It reflects intent at
// planning time; actual outcomes live on the steps.
type Summary struct {
	Deposits      []DepositLeg   `json:"deposits,omitempty"`
	TotalAmount   string         `json:"totalAmount"`
	FeeAmount     string         `json:"feeAmount"`
	FeePercent    string         `json:"feePercent"`
	EstimatedTime string         `json:"estimatedTime"`
	SwapEstimates []SwapEstimate `json:"swapEstimates,omitempty"`
}

// Operation is one user intent with its ordered steps.
type Operation struct {
	ID     string          `json:"id"`
	UserID string          `json:"userId"`
	Type   OperationType   `json:"type"`
	Status OperationStatus `json:"status"`

	Params       json.RawMessage `json:"params,omitempty"`
	Summary      Summary         `json:"summary"`
	SignRequests []SignRequest   `json:"signRequests,omitempty"`

	FeeAmount  string `json:"feeAmount"`
	FeePercent string `json:"feePercent"`

	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`

	// Steps is populated on reads; it is persisted separately.
	Steps []*Step `json:"steps,omitempty"`
}

// DeriveOperationStatus computes the operation status its steps imply:
// COMPLETED when every step is terminal-successful, FAILED on any failed
// step, AWAITING_SIGNATURE when a signature is outstanding, PROCESSING
// otherwise.
func DeriveOperationStatus(steps []*Step) OperationStatus {
	allDone := true
	awaiting := false
	for _, s := range steps {
		switch s.Status {
		case StepFailed:
			return OpFailed
		case StepConfirmed, StepSkipped:
		case StepAwaitingSignature:
			awaiting = true
			allDone = false
		default:
			allDone = false
		}
	}
	if allDone {
		return OpCompleted
	}
	if awaiting {
		return OpAwaitingSignature
	}
	return OpProcessing
}

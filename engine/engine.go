// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"crypto/ecdsa"
	"time"

	"github.com/google/uuid"
	luxcrypto "github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stablerail/orchestrator/gateway"
	"github.com/stablerail/orchestrator/swaprouter"
)

// Accounts resolves a user's wallet and delegate identities. DelegateKey
// decrypts the server-held delegate signing key; callers use it for one
// signature and drop it, never caching the key material.
type Accounts interface {
	WalletAddress(ctx context.Context, userID string) (common.Address, error)
	DelegateAddress(ctx context.Context, userID string) (common.Address, error)
	DelegateKey(ctx context.Context, userID string) (*ecdsa.PrivateKey, error)
}

// Engine is the operation engine: planner, executor, query API and the
// reconciler's work routines.
type Engine struct {
	store    *Store
	gateway  gateway.Client
	router   swaprouter.Client
	accounts Accounts

	relayerKey  *ecdsa.PrivateKey // nil disables eager mints
	stepTimeout time.Duration

	log     log.Logger
	metrics *Metrics

	now   func() time.Time
	newID func() string
}

// New assembles an engine. A reconciler is created separately with
// NewReconciler and shares this engine's advance routines.
func New(cfg Config, store *Store, gw gateway.Client, router swaprouter.Client, accounts Accounts, logger log.Logger, reg prometheus.Registerer) (*Engine, error) {
	var relayerKey *ecdsa.PrivateKey
	if cfg.RelayerKeyHex != "" {
		key, err := luxcrypto.HexToECDSA(cfg.RelayerKeyHex)
		if err != nil {
			return nil, err
		}
		relayerKey = key
	}
	return &Engine{
		store:       store,
		gateway:     gw,
		router:      router,
		accounts:    accounts,
		relayerKey:  relayerKey,
		stepTimeout: cfg.StepTimeout,
		log:         logger,
		metrics:     NewMetrics(reg),
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

func (e *Engine) confirmStep(st *Step) error {
	st.Status = StepConfirmed
	t := e.now()
	st.CompletedAt = &t
	e.metrics.StepsConfirmed.WithLabelValues(string(st.Type)).Inc()
	return e.store.UpdateStep(st)
}

func (e *Engine) failStep(st *Step, msg string) error {
	st.Status = StepFailed
	st.ErrorMessage = msg
	t := e.now()
	st.CompletedAt = &t
	e.metrics.StepsFailed.WithLabelValues(string(st.Type)).Inc()
	return e.store.UpdateStep(st)
}

// refreshStatus recomputes the operation's status from its steps and
// persists the transition, stamping completedAt on terminal states.
func (e *Engine) refreshStatus(op *Operation, steps []*Step) error {
	next := DeriveOperationStatus(steps)
	if next == op.Status {
		return nil
	}
	op.Status = next
	if next == OpCompleted || next == OpFailed {
		t := e.now()
		op.CompletedAt = &t
	}
	if next == OpFailed && op.ErrorMessage == "" {
		for _, st := range steps {
			if st.Status == StepFailed {
				op.ErrorMessage = st.ErrorMessage
				break
			}
		}
	}
	return e.store.UpdateOperation(op)
}

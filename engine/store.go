// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/luxfi/database"
)

// Store persists operations and steps in a key-value database.
//
// Key layout:
//
//	op/<operationId>            -> operation record (steps excluded)
//	opu/<userId>/<seq>/<id>     -> operationId, seq descending by creation time
//	step/<operationId>/<index>  -> step record, index zero-padded
//
// The padding makes lexicographic iteration return steps in stepIndex order
// and user operations newest first.
type Store struct {
	db database.Database
	mu sync.Mutex // serializes read-modify-write status transitions
}

func NewStore(db database.Database) *Store {
	return &Store{db: db}
}

func opKey(id string) []byte {
	return []byte("op/" + id)
}

// The operation id rides in the key as a tiebreaker so two operations
// created in the same nanosecond both keep an index entry.
func userKey(userID string, createdAt time.Time, id string) []byte {
	seq := uint64(math.MaxInt64 - createdAt.UnixNano())
	return []byte(fmt.Sprintf("opu/%s/%020d/%s", userID, seq, id))
}

func stepKey(operationID string, index int) []byte {
	return []byte(fmt.Sprintf("step/%s/%05d", operationID, index))
}

func stepPrefix(operationID string) []byte {
	return []byte("step/" + operationID + "/")
}

// CreateOperation writes a new operation, its user-index entry and all of
// its steps in one batch.
func (s *Store) CreateOperation(op *Operation, steps []*Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	if err := putOperation(batch, op); err != nil {
		return err
	}
	if err := batch.Put(userKey(op.UserID, op.CreatedAt, op.ID), []byte(op.ID)); err != nil {
		return err
	}
	for _, st := range steps {
		raw, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode step: %w", err)
		}
		if err := batch.Put(stepKey(st.OperationID, st.StepIndex), raw); err != nil {
			return err
		}
	}
	return batch.Write()
}

// UpdateOperation rewrites the operation record.
func (s *Store) UpdateOperation(op *Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putOperation(s.db, op)
}

// UpdateStep rewrites one step record.
func (s *Store) UpdateStep(st *Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode step: %w", err)
	}
	return s.db.Put(stepKey(st.OperationID, st.StepIndex), raw)
}

// kvPutter is the slice of database.Database and database.Batch the
// operation writer needs.
type kvPutter interface {
	Put(key, value []byte) error
}

func putOperation(w kvPutter, op *Operation) error {
	rec := *op
	rec.Steps = nil
	raw, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode operation: %w", err)
	}
	return w.Put(opKey(op.ID), raw)
}

// GetOperation loads one operation without steps.
func (s *Store) GetOperation(id string) (*Operation, error) {
	raw, err := s.db.Get(opKey(id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var op Operation
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, fmt.Errorf("decode operation %s: %w", id, err)
	}
	return &op, nil
}

// GetSteps loads an operation's steps in stepIndex order.
func (s *Store) GetSteps(operationID string) ([]*Step, error) {
	it := s.db.NewIteratorWithPrefix(stepPrefix(operationID))
	defer it.Release()

	var steps []*Step
	for it.Next() {
		var st Step
		if err := json.Unmarshal(it.Value(), &st); err != nil {
			return nil, fmt.Errorf("decode step %s: %w", it.Key(), err)
		}
		steps = append(steps, &st)
	}
	return steps, it.Error()
}

// ListUserOperations returns all of a user's operations, newest first,
// without steps.
func (s *Store) ListUserOperations(userID string) ([]*Operation, error) {
	it := s.db.NewIteratorWithPrefix([]byte("opu/" + userID + "/"))
	defer it.Release()

	var ops []*Operation
	for it.Next() {
		op, err := s.GetOperation(string(it.Value()))
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, it.Error()
}

// ListByStatus scans every operation and keeps those in the given status.
// The reconciler uses it to find PROCESSING work.
func (s *Store) ListByStatus(status OperationStatus) ([]*Operation, error) {
	it := s.db.NewIteratorWithPrefix([]byte("op/"))
	defer it.Release()

	var ops []*Operation
	for it.Next() {
		var op Operation
		if err := json.Unmarshal(it.Value(), &op); err != nil {
			return nil, fmt.Errorf("decode operation %s: %w", it.Key(), err)
		}
		if op.Status == status {
			ops = append(ops, &op)
		}
	}
	return ops, it.Error()
}

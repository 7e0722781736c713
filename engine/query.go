// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import "context"

// ListFilter narrows and pages a user's operation list. Zero values mean
// "no filter"; Limit defaults to 20.
type ListFilter struct {
	Type   OperationType
	Status OperationStatus
	Limit  int
	Offset int
}

// GetOperation returns one of the user's operations with steps attached in
// stepIndex order.
func (e *Engine) GetOperation(ctx context.Context, userID, operationID string) (*Operation, error) {
	op, steps, err := e.load(userID, operationID)
	if err != nil {
		return nil, err
	}
	op.Steps = steps
	return op, nil
}

// ListOperations returns a page of the user's operations, newest first,
// plus the total count of matches before paging. Steps are not attached.
func (e *Engine) ListOperations(ctx context.Context, userID string, filter ListFilter) ([]*Operation, int, error) {
	all, err := e.store.ListUserOperations(userID)
	if err != nil {
		return nil, 0, err
	}

	var matches []*Operation
	for _, op := range all {
		if filter.Type != "" && op.Type != filter.Type {
			continue
		}
		if filter.Status != "" && op.Status != filter.Status {
			continue
		}
		matches = append(matches, op)
	}
	total := len(matches)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

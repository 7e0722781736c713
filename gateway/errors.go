// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Error selectors surfaced by the settlement service and its contracts. The
// engine keys terminal-vs-benign mint handling off these.
const (
	SelectorTransferSpecHashUsed  = "TransferSpecHashUsed"
	SelectorAttestationExpired    = "AttestationExpiredAtIndex"
	SelectorDepositNotFinalized   = "DepositNotFinalized"
	SelectorDelegateNotAuthorized = "DelegateNotAuthorized"
)

// APIError is a classified failure from the settlement service. Selector is
// empty for plain transport-level failures.
type APIError struct {
	StatusCode int
	Selector   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Selector)
	}
	return fmt.Sprintf("gateway: %s (status %d)", e.Message, e.StatusCode)
}

func hasSelector(err error, selector string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Selector == selector
	}
	// Contract reverts bubbled through RPC arrive as plain strings.
	return err != nil && strings.Contains(err.Error(), selector)
}

// IsTransferSpecHashUsed reports that the attestation was already consumed:
// a previous mint attempt landed, so the mint is done, not failed.
func IsTransferSpecHashUsed(err error) bool {
	return hasSelector(err, SelectorTransferSpecHashUsed)
}

// IsAttestationExpired reports a terminal mint failure: the attestation can
// never be consumed.
func IsAttestationExpired(err error) bool {
	return hasSelector(err, SelectorAttestationExpired)
}

// IsDepositNotFinalized reports the usual transient burn-intent rejection:
// the funding deposit has not reached finality yet.
func IsDepositNotFinalized(err error) bool {
	return hasSelector(err, SelectorDepositNotFinalized)
}

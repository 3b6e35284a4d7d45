package orchestrator

import (
	"fmt"
	"time"

	"xcm-transfer/config"
	"xcm-transfer/pkg/amount"
)

// State is a transfer attempt's position in its lifecycle
type State string

const (
	StateIdle       State = "Idle"
	StateValidating State = "Validating"
	StateSigning    State = "Signing"
	StateSubmitted  State = "Submitted"
	StateInBlock    State = "InBlock"

	// Terminal states. Every terminal transition releases the watch
	// subscription and is observable by the caller.
	StateFinalizedSuccess State = "FinalizedSuccess"
	StateFinalizedFailure State = "FinalizedFailure"
	StateRejected         State = "Rejected"
	StateError            State = "Error"
)

// Terminal reports whether the state ends the attempt's lifecycle
func (s State) Terminal() bool {
	switch s {
	case StateFinalizedSuccess, StateFinalizedFailure, StateRejected, StateError:
		return true
	}
	return false
}

// Failure reason prefixes surfaced to the caller
const (
	ReasonSigningFailed     = "SigningFailed"
	ReasonTransactionFailed = "TransactionFailed"
)

// RejectionCode classifies a validation rejection
type RejectionCode string

const (
	AmountOutOfBounds   RejectionCode = "AmountOutOfBounds"
	InsufficientBalance RejectionCode = "InsufficientBalance"
)

// ValidationError is a user-input rejection. It is surfaced verbatim and
// never retried automatically.
type ValidationError struct {
	Code    RejectionCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Policy holds the transfer bounds, fee estimate and lifecycle timings the
// orchestrator enforces. All values are operator configuration, never
// protocol constants.
type Policy struct {
	Min amount.Amount // inclusive lower transfer bound
	Max amount.Amount // inclusive upper transfer bound
	Fee amount.Amount // fixed fee estimate reserved out of the free balance

	RefreshDelay time.Duration // wait before the post-terminal balance refetch
	ResetGrace   time.Duration // how long a terminal status stays visible
	AttemptTTL   time.Duration // attempt retention after a terminal state

	ExplorerURL string // base URL for manual-inspection pointers
}

// PolicyFromConfig converts the configured decimal strings into exact
// amounts tagged with the asset's decimal count
func PolicyFromConfig(cfg *config.Config) (Policy, error) {
	decimals := cfg.Asset.Decimals

	min, err := amount.Parse(cfg.Policy.MinTransfer, decimals)
	if err != nil {
		return Policy{}, fmt.Errorf("policy min_transfer: %w", err)
	}
	max, err := amount.Parse(cfg.Policy.MaxTransfer, decimals)
	if err != nil {
		return Policy{}, fmt.Errorf("policy max_transfer: %w", err)
	}
	if min.Cmp(max) > 0 {
		return Policy{}, fmt.Errorf("policy min_transfer %s exceeds max_transfer %s", min, max)
	}
	fee, err := amount.Parse(cfg.Policy.FeeEstimate, decimals)
	if err != nil {
		return Policy{}, fmt.Errorf("policy fee_estimate: %w", err)
	}

	return Policy{
		Min:          min,
		Max:          max,
		Fee:          fee,
		RefreshDelay: cfg.Policy.RefreshDelay,
		ResetGrace:   cfg.Policy.ResetGrace,
		AttemptTTL:   cfg.Policy.AttemptTTL,
		ExplorerURL:  cfg.ExplorerURL,
	}, nil
}

// Package orchestrator validates, signs, submits and tracks cross-chain
// transfers through an explicit status state machine.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"xcm-transfer/pkg/amount"
	"xcm-transfer/pkg/balance"
	"xcm-transfer/pkg/chainconn"
	"xcm-transfer/pkg/signer"
	"xcm-transfer/pkg/xcm"
)

// Intent is a user-declared desired transfer. It either fails validation
// and is discarded, or is promoted into an Attempt.
type Intent struct {
	SourceChain      string
	DestinationChain string
	Asset            string
	Amount           string // decimal string as entered
	Beneficiary      string // SS58 address
}

// Attempt is one tracked transfer. The orchestrator owns it for its
// lifetime; it is dropped a grace period after reaching a terminal state.
type Attempt struct {
	ID               string
	Intent           Intent
	Payload          *xcm.Payload
	State            State
	TxHash           string
	FailureReason    string
	CreatedAt        time.Time
	LastTransitionAt time.Time
}

// signedEnvelope is the wire form handed to submit-and-watch
type signedEnvelope struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
	Signer    string          `json:"signer"`
}

// Orchestrator drives transfers for one signing account against a fixed
// topology. Submit is non-blocking past submission; watch streams are
// handled on background goroutines so new input stays responsive.
type Orchestrator struct {
	registry *chainconn.Registry
	balances *balance.Aggregator
	builder  *xcm.Builder
	topo     *xcm.Topology
	signer   signer.Signer
	policy   Policy
	log      zerolog.Logger

	onTransition func(Attempt)

	mu       sync.Mutex
	attempts map[string]*Attempt
	current  string // attempt occupying the visible state machine, "" = idle
}

// New creates an orchestrator. A missing signer is a configuration error;
// transfers must never get as far as Signing before discovering it.
func New(registry *chainconn.Registry, balances *balance.Aggregator, topo *xcm.Topology, sgn signer.Signer, policy Policy, log zerolog.Logger) (*Orchestrator, error) {
	if sgn == nil {
		return nil, fmt.Errorf("orchestrator requires a signer")
	}
	return &Orchestrator{
		registry: registry,
		balances: balances,
		builder:  xcm.NewBuilder(topo),
		topo:     topo,
		signer:   sgn,
		policy:   policy,
		log:      log.With().Str("component", "orchestrator").Logger(),
		attempts: make(map[string]*Attempt),
	}, nil
}

// OnTransition registers a callback observing every attempt transition.
// Must be set before the first Submit.
func (o *Orchestrator) OnTransition(fn func(Attempt)) {
	o.onTransition = fn
}

// State returns the state visible to the user: the current attempt's state,
// or Idle once the display grace period has cleared it
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if at, ok := o.attempts[o.current]; ok {
		return at.State
	}
	return StateIdle
}

// Attempt returns a copy of a tracked attempt
func (o *Orchestrator) Attempt(id string) (Attempt, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if at, ok := o.attempts[id]; ok {
		return *at, true
	}
	return Attempt{}, false
}

// Submit validates an intent, builds and signs its payload, submits it, and
// starts driving the watch stream. It returns once the transfer is
// submitted (or rejected); terminal progress is reported via OnTransition.
//
// Concurrent submissions to the same chain for the same account are not
// deduplicated here; the caller keeps the input disabled while pending.
func (o *Orchestrator) Submit(ctx context.Context, intent Intent) (Attempt, error) {
	at := o.newAttempt(intent)
	o.transition(at.ID, StateValidating, "")

	amt, verr := o.validate(ctx, intent)
	if verr != nil {
		o.finish(at.ID, StateRejected, verr.Error())
		return o.snapshot(at.ID), verr
	}

	src, _ := o.topo.Chain(intent.SourceChain)
	dst, _ := o.topo.Chain(intent.DestinationChain)
	route := xcm.Route{Source: src, Destination: dst, AssetSymbol: intent.Asset}

	payload, err := o.builder.Build(route, amt, intent.Beneficiary)
	if err != nil {
		// An unrecognized route is a topology error, not a user one; it
		// must surface rather than be skipped.
		o.finish(at.ID, StateError, err.Error())
		return o.snapshot(at.ID), err
	}
	encoded, err := payload.Encode()
	if err != nil {
		o.finish(at.ID, StateError, err.Error())
		return o.snapshot(at.ID), err
	}

	o.mu.Lock()
	o.attempts[at.ID].Payload = payload
	o.mu.Unlock()

	o.transition(at.ID, StateSigning, "")
	sig, err := o.signer.Sign(ctx, encoded)
	if err != nil {
		reason := fmt.Sprintf("%s: %v", ReasonSigningFailed, err)
		o.finish(at.ID, StateError, reason)
		return o.snapshot(at.ID), fmt.Errorf("%s: %w", ReasonSigningFailed, err)
	}

	envelope, err := json.Marshal(signedEnvelope{
		Payload:   encoded,
		Signature: hexutil.Encode(sig),
		Signer:    o.signer.Address(),
	})
	if err != nil {
		o.finish(at.ID, StateError, err.Error())
		return o.snapshot(at.ID), err
	}

	txHash := blake2b.Sum256(envelope)
	o.mu.Lock()
	o.attempts[at.ID].TxHash = hexutil.Encode(txHash[:])
	o.mu.Unlock()

	conn, ok := o.registry.Get(intent.SourceChain)
	if !ok {
		err := fmt.Errorf("%w: no connection for chain %q", chainconn.ErrChainUnreachable, intent.SourceChain)
		o.finish(at.ID, StateError, err.Error())
		return o.snapshot(at.ID), err
	}

	watch, err := conn.SubmitAndWatch(ctx, envelope)
	if err != nil {
		reason := fmt.Sprintf("%s: submit: %v", ReasonTransactionFailed, err)
		o.finish(at.ID, StateError, reason)
		return o.snapshot(at.ID), err
	}

	o.transition(at.ID, StateSubmitted, "")
	go o.drive(at.ID, intent.SourceChain, watch)

	return o.snapshot(at.ID), nil
}

// validate applies the user-input checks in order: amount bounds first,
// then spendable balance on the source chain. The fee estimate is policy,
// not a per-transfer computation.
func (o *Orchestrator) validate(ctx context.Context, intent Intent) (amount.Amount, *ValidationError) {
	decimals := o.policy.Min.Decimals()

	amt, err := amount.Parse(intent.Amount, decimals)
	if err != nil {
		return amount.Amount{}, &ValidationError{
			Code:    AmountOutOfBounds,
			Message: fmt.Sprintf("invalid amount %q: %v", intent.Amount, err),
		}
	}

	if amt.Cmp(o.policy.Min) < 0 || amt.Cmp(o.policy.Max) > 0 {
		return amount.Amount{}, &ValidationError{
			Code: AmountOutOfBounds,
			Message: fmt.Sprintf("amount %s is outside the allowed range [%s, %s]",
				amt.DisplayString(), o.policy.Min.DisplayString(), o.policy.Max.DisplayString()),
		}
	}

	snap, err := o.balances.Refresh(ctx, intent.SourceChain, o.signer.Address())
	if err != nil {
		return amount.Amount{}, &ValidationError{
			Code:    InsufficientBalance,
			Message: fmt.Sprintf("cannot verify balance on %s: %v", intent.SourceChain, err),
		}
	}

	// Spendable is free minus the fee estimate; the boundary is inclusive.
	required := amt.Add(o.policy.Fee)
	if required.Cmp(snap.Free) > 0 {
		shortfall, _ := required.Sub(snap.Free)
		return amount.Amount{}, &ValidationError{
			Code: InsufficientBalance,
			Message: fmt.Sprintf("insufficient balance on %s: short %s %s (fee estimate %s %s)",
				intent.SourceChain, shortfall.DisplayString(), intent.Asset,
				o.policy.Fee.DisplayString(), intent.Asset),
		}
	}

	return amt, nil
}

// drive consumes the watch stream until a terminal transition. The watch is
// released on every exit path; the stream itself is never timed out since
// finality can take minutes.
func (o *Orchestrator) drive(id, sourceChain string, watch *chainconn.Watch) {
	defer watch.Unsubscribe()

	sawSuccess := false
	for status := range watch.Updates() {
		if status.Err != nil {
			o.finish(id, StateError, o.failureReason(id, fmt.Sprintf("%s: %v", ReasonTransactionFailed, status.Err)))
			return
		}

		switch status.Phase {
		case chainconn.PhaseBroadcast:
			o.log.Debug().Str("attempt", id).Msg("broadcast")

		case chainconn.PhaseInBlock:
			if o.terminal(id) {
				continue
			}
			if status.BlockHash != "" {
				o.log.Debug().Str("attempt", id).Str("block", status.BlockHash).Msg("in block")
			}
			o.transition(id, StateInBlock, "")
			// Inclusion alone proves nothing: without the success event
			// the extrinsic failed inside the block.
			if !hasSuccessEvent(status.Events) {
				o.finish(id, StateFinalizedFailure, o.failureReason(id, "extrinsic failed despite block inclusion"))
				return
			}
			sawSuccess = true

		case chainconn.PhaseFinalized:
			if o.terminal(id) {
				return
			}
			if sawSuccess || hasSuccessEvent(status.Events) {
				o.finish(id, StateFinalizedSuccess, "")
			} else {
				o.finish(id, StateFinalizedFailure, o.failureReason(id, "extrinsic failed despite block inclusion"))
			}
			return
		}
	}
}

// hasSuccessEvent scans emitted events for the extrinsic success marker
func hasSuccessEvent(events []chainconn.Event) bool {
	for _, ev := range events {
		if ev.Pallet == "system" && ev.Method == "ExtrinsicSuccess" {
			return true
		}
	}
	return false
}

// failureReason appends the explorer pointer for manual inspection when a
// transaction hash exists. Failed transfers are never auto-retried; a
// resubmission could double-spend the intent.
func (o *Orchestrator) failureReason(id, reason string) string {
	if o.policy.ExplorerURL == "" {
		return reason
	}
	o.mu.Lock()
	at, ok := o.attempts[id]
	var hash string
	if ok {
		hash = at.TxHash
	}
	o.mu.Unlock()
	if hash == "" {
		return reason
	}
	return fmt.Sprintf("%s; inspect at %s/extrinsic/%s", reason, o.policy.ExplorerURL, hash)
}

func (o *Orchestrator) newAttempt(intent Intent) Attempt {
	now := time.Now()
	at := &Attempt{
		ID:               uuid.NewString(),
		Intent:           intent,
		State:            StateIdle,
		CreatedAt:        now,
		LastTransitionAt: now,
	}
	o.mu.Lock()
	o.attempts[at.ID] = at
	o.current = at.ID
	o.mu.Unlock()
	return *at
}

func (o *Orchestrator) snapshot(id string) Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	if at, ok := o.attempts[id]; ok {
		return *at
	}
	return Attempt{}
}

func (o *Orchestrator) terminal(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	at, ok := o.attempts[id]
	return ok && at.State.Terminal()
}

// transition applies a non-terminal state change
func (o *Orchestrator) transition(id string, state State, reason string) {
	o.mu.Lock()
	at, ok := o.attempts[id]
	if !ok || at.State.Terminal() {
		o.mu.Unlock()
		return
	}
	at.State = state
	at.LastTransitionAt = time.Now()
	if reason != "" {
		at.FailureReason = reason
	}
	snapshot := *at
	o.mu.Unlock()

	o.notify(snapshot)
}

// finish applies a terminal state change exactly once. A duplicate terminal
// event after the machine is already terminal is a no-op, not an error.
func (o *Orchestrator) finish(id string, state State, reason string) {
	o.mu.Lock()
	at, ok := o.attempts[id]
	if !ok || at.State.Terminal() {
		o.mu.Unlock()
		return
	}
	at.State = state
	at.FailureReason = reason
	at.LastTransitionAt = time.Now()
	snapshot := *at
	o.mu.Unlock()

	o.notify(snapshot)
	o.schedulePostTerminal(snapshot)
}

// schedulePostTerminal runs the terminal side effects: a delayed balance
// refetch (chain state indexing lags inclusion by several seconds), the
// display-grace reset back to Idle, and eventual attempt cleanup.
func (o *Orchestrator) schedulePostTerminal(at Attempt) {
	// Rejected attempts never touched the chain; nothing to refetch.
	if at.State != StateRejected {
		time.AfterFunc(o.policy.RefreshDelay, func() {
			ctx, cancel := context.WithTimeout(context.Background(), o.policy.RefreshDelay+10*time.Second)
			defer cancel()
			if _, err := o.balances.Refresh(ctx, at.Intent.SourceChain, o.signer.Address()); err != nil {
				o.log.Warn().Err(err).Str("chain", at.Intent.SourceChain).Msg("post-transfer balance refresh failed")
			}
		})
	}

	time.AfterFunc(o.policy.ResetGrace, func() {
		o.mu.Lock()
		if o.current == at.ID {
			o.current = ""
		}
		o.mu.Unlock()
	})

	time.AfterFunc(o.policy.AttemptTTL, func() {
		o.mu.Lock()
		delete(o.attempts, at.ID)
		o.mu.Unlock()
	})
}

func (o *Orchestrator) notify(at Attempt) {
	evt := o.log.Info().Str("attempt", at.ID).Str("state", string(at.State))
	if at.FailureReason != "" {
		evt = evt.Str("reason", at.FailureReason)
	}
	evt.Msg("transition")

	if o.onTransition != nil {
		o.onTransition(at)
	}
}

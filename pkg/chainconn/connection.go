// Package chainconn provides typed access to the chains in the transfer
// topology: a generic query surface, a submit-and-watch surface for
// extrinsics, and a registry of owned connection handles.
package chainconn

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Transport-level failures are retried by the caller's next poll, never
// internally.
var (
	// ErrChainUnreachable marks transport failures: dial errors, dropped
	// sockets, and expired query timeouts.
	ErrChainUnreachable = errors.New("chain unreachable")

	// ErrQueryFailed marks queries that reached the chain but returned
	// unusable data.
	ErrQueryFailed = errors.New("query failed")
)

// Phase identifies a stage in a submitted extrinsic's lifecycle
type Phase string

const (
	PhaseBroadcast Phase = "Broadcast"
	PhaseInBlock   Phase = "InBlock"
	PhaseFinalized Phase = "Finalized"
)

// Event is a chain event emitted alongside an extrinsic status update.
// Inclusion in a block does not imply logical success; callers inspect
// events to tell the difference.
type Event struct {
	Pallet string          `json:"pallet"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// TxStatus is one update from a submit-and-watch stream
type TxStatus struct {
	Phase     Phase   `json:"phase"`
	BlockHash string  `json:"blockHash,omitempty"`
	Events    []Event `json:"events,omitempty"`
	Err       error   `json:"-"`
}

// Connection is one chain's transport handle. Operations against a single
// connection are serialized by the orchestrator; the handle itself is safe
// for concurrent use.
type Connection interface {
	// Name returns the configured chain name
	Name() string

	// Query performs a read against the chain. The path selects the query
	// surface (e.g. "system_account" vs "foreignAssets_account").
	Query(ctx context.Context, path string, args ...interface{}) (json.RawMessage, error)

	// SubmitAndWatch submits a signed payload and returns a watch over its
	// status lifecycle. The watch stream is not subject to query timeouts;
	// finality can legitimately take minutes.
	SubmitAndWatch(ctx context.Context, signed []byte) (*Watch, error)

	// Close releases the transport
	Close() error
}

// Watch is a handle on a long-lived extrinsic status stream. It must be
// released with Unsubscribe on every terminal transition; a leaked watch is
// a resource leak, not just a missed update.
type Watch struct {
	updates chan TxStatus
	done    chan struct{}
	once    sync.Once
	onUnsub func()
}

// NewWatch creates a watch. onUnsub runs exactly once, when the watch is
// released, and is how transports learn to stop delivering.
func NewWatch(onUnsub func()) *Watch {
	return &Watch{
		updates: make(chan TxStatus, 8),
		done:    make(chan struct{}),
		onUnsub: onUnsub,
	}
}

// Updates returns the status stream
func (w *Watch) Updates() <-chan TxStatus {
	return w.updates
}

// Done is closed once the watch has been released
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Send delivers a status update, returning false if the watch has already
// been released. Producers must stop after a false return.
func (w *Watch) Send(status TxStatus) bool {
	select {
	case <-w.done:
		return false
	case w.updates <- status:
		return true
	}
}

// Unsubscribe releases the watch. Safe to call more than once; the
// underlying release runs exactly once.
func (w *Watch) Unsubscribe() {
	w.once.Do(func() {
		close(w.done)
		if w.onUnsub != nil {
			w.onUnsub()
		}
	})
}

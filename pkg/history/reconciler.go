package history

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"xcm-transfer/pkg/amount"
	"xcm-transfer/pkg/xcm"
)

// Record is a normalized history entry. Records are produced only here,
// from raw indexer responses; locally initiated attempts are tracked by the
// orchestrator and deliberately never merged into this log (the indexer may
// lag submission by seconds to minutes).
type Record struct {
	MessageID        string
	SourceChain      string
	DestinationChain string
	Asset            string
	Amount           amount.Amount
	Status           string
	ObservedAt       time.Time
}

// TransferSource is the slice of the indexer client the reconciler needs
type TransferSource interface {
	ListTransfers(ctx context.Context, account string, destFilter uint32, page int) ([]Transfer, error)
}

// Reconciler normalizes indexer responses into canonical records
type Reconciler struct {
	source TransferSource
	topo   *xcm.Topology
	log    zerolog.Logger

	mu      sync.Mutex
	records []Record
}

// NewReconciler creates a reconciler using the topology for chain-name
// canonicalization
func NewReconciler(source TransferSource, topo *xcm.Topology, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		source: source,
		topo:   topo,
		log:    log.With().Str("component", "history").Logger(),
	}
}

// Fetch queries the indexer and installs the normalized result. On
// unreachability or a malformed response it returns an empty sequence and
// leaves the previously installed records alone — history is best-effort.
//
// Overlapping fetches for the same account are resolved by full
// replacement: the last response to arrive wins, and partial results from
// different calls are never merged.
func (r *Reconciler) Fetch(ctx context.Context, account string, destFilter uint32) []Record {
	raw, err := r.source.ListTransfers(ctx, account, destFilter, 0)
	if err != nil {
		r.log.Warn().Err(err).Msg("history fetch failed")
		return nil
	}

	records := r.normalize(raw)

	r.mu.Lock()
	r.records = records
	r.mu.Unlock()

	return r.copyRecords(records)
}

// Records returns the last installed result
func (r *Reconciler) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyRecords(r.records)
}

// normalize canonicalizes chain identifiers and deduplicates by message
// identifier, preserving the indexer's ordering (origin timestamp
// descending). It does not re-sort.
func (r *Reconciler) normalize(raw []Transfer) []Record {
	records := make([]Record, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for _, t := range raw {
		if t.MessageHash == "" || seen[t.MessageHash] {
			continue
		}
		seen[t.MessageHash] = true

		rec := Record{
			MessageID:        t.MessageHash,
			SourceChain:      r.topo.CanonicalName(t.OriginParaID),
			DestinationChain: r.topo.CanonicalName(t.DestParaID),
			Status:           t.Status,
			ObservedAt:       time.Unix(t.BlockTimestamp, 0).UTC(),
		}

		if len(t.Assets) > 0 {
			entry := t.Assets[0]
			rec.Asset = entry.Symbol
			amt, err := amount.FromMinorUnits(entry.Amount, entry.Decimals)
			if err != nil {
				r.log.Debug().Err(err).Str("message", t.MessageHash).Msg("unparseable asset amount, keeping zero")
				amt = amount.Zero(entry.Decimals)
			}
			rec.Amount = amt
		}

		records = append(records, rec)
	}

	return records
}

func (r *Reconciler) copyRecords(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

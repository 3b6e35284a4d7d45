// Package balance aggregates per-chain balance snapshots for the active
// account, normalizing native and foreign-asset query surfaces into one
// exact representation.
package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"xcm-transfer/config"
	"xcm-transfer/pkg/amount"
	"xcm-transfer/pkg/chainconn"
)

// Query surfaces. The foreign-asset surface is keyed by an asset identifier
// and legitimately has no entry for accounts that never held the asset.
const (
	nativeAccountPath  = "system_account"
	foreignAccountPath = "foreignAssets_account"
)

// Snapshot is one chain's balances for the asset at a point in time.
// Snapshots are immutable; a new poll produces a replacement, never a
// mutation.
type Snapshot struct {
	Chain      string
	Asset      string
	Free       amount.Amount
	Reserved   amount.Amount
	Total      amount.Amount
	ObservedAt time.Time
}

// nativeAccount mirrors the native balance surface's response
type nativeAccount struct {
	Free     string `json:"free"`
	Reserved string `json:"reserved"`
}

// foreignAccount mirrors the foreign-asset surface's response
type foreignAccount struct {
	Balance string `json:"balance"`
}

// Aggregator fetches and caches the latest snapshot per chain
type Aggregator struct {
	registry *chainconn.Registry
	asset    config.AssetConfig
	log      zerolog.Logger

	mu     sync.RWMutex
	latest map[string]Snapshot
}

// New creates an aggregator over the given connection registry
func New(registry *chainconn.Registry, asset config.AssetConfig, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		asset:    asset,
		log:      log.With().Str("component", "balance").Logger(),
		latest:   make(map[string]Snapshot),
	}
}

// Refresh fetches a fresh snapshot for one chain. No retries are attempted;
// the caller owns retry cadence.
func (a *Aggregator) Refresh(ctx context.Context, chain, account string) (*Snapshot, error) {
	conn, ok := a.registry.Get(chain)
	if !ok {
		return nil, fmt.Errorf("%w: no connection for chain %q", chainconn.ErrChainUnreachable, chain)
	}

	var snap Snapshot
	var err error
	if foreignID, foreign := a.asset.ForeignIDs[chain]; foreign {
		snap, err = a.refreshForeign(ctx, conn, foreignID, account)
	} else {
		snap, err = a.refreshNative(ctx, conn, account)
	}
	if err != nil {
		return nil, err
	}

	snap.Chain = chain
	snap.Asset = a.asset.Symbol
	snap.ObservedAt = time.Now()

	a.mu.Lock()
	a.latest[chain] = snap
	a.mu.Unlock()

	return &snap, nil
}

// refreshNative reads the chain's own balance ledger
func (a *Aggregator) refreshNative(ctx context.Context, conn chainconn.Connection, account string) (Snapshot, error) {
	raw, err := conn.Query(ctx, nativeAccountPath, account)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query %s on %s: %w", nativeAccountPath, conn.Name(), err)
	}

	var data nativeAccount
	if err := json.Unmarshal(raw, &data); err != nil {
		return Snapshot{}, fmt.Errorf("%w: malformed account data on %s: %v", chainconn.ErrQueryFailed, conn.Name(), err)
	}

	free, err := amount.FromMinorUnits(data.Free, a.asset.Decimals)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: free balance on %s: %v", chainconn.ErrQueryFailed, conn.Name(), err)
	}
	reserved, err := amount.FromMinorUnits(data.Reserved, a.asset.Decimals)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: reserved balance on %s: %v", chainconn.ErrQueryFailed, conn.Name(), err)
	}

	return Snapshot{Free: free, Reserved: reserved, Total: free.Add(reserved)}, nil
}

// refreshForeign reads the reserve-backed asset surface. Any failure there
// degrades to a zero balance: the ledger entry may simply not exist yet for
// this account, and treating that as an error would block the whole view.
func (a *Aggregator) refreshForeign(ctx context.Context, conn chainconn.Connection, foreignID, account string) (Snapshot, error) {
	zero := Snapshot{
		Free:     amount.Zero(a.asset.Decimals),
		Reserved: amount.Zero(a.asset.Decimals),
		Total:    amount.Zero(a.asset.Decimals),
	}

	raw, err := conn.Query(ctx, foreignAccountPath, foreignID, account)
	if err != nil {
		a.log.Debug().Err(err).Str("chain", conn.Name()).Msg("foreign-asset query failed, reporting zero")
		return zero, nil
	}

	var data foreignAccount
	if err := json.Unmarshal(raw, &data); err != nil {
		a.log.Debug().Err(err).Str("chain", conn.Name()).Msg("malformed foreign-asset data, reporting zero")
		return zero, nil
	}

	free, err := amount.FromMinorUnits(data.Balance, a.asset.Decimals)
	if err != nil {
		a.log.Debug().Err(err).Str("chain", conn.Name()).Msg("unparseable foreign-asset balance, reporting zero")
		return zero, nil
	}

	return Snapshot{Free: free, Reserved: amount.Zero(a.asset.Decimals), Total: free}, nil
}

// RefreshAll refreshes every chain concurrently. A slow or unreachable
// chain never blocks the others; each chain's failure is reported
// individually in the returned map.
func (a *Aggregator) RefreshAll(ctx context.Context, account string) map[string]error {
	names := a.registry.Names()
	errs := make(map[string]error, len(names))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(chain string) {
			defer wg.Done()
			_, err := a.Refresh(ctx, chain, account)
			mu.Lock()
			errs[chain] = err
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	return errs
}

// Latest returns the most recent snapshot for a chain, if any. The caller
// receives a copy; stored snapshots are only ever replaced wholesale.
func (a *Aggregator) Latest(chain string) (Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.latest[chain]
	return snap, ok
}

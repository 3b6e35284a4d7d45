package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xcm-transfer/config"
	"xcm-transfer/pkg/chainconn"
)

// stubConnection answers queries from a canned table
type stubConnection struct {
	name    string
	results map[string]json.RawMessage
	errs    map[string]error
	delay   time.Duration

	mu      sync.Mutex
	queried []string
}

func (s *stubConnection) Name() string { return s.name }

func (s *stubConnection) Query(ctx context.Context, path string, args ...interface{}) (json.RawMessage, error) {
	s.mu.Lock()
	s.queried = append(s.queried, path)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", chainconn.ErrChainUnreachable, ctx.Err())
		}
	}
	if err, ok := s.errs[path]; ok {
		return nil, err
	}
	if res, ok := s.results[path]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("%w: no stub for %s", chainconn.ErrQueryFailed, path)
}

func (s *stubConnection) SubmitAndWatch(ctx context.Context, signed []byte) (*chainconn.Watch, error) {
	return nil, fmt.Errorf("not supported")
}

func (s *stubConnection) Close() error { return nil }

var testAsset = config.AssetConfig{
	Symbol:      "DOT",
	Decimals:    10,
	NativeChain: "Polkadot",
	ForeignIDs:  map[string]string{"Unique": "relay-native"},
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestRefreshNative(t *testing.T) {
	conn := &stubConnection{
		name: "Polkadot",
		results: map[string]json.RawMessage{
			"system_account": json.RawMessage(`{"free":"15000000000","reserved":"5000000000"}`),
		},
	}
	agg := New(chainconn.NewRegistryFromConnections(conn), testAsset, testLogger())

	snap, err := agg.Refresh(context.Background(), "Polkadot", "addr")
	require.NoError(t, err)

	assert.Equal(t, "15000000000", snap.Free.MinorString())
	assert.Equal(t, "5000000000", snap.Reserved.MinorString())
	assert.Equal(t, "20000000000", snap.Total.MinorString())
	assert.Equal(t, "1.5000", snap.Free.DisplayString())
	assert.False(t, snap.ObservedAt.IsZero())

	cached, ok := agg.Latest("Polkadot")
	require.True(t, ok)
	assert.Equal(t, snap.Free.MinorString(), cached.Free.MinorString())
}

func TestRefreshNativeFailurePropagates(t *testing.T) {
	conn := &stubConnection{
		name: "Polkadot",
		errs: map[string]error{
			"system_account": fmt.Errorf("%w: dial", chainconn.ErrChainUnreachable),
		},
	}
	agg := New(chainconn.NewRegistryFromConnections(conn), testAsset, testLogger())

	_, err := agg.Refresh(context.Background(), "Polkadot", "addr")
	assert.ErrorIs(t, err, chainconn.ErrChainUnreachable)

	_, ok := agg.Latest("Polkadot")
	assert.False(t, ok, "failed refresh must not install a snapshot")
}

func TestRefreshNativeMalformedDataIsQueryFailed(t *testing.T) {
	conn := &stubConnection{
		name: "Polkadot",
		results: map[string]json.RawMessage{
			"system_account": json.RawMessage(`{"free":"not-a-number","reserved":"0"}`),
		},
	}
	agg := New(chainconn.NewRegistryFromConnections(conn), testAsset, testLogger())

	_, err := agg.Refresh(context.Background(), "Polkadot", "addr")
	assert.ErrorIs(t, err, chainconn.ErrQueryFailed)
}

func TestRefreshForeignUsesForeignSurface(t *testing.T) {
	conn := &stubConnection{
		name: "Unique",
		results: map[string]json.RawMessage{
			"foreignAssets_account": json.RawMessage(`{"balance":"42000000000"}`),
		},
	}
	agg := New(chainconn.NewRegistryFromConnections(conn), testAsset, testLogger())

	snap, err := agg.Refresh(context.Background(), "Unique", "addr")
	require.NoError(t, err)

	assert.Equal(t, "42000000000", snap.Free.MinorString())
	assert.True(t, snap.Reserved.IsZero())
	assert.Equal(t, []string{"foreignAssets_account"}, conn.queried)
}

func TestRefreshForeignFailureDegradesToZero(t *testing.T) {
	// A missing foreign-asset ledger entry is normal for a new account;
	// it must read as zero, not as an error.
	conn := &stubConnection{
		name: "Unique",
		errs: map[string]error{
			"foreignAssets_account": fmt.Errorf("%w: no entry", chainconn.ErrQueryFailed),
		},
	}
	agg := New(chainconn.NewRegistryFromConnections(conn), testAsset, testLogger())

	snap, err := agg.Refresh(context.Background(), "Unique", "addr")
	require.NoError(t, err)
	assert.True(t, snap.Free.IsZero())
	assert.True(t, snap.Total.IsZero())
}

func TestRefreshUnknownChain(t *testing.T) {
	agg := New(chainconn.NewRegistryFromConnections(), testAsset, testLogger())

	_, err := agg.Refresh(context.Background(), "Nowhere", "addr")
	assert.ErrorIs(t, err, chainconn.ErrChainUnreachable)
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	healthy := &stubConnection{
		name: "Polkadot",
		results: map[string]json.RawMessage{
			"system_account": json.RawMessage(`{"free":"10000000000","reserved":"0"}`),
		},
	}
	broken := &stubConnection{
		name: "AssetHub",
		errs: map[string]error{
			"system_account": fmt.Errorf("%w: down", chainconn.ErrChainUnreachable),
		},
	}
	agg := New(chainconn.NewRegistryFromConnections(healthy, broken), testAsset, testLogger())

	errs := agg.RefreshAll(context.Background(), "addr")

	assert.NoError(t, errs["Polkadot"])
	assert.ErrorIs(t, errs["AssetHub"], chainconn.ErrChainUnreachable)

	_, ok := agg.Latest("Polkadot")
	assert.True(t, ok, "healthy chain must refresh despite the broken one")
}

func TestRefreshAllSlowChainDoesNotBlockOthers(t *testing.T) {
	fast := &stubConnection{
		name: "Polkadot",
		results: map[string]json.RawMessage{
			"system_account": json.RawMessage(`{"free":"1","reserved":"0"}`),
		},
	}
	slow := &stubConnection{
		name:  "AssetHub",
		delay: 300 * time.Millisecond,
		results: map[string]json.RawMessage{
			"system_account": json.RawMessage(`{"free":"2","reserved":"0"}`),
		},
	}
	agg := New(chainconn.NewRegistryFromConnections(fast, slow), testAsset, testLogger())

	start := time.Now()
	errs := agg.RefreshAll(context.Background(), "addr")
	elapsed := time.Since(start)

	assert.NoError(t, errs["Polkadot"])
	assert.NoError(t, errs["AssetHub"])
	// Concurrent: total wall time tracks the slowest chain, not the sum.
	assert.Less(t, elapsed, 600*time.Millisecond)
}

func TestPollerReportsEachCycle(t *testing.T) {
	healthy := &stubConnection{
		name: "Polkadot",
		results: map[string]json.RawMessage{
			"system_account": json.RawMessage(`{"free":"1","reserved":"0"}`),
		},
	}
	broken := &stubConnection{
		name: "AssetHub",
		errs: map[string]error{
			"system_account": fmt.Errorf("%w: down", chainconn.ErrChainUnreachable),
		},
	}
	agg := New(chainconn.NewRegistryFromConnections(healthy, broken), testAsset, testLogger())
	poller := NewPoller(agg, 50*time.Millisecond, testLogger())
	defer poller.Stop()

	var mu sync.Mutex
	var cycles []map[string]error
	poller.OnPoll(func(errs map[string]error) {
		mu.Lock()
		cycles = append(cycles, errs)
		mu.Unlock()
	})
	poller.SetAccount("alice")
	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(cycles), 2, "initial poll plus at least one tick")
	for _, errs := range cycles {
		assert.NoError(t, errs["Polkadot"])
		assert.ErrorIs(t, errs["AssetHub"], chainconn.ErrChainUnreachable)
	}
}

func TestPollerRestartsOnAccountChange(t *testing.T) {
	conn := &stubConnection{
		name: "Polkadot",
		results: map[string]json.RawMessage{
			"system_account": json.RawMessage(`{"free":"1","reserved":"0"}`),
		},
	}
	agg := New(chainconn.NewRegistryFromConnections(conn), testAsset, testLogger())
	poller := NewPoller(agg, 50*time.Millisecond, testLogger())
	defer poller.Stop()

	poller.SetAccount("alice")
	time.Sleep(120 * time.Millisecond)

	conn.mu.Lock()
	afterFirst := len(conn.queried)
	conn.mu.Unlock()
	assert.GreaterOrEqual(t, afterFirst, 2, "initial poll plus at least one tick")

	poller.SetAccount("")
	time.Sleep(120 * time.Millisecond)

	conn.mu.Lock()
	afterStop := len(conn.queried)
	conn.mu.Unlock()
	time.Sleep(120 * time.Millisecond)
	conn.mu.Lock()
	final := len(conn.queried)
	conn.mu.Unlock()
	assert.Equal(t, afterStop, final, "no polls after the account is cleared")
}

package balance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Poller drives the aggregator on a fixed interval for the active account.
// The loop restarts whenever the account changes and stops when no account
// is active.
type Poller struct {
	agg      *Aggregator
	interval time.Duration
	log      zerolog.Logger

	onPoll func(map[string]error)

	mu      sync.Mutex
	account string
	cancel  context.CancelFunc
}

// NewPoller creates a poller with the configured cadence
func NewPoller(agg *Aggregator, interval time.Duration, log zerolog.Logger) *Poller {
	return &Poller{
		agg:      agg,
		interval: interval,
		log:      log.With().Str("component", "poller").Logger(),
	}
}

// OnPoll registers a callback observing every completed poll cycle with the
// per-chain error map. Must be set before the first SetAccount.
func (p *Poller) OnPoll(fn func(map[string]error)) {
	p.onPoll = fn
}

// SetAccount switches the active account. An empty account stops polling.
func (p *Poller) SetAccount(account string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.account = account
	if account == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx, account)
}

// Stop cancels any active poll loop
func (p *Poller) Stop() {
	p.SetAccount("")
}

func (p *Poller) loop(ctx context.Context, account string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Poll immediately so a fresh account is not blind for a full interval
	p.pollOnce(ctx, account)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, account)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context, account string) {
	errs := p.agg.RefreshAll(ctx, account)
	for chain, err := range errs {
		if err != nil {
			p.log.Warn().Err(err).Str("chain", chain).Msg("balance poll failed")
		}
	}
	if p.onPoll != nil {
		p.onPoll(errs)
	}
}

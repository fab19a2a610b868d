package session

import (
	"context"
	"sync"
	"time"

	"github.com/zeticontents/zetisync/internal/domain"
	"github.com/zeticontents/zetisync/internal/logger"
	"github.com/zeticontents/zetisync/internal/progress"
)

// HistoryFetcher retrieves the authoritative download history for a client.
type HistoryFetcher interface {
	DownloadHistory(ctx context.Context, clientID string) ([]domain.HistoryEntry, error)
}

// HistoryCache persists the last good history snapshot between sessions.
type HistoryCache interface {
	ReplaceHistory(clientID string, entries []domain.HistoryEntry) error
	ListHistory(clientID string) ([]domain.HistoryEntry, error)
}

// Reconciler keeps the history view in sync with the server. Each request id
// triggers at most one refetch, fired the first time that request reaches a
// terminal status. A refetch replaces the whole snapshot rather than patching
// individual rows; on failure the previous snapshot is retained and marked
// stale.
type Reconciler struct {
	fetcher  HistoryFetcher
	cache    HistoryCache
	clientID string
	timeout  time.Duration
	log      *logger.Logger

	mu        sync.Mutex
	handled   map[string]bool
	entries   []domain.HistoryEntry
	stale     bool
	unmounted bool

	wg sync.WaitGroup

	// afterRefresh, when set, runs at the end of each refresh attempt.
	afterRefresh func()
}

func NewReconciler(fetcher HistoryFetcher, cache HistoryCache, clientID string, log *logger.Logger) *Reconciler {
	return &Reconciler{
		fetcher:  fetcher,
		cache:    cache,
		clientID: clientID,
		timeout:  15 * time.Second,
		log:      log.WithComponent("reconciler").WithClient(clientID),
		handled:  make(map[string]bool),
	}
}

// LoadCached seeds the snapshot from the local cache so a restarted session
// shows its last known history before the first reconciliation lands.
func (r *Reconciler) LoadCached() error {
	if r.cache == nil {
		return nil
	}
	entries, err := r.cache.ListHistory(r.clientID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.entries = entries
	r.stale = true
	r.mu.Unlock()
	return nil
}

// OnChange is subscribed to the progress store.
func (r *Reconciler) OnChange(ch progress.Change) {
	if ch.Kind != progress.ChangeUpsert || !ch.Record.Status.Terminal() {
		return
	}

	r.mu.Lock()
	if r.unmounted || r.handled[ch.Record.RequestID] {
		r.mu.Unlock()
		return
	}
	r.handled[ch.Record.RequestID] = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.refresh()
	}()
}

func (r *Reconciler) refresh() {
	if r.afterRefresh != nil {
		defer r.afterRefresh()
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	entries, err := r.fetcher.DownloadHistory(ctx, r.clientID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unmounted {
		return
	}
	if err != nil {
		r.stale = true
		r.log.Warn("history refresh failed, keeping previous snapshot", "error", err)
		return
	}
	r.entries = entries
	r.stale = false
	if r.cache != nil {
		if cerr := r.cache.ReplaceHistory(r.clientID, entries); cerr != nil {
			r.log.Warn("history cache write failed", "error", cerr)
		}
	}
	r.log.Info("history reconciled", "entries", len(entries))
}

// Snapshot returns the current history view and whether it is stale.
func (r *Reconciler) Snapshot() ([]domain.HistoryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.HistoryEntry, len(r.entries))
	copy(out, r.entries)
	return out, r.stale
}

// Stop discards in-flight refresh results.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	r.unmounted = true
	r.mu.Unlock()
}

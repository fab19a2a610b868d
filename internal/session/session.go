// Package session wires the download lifecycle together: endpoint
// resolution, variant negotiation, the push channel, the progress store,
// the completion side effect, and history reconciliation share one
// session-scoped lifetime.
package session

import (
	"context"
	"time"

	"github.com/zeticontents/zetisync/internal/catalog"
	"github.com/zeticontents/zetisync/internal/channel"
	"github.com/zeticontents/zetisync/internal/config"
	"github.com/zeticontents/zetisync/internal/delivery"
	"github.com/zeticontents/zetisync/internal/domain"
	"github.com/zeticontents/zetisync/internal/endpoint"
	"github.com/zeticontents/zetisync/internal/logger"
	"github.com/zeticontents/zetisync/internal/progress"
)

type Session struct {
	cfg       *config.Config
	log       *logger.Logger
	endpoints endpoint.Endpoints

	catalog    *catalog.Client
	progress   *progress.Store
	channel    *channel.Client
	dispatcher *Dispatcher
	reconciler *Reconciler
}

// New builds a session from config. cache may be nil when no durable
// history is wanted.
func New(cfg *config.Config, log *logger.Logger, cache HistoryCache, fd delivery.FileDelivery) *Session {
	eps := endpoint.Resolve(cfg.APIBaseURL, cfg.PushBaseURL, cfg.Origin)
	cat := catalog.NewClient(eps.APIBase, log)
	ps := progress.NewStore()

	ch := channel.NewClient(channel.Config{
		URL:          eps.Push("/downloads/" + cfg.ClientID + "/"),
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: time.Duration(cfg.ReconnectDelay) * time.Second,
	}, ps, log)

	disp := NewDispatcher(eps, fd, log)
	rec := NewReconciler(cat, cache, cfg.ClientID, log)
	ps.Subscribe(disp.OnChange)
	ps.Subscribe(rec.OnChange)

	return &Session{
		cfg:        cfg,
		log:        log.WithComponent("session").WithClient(cfg.ClientID),
		endpoints:  eps,
		catalog:    cat,
		progress:   ps,
		channel:    ch,
		dispatcher: disp,
		reconciler: rec,
	}
}

// Start seeds the history view from the cache and opens the push channel.
func (s *Session) Start() {
	if err := s.reconciler.LoadCached(); err != nil {
		s.log.Warn("could not load cached history", "error", err)
	}
	s.channel.Connect()
	s.log.Info("session started",
		"api_base", s.endpoints.APIBase,
		"push_base", s.endpoints.PushBase)
}

// Stop closes the push channel and detaches the reconciler. In-flight
// file saves are left to finish on their own.
func (s *Session) Stop() {
	s.channel.Stop()
	s.reconciler.Stop()
	s.log.Info("session stopped")
}

// Download negotiates the best variant of contentName for this client's
// device profile and registers it with the download worker. Progress then
// arrives over the push channel.
func (s *Session) Download(ctx context.Context, contentName string) (*domain.VariantDescriptor, error) {
	return s.trigger(ctx, contentName, nil)
}

// Retry re-negotiates contentName reporting the variant that already
// failed, so the catalog offers a fallback instead of the same variant.
func (s *Session) Retry(ctx context.Context, contentName string, failedVariantID int) (*domain.VariantDescriptor, error) {
	return s.trigger(ctx, contentName, &failedVariantID)
}

func (s *Session) trigger(ctx context.Context, contentName string, failedVariantID *int) (*domain.VariantDescriptor, error) {
	variant, err := s.catalog.Negotiate(ctx, s.cfg.Profile(), contentName, s.cfg.ClientID, failedVariantID)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.RegisterDownload(ctx, variant.ID, s.cfg.ClientID, domain.Tier(s.cfg.Tier)); err != nil {
		return nil, err
	}
	s.log.Info("download registered",
		"content", contentName,
		"variant_id", variant.ID,
		"type", variant.Type)
	return variant, nil
}

// ProgressView returns the deduplicated per-content rows a dashboard shows.
func (s *Session) ProgressView() []domain.ProgressRecord {
	return s.progress.Display()
}

// ProgressAll returns every tracked request, one row per request id.
func (s *Session) ProgressAll() []domain.ProgressRecord {
	return s.progress.List()
}

// ClearProgress drops all tracked rows, as on a dashboard reload.
func (s *Session) ClearProgress() {
	s.progress.ClearAll()
}

// History returns the reconciled history snapshot and whether it is stale.
func (s *Session) History() ([]domain.HistoryEntry, bool) {
	return s.reconciler.Snapshot()
}

// Contents lists the catalog.
func (s *Session) Contents(ctx context.Context) ([]domain.ContentItem, error) {
	return s.catalog.ListContents(ctx)
}

// Upload pushes a new content file and its compatibility metadata to the
// catalog, which converts it into variants server-side.
func (s *Session) Upload(ctx context.Context, up catalog.UploadRequest) (*catalog.UploadResult, error) {
	return s.catalog.UploadContent(ctx, up)
}

// ChannelState reports the push channel's connection state.
func (s *Session) ChannelState() string {
	return s.channel.State().String()
}

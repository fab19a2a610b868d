package session

import (
	"context"
	"sync"

	"github.com/zeticontents/zetisync/internal/delivery"
	"github.com/zeticontents/zetisync/internal/domain"
	"github.com/zeticontents/zetisync/internal/endpoint"
	"github.com/zeticontents/zetisync/internal/logger"
	"github.com/zeticontents/zetisync/internal/progress"
)

// Dispatcher drives the exactly-once completion side effect: when a record
// first reaches success at 100% with a delivery URL, the file save is
// initiated once per request id. Redundant success events after reconnects
// or duplicate pushes are no-ops.
type Dispatcher struct {
	endpoints endpoint.Endpoints
	delivery  delivery.FileDelivery
	log       *logger.Logger

	mu    sync.Mutex
	saved map[string]bool

	wg sync.WaitGroup
}

func NewDispatcher(eps endpoint.Endpoints, fd delivery.FileDelivery, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		endpoints: eps,
		delivery:  fd,
		log:       log.WithComponent("completion"),
		saved:     make(map[string]bool),
	}
}

// OnChange is subscribed to the progress store.
func (d *Dispatcher) OnChange(ch progress.Change) {
	if ch.Kind != progress.ChangeUpsert {
		return
	}
	rec := ch.Record
	if rec.Status != domain.StatusSuccess || rec.Percent != 100 || rec.DeliveryURL == "" {
		return
	}

	d.mu.Lock()
	if d.saved[rec.RequestID] {
		d.mu.Unlock()
		return
	}
	d.saved[rec.RequestID] = true
	d.mu.Unlock()

	target := d.endpoints.ResolveDelivery(rec.DeliveryURL)
	log := d.log.WithRequest(rec.RequestID, rec.ContentName)
	log.Info("dispatching file save", "url", target)

	// The save runs off the event path; a failure is reported to
	// observability only and never rolls back the stored status.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.delivery.Initiate(context.Background(), target, rec.RequestID); err != nil {
			log.Error("completion side effect failed",
				"error", &domain.SaveDispatchError{RequestID: rec.RequestID, Err: err})
		}
	}()
}

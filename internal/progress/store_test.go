package progress

import (
	"reflect"
	"testing"

	"github.com/zeticontents/zetisync/internal/domain"
)

func event(jobID string, status domain.Status, percent int, content, clientID string) domain.ProgressEvent {
	return domain.ProgressEvent{
		JobID:       jobID,
		Status:      status,
		Percent:     percent,
		ContentName: content,
		ClientID:    clientID,
	}
}

func TestUpsertCreatesAndMutatesInPlace(t *testing.T) {
	s := NewStore()

	s.Upsert(event("r1", domain.StatusPending, 0, "model_v1", "dev-1"))
	s.Upsert(event("r1", domain.StatusInProgress, 40, "model_v1", "dev-1"))

	if s.Len() != 1 {
		t.Fatalf("Expected 1 record, got %d", s.Len())
	}

	rec, ok := s.Get("r1")
	if !ok {
		t.Fatal("Expected record r1 to exist")
	}
	if rec.Status != domain.StatusInProgress || rec.Percent != 40 {
		t.Errorf("Expected in_progress/40, got %s/%d", rec.Status, rec.Percent)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	s := NewStore()
	ev := event("r1", domain.StatusInProgress, 40, "model_v1", "dev-1")

	s.Upsert(ev)
	once := s.List()

	s.Upsert(ev)
	twice := s.List()

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Expected identical state after duplicate event: %+v vs %+v", once, twice)
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 record, got %d", s.Len())
	}
}

func TestUniquenessPerRequestID(t *testing.T) {
	s := NewStore()

	for i := 0; i <= 100; i += 20 {
		s.Upsert(event("r1", domain.StatusInProgress, i, "model_v1", "dev-1"))
	}

	if s.Len() != 1 {
		t.Errorf("Expected at most one record per request id, got %d", s.Len())
	}
}

func TestConcurrentRequestsForSameContentStayDistinct(t *testing.T) {
	s := NewStore()

	s.Upsert(event("r2", domain.StatusInProgress, 10, "video_codec_v2", "dev-1"))
	s.Upsert(event("r3", domain.StatusInProgress, 55, "video_codec_v2", "dev-1"))

	if s.Len() != 2 {
		t.Fatalf("Expected two distinct records, got %d", s.Len())
	}

	list := s.List()
	if list[0].RequestID != "r2" || list[1].RequestID != "r3" {
		t.Errorf("Expected insertion order r2,r3: %+v", list)
	}
}

func TestPercentRegressionAppliedAsIs(t *testing.T) {
	s := NewStore()

	s.Upsert(event("r1", domain.StatusInProgress, 75, "model_v1", "dev-1"))
	s.Upsert(event("r1", domain.StatusInProgress, 50, "model_v1", "dev-1"))

	rec, _ := s.Get("r1")
	if rec.Percent != 50 {
		t.Errorf("Expected regressed percent 50 applied as-is, got %d", rec.Percent)
	}
}

func TestDisplayCollapsesByClientAndContent(t *testing.T) {
	s := NewStore()

	s.Upsert(event("r1", domain.StatusFailed, 30, "model_v1", "dev-1"))
	s.Upsert(event("r2", domain.StatusInProgress, 10, "model_v1", "dev-1"))
	s.Upsert(event("r3", domain.StatusInProgress, 80, "other", "dev-1"))

	display := s.Display()
	if len(display) != 2 {
		t.Fatalf("Expected 2 display rows, got %d", len(display))
	}

	// The re-attempt r2 is the most recent row for (dev-1, model_v1)
	for _, rec := range display {
		if rec.ContentName == "model_v1" && rec.RequestID != "r2" {
			t.Errorf("Expected display row for model_v1 to be r2, got %s", rec.RequestID)
		}
	}

	// Canonical storage keeps both
	if s.Len() != 3 {
		t.Errorf("Expected canonical storage untouched, got %d records", s.Len())
	}
}

func TestDisplayRecencyFollowsUpdates(t *testing.T) {
	s := NewStore()

	s.Upsert(event("r1", domain.StatusInProgress, 10, "model_v1", "dev-1"))
	s.Upsert(event("r2", domain.StatusInProgress, 20, "model_v1", "dev-1"))
	// r1 receives a later update, making it the most recent again
	s.Upsert(event("r1", domain.StatusInProgress, 90, "model_v1", "dev-1"))

	display := s.Display()
	if len(display) != 1 {
		t.Fatalf("Expected 1 display row, got %d", len(display))
	}
	if display[0].RequestID != "r1" {
		t.Errorf("Expected r1 to be displayed after latest update, got %s", display[0].RequestID)
	}
}

func TestClearAll(t *testing.T) {
	s := NewStore()

	s.Upsert(event("r1", domain.StatusInProgress, 40, "model_v1", "dev-1"))
	s.ClearAll()

	if s.Len() != 0 {
		t.Errorf("Expected empty store after ClearAll, got %d", s.Len())
	}
	if len(s.List()) != 0 {
		t.Error("Expected empty list after ClearAll")
	}
}

func TestSubscribeNotifiedSynchronously(t *testing.T) {
	s := NewStore()

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	s.Upsert(event("r1", domain.StatusInProgress, 40, "model_v1", "dev-1"))
	s.ClearAll()

	if len(changes) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(changes))
	}
	if changes[0].Kind != ChangeUpsert || changes[0].Record.RequestID != "r1" {
		t.Errorf("Unexpected first change: %+v", changes[0])
	}
	if changes[1].Kind != ChangeClear {
		t.Errorf("Expected clear notification, got %+v", changes[1])
	}
}

func TestListenerSeesPostMutationState(t *testing.T) {
	s := NewStore()

	var seen []int
	s.Subscribe(func(c Change) {
		if c.Kind == ChangeUpsert {
			seen = append(seen, c.Record.Percent)
		}
	})

	s.Upsert(event("r1", domain.StatusInProgress, 40, "model_v1", "dev-1"))
	s.Upsert(event("r1", domain.StatusSuccess, 100, "model_v1", "dev-1"))

	if len(seen) != 2 || seen[0] != 40 || seen[1] != 100 {
		t.Errorf("Expected listener to observe 40 then 100, got %v", seen)
	}
}

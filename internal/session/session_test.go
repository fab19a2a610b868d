package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeticontents/zetisync/internal/config"
	"github.com/zeticontents/zetisync/internal/domain"
	"github.com/zeticontents/zetisync/internal/logger"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// negotiatePayload mirrors the negotiation request body for assertions.
type negotiatePayload struct {
	DeviceInfo       domain.DeviceProfile `json:"device_info"`
	RequestedContent string               `json:"requested_content"`
	ClientID         string               `json:"client_id"`
	FailedContentID  *int                 `json:"failed_content_id"`
}

func testConfig(origin string) *config.Config {
	return &config.Config{
		APIBaseURL:     "/api",
		PushBaseURL:    "/ws",
		Origin:         origin,
		ClientID:       "dev-1",
		Tier:           "free",
		Chipset:        "sm8650",
		MemoryGB:       12,
		Resolution:     "1080p",
		MaxRetries:     3,
		ReconnectDelay: 1,
		LogLevel:       "error",
		LogFormat:      "text",
	}
}

// Exercises the full lifecycle against one server: negotiate, register,
// receive progress over the push channel, dispatch the save on completion,
// and reconcile history off the terminal frame.
func TestSessionLifecycle(t *testing.T) {
	upgrader := websocket.Upgrader{}
	sendFrames := make(chan struct{})

	var gotNegotiate negotiatePayload
	var gotRegister *http.Request

	mux := http.NewServeMux()
	mux.HandleFunc("/api/get-content/", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotNegotiate); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(domain.VariantDescriptor{
			ID: 42, DownloadURL: "/download-direct/42/", Type: "high", Version: "2.0",
		})
	})
	mux.HandleFunc("/api/download/42/", func(w http.ResponseWriter, r *http.Request) {
		gotRegister = r.Clone(context.Background())
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/download-history/dev-1/", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]domain.HistoryEntry{
			{ID: 1, Content: "model", ContentID: 42, Success: true, Timestamp: time.Now()},
		})
	})
	mux.HandleFunc("/ws/downloads/dev-1/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-sendFrames
		id := 42
		frames := []domain.ProgressEvent{
			{JobID: "req-1", Status: domain.StatusPending, Percent: 0, ContentName: "model", ClientID: "dev-1", ContentID: &id},
			{JobID: "req-1", Status: domain.StatusInProgress, Percent: 55, ContentName: "model", ClientID: "dev-1", ContentID: &id},
			{JobID: "req-1", Status: domain.StatusSuccess, Percent: 100, ContentName: "model", ClientID: "dev-1", ContentID: &id, DownloadURL: "/files/model.bin"},
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fd := &fakeDelivery{}
	s := New(testConfig(srv.URL), logger.Default(), newMemCache(), fd)
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return s.ChannelState() == "connected" }, "channel never connected")

	variant, err := s.Download(context.Background(), "model")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if variant.ID != 42 || variant.Type != "high" {
		t.Fatalf("unexpected variant: %+v", variant)
	}
	if gotNegotiate.RequestedContent != "model" || gotNegotiate.ClientID != "dev-1" {
		t.Errorf("negotiation payload wrong: %+v", gotNegotiate)
	}
	if gotNegotiate.DeviceInfo.Chipset != "sm8650" || gotNegotiate.DeviceInfo.Memory != 12 {
		t.Errorf("device profile not forwarded: %+v", gotNegotiate.DeviceInfo)
	}
	if gotNegotiate.FailedContentID != nil {
		t.Error("first attempt must not carry failed_content_id")
	}
	if gotRegister == nil {
		t.Fatal("registration never hit the worker")
	}
	if q := gotRegister.URL.Query(); q.Get("client_id") != "dev-1" || q.Get("tier") != "free" {
		t.Errorf("registration query wrong: %v", gotRegister.URL.RawQuery)
	}

	close(sendFrames)

	waitFor(t, func() bool {
		rows := s.ProgressAll()
		return len(rows) == 1 && rows[0].Status == domain.StatusSuccess && rows[0].Percent == 100
	}, "progress never reached success")

	rows := s.ProgressView()
	if len(rows) != 1 || rows[0].RequestID != "req-1" || rows[0].ContentName != "model" {
		t.Fatalf("display view wrong: %+v", rows)
	}

	s.dispatcher.wg.Wait()
	fd.mu.Lock()
	calls, url := fd.calls, ""
	if calls > 0 {
		url = fd.urls[0]
	}
	fd.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one save dispatch, got %d", calls)
	}
	if url != srv.URL+"/api/files/model.bin" {
		t.Errorf("delivery URL not resolved against API base: %q", url)
	}

	waitFor(t, func() bool {
		entries, stale := s.History()
		return !stale && len(entries) == 1 && entries[0].Content == "model"
	}, "history never reconciled")

	s.ClearProgress()
	if len(s.ProgressAll()) != 0 {
		t.Error("ClearProgress left rows behind")
	}
}

func TestRetryCarriesFailedVariant(t *testing.T) {
	var gotNegotiate negotiatePayload
	mux := http.NewServeMux()
	mux.HandleFunc("/api/get-content/", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotNegotiate)
		json.NewEncoder(w).Encode(domain.VariantDescriptor{
			ID: 17, DownloadURL: "/download-direct/17/", Type: "medium", Version: "2.0", Fallback: true,
		})
	})
	mux.HandleFunc("/api/download/17/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := New(testConfig(srv.URL), logger.Default(), nil, &fakeDelivery{})

	variant, err := s.Retry(context.Background(), "model", 42)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if !variant.Fallback || variant.ID != 17 {
		t.Fatalf("expected fallback variant, got %+v", variant)
	}
	if gotNegotiate.FailedContentID == nil || *gotNegotiate.FailedContentID != 42 {
		t.Fatalf("failed_content_id not forwarded: %+v", gotNegotiate.FailedContentID)
	}
}

func TestDownloadNegotiationError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/get-content/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no compatible variant"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := New(testConfig(srv.URL), logger.Default(), nil, &fakeDelivery{})

	_, err := s.Download(context.Background(), "model")
	var negErr *domain.NegotiationError
	if !errors.As(err, &negErr) {
		t.Fatalf("want NegotiationError, got %v", err)
	}
	if !strings.Contains(negErr.Message, "no compatible variant") {
		t.Errorf("server message lost: %q", negErr.Message)
	}
}

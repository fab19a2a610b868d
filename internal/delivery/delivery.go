// Package delivery performs the completion side effect: saving a delivered
// file once its download request succeeds.
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/zeticontents/zetisync/internal/logger"
)

// FileDelivery initiates a one-shot save of the file at url, tagged by the
// request id. Implementations are platform adapters; the orchestrator
// depends only on this interface.
type FileDelivery interface {
	Initiate(ctx context.Context, fileURL, requestID string) error
}

// HTTPSaver downloads the delivered file into a local directory. Files are
// written to a .part path first and renamed into place on success.
type HTTPSaver struct {
	Dir          string
	HTTPClient   *http.Client
	Logger       *logger.Logger
	ShowProgress bool
}

func NewHTTPSaver(dir string, log *logger.Logger) *HTTPSaver {
	return &HTTPSaver{
		Dir:          dir,
		HTTPClient:   &http.Client{Timeout: 10 * time.Minute},
		Logger:       log.WithComponent("delivery"),
		ShowProgress: true,
	}
}

func (s *HTTPSaver) Initiate(ctx context.Context, fileURL, requestID string) error {
	if _, err := url.ParseRequestURI(fileURL); err != nil {
		return fmt.Errorf("malformed delivery url %q: %w", fileURL, err)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create downloads dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delivery fetch returned status %d", resp.StatusCode)
	}

	dest := filepath.Join(s.Dir, s.fileName(fileURL, requestID))
	part := dest + ".part"

	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	var w io.Writer = f
	if s.ShowProgress {
		bar := progressbar.DefaultBytes(resp.ContentLength, "saving "+filepath.Base(dest))
		w = io.MultiWriter(f, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		f.Close()
		os.Remove(part)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return err
	}
	if err := os.Rename(part, dest); err != nil {
		return fmt.Errorf("failed to finalize file: %w", err)
	}

	s.Logger.Info("file saved", "request_id", requestID, "path", dest)
	return nil
}

// fileName derives a destination name from the URL path, prefixed with the
// request id so concurrent requests for the same content never collide.
func (s *HTTPSaver) fileName(fileURL, requestID string) string {
	base := ""
	if u, err := url.Parse(fileURL); err == nil {
		base = path.Base(strings.TrimRight(u.Path, "/"))
	}
	base = sanitize(base)
	if base == "" || base == "." || base == "/" {
		base = "content"
	}
	return sanitize(requestID) + "_" + base
}

func sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune("<>:\"/\\|?*", r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimRight(mapped, ". ")
}

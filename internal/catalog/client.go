// Package catalog is the REST client for the content-catalog and
// download-worker services. It covers variant negotiation, worker
// registration, catalog listing, durable history fetch, and uploads.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/zeticontents/zetisync/internal/domain"
	"github.com/zeticontents/zetisync/internal/logger"
)

// Client talks to the catalog service at BaseURL. Requests carry the
// client's cookies so tier-gated endpoints see the same credentials the
// dashboard session holds.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logger.Logger
}

func NewClient(baseURL string, log *logger.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		Logger: log.WithComponent("catalog"),
	}
}

type negotiateRequest struct {
	DeviceInfo       domain.DeviceProfile `json:"device_info"`
	RequestedContent string               `json:"requested_content"`
	ClientID         string               `json:"client_id"`
	FailedContentID  *int                 `json:"failed_content_id,omitempty"`
}

// Negotiate asks the catalog for the best variant of contentName for the
// given device profile. failedVariantID, when non-nil, tells the catalog
// which variant already failed so it can apply its penalty/fallback
// strategy instead of re-offering the same broken variant.
func (c *Client) Negotiate(ctx context.Context, profile domain.DeviceProfile, contentName, clientID string, failedVariantID *int) (*domain.VariantDescriptor, error) {
	body, err := json.Marshal(negotiateRequest{
		DeviceInfo:       profile,
		RequestedContent: contentName,
		ClientID:         clientID,
		FailedContentID:  failedVariantID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode negotiation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/get-content/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &domain.NegotiationError{Content: contentName, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.NegotiationError{Content: contentName, Message: errorMessage(resp.Body, "content negotiation failed")}
	}

	var variant domain.VariantDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&variant); err != nil {
		return nil, &domain.NegotiationError{Content: contentName, Message: "malformed negotiation response"}
	}

	c.Logger.Debug("negotiated variant",
		"content", contentName,
		"variant_id", variant.ID,
		"type", variant.Type,
		"fallback", variant.Fallback)
	return &variant, nil
}

// RegisterDownload registers the chosen variant with the download worker.
// The request is fire-and-forget: the response body is never read, and all
// further knowledge of the download arrives over the push channel. Only a
// network-level failure is reported; there is no retry.
func (c *Client) RegisterDownload(ctx context.Context, variantID int, clientID string, tier domain.Tier) error {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("tier", string(tier))
	target := fmt.Sprintf("%s/download/%d/?%s", c.BaseURL, variantID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &domain.RegistrationError{VariantID: variantID, Err: err}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &domain.RegistrationError{VariantID: variantID, Err: err}
	}
	// Registration and progress reporting are decoupled; the worker is free
	// to batch or delay the transfer, so the body is discarded unread.
	resp.Body.Close()

	c.Logger.Debug("registered download", "variant_id", variantID, "tier", tier)
	return nil
}

// ListContents fetches the catalog listing with per-item variants and
// conversion status.
func (c *Client) ListContents(ctx context.Context) ([]domain.ContentItem, error) {
	var items []domain.ContentItem
	if err := c.getJSON(ctx, c.BaseURL+"/contents/", &items); err != nil {
		return nil, fmt.Errorf("failed to list contents: %w", err)
	}
	return items, nil
}

// DownloadHistory fetches the full durable history list for clientID. The
// caller replaces its cache wholesale; entries are never merged.
func (c *Client) DownloadHistory(ctx context.Context, clientID string) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	target := c.BaseURL + "/download-history/" + url.PathEscape(clientID) + "/"
	if err := c.getJSON(ctx, target, &entries); err != nil {
		return nil, &domain.HistoryFetchError{ClientID: clientID, Err: err}
	}
	return entries, nil
}

// UploadRequest describes a content upload. MinMemory is in gigabytes.
type UploadRequest struct {
	Name       string
	Version    string
	Type       string
	Chipset    string
	MinMemory  int
	Resolution string
	FileName   string
	File       io.Reader
}

// UploadResult is the catalog's acknowledgement of an upload.
type UploadResult struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Version string `json:"version"`
	Message string `json:"message"`
}

// UploadContent pushes a new content file plus its compatibility metadata to
// the catalog as a multipart form.
func (c *Client) UploadContent(ctx context.Context, up UploadRequest) (*UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"name":       up.Name,
		"version":    up.Version,
		"type":       up.Type,
		"chipset":    up.Chipset,
		"min_memory": strconv.Itoa(up.MinMemory),
		"resolution": up.Resolution,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %w", err)
		}
	}

	part, err := w.CreateFormFile("file", up.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, up.File); err != nil {
		return nil, fmt.Errorf("failed to read upload file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload-content/", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upload rejected: %s", errorMessage(resp.Body, fmt.Sprintf("upload failed (%d)", resp.StatusCode)))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed upload response: %w", err)
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, target string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorMessage extracts the server's error message from a non-2xx body,
// trying the "error" field first, then "detail", then the fallback.
func errorMessage(body io.Reader, fallback string) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return fallback
	}
	if payload.Error != "" {
		return payload.Error
	}
	if payload.Detail != "" {
		return payload.Detail
	}
	return fallback
}

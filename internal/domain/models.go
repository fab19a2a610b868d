package domain

import "time"

// Tier is the caller's service tier, forwarded to the download worker for
// scheduling priority.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierStandard, TierPremium:
		return true
	}
	return false
}

// Status is the lifecycle state of a download request as reported by the
// worker. The worker is the source of truth; the client never invents
// transitions on its own.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further progress is expected for a request.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// DeviceProfile describes the device the session runs on. It is produced
// once per session by an external capability probe and never changes.
type DeviceProfile struct {
	Chipset    string `json:"chipset"`
	Memory     int    `json:"memory"` // gigabytes
	Resolution string `json:"resolution"`
}

// VariantDescriptor is the catalog's answer to a negotiation: the chosen
// rendition of the requested content. Consumed immediately by the download
// trigger, not retained.
type VariantDescriptor struct {
	ID          int    `json:"id"`
	DownloadURL string `json:"download_url"`
	Type        string `json:"type"`
	Version     string `json:"version"`
	// Fallback is set when the catalog substituted a non-exact match,
	// typically after a previous variant was reported failed.
	Fallback bool `json:"fallback"`
}

// ProgressEvent is one push-channel frame. JSON keys match the worker's
// wire format.
type ProgressEvent struct {
	JobID       string `json:"job_id"`
	Status      Status `json:"status"`
	Percent     int    `json:"percent"`
	ContentName string `json:"content_name"`
	ClientID    string `json:"client_id"`
	ContentID   *int   `json:"content_id"`
	DownloadURL string `json:"download_url"`
}

// ProgressRecord is the client-side view of one in-flight download. Records
// are addressed by RequestID (the worker-assigned job id), never by
// (ClientID, ContentName): two concurrent requests for the same content stay
// distinct entries.
type ProgressRecord struct {
	RequestID   string `json:"request_id"`
	Status      Status `json:"status"`
	Percent     int    `json:"percent"`
	ContentName string `json:"content_name"`
	ClientID    string `json:"client_id"`
	ContentID   *int   `json:"content_id,omitempty"`
	// DeliveryURL is populated only once the worker reports success.
	DeliveryURL string `json:"delivery_url,omitempty"`
}

// HistoryEntry is one row of the durable download history, owned entirely
// by the remote store. The client caches the list wholesale and never
// merges individual entries.
type HistoryEntry struct {
	ID        int       `json:"id" db:"id"`
	Content   string    `json:"content" db:"content"`
	ContentID int       `json:"content_id" db:"content_id"`
	Success   bool      `json:"success" db:"success"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// ContentVariant is one rendition of a catalog item.
type ContentVariant struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// ContentItem is a catalog listing entry. ConversionStatus tracks the
// catalog's server-side variant conversion pipeline.
type ContentItem struct {
	ID               int              `json:"id"`
	Name             string           `json:"name"`
	Version          string           `json:"version"`
	Type             string           `json:"type"`
	UploadedAt       time.Time        `json:"uploaded_at"`
	ConversionStatus Status           `json:"conversion_status"`
	Variants         []ContentVariant `json:"variants"`
}

package domain

import "fmt"

// NegotiationError means the catalog rejected the request or was unreachable.
// It carries the server's error message when one could be parsed.
type NegotiationError struct {
	Content string
	Message string
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation for %q failed: %s", e.Content, e.Message)
}

// RegistrationError means the fire-and-forget worker registration request
// itself failed at the network level. It is surfaced to the caller and
// never retried.
type RegistrationError struct {
	VariantID int
	Err       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registering download of variant %d failed: %v", e.VariantID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// HistoryFetchError means a reconciliation fetch failed. The previously
// cached list is retained; observers see a stale-data condition.
type HistoryFetchError struct {
	ClientID string
	Err      error
}

func (e *HistoryFetchError) Error() string {
	return fmt.Sprintf("history fetch for client %s failed: %v", e.ClientID, e.Err)
}

func (e *HistoryFetchError) Unwrap() error { return e.Err }

// SaveDispatchError means the completion side effect could not be initiated.
// It is logged only and never rolls back the stored record status.
type SaveDispatchError struct {
	RequestID string
	Err       error
}

func (e *SaveDispatchError) Error() string {
	return fmt.Sprintf("save dispatch for request %s failed: %v", e.RequestID, e.Err)
}

func (e *SaveDispatchError) Unwrap() error { return e.Err }

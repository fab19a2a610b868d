// Package endpoint derives the REST and push-channel base addresses from
// configuration overrides and the session origin. Resolution is a pure
// function and does not validate: malformed overrides pass through as-is.
package endpoint

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	httpScheme = regexp.MustCompile(`(?i)^https?://`)
	wsScheme   = regexp.MustCompile(`(?i)^wss?://`)
)

// Endpoints holds the resolved base addresses for the session.
type Endpoints struct {
	APIBase  string
	PushBase string
}

// Resolve derives the bases. Overrides that already carry an explicit scheme
// are used verbatim; relative overrides (proxy paths like /api, /ws) are
// composed with the origin. The push scheme follows the origin's transport
// security: a secure origin yields wss, an insecure one ws.
func Resolve(apiOverride, pushOverride, origin string) Endpoints {
	origin = strings.TrimRight(origin, "/")
	api := strings.TrimRight(apiOverride, "/")
	push := strings.TrimRight(pushOverride, "/")

	return Endpoints{
		APIBase:  resolveAPI(api, origin),
		PushBase: resolvePush(push, origin),
	}
}

func resolveAPI(base, origin string) string {
	if httpScheme.MatchString(base) {
		return base
	}
	return origin + ensureLeadingSlash(base)
}

func resolvePush(base, origin string) string {
	if wsScheme.MatchString(base) {
		return base
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		// Unresolvable origin: return the composed string untouched.
		return origin + ensureLeadingSlash(base)
	}

	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + u.Host + ensureLeadingSlash(base)
}

// API joins a request path onto the REST base.
func (e Endpoints) API(path string) string {
	return e.APIBase + ensureLeadingSlash(path)
}

// Push joins a channel path onto the push base.
func (e Endpoints) Push(path string) string {
	return e.PushBase + ensureLeadingSlash(path)
}

// ResolveDelivery turns a delivery URL into an absolute address. Absolute
// URLs pass through; relative paths are prefixed with the REST base.
func (e Endpoints) ResolveDelivery(deliveryURL string) string {
	if httpScheme.MatchString(deliveryURL) {
		return deliveryURL
	}
	return e.API(deliveryURL)
}

func ensureLeadingSlash(path string) string {
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

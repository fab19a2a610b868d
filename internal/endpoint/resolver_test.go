package endpoint

import "testing"

func TestResolveRelativeBases(t *testing.T) {
	eps := Resolve("/api", "/ws", "http://localhost:8000")

	if eps.APIBase != "http://localhost:8000/api" {
		t.Errorf("Expected API base http://localhost:8000/api, got %s", eps.APIBase)
	}
	if eps.PushBase != "ws://localhost:8000/ws" {
		t.Errorf("Expected push base ws://localhost:8000/ws, got %s", eps.PushBase)
	}
}

func TestResolveSecureOrigin(t *testing.T) {
	eps := Resolve("/api", "/ws", "https://dashboard.example.com")

	if eps.PushBase != "wss://dashboard.example.com/ws" {
		t.Errorf("Expected wss scheme for secure origin, got %s", eps.PushBase)
	}
	if eps.APIBase != "https://dashboard.example.com/api" {
		t.Errorf("Expected https API base, got %s", eps.APIBase)
	}
}

func TestResolveExplicitSchemes(t *testing.T) {
	eps := Resolve("https://api.example.com/v1/", "wss://push.example.com/ws/", "http://localhost:8000")

	// Explicit schemes are used verbatim, trailing slashes trimmed
	if eps.APIBase != "https://api.example.com/v1" {
		t.Errorf("Expected verbatim API override, got %s", eps.APIBase)
	}
	if eps.PushBase != "wss://push.example.com/ws" {
		t.Errorf("Expected verbatim push override, got %s", eps.PushBase)
	}
}

func TestResolvePlainWsOverride(t *testing.T) {
	eps := Resolve("/api", "ws://10.0.0.5:8001/ws", "https://secure.example.com")

	// An explicit ws override wins over the secure origin
	if eps.PushBase != "ws://10.0.0.5:8001/ws" {
		t.Errorf("Expected explicit ws override, got %s", eps.PushBase)
	}
}

func TestResolveMalformedOverridePassesThrough(t *testing.T) {
	eps := Resolve("not a url", "/ws", "http://localhost:8000")

	// Resolution does not validate
	if eps.APIBase != "http://localhost:8000/not a url" {
		t.Errorf("Expected malformed override returned as-is, got %s", eps.APIBase)
	}
}

func TestJoinHelpers(t *testing.T) {
	eps := Resolve("/api", "/ws", "http://localhost:8000")

	if got := eps.API("/get-content/"); got != "http://localhost:8000/api/get-content/" {
		t.Errorf("API join produced %s", got)
	}
	if got := eps.API("contents/"); got != "http://localhost:8000/api/contents/" {
		t.Errorf("API join without leading slash produced %s", got)
	}
	if got := eps.Push("/downloads/dev-1/"); got != "ws://localhost:8000/ws/downloads/dev-1/" {
		t.Errorf("Push join produced %s", got)
	}
}

func TestResolveDelivery(t *testing.T) {
	eps := Resolve("/api", "/ws", "http://localhost:8000")

	abs := eps.ResolveDelivery("https://cdn.example.com/files/42.bin")
	if abs != "https://cdn.example.com/files/42.bin" {
		t.Errorf("Expected absolute delivery URL to pass through, got %s", abs)
	}

	rel := eps.ResolveDelivery("/download-direct/42/")
	if rel != "http://localhost:8000/api/download-direct/42/" {
		t.Errorf("Expected relative delivery URL prefixed with API base, got %s", rel)
	}
}

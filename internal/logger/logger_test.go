package logger

import (
	"testing"
)

func TestNew(t *testing.T) {
	cfg := Config{
		Level:  "info",
		Format: "text",
	}
	logger := New(cfg)
	if logger == nil {
		t.Error("Expected logger to not be nil")
	}

	cfg.Format = "json"
	logger = New(cfg)
	if logger == nil {
		t.Error("Expected logger to not be nil")
	}

	cfg.Level = "debug"
	logger = New(cfg)
	if logger == nil {
		t.Error("Expected logger to not be nil")
	}

	// Invalid level should default to info
	cfg.Level = "invalid"
	logger = New(cfg)
	if logger == nil {
		t.Error("Expected logger to not be nil")
	}
}

func TestWithComponent(t *testing.T) {
	logger := Default()
	componentLogger := logger.WithComponent("channel")

	if componentLogger == nil {
		t.Error("Expected component logger to not be nil")
	}

	// Test chaining
	componentLogger2 := componentLogger.WithComponent("nested")
	if componentLogger2 == nil {
		t.Error("Expected nested component logger to not be nil")
	}
}

func TestWithClient(t *testing.T) {
	logger := Default()
	clientLogger := logger.WithClient("dev-1")

	if clientLogger == nil {
		t.Error("Expected client logger to not be nil")
	}
}

func TestWithRequest(t *testing.T) {
	logger := Default()
	requestLogger := logger.WithRequest("r1", "model_v1")

	if requestLogger == nil {
		t.Error("Expected request logger to not be nil")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Error("Expected default logger to not be nil")
	}
}

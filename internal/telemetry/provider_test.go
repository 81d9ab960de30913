package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestInitProviderDisabled(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = false

	ctx := context.Background()
	shutdown, err := InitProvider(ctx, config)
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function, got nil")
	}

	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestInitProviderEnabledWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Enabled = true
	config.Output = &buf

	ctx := context.Background()
	shutdown, err := InitProvider(ctx, config)
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitProvider(context.Background(), DefaultConfig())
	})

	_, span := StartOracleSpan(ctx, "planning")
	span.End()

	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}

	if !strings.Contains(buf.String(), "oracle.planning") {
		t.Errorf("exported spans missing oracle.planning: %s", buf.String())
	}
}

func TestShutdownWithoutProvider(t *testing.T) {
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

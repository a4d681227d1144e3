package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
	"github.com/preston-bernstein/seller-notification-service/internal/metrics"
	"github.com/preston-bernstein/seller-notification-service/internal/testutil"
	"github.com/preston-bernstein/seller-notification-service/internal/teststubs"
)

func TestInstrumentedProviderRecordsSuccess(t *testing.T) {
	rec := metrics.NewRecorder()
	inner := &teststubs.StubProvider{Response: teststubs.SuccessResponse(1, "n1")}
	p := NewInstrumentedProvider(inner, "sellerapi", rec, nil)

	resp, err := p.FetchNotifications(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != notifications.StatusSuccess {
		t.Fatalf("expected passthrough response, got %+v", resp)
	}
	if rec.ProviderCalls("sellerapi") != 1 || rec.ProviderErrors("sellerapi") != 0 {
		t.Fatalf("unexpected stats %+v", rec.Snapshot("sellerapi"))
	}
	if inner.Calls.Load() != 1 {
		t.Fatalf("expected a single upstream call, got %d", inner.Calls.Load())
	}
}

func TestInstrumentedProviderRecordsErrorsAndRateLimits(t *testing.T) {
	rec := metrics.NewRecorder()
	logger, buf := testutil.NewBufferLogger()
	rlErr := &RateLimitError{Provider: "sellerapi", StatusCode: 429, RetryAfter: 3 * time.Second}
	inner := &teststubs.StubProvider{Err: fmt.Errorf("fetch: %w", rlErr)}
	p := NewInstrumentedProvider(inner, "sellerapi", rec, logger)

	_, err := p.FetchNotifications(context.Background(), "tok")
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected rate limit error passthrough, got %v", err)
	}
	if rec.ProviderErrors("sellerapi") != 1 {
		t.Fatalf("expected error recorded")
	}
	if rec.RateLimitHits("sellerapi") != 1 || rec.LastRetryAfter("sellerapi") != 3*time.Second {
		t.Fatalf("expected rate limit recorded, got %+v", rec.Snapshot("sellerapi"))
	}
	if !strings.Contains(buf.String(), "provider rate limited") {
		t.Fatalf("expected rate limit warning logged, got %s", buf.String())
	}
}

func TestInstrumentedProviderDefaultsNameAndHandlesNilInner(t *testing.T) {
	p := NewInstrumentedProvider(nil, "", nil, nil).(*instrumentedProvider)
	if p.name != "provider" {
		t.Fatalf("expected default name, got %q", p.name)
	}
	if _, err := p.FetchNotifications(context.Background(), "tok"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestProviderFuncAdapter(t *testing.T) {
	called := false
	var p NotificationProvider = ProviderFunc(func(ctx context.Context, credential string) (notifications.Response, error) {
		called = credential == "tok"
		return notifications.Response{}, nil
	})
	_, _ = p.FetchNotifications(context.Background(), "tok")
	if !called {
		t.Fatalf("expected adapter to forward credential")
	}
}

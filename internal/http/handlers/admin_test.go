package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/http/requestutil"
	"github.com/preston-bernstein/seller-notification-service/internal/poller"
	"github.com/preston-bernstein/seller-notification-service/internal/store"
	"github.com/preston-bernstein/seller-notification-service/internal/testutil"
)

type stubPoller struct {
	startErr    error
	intervalErr error
	outcome     poller.Outcome
	status      poller.Status

	startCtx   context.Context
	credential string
	onSuccess  poller.SuccessFunc
	stops      int
	interval   time.Duration
	fetches    int
}

func (s *stubPoller) Start(ctx context.Context, credential string, onSuccess poller.SuccessFunc, onError poller.ErrorFunc) error {
	if s.startErr != nil {
		return s.startErr
	}
	if credential == "" {
		return fmt.Errorf("%w: credential is required", poller.ErrInvalidArgument)
	}
	s.startCtx = ctx
	s.credential = credential
	s.onSuccess = onSuccess
	s.status.Active = true
	return nil
}

func (s *stubPoller) Stop() {
	s.stops++
	s.status.Active = false
}

func (s *stubPoller) UpdateInterval(d time.Duration) error {
	if s.intervalErr != nil {
		return s.intervalErr
	}
	s.interval = d
	s.status.Interval = d
	return nil
}

func (s *stubPoller) Fetch(context.Context) poller.Outcome {
	s.fetches++
	return s.outcome
}

func (s *stubPoller) Status() poller.Status {
	return s.status
}

func adminRequest(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set(requestutil.AdminTokenHeader, token)
	}
	return req
}

func TestAdminRoutesRequireToken(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	h := NewAdminHandler(context.Background(), &stubPoller{}, store.NewMemoryStore(), "secret", logger)

	routes := []struct {
		method string
		fn     http.HandlerFunc
	}{
		{http.MethodGet, h.PollerStatus},
		{http.MethodPost, h.StartPoller},
		{http.MethodPost, h.StopPoller},
		{http.MethodPut, h.UpdateInterval},
		{http.MethodPost, h.Refresh},
	}
	for _, rt := range routes {
		rr := testutil.ServeRequest(rt.fn, adminRequest(rt.method, "/poller", "{}", "wrong"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	}
	if !strings.Contains(buf.String(), "admin unauthorized") {
		t.Fatalf("expected unauthorized attempts logged")
	}
}

func TestAdminOpenWhenNoTokenConfigured(t *testing.T) {
	h := NewAdminHandler(nil, &stubPoller{}, nil, "", nil)
	rr := testutil.ServeRequest(http.HandlerFunc(h.PollerStatus), adminRequest(http.MethodGet, "/poller", "", ""))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestAdminWithoutPoller(t *testing.T) {
	h := NewAdminHandler(nil, nil, nil, "", nil)
	rr := testutil.ServeRequest(http.HandlerFunc(h.PollerStatus), adminRequest(http.MethodGet, "/poller", "", ""))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
}

func TestAdminStartPollerUsesBaseContextAndStore(t *testing.T) {
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "base")
	stub := &stubPoller{}
	sink := store.NewMemoryStore()
	h := NewAdminHandler(base, stub, sink, "secret", nil)

	rr := testutil.ServeRequest(http.HandlerFunc(h.StartPoller), adminRequest(http.MethodPost, "/poller/start", `{"token":" abc "}`, "secret"))
	testutil.AssertStatus(t, rr, http.StatusOK)

	if stub.credential != "abc" {
		t.Fatalf("expected trimmed credential, got %q", stub.credential)
	}
	if stub.startCtx.Value(ctxKey{}) != "base" {
		t.Fatalf("expected session bound to base context, not the request")
	}
	stub.onSuccess(testutil.SampleSnapshot("n1"))
	if _, _, ok := sink.Latest(); !ok {
		t.Fatalf("expected consumer to write into the store")
	}

	var resp StatusResponse
	testutil.DecodeJSON(t, rr, &resp)
	if !resp.Active {
		t.Fatalf("expected active status, got %+v", resp)
	}
}

func TestAdminStartPollerRejectsBadInput(t *testing.T) {
	h := NewAdminHandler(nil, &stubPoller{}, store.NewMemoryStore(), "", nil)

	cases := map[string]string{
		"empty token":   `{"token":""}`,
		"bad json":      `{"token":`,
		"unknown field": `{"token":"abc","extra":1}`,
	}
	for name, body := range cases {
		rr := testutil.ServeRequest(http.HandlerFunc(h.StartPoller), adminRequest(http.MethodPost, "/poller/start", body, ""))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rr.Code)
		}
	}
}

func TestAdminStartPollerFailures(t *testing.T) {
	h := NewAdminHandler(nil, &stubPoller{startErr: errors.New("boom")}, store.NewMemoryStore(), "", nil)
	rr := testutil.ServeRequest(http.HandlerFunc(h.StartPoller), adminRequest(http.MethodPost, "/poller/start", `{"token":"abc"}`, ""))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)

	h = NewAdminHandler(nil, &stubPoller{}, nil, "", nil)
	rr = testutil.ServeRequest(http.HandlerFunc(h.StartPoller), adminRequest(http.MethodPost, "/poller/start", `{"token":"abc"}`, ""))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
}

func TestAdminStopPoller(t *testing.T) {
	stub := &stubPoller{status: poller.Status{Active: true}}
	h := NewAdminHandler(nil, stub, nil, "", nil)

	for i := 0; i < 2; i++ {
		rr := testutil.ServeRequest(http.HandlerFunc(h.StopPoller), adminRequest(http.MethodPost, "/poller/stop", "", ""))
		testutil.AssertStatus(t, rr, http.StatusOK)
	}
	if stub.stops != 2 || stub.status.Active {
		t.Fatalf("expected idempotent stop, got %d stops", stub.stops)
	}
}

func TestAdminUpdateInterval(t *testing.T) {
	stub := &stubPoller{}
	h := NewAdminHandler(nil, stub, nil, "", nil)

	rr := testutil.ServeRequest(http.HandlerFunc(h.UpdateInterval), adminRequest(http.MethodPut, "/poller/interval", `{"interval":"5s"}`, ""))
	testutil.AssertStatus(t, rr, http.StatusOK)
	if stub.interval != 5*time.Second {
		t.Fatalf("expected 5s forwarded, got %s", stub.interval)
	}
	var resp StatusResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Interval != "5s" {
		t.Fatalf("expected interval in response, got %+v", resp)
	}

	rr = testutil.ServeRequest(http.HandlerFunc(h.UpdateInterval), adminRequest(http.MethodPut, "/poller/interval", `{"interval":"soon"}`, ""))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr = testutil.ServeRequest(http.HandlerFunc(h.UpdateInterval), adminRequest(http.MethodPost, "/poller/interval", `{"interval":"5s"}`, ""))
	testutil.AssertStatus(t, rr, http.StatusMethodNotAllowed)
}

func TestAdminUpdateIntervalRejectedByPoller(t *testing.T) {
	stub := &stubPoller{intervalErr: fmt.Errorf("%w: 500ms", poller.ErrIntervalTooShort)}
	h := NewAdminHandler(nil, stub, nil, "", nil)

	rr := testutil.ServeRequest(http.HandlerFunc(h.UpdateInterval), adminRequest(http.MethodPut, "/poller/interval", `{"interval":"500ms"}`, ""))
	testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)

	stub.intervalErr = errors.New("boom")
	rr = testutil.ServeRequest(http.HandlerFunc(h.UpdateInterval), adminRequest(http.MethodPut, "/poller/interval", `{"interval":"5s"}`, ""))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
}

func TestAdminRefreshMapsOutcomes(t *testing.T) {
	cases := []struct {
		outcome poller.Outcome
		code    int
		kind    string
	}{
		{poller.Outcome{Kind: poller.OutcomeDelivered, Snapshot: testutil.SampleSnapshot("n1")}, http.StatusOK, "delivered"},
		{poller.Outcome{Kind: poller.OutcomeSkipped, Reason: poller.ReasonIdle}, http.StatusConflict, "skipped"},
		{poller.Outcome{Kind: poller.OutcomeSkipped, Reason: poller.ReasonInFlight}, http.StatusAccepted, "skipped"},
		{poller.Outcome{Kind: poller.OutcomeFailed, Err: errors.New("boom")}, http.StatusBadGateway, "failed"},
		{poller.Outcome{Kind: poller.OutcomeSoftFailure, Message: "expired"}, http.StatusBadGateway, "soft_failure"},
	}
	for _, tc := range cases {
		stub := &stubPoller{outcome: tc.outcome}
		h := NewAdminHandler(nil, stub, nil, "", nil)
		rr := testutil.ServeRequest(http.HandlerFunc(h.Refresh), adminRequest(http.MethodPost, "/notifications/refresh", "", ""))
		testutil.AssertStatus(t, rr, tc.code)

		var resp OutcomeResponse
		testutil.DecodeJSON(t, rr, &resp)
		if resp.Outcome != tc.kind {
			t.Fatalf("expected outcome %s, got %+v", tc.kind, resp)
		}
		if tc.kind == "delivered" && (resp.Snapshot == nil || resp.Snapshot.Unread != 1) {
			t.Fatalf("expected snapshot in delivered response, got %+v", resp)
		}
		if tc.kind == "failed" && resp.Error != "boom" {
			t.Fatalf("expected error text, got %+v", resp)
		}
	}
}

func TestToStatusResponseOmitsZeroTimes(t *testing.T) {
	resp := toStatusResponse(poller.Status{Interval: 30 * time.Second})
	if resp.LastAttempt != nil || resp.LastSuccess != nil || resp.Interval != "30s" {
		t.Fatalf("unexpected status response %+v", resp)
	}
	now := time.Now()
	resp = toStatusResponse(poller.Status{LastAttempt: now, LastSuccess: now})
	if resp.LastAttempt == nil || !resp.Ready {
		t.Fatalf("expected times and readiness set, got %+v", resp)
	}
}

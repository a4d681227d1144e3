package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
	"github.com/preston-bernstein/seller-notification-service/internal/http/requestutil"
	"github.com/preston-bernstein/seller-notification-service/internal/logging"
	"github.com/preston-bernstein/seller-notification-service/internal/poller"
)

// PollerControl is the part of the poller driven over HTTP.
type PollerControl interface {
	Start(ctx context.Context, credential string, onSuccess poller.SuccessFunc, onError poller.ErrorFunc) error
	Stop()
	UpdateInterval(d time.Duration) error
	Fetch(ctx context.Context) poller.Outcome
	Status() poller.Status
}

// SnapshotWriter receives poller results started from the admin API.
type SnapshotWriter interface {
	SetSnapshot(notifications.Snapshot)
	SetError(error)
}

// StatusResponse is the JSON form of poller.Status.
type StatusResponse struct {
	Active              bool       `json:"active"`
	Fetching            bool       `json:"fetching"`
	Interval            string     `json:"interval"`
	Ready               bool       `json:"ready"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastOutcome         string     `json:"last_outcome,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	LastAttempt         *time.Time `json:"last_attempt,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
}

// OutcomeResponse is the JSON form of a manual fetch outcome.
type OutcomeResponse struct {
	Outcome   string                  `json:"outcome"`
	Reason    string                  `json:"reason,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Message   string                  `json:"message,omitempty"`
	Discarded bool                    `json:"discarded,omitempty"`
	Snapshot  *notifications.Snapshot `json:"snapshot,omitempty"`
}

type startRequest struct {
	Token string `json:"token"`
}

type intervalRequest struct {
	Interval string `json:"interval"`
}

// AdminHandler exposes poller control endpoints. When token is set every route
// requires it in the X-Admin-Token header.
type AdminHandler struct {
	baseCtx context.Context
	poller  PollerControl
	sink    SnapshotWriter
	token   string
	logger  *slog.Logger
}

// NewAdminHandler constructs an AdminHandler. baseCtx bounds polling sessions started
// over HTTP; request contexts end with the request and cannot be used for that.
func NewAdminHandler(baseCtx context.Context, ctrl PollerControl, sink SnapshotWriter, token string, logger *slog.Logger) *AdminHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &AdminHandler{
		baseCtx: baseCtx,
		poller:  ctrl,
		sink:    sink,
		token:   token,
		logger:  logger,
	}
}

// PollerStatus reports the poller lifecycle and health.
func (h *AdminHandler) PollerStatus(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(h.poller.Status()), h.logger)
}

// StartPoller begins polling with the token in the request body. While active the
// running session is kept and only its consumers are re-registered.
func (h *AdminHandler) StartPoller(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r, http.MethodPost) {
		return
	}
	logger := loggerFromContext(r, h.logger)

	var req startRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", logger)
		return
	}
	if h.sink == nil {
		writeError(w, r, http.StatusServiceUnavailable, "snapshot store not configured", logger)
		return
	}

	err := h.poller.Start(h.baseCtx, strings.TrimSpace(req.Token), h.sink.SetSnapshot, h.sink.SetError)
	if errors.Is(err, poller.ErrInvalidArgument) {
		writeError(w, r, http.StatusBadRequest, "token is required", logger)
		return
	}
	if err != nil {
		logging.Error(logger, "poller start failed", err)
		writeError(w, r, http.StatusInternalServerError, "failed to start poller", logger)
		return
	}
	logging.Info(logger, "admin poller start", logging.Credential(req.Token))
	writeJSON(w, http.StatusOK, toStatusResponse(h.poller.Status()), logger)
}

// StopPoller stops polling. It is idempotent.
func (h *AdminHandler) StopPoller(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r, http.MethodPost) {
		return
	}
	h.poller.Stop()
	logging.Info(loggerFromContext(r, h.logger), "admin poller stop")
	writeJSON(w, http.StatusOK, toStatusResponse(h.poller.Status()), h.logger)
}

// UpdateInterval changes the polling interval, e.g. {"interval":"5s"}.
func (h *AdminHandler) UpdateInterval(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r, http.MethodPut) {
		return
	}
	logger := loggerFromContext(r, h.logger)

	var req intervalRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", logger)
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(req.Interval))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid interval", logger)
		return
	}
	if err := h.poller.UpdateInterval(d); err != nil {
		if errors.Is(err, poller.ErrIntervalTooShort) {
			writeError(w, r, http.StatusUnprocessableEntity, "interval must be at least "+poller.MinInterval.String(), logger)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to update interval", logger)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(h.poller.Status()), logger)
}

// Refresh runs one fetch outside the schedule and reports its outcome.
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r, http.MethodPost) {
		return
	}
	logger := loggerFromContext(r, h.logger)

	out := h.poller.Fetch(r.Context())
	resp := toOutcomeResponse(out)
	status := http.StatusOK
	switch out.Kind {
	case poller.OutcomeSkipped:
		status = http.StatusConflict
		if out.Reason == poller.ReasonInFlight {
			status = http.StatusAccepted
		}
	case poller.OutcomeFailed, poller.OutcomeSoftFailure:
		status = http.StatusBadGateway
	}
	logging.Info(logger, "admin refresh", slog.String(logging.FieldOutcome, resp.Outcome))
	writeJSON(w, status, resp, logger)
}

func (h *AdminHandler) guard(w http.ResponseWriter, r *http.Request, method string) bool {
	if !requireMethod(w, r, method, h.logger) {
		return false
	}
	if !requestutil.TokenMatches(r, h.token) {
		logging.Warn(h.logger, "admin unauthorized",
			slog.String("path", r.URL.Path),
			slog.String("client_ip", requestutil.ClientIP(r)),
		)
		writeError(w, r, http.StatusUnauthorized, "unauthorized", h.logger)
		return false
	}
	if h.poller == nil {
		writeError(w, r, http.StatusServiceUnavailable, "poller not configured", h.logger)
		return false
	}
	return true
}

func toStatusResponse(s poller.Status) StatusResponse {
	resp := StatusResponse{
		Active:              s.Active,
		Fetching:            s.Fetching,
		Interval:            s.Interval.String(),
		Ready:               s.IsReady(),
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastOutcome:         s.LastOutcome,
		LastError:           s.LastError,
	}
	if !s.LastAttempt.IsZero() {
		t := s.LastAttempt
		resp.LastAttempt = &t
	}
	if !s.LastSuccess.IsZero() {
		t := s.LastSuccess
		resp.LastSuccess = &t
	}
	return resp
}

func toOutcomeResponse(o poller.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		Outcome:   o.Kind.String(),
		Reason:    o.Reason,
		Message:   o.Message,
		Discarded: o.Discarded,
	}
	if o.Err != nil {
		resp.Error = o.Err.Error()
	}
	if o.Kind == poller.OutcomeDelivered {
		snap := o.Snapshot
		resp.Snapshot = &snap
	}
	return resp
}

// Package handler exposes the delivery trigger, the summary/log read API,
// and the narrow seen/unseen message updates over HTTP. Handlers stay thin:
// parse, delegate, translate errors.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"courier/internal/platform/middleware"
	"courier/pkg/platform/sentinel"

	"courier/internal/messaging/eventlog"
	"courier/internal/messaging/models"
	"courier/internal/messaging/store/summaries"
)

// SummaryReader serves the projection read API.
type SummaryReader interface {
	Get(ctx context.Context, messageID uuid.UUID) (*models.Summary, error)
	List(ctx context.Context, filter summaries.Filter) ([]models.Summary, error)
}

// EventReader serves the raw log read API.
type EventReader interface {
	ListByMessageDesc(ctx context.Context, messageID uuid.UUID) ([]models.Event, error)
}

// SeenSetter flips the narrow is_seen flag on a message.
type SeenSetter interface {
	SetSeen(ctx context.Context, id uuid.UUID, seen bool) error
}

// JobExecutor runs one delivery job.
type JobExecutor interface {
	Execute(ctx context.Context, jobID, token string) error
}

// Handler handles the messaging endpoints.
type Handler struct {
	logger     *slog.Logger
	summaries  SummaryReader
	events     EventReader
	messages   SeenSetter
	executor   JobExecutor
	newWriter  func() *eventlog.Writer
	runTx      eventlog.TxRunner
	adminToken string
}

// New creates a messaging Handler. runTx scopes the seen-flag update and its
// option event to one transaction; tx.Run bound to the pool in production.
func New(
	summaries SummaryReader,
	events EventReader,
	messages SeenSetter,
	executor JobExecutor,
	newWriter func() *eventlog.Writer,
	runTx eventlog.TxRunner,
	adminToken string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		logger:     logger,
		summaries:  summaries,
		events:     events,
		messages:   messages,
		executor:   executor,
		newWriter:  newWriter,
		runTx:      runTx,
		adminToken: adminToken,
	}
}

// Register mounts the messaging routes. Raw log reads sit behind the admin
// token; summaries and seen updates are left to the upstream gateway's auth.
func (h *Handler) Register(r chi.Router) {
	admin := middleware.RequireAdminToken(h.adminToken, h.logger)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/delivery/jobs", h.handleTriggerJob)

		r.Route("/messages", func(r chi.Router) {
			r.Get("/summaries", h.handleListSummaries)
			r.Route("/{messageID}", func(r chi.Router) {
				r.Get("/summary", h.handleGetSummary)
				r.With(admin).Get("/events", h.handleListEvents)
				r.Post("/seen", h.handleSeen(true))
				r.Delete("/seen", h.handleSeen(false))
			})
		})
	})
}

type triggerJobRequest struct {
	JobID string `json:"job_id"`
	Token string `json:"token"`
}

// handleTriggerJob accepts a delivery job and runs it within the request.
// The response is 202 regardless of delivery outcome; outcomes are observable
// only through the event log and summary.
func (h *Handler) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req triggerJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" || req.Token == "" {
		writeError(w, http.StatusBadRequest, "job_id and token are required")
		return
	}

	if err := h.executor.Execute(ctx, req.JobID, req.Token); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotAllowed):
			h.logger.WarnContext(ctx, "delivery job rejected",
				"job_id", req.JobID,
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
			writeError(w, http.StatusUnauthorized, "invalid job token")
			return
		case errors.Is(err, sentinel.ErrNotConfigured):
			h.logger.ErrorContext(ctx, "delivery job misconfigured", "job_id", req.JobID, "error", err)
			writeError(w, http.StatusInternalServerError, "delivery not configured")
			return
		default:
			// Delivery failures are recorded in the event log; the trigger
			// contract still answers accepted.
			h.logger.ErrorContext(ctx, "delivery job finished with error",
				"job_id", req.JobID,
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseSummaryFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.summaries.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list summaries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list summaries")
		return
	}

	out := make([]summaryResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSummaryResponse(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	messageID, ok := h.messageID(w, r)
	if !ok {
		return
	}

	summary, err := h.summaries.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			writeError(w, http.StatusNotFound, "summary not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to load summary", "message_id", messageID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(*summary))
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	messageID, ok := h.messageID(w, r)
	if !ok {
		return
	}

	rows, err := h.events.ListByMessageDesc(ctx, messageID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list events", "message_id", messageID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, toEventResponses(rows))
}

// handleSeen flips is_seen and records the transition in the event log. Flag
// update and option event share one transaction; either both land or neither.
func (h *Handler) handleSeen(seen bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		messageID, ok := h.messageID(w, r)
		if !ok {
			return
		}

		key := models.KeyMessageOptionSeen
		if !seen {
			key = models.KeyMessageOptionUnseen
		}
		writer := h.newWriter()
		writer.Log(ctx, models.StatusSuccessful, key, eventlog.Entry{
			MessageID: messageID,
			Data:      models.EventData{"seen": seen},
		})

		err := writer.CommitIn(ctx, h.runTx, func(txCtx context.Context) error {
			return h.messages.SetSeen(txCtx, messageID, seen)
		})
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				writeError(w, http.StatusNotFound, "message not found")
				return
			}
			h.logger.ErrorContext(ctx, "failed to record seen update", "message_id", messageID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update message")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) messageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return uuid.Nil, false
	}
	return id, true
}

func parseSummaryFilter(r *http.Request) (summaries.Filter, error) {
	q := r.URL.Query()
	filter := summaries.Filter{Search: q.Get("search")}

	if status := q.Get("status"); status != "" {
		filter.Status = models.EventStatus(status)
	}
	if raw := q.Get("organisation_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return summaries.Filter{}, errors.New("invalid organisation_id")
		}
		filter.OrganisationID = id
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return summaries.Filter{}, errors.New("invalid from timestamp")
		}
		filter.From = ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return summaries.Filter{}, errors.New("invalid to timestamp")
		}
		filter.To = ts
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return summaries.Filter{}, errors.New("invalid limit")
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return summaries.Filter{}, errors.New("invalid offset")
		}
		filter.Offset = n
	}
	return filter, nil
}

/*
handlers.go - HTTP API handlers for user points

ENDPOINTS:
  GET    /point/{id}            Current balance (zero for unknown users)
  GET    /point/{id}/histories  Charge/use history in insertion order
  PATCH  /point/{id}/charge     Add points, body {"amount": n} or n
  PATCH  /point/{id}/use        Spend points, body {"amount": n} or n

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse:
  - 400: non-numeric or non-positive id, malformed or non-positive amount,
         and every balance rule violation (limit, per-call cap, insufficient)
  - 499: the client disconnected (status only, no body)
  - 500: anything else; details are logged, not returned

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/point-engine/point"
)

const maxBodyBytes = 1 << 10

// statusClientClosedRequest is the nginx convention for a request whose
// client disconnected before a response was written.
const statusClientClosedRequest = 499

// PointService is the part of point.Service the handlers need.
type PointService interface {
	Query(ctx context.Context, id point.UserID) (point.Balance, error)
	History(ctx context.Context, id point.UserID) ([]point.HistoryEntry, error)
	Charge(ctx context.Context, id point.UserID, amount int64) (point.Balance, error)
	Use(ctx context.Context, id point.UserID, amount int64) (point.Balance, error)
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Points PointService
	Log    *zap.Logger
}

func NewHandler(svc PointService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Points: svc, Log: log}
}

// =============================================================================
// POINT HANDLERS
// =============================================================================

// GetPoint returns the user's balance.
// GET /point/{id}
func (h *Handler) GetPoint(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	bal, err := h.Points.Query(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserPointDTO(bal))
}

// GetHistories returns the user's history.
// GET /point/{id}/histories
func (h *Handler) GetHistories(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	entries, err := h.Points.History(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPointHistoryDTOs(entries))
}

// Charge adds points.
// PATCH /point/{id}/charge
func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Points.Charge)
}

// Use spends points.
// PATCH /point/{id}/use
func (h *Handler) Use(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Points.Use)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request,
	op func(context.Context, point.UserID, int64) (point.Balance, error)) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	amount, ok := amountBody(w, r)
	if !ok {
		return
	}

	bal, err := op(r.Context(), id, amount)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserPointDTO(bal))
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

func userIDParam(w http.ResponseWriter, r *http.Request) (point.UserID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid type", nil)
		return 0, false
	}
	if id <= 0 {
		writeError(w, http.StatusBadRequest, "validation failed", map[string]string{
			"id": "user id must be a positive integer",
		})
		return 0, false
	}
	return point.UserID(id), true
}

// amountBody accepts {"amount": n} or a bare number.
func amountBody(w http.ResponseWriter, r *http.Request) (int64, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return 0, false
	}
	body = bytes.TrimSpace(body)

	var amount int64
	if len(body) > 0 && body[0] == '{' {
		var req AmountRequest
		err = json.Unmarshal(body, &req)
		amount = req.Amount
	} else {
		err = json.Unmarshal(body, &amount)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid type", nil)
		return 0, false
	}
	if amount <= 0 {
		writeError(w, http.StatusBadRequest, "validation failed", map[string]string{
			"amount": "amount must be a positive integer",
		})
		return 0, false
	}
	return amount, true
}

// =============================================================================
// RESPONSES
// =============================================================================

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if point.IsClientError(err) {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if errors.Is(err, context.Canceled) {
		// nobody reads the body; the status still reaches logs and metrics
		w.WriteHeader(statusClientClosedRequest)
		return
	}
	h.Log.Error("request failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error", nil)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, validation map[string]string) {
	writeJSON(w, status, ErrorResponse{
		Code:       strconv.Itoa(status),
		Message:    message,
		Validation: validation,
	})
}

/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/point-engine/point"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// UserPointDTO represents a balance in API responses.
type UserPointDTO struct {
	UserID    int64  `json:"user_id"`
	Point     int64  `json:"point"`
	UpdatedAt string `json:"updated_at"`
}

// PointHistoryDTO represents one history entry.
type PointHistoryDTO struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Amount    int64  `json:"amount"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// AmountRequest is the body of charge and use requests.
// A bare JSON number is accepted as well.
type AmountRequest struct {
	Amount int64 `json:"amount"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Validation map[string]string `json:"validation,omitempty"`
}

func toUserPointDTO(b point.Balance) UserPointDTO {
	return UserPointDTO{
		UserID:    int64(b.UserID),
		Point:     b.Amount,
		UpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toPointHistoryDTOs(entries []point.HistoryEntry) []PointHistoryDTO {
	dtos := make([]PointHistoryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = PointHistoryDTO{
			ID:        e.ID,
			UserID:    int64(e.UserID),
			Amount:    e.Amount,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		}
	}
	return dtos
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxPublishBody    = 64 << 10
)

// PublishDependencies defines the interface for committing score events.
type PublishDependencies interface {
	Publish(ctx context.Context, ev model.ScoreEvent) (model.RecordRef, error)
}

// PublishHandler handles publish requests.
type PublishHandler struct {
	deps PublishDependencies
}

// NewPublishHandler creates a new publish handler.
func NewPublishHandler(deps PublishDependencies) *PublishHandler {
	return &PublishHandler{deps: deps}
}

// publishRequest mirrors the OpenAPI schema for POST /publish.
type publishRequest struct {
	Player   *string      `json:"player"`
	Score    *json.Number `json:"score"`
	RecordID string       `json:"recordId"`
}

type publishResponse struct {
	Success   bool   `json:"success"`
	TxHash    string `json:"txHash"`
	RecordID  string `json:"recordId"`
	Duplicate bool   `json:"duplicate"`
}

func (p publishRequest) toEvent(headerKey string) (model.ScoreEvent, error) {
	const op = "api.publish"
	if p.Player == nil || strings.TrimSpace(*p.Player) == "" || p.Score == nil {
		return model.ScoreEvent{}, model.WrapKind(op, model.ErrValidation, ErrMissingFields)
	}
	score, err := strconv.ParseUint(p.Score.String(), 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return model.ScoreEvent{}, model.FieldError(op, model.ErrValidation, "score",
			"exceeds uint64 (max "+strconv.FormatUint(math.MaxUint64, 10)+")")
	}
	if err != nil {
		return model.ScoreEvent{}, model.FieldError(op, model.ErrValidation, "score", "must be a non-negative integer")
	}
	recordID := strings.TrimSpace(p.RecordID)
	headerKey = strings.TrimSpace(headerKey)
	switch {
	case recordID == "":
		recordID = headerKey
	case headerKey != "" && headerKey != recordID:
		return model.ScoreEvent{}, model.FieldError(op, model.ErrValidation, "recordId", "does not match the "+idempotencyHeader+" header")
	}
	return model.ScoreEvent{Player: *p.Player, Score: score, RecordID: recordID}, nil
}

// HandlePublish handles POST /publish requests.
func (h *PublishHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	const op = "api.publish"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPublishBody))
	dec.UseNumber()
	var req publishRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", model.WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := req.toEvent(r.Header.Get(idempotencyHeader))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ref, err := h.deps.Publish(r.Context(), ev)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{
		Success:   true,
		TxHash:    ref.TxHash,
		RecordID:  ref.RecordID,
		Duplicate: ref.Duplicate,
	})
}

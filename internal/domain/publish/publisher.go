// Package publish validates, encodes and commits score events to a stream backend.
package publish

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/codec"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/dedupe"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/schema"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/metrics"
)

// Default publisher configuration constants.
const (
	defaultTimeout  = 30 * time.Second
	MaxPlayerLength = 256
)

// Backend is the part of the stream backend the publisher needs.
type Backend interface {
	// Set submits records and returns the commit id. Resubmitting a record id
	// that is already stored returns the original commit id.
	Set(ctx context.Context, streams []model.DataStream) (string, error)
	WaitForConfirmation(ctx context.Context, txHash string) error
}

// Publisher commits one score event per call.
type Publisher struct {
	backend Backend
	schema  model.Schema
	def     schema.Definition
	seen    dedupe.Store
	timeout time.Duration
	now     func() time.Time
	newID   func() (uuid.UUID, error)
	logger  logger.Logger
}

// New creates a publisher that writes records of sch. sch must already be registered.
func New(backend Backend, sch model.Schema, opts ...Option) *Publisher {
	p := &Publisher{
		backend: backend,
		schema:  sch,
		def:     schema.Definition{Fields: sch.Fields},
		timeout: defaultTimeout,
		now:     time.Now,
		newID:   uuid.NewV7,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("publisher")
	}
	return p
}

// Publish validates ev, fills in its record id and timestamp when absent,
// encodes it and waits until the backend confirms the commit.
//
// A ValidationError means nothing was sent. A PublishFailed error carries
// Undetermined=true and the record id: the caller may retry with that id.
func (p *Publisher) Publish(ctx context.Context, ev model.ScoreEvent) (model.RecordRef, error) {
	const op = "publish"
	start := time.Now()

	ev, err := p.prepare(ev)
	if err != nil {
		metrics.RecordPublishError("validation")
		return model.RecordRef{}, err
	}

	if p.seen != nil {
		tx, found, err := p.seen.Lookup(ctx, ev.RecordID)
		switch {
		case err != nil:
			p.logger.Warn(ctx, "idempotency lookup failed, submitting anyway",
				logger.String("recordId", ev.RecordID), logger.Error(err))
		case found:
			metrics.RecordIdempotentReplay()
			return model.RecordRef{TxHash: tx, RecordID: ev.RecordID, Duplicate: true}, nil
		}
	}

	data, err := codec.Encode(ev, p.def)
	if err != nil {
		metrics.RecordPublishError("encoding")
		return model.RecordRef{}, err
	}
	dataID, err := codec.DataIDFromRecordID(ev.RecordID)
	if err != nil {
		metrics.RecordPublishError("encoding")
		return model.RecordRef{}, model.FieldError(op, model.ErrEncoding, "recordId", err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tx, err := p.backend.Set(ctx, []model.DataStream{{ID: dataID, SchemaID: p.schema.ID, Data: data}})
	if err != nil {
		return model.RecordRef{}, p.failed(ctx, ev, "submit", err)
	}

	confirmStart := time.Now()
	if err := p.backend.WaitForConfirmation(ctx, tx); err != nil {
		return model.RecordRef{}, p.failed(ctx, ev, "confirm", err)
	}
	metrics.RecordConfirmationLatency(float64(time.Since(confirmStart).Milliseconds()))

	if p.seen != nil {
		if err := p.seen.Remember(ctx, ev.RecordID, tx); err != nil {
			p.logger.Warn(ctx, "failed to remember committed record",
				logger.String("recordId", ev.RecordID), logger.Error(err))
		}
	}

	metrics.RecordEventPublished()
	metrics.RecordPublishLatency(float64(time.Since(start).Milliseconds()))
	p.logger.Info(ctx, "published",
		logger.String("player", ev.Player),
		logger.Any("score", ev.Score),
		logger.String("recordId", ev.RecordID),
		logger.String("txHash", tx),
	)
	return model.RecordRef{TxHash: tx, RecordID: ev.RecordID}, nil
}

func (p *Publisher) prepare(ev model.ScoreEvent) (model.ScoreEvent, error) {
	const op = "publish.validate"
	ev.Player = strings.TrimSpace(ev.Player)
	switch {
	case ev.Player == "":
		return ev, model.FieldError(op, model.ErrValidation, "player", "must not be empty")
	case !utf8.ValidString(ev.Player):
		return ev, model.FieldError(op, model.ErrValidation, "player", "must be valid UTF-8")
	case len(ev.Player) > MaxPlayerLength:
		return ev, model.FieldError(op, model.ErrValidation, "player", "is too long")
	}

	if ev.RecordID == "" {
		id, err := p.newID()
		if err != nil {
			return ev, model.WrapKind(op, model.ErrValidation, err)
		}
		ev.RecordID = id.String()
	} else {
		id, err := uuid.Parse(ev.RecordID)
		if err != nil {
			return ev, model.FieldError(op, model.ErrValidation, "recordId", "must be a UUID")
		}
		ev.RecordID = id.String()
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = p.now().UTC().Truncate(time.Millisecond)
	}
	return ev, nil
}

func (p *Publisher) failed(ctx context.Context, ev model.ScoreEvent, stage string, cause error) error {
	kind := "backend"
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		kind = "timeout"
	}
	metrics.RecordPublishError(kind)
	metrics.RecordErrorByComponent("publisher", kind)
	p.logger.Error(ctx, "publish outcome undetermined",
		logger.String("stage", stage),
		logger.String("recordId", ev.RecordID),
		logger.Error(cause),
	)
	return &model.Error{
		Op:           "publish." + stage,
		Kind:         model.ErrPublishFailed,
		Err:          cause,
		Undetermined: true,
		RecordID:     ev.RecordID,
	}
}

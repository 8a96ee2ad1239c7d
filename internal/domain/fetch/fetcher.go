// Package fetch reads every record of a schema/publisher scope from the stream
// backend and decodes it into score events.
package fetch

import (
	"context"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/codec"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/schema"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/metrics"
)

// Default fetcher configuration constants.
const (
	defaultPageSize = 200
	maxPageSize     = 5000
)

// Backend is the part of the stream backend the fetcher needs.
type Backend interface {
	PublisherData(ctx context.Context, id model.SchemaID, publisher, cursor string, limit int) (model.RecordPage, error)
}

// Result is the decoded corpus. Skipped counts stored records that did not
// decode; a non-zero value means the corpus is partial.
type Result struct {
	Events  []model.ScoreEvent
	Skipped int
	Pages   int
}

// Fetcher pages through a scope and decodes each record.
type Fetcher struct {
	backend  Backend
	def      schema.Definition
	pageSize int
	logger   logger.Logger
}

// New creates a fetcher decoding records with the layout of sch.
func New(backend Backend, sch model.Schema, opts ...Option) *Fetcher {
	f := &Fetcher{
		backend:  backend,
		def:      schema.Definition{Fields: sch.Fields},
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logger.Get().Named("fetcher")
	}
	return f
}

// FetchAll returns every decodable record of publisher under id. Order follows
// the backend and is not guaranteed to be chronological. It fails with
// FetchFailed only when the backend cannot serve a page; ctx cancellation
// stops paging between pages.
func (f *Fetcher) FetchAll(ctx context.Context, id model.SchemaID, publisher string) (Result, error) {
	const op = "fetch.all"
	start := time.Now()

	var (
		res    Result
		cursor string
	)
	for {
		if err := ctx.Err(); err != nil {
			metrics.RecordFetchError()
			return Result{}, model.WrapKind(op, model.ErrFetchFailed, err)
		}
		page, err := f.backend.PublisherData(ctx, id, publisher, cursor, f.pageSize)
		if err != nil {
			metrics.RecordFetchError()
			metrics.RecordErrorByComponent("fetcher", "backend")
			f.logger.Error(ctx, "fetch page failed",
				logger.String("schemaId", id.String()),
				logger.Int("page", res.Pages),
				logger.Error(err),
			)
			return Result{}, model.WrapKind(op, model.ErrFetchFailed, err)
		}
		res.Pages++

		for _, rec := range page.Records {
			ev, err := codec.Decode(rec.Data, f.def)
			if err != nil {
				res.Skipped++
				f.logger.Warn(ctx, "skipping undecodable record",
					logger.String("dataId", codec.RecordIDFromDataID(rec.ID)),
					logger.String("txHash", rec.TxHash),
					logger.Error(err),
				)
				continue
			}
			if ev.RecordID == "" {
				ev.RecordID = codec.RecordIDFromDataID(rec.ID)
			}
			res.Events = append(res.Events, ev)
		}

		if page.NextCursor == "" || page.NextCursor == cursor {
			break
		}
		cursor = page.NextCursor
	}

	if res.Skipped > 0 {
		metrics.RecordDecodeSkipped(res.Skipped)
	}
	metrics.RecordFetch(float64(time.Since(start).Milliseconds()), len(res.Events), res.Pages)
	return res, nil
}

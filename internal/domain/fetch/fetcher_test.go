package fetch_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/codec"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/fetch"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/schema"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var def = schema.MustParse("string player, uint256 score, uint64 timestamp")

var testSchema = model.Schema{ID: schema.ComputeID(def), Name: "player_score_only", Fields: def.Fields}

// pagedBackend serves records in fixed-size pages, optionally failing on one page.
type pagedBackend struct {
	records []model.StoredRecord
	failAt  int
	calls   int
	limits  []int
}

func (b *pagedBackend) PublisherData(_ context.Context, _ model.SchemaID, _ string, cursor string, limit int) (model.RecordPage, error) {
	b.calls++
	b.limits = append(b.limits, limit)
	if b.failAt > 0 && b.calls == b.failAt {
		return model.RecordPage{}, errors.New("connection reset")
	}
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + limit
	if end > len(b.records) {
		end = len(b.records)
	}
	page := model.RecordPage{Records: b.records[start:end]}
	if end < len(b.records) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func record(player string, score uint64) model.StoredRecord {
	id := uuid.New()
	data, err := codec.Encode(model.ScoreEvent{
		Player: player, Score: score, RecordID: id.String(), Timestamp: time.UnixMilli(1_700_000_000_000).UTC(),
	}, def)
	if err != nil {
		panic(err)
	}
	dataID, _ := codec.DataIDFromRecordID(id.String())
	return model.StoredRecord{ID: dataID, Data: data, TxHash: "0xtx"}
}

func TestFetchAll(t *testing.T) {
	Convey("Given a backend holding the scenario records across pages", t, func() {
		backend := &pagedBackend{records: []model.StoredRecord{
			record("0xabc", 42), record("0xabc", 58), record("0xdef", 10),
		}}
		f := fetch.New(backend, testSchema, fetch.WithLogger(logger.NewNop()), fetch.WithPageSize(2))

		Convey("When fetching everything", func() {
			res, err := f.FetchAll(context.Background(), testSchema.ID, "0xpub")

			Convey("Then all three events come back decoded", func() {
				So(err, ShouldBeNil)
				So(res.Events, ShouldHaveLength, 3)
				So(res.Skipped, ShouldEqual, 0)
				So(res.Pages, ShouldEqual, 2)
				So(backend.limits, ShouldResemble, []int{2, 2})

				scores := map[uint64]string{}
				for _, ev := range res.Events {
					scores[ev.Score] = ev.Player
					So(ev.RecordID, ShouldNotBeEmpty)
				}
				So(scores, ShouldResemble, map[uint64]string{42: "0xabc", 58: "0xabc", 10: "0xdef"})
			})

			Convey("Then record ids come from the storage key", func() {
				So(res.Events[0].RecordID, ShouldEqual, codec.RecordIDFromDataID(backend.records[0].ID))
			})
		})

		Convey("When some records are corrupt", func() {
			backend.records = append(backend.records,
				model.StoredRecord{Data: []byte{1, 2, 3}},
				model.StoredRecord{Data: make([]byte, 96)},
			)
			backend.records[4].Data[31] = 0xff // string offset pointing past the end

			res, err := f.FetchAll(context.Background(), testSchema.ID, "0xpub")

			Convey("Then they are skipped and counted, not fatal", func() {
				So(err, ShouldBeNil)
				So(res.Events, ShouldHaveLength, 3)
				So(res.Skipped, ShouldEqual, 2)
			})
		})

		Convey("When the backend fails mid-way", func() {
			backend.failAt = 2
			_, err := f.FetchAll(context.Background(), testSchema.ID, "0xpub")

			Convey("Then FetchFailed is returned", func() {
				So(errors.Is(err, model.ErrFetchFailed), ShouldBeTrue)
			})
		})

		Convey("When the caller has already gone away", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := f.FetchAll(ctx, testSchema.ID, "0xpub")

			Convey("Then nothing is requested", func() {
				So(errors.Is(err, model.ErrFetchFailed), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(backend.calls, ShouldEqual, 0)
			})
		})
	})

	Convey("Given an empty scope", t, func() {
		f := fetch.New(&pagedBackend{}, testSchema, fetch.WithLogger(logger.NewNop()))
		res, err := f.FetchAll(context.Background(), testSchema.ID, "0xpub")
		So(err, ShouldBeNil)
		So(res.Events, ShouldBeEmpty)
		So(res.Pages, ShouldEqual, 1)
	})
}

package seeder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/adapters/http/api"
	service "github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/app"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newTestService(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()
	svc := service.New(
		service.WithLogger(logger.NewNop()),
		service.WithPublisherAddress("0xSEEDER"),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, svc.MaxLeaderboardLimit(), api.WithBasePath("/api")).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv, svc
}

func TestGenerate(t *testing.T) {
	Convey("Given the generator", t, func() {
		events, err := Generate(4, 5)
		So(err, ShouldBeNil)

		Convey("Then it produces players times rounds events", func() {
			So(events, ShouldHaveLength, 20)
			So(bestByPlayer(events), ShouldHaveLength, 4)
		})

		Convey("Then record ids are unique and wallets are hex addresses", func() {
			ids := map[string]struct{}{}
			for _, ev := range events {
				ids[ev.RecordID] = struct{}{}
				So(ev.Player, ShouldStartWith, "0x")
				So(len(ev.Player), ShouldEqual, 42)
			}
			So(ids, ShouldHaveLength, 20)
		})

		Convey("Then empty requests produce nothing", func() {
			none, err := Generate(0, 5)
			So(err, ShouldBeNil)
			So(none, ShouldBeEmpty)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv, _ := newTestService(t)
		out := filepath.Join(t.TempDir(), "events", "seed.json")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		Convey("When seeding it", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:         srv.URL,
				BasePath:        "api",
				Players:         5,
				EventsPerPlayer: 4,
				Workers:         4,
				TopN:            5,
				OutputFile:      out,
			})

			Convey("Then every event is published and read back", func() {
				So(err, ShouldBeNil)
				So(stats.EventsGenerated, ShouldEqual, 20)
				So(stats.EventsSuccessful, ShouldEqual, 20)
				So(stats.EventsFailed, ShouldEqual, 0)
				So(stats.EventsReadBack, ShouldEqual, 20)
				So(stats.LeaderboardEntries, ShouldEqual, 5)
			})

			Convey("Then the events are saved", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"recordId"`)
			})
		})
	})
}

func TestClient(t *testing.T) {
	Convey("Given a client", t, func() {
		ctx := context.Background()

		Convey("When a publish is replayed", func() {
			srv, _ := newTestService(t)
			c := NewClient(srv.URL, "/api", time.Second)
			events, _ := Generate(1, 1)

			first, err := c.Publish(ctx, events[0])
			So(err, ShouldBeNil)
			So(first, ShouldEqual, OutcomeSuccess)

			second, err := c.Publish(ctx, events[0])
			So(err, ShouldBeNil)
			So(second, ShouldEqual, OutcomeDuplicate)
		})

		Convey("When the service rejects requests", func() {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, `{"code":"schema_not_ready"}`, http.StatusServiceUnavailable)
			}))
			defer srv.Close()
			c := NewClient(srv.URL, "", time.Second)

			_, err := c.SchemaID(ctx)
			So(err, ShouldWrap, ErrUnexpectedStatus)
			So(err.Error(), ShouldContainSubstring, "503")

			outcome, err := c.Publish(ctx, Event{Player: "0xabc", Score: 1, RecordID: "r"})
			So(err, ShouldNotBeNil)
			So(outcome, ShouldEqual, OutcomeFailed)
		})

		Convey("When the service never becomes healthy", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
			defer cancel()
			_, err := Run(ctx, &Config{BaseURL: srv.URL, Players: 1, EventsPerPlayer: 1})
			So(err, ShouldNotBeNil)
			So(strings.Contains(err.Error(), "health"), ShouldBeTrue)
		})
	})
}

func TestCheckLeaderboard(t *testing.T) {
	Convey("Given published bests", t, func() {
		best := map[string]uint64{"0xa": 90, "0xb": 70}

		Convey("A matching board passes", func() {
			board := []LeaderboardEntry{{Rank: 1, Player: "0xa", Best: 90}, {Rank: 2, Player: "0xb", Best: 70}}
			So(checkLeaderboard(board, best), ShouldBeNil)
		})

		Convey("A wrong best fails", func() {
			board := []LeaderboardEntry{{Rank: 1, Player: "0xa", Best: 95}, {Rank: 2, Player: "0xb", Best: 70}}
			So(checkLeaderboard(board, best), ShouldWrap, ErrLeaderboardMismatch)
		})

		Convey("An unordered board fails", func() {
			board := []LeaderboardEntry{{Rank: 1, Player: "0xa", Best: 90}, {Rank: 2, Player: "0xc", Best: 99}}
			So(checkLeaderboard(board, best), ShouldWrap, ErrLeaderboardMismatch)
		})

		Convey("An empty board fails", func() {
			So(checkLeaderboard(nil, best), ShouldWrap, ErrLeaderboardMismatch)
		})
	})
}

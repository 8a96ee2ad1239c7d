package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/adapters/http/api"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDependencies records every call so tests can assert no backend work happened.
type mockDependencies struct {
	mu sync.Mutex

	schemaID    model.SchemaID
	ready       bool
	published   []model.ScoreEvent
	publishRef  model.RecordRef
	publishErr  error
	dataResult  model.AnalysisResult
	dataErr     error
	dataCalls   int
	board       []types.Entry
	boardErr    error
	boardLimits []int
}

func (m *mockDependencies) SchemaID() (model.SchemaID, bool) {
	return m.schemaID, m.ready
}

func (m *mockDependencies) Publish(_ context.Context, ev model.ScoreEvent) (model.RecordRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, ev)
	if m.publishErr != nil {
		return model.RecordRef{}, m.publishErr
	}
	ref := m.publishRef
	if ref.RecordID == "" {
		ref.RecordID = ev.RecordID
	}
	return ref, nil
}

func (m *mockDependencies) Data(_ context.Context, _ string) (model.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	return m.dataResult, m.dataErr
}

func (m *mockDependencies) Leaderboard(_ context.Context, n int) ([]types.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boardLimits = append(m.boardLimits, n)
	return m.board, m.boardErr
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies, opts ...api.ServerOption) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, 50, opts...)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestSchemaEndpoint(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &mockDependencies{schemaID: "0x1234"}
		mux := newMux(deps)

		Convey("Before registration completes GET /schema is 503", func() {
			w := do(mux, http.MethodGet, "/schema", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["code"], ShouldEqual, "schema_not_ready")
		})

		Convey("After registration GET /schema returns the id", func() {
			deps.ready = true
			w := do(mux, http.MethodGet, "/schema", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["schemaId"], ShouldEqual, "0x1234")
		})

		Convey("Other methods are not routed", func() {
			w := do(mux, http.MethodPost, "/schema", "{}")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPublishEndpoint(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &mockDependencies{ready: true, publishRef: model.RecordRef{TxHash: "0xtx"}}
		mux := newMux(deps)

		Convey("A valid publish returns success and the tx hash", func() {
			w := do(mux, http.MethodPost, "/publish", `{"player":"0xabc","score":42}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["success"], ShouldEqual, true)
			So(body["txHash"], ShouldEqual, "0xtx")
			So(deps.published, ShouldHaveLength, 1)
			So(deps.published[0].Player, ShouldEqual, "0xabc")
			So(deps.published[0].Score, ShouldEqual, uint64(42))
		})

		Convey("A score of zero is accepted", func() {
			w := do(mux, http.MethodPost, "/publish", `{"player":"0xabc","score":0}`)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Missing fields are rejected without calling the backend", func() {
			for _, body := range []string{`{"score":42}`, `{"player":"0xabc"}`, `{"player":"","score":1}`, `{"player":"0xabc","score":null}`} {
				w := do(mux, http.MethodPost, "/publish", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["message"], ShouldEqual, "missing player or score")
			}
			So(deps.published, ShouldBeEmpty)
		})

		Convey("Negative, fractional and oversized scores are rejected", func() {
			for _, score := range []string{"-1", "4.5", "1e3", "18446744073709551616", `"abc"`} {
				w := do(mux, http.MethodPost, "/publish", `{"player":"0xabc","score":`+score+`}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
			So(deps.published, ShouldBeEmpty)
		})

		Convey("A score past the uint64 range names the limit", func() {
			w := do(mux, http.MethodPost, "/publish", `{"player":"0xabc","score":18446744073709551616}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldEqual, "score: exceeds uint64 (max 18446744073709551615)")

			w = do(mux, http.MethodPost, "/publish", `{"player":"0xabc","score":-1}`)
			So(decode(w)["message"], ShouldEqual, "score: must be a non-negative integer")
			So(deps.published, ShouldBeEmpty)
		})

		Convey("Malformed JSON is a bad request", func() {
			w := do(mux, http.MethodPost, "/publish", `{"player":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("The Idempotency-Key header becomes the record id", func() {
			key := "0191d1f0-0000-7000-8000-000000000001"
			w := do(mux, http.MethodPost, "/publish", `{"player":"0xabc","score":1}`, "Idempotency-Key", key)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.published[0].RecordID, ShouldEqual, key)
			So(decode(w)["recordId"], ShouldEqual, key)
		})

		Convey("A header that contradicts the body is rejected", func() {
			w := do(mux, http.MethodPost, "/publish",
				`{"player":"0xabc","score":1,"recordId":"0191d1f0-0000-7000-8000-000000000001"}`,
				"Idempotency-Key", "0191d1f0-0000-7000-8000-000000000002")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.published, ShouldBeEmpty)
		})

		Convey("Replays report duplicate", func() {
			deps.publishRef.Duplicate = true
			w := do(mux, http.MethodPost, "/publish", `{"player":"0xabc","score":1}`)
			So(decode(w)["duplicate"], ShouldEqual, true)
		})

		Convey("Domain errors map onto status codes", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{model.FieldError("publish", model.ErrValidation, "player", "is too long"), http.StatusBadRequest, "bad_request"},
				{model.FieldError("codec", model.ErrEncoding, "score", "out of range"), http.StatusBadRequest, "encoding_error"},
				{model.NewKind("service", model.ErrSchemaNotReady, "starting"), http.StatusServiceUnavailable, "schema_not_ready"},
				{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
			}
			for _, tc := range cases {
				deps.publishErr = tc.err
				w := do(mux, http.MethodPost, "/publish", `{"player":"0xabc","score":1}`)
				So(w.Code, ShouldEqual, tc.status)
				So(decode(w)["code"], ShouldEqual, tc.code)
			}
		})

		Convey("An undetermined publish tells the caller which record id to retry", func() {
			deps.publishErr = &model.Error{
				Op: "publish.confirm", Kind: model.ErrPublishFailed,
				Err: errors.New("rpc https://secret-node/key=abc timed out"), Undetermined: true,
				RecordID: "0191d1f0-0000-7000-8000-000000000009",
			}
			w := do(mux, http.MethodPost, "/publish", `{"player":"0xabc","score":1}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			body := decode(w)
			So(body["code"], ShouldEqual, "publish_failed")
			So(body["recordId"], ShouldEqual, "0191d1f0-0000-7000-8000-000000000009")
			So(w.Body.String(), ShouldNotContainSubstring, "secret-node")
		})
	})
}

func TestDataEndpoint(t *testing.T) {
	Convey("Given the API", t, func() {
		ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		deps := &mockDependencies{ready: true, dataResult: model.AnalysisResult{
			TotalEntries: 3,
			Records: []model.ScoreEvent{
				{Player: "0xabc", Score: 42, RecordID: "r1", Timestamp: ts},
				{Player: "0xabc", Score: 58, RecordID: "r2", Timestamp: ts.Add(time.Minute)},
				{Player: "0xdef", Score: 10, RecordID: "r3", Timestamp: ts.Add(2 * time.Minute)},
			},
			Summary:         "Nice work.",
			SummaryDegraded: false,
			Skipped:         1,
		}}
		mux := newMux(deps)

		Convey("GET /data without wallet is 400 and makes no backend call", func() {
			w := do(mux, http.MethodGet, "/data", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.dataCalls, ShouldEqual, 0)

			w = do(mux, http.MethodGet, "/data?wallet=%20", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.dataCalls, ShouldEqual, 0)
		})

		Convey("GET /data returns entries and the summary", func() {
			w := do(mux, http.MethodGet, "/data?wallet=0xabc", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["totalEntries"], ShouldEqual, float64(3))
			So(body["aiSummary"], ShouldEqual, "Nice work.")
			So(body["skipped"], ShouldEqual, float64(1))
			data := body["data"].([]interface{})
			So(data, ShouldHaveLength, 3)
			first := data[0].(map[string]interface{})
			So(first["player"], ShouldEqual, "0xabc")
			So(first["score"], ShouldEqual, float64(42))
			So(first["timestamp"], ShouldEqual, "2025-01-01T00:00:00Z")
		})

		Convey("A fetch failure is a 500 without internals", func() {
			deps.dataErr = model.WrapKind("fetch.all", model.ErrFetchFailed, errors.New("dial tcp 10.0.0.5:5432"))
			w := do(mux, http.MethodGet, "/data?wallet=0xabc", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["code"], ShouldEqual, "fetch_failed")
			So(w.Body.String(), ShouldNotContainSubstring, "10.0.0.5")
		})
	})
}

func TestLeaderboardEndpoint(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &mockDependencies{ready: true, board: []types.Entry{{Rank: 1, Player: "0xabc", Best: 58}}}
		mux := newMux(deps)

		Convey("The default limit applies", func() {
			w := do(mux, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.boardLimits, ShouldResemble, []int{10})
		})

		Convey("An explicit limit is passed through", func() {
			w := do(mux, http.MethodGet, "/leaderboard?limit=5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.boardLimits, ShouldResemble, []int{5})
			var entries []types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
			So(entries[0].Player, ShouldEqual, "0xabc")
		})

		Convey("Invalid and excessive limits are rejected", func() {
			So(do(mux, http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/leaderboard?limit=x", "").Code, ShouldEqual, http.StatusBadRequest)
			w := do(mux, http.MethodGet, "/leaderboard?limit=51", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "limit_exceeded")
			So(deps.boardLimits, ShouldBeEmpty)
		})

		Convey("An empty board is an empty array", func() {
			deps.board = nil
			w := do(mux, http.MethodGet, "/leaderboard", "")
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("healthz reports starting until the schema is ready", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["status"], ShouldEqual, "starting")

			deps.ready = true
			w = do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["schemaReady"], ShouldEqual, true)
		})

		Convey("healthz serves Prometheus text when asked", func() {
			w := do(mux, http.MethodGet, "/healthz", "", "Accept", "text/plain")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "scores_")
		})

		Convey("metrics are exposed", func() {
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("stats are JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("unknown paths are 404", func() {
			So(do(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestBasePathAndCORS(t *testing.T) {
	Convey("Given routes mounted under /api", t, func() {
		deps := &mockDependencies{ready: true, schemaID: "0x1"}
		mux := newMux(deps, api.WithBasePath("api/"))

		So(do(mux, http.MethodGet, "/api/schema", "").Code, ShouldEqual, http.StatusOK)
		So(do(mux, http.MethodGet, "/schema", "").Code, ShouldEqual, http.StatusNotFound)
		So(do(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)

		Convey("When wrapped in CORS", func() {
			h := api.CORS([]string{"https://game.example"})(mux)

			Convey("Allowed origins get the headers", func() {
				w := do(h, http.MethodGet, "/api/schema", "", "Origin", "https://game.example")
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://game.example")
			})

			Convey("Other origins do not", func() {
				w := do(h, http.MethodGet, "/api/schema", "", "Origin", "https://evil.example")
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
			})

			Convey("Preflight is answered with 204", func() {
				w := do(h, http.MethodOptions, "/api/publish", "",
					"Origin", "https://game.example", "Access-Control-Request-Method", "POST")
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(w.Header().Get("Access-Control-Allow-Headers"), ShouldContainSubstring, "Idempotency-Key")
				So(deps.published, ShouldBeEmpty)
			})
		})

		Convey("A wildcard allows any origin", func() {
			h := api.CORS([]string{"*"})(mux)
			w := do(h, http.MethodGet, "/api/schema", "", "Origin", "https://anything.example")
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://anything.example")
		})
	})
}

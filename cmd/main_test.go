package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/adapters/llm"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/config"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.PublisherAddress = "0xPUBLISHER"
	cfg.GenerationProvider = config.GenerationProviderNone
	cfg.BasePath = "/api"
	cfg.RegistrationBackoffMS = 1
	return cfg
}

func TestComposition(t *testing.T) {
	convey.Convey("Given an in-memory configuration", t, func() {
		ctx := context.Background()
		log := logger.NewNop()
		cfg := testConfig()

		convey.Convey("When the generator is selected", func() {
			convey.Convey("Then provider none degrades", func() {
				convey.So(newGenerator(ctx, cfg, log), convey.ShouldResemble, llm.Unavailable{})
			})

			convey.Convey("Then openai without a key degrades", func() {
				cfg.GenerationProvider = config.GenerationProviderOpenAI
				cfg.OpenAIAPIKey = ""
				convey.So(newGenerator(ctx, cfg, log), convey.ShouldResemble, llm.Unavailable{})
			})

			convey.Convey("Then openai with a key builds a client", func() {
				cfg.GenerationProvider = config.GenerationProviderOpenAI
				cfg.OpenAIAPIKey = "sk-test"
				_, ok := newGenerator(ctx, cfg, log).(*llm.OpenAI)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an unknown backend is named", func() {
			cfg.StreamBackend = "kafka"
			_, err := newStreamBackend(ctx, cfg, log)
			convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)

			cfg.IdempotencyBackend = "disk"
			_, err = newIdempotencyStore(ctx, cfg)
			convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
		})

		convey.Convey("When the service is started and served", func() {
			svc, err := newService(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)
			defer svc.Stop()

			handler := newHandler(ctx, cfg, svc)

			req := httptest.NewRequest(http.MethodGet, "/api/schema", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusServiceUnavailable)

			convey.So(svc.Start(ctx), convey.ShouldBeNil)

			convey.Convey("Then schema, publish and data work end to end", func() {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				for _, body := range []string{`{"player":"0xP","score":42}`, `{"player":"0xP","score":58}`, `{"player":"0xQ","score":10}`} {
					w := httptest.NewRecorder()
					handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/publish", strings.NewReader(body)))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}

				w = httptest.NewRecorder()
				handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data?wallet=0xp", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				var out struct {
					TotalEntries    int    `json:"totalEntries"`
					AISummary       string `json:"aiSummary"`
					SummaryDegraded bool   `json:"summaryDegraded"`
				}
				convey.So(json.Unmarshal(w.Body.Bytes(), &out), convey.ShouldBeNil)
				convey.So(out.TotalEntries, convey.ShouldEqual, 3)
				convey.So(out.SummaryDegraded, convey.ShouldBeTrue)
				convey.So(out.AISummary, convey.ShouldNotBeEmpty)
			})

			convey.Convey("Then docs and CORS are mounted", func() {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				req := httptest.NewRequest(http.MethodOptions, "/api/publish", nil)
				req.Header.Set("Origin", "https://game.example")
				req.Header.Set("Access-Control-Request-Method", "POST")
				w = httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusNoContent)
			})
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metric updaters", t, func() {
		convey.Convey("Then system metrics update without panicking", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loops stop with their context", func() {
			svc, err := newService(context.Background(), testConfig(), logger.NewNop())
			convey.So(err, convey.ShouldBeNil)
			defer svc.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, svc)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("metric updaters did not stop")
			}
		})
	})
}

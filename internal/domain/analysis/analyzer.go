// Package analysis aggregates score events and renders a per-requester
// performance summary through a language generation backend.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/metrics"
)

// Default analyzer configuration constants.
const (
	defaultWordCap    = 150
	defaultTimeout    = 20 * time.Second
	defaultMaxPlayers = 50
	defaultMaxHistory = 50

	// MinWordCap leaves room for the placeholder marker and the
	// no-history statement ahead of any generated text.
	MinWordCap = 10

	// PlaceholderPrefix marks summaries produced without the generation backend.
	PlaceholderPrefix = "[AI summary unavailable]"
)

// Analyzer turns a corpus into an AnalysisResult.
type Analyzer struct {
	gen     Generator
	model   ModelConfig
	timeout time.Duration
	limits  PromptLimits
	logger  logger.Logger
}

// New creates an analyzer. A nil generator always yields degraded summaries.
func New(gen Generator, opts ...Option) *Analyzer {
	a := &Analyzer{
		gen:     gen,
		timeout: defaultTimeout,
		limits: PromptLimits{
			MaxPlayers: defaultMaxPlayers,
			MaxHistory: defaultMaxHistory,
			WordCap:    defaultWordCap,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("analyzer")
	}
	return a
}

// WordCap returns the enforced summary length in words.
func (a *Analyzer) WordCap() int { return a.limits.WordCap }

// Analyze computes the numeric fields and the summary. It never fails: when
// generation is unavailable the summary is a marked placeholder built from
// the numbers alone.
func (a *Analyzer) Analyze(ctx context.Context, req model.AnalysisRequest) model.AnalysisResult {
	records := Chronological(req.Corpus)
	personal := Personal(records, req.Requester)
	stats := ComputeStats(records)
	metrics.UpdateAnalysisPlayers(len(stats.Players))

	res := model.AnalysisResult{
		TotalEntries: len(records),
		Records:      records,
		Personal:     personal,
		Stats:        stats,
	}

	noHistory := len(personal) == 0
	var head, body string
	summary, err := a.generate(ctx, req.Requester, stats, personal)
	if err != nil {
		metrics.RecordSummaryDegraded()
		a.logger.Warn(ctx, "summary degraded",
			logger.String("requester", req.Requester),
			logger.Error(err),
		)
		head, body = placeholderParts(req.Requester, stats, personal)
		res.SummaryDegraded = true
	} else {
		body = summary
		if noHistory && !startsWithNoHistory(summary) {
			head = noHistoryLead(req.Requester)
		}
	}

	capped, cut := capWithHead(head, body, a.limits.WordCap)
	if cut {
		metrics.RecordSummaryTruncated()
	}
	res.Summary = capped
	return res
}

func (a *Analyzer) generate(ctx context.Context, requester string, stats model.CorpusStats, personal []model.ScoreEvent) (string, error) {
	const op = "analysis.generate"
	if a.gen == nil {
		return "", model.NewKind(op, model.ErrGenerationUnavailable, "no generation backend configured")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	prompt := BuildPrompt(requester, stats, personal, a.limits)
	text, err := a.gen.Complete(ctx, prompt, a.model)
	metrics.RecordGenerationLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordGenerationError()
		return "", model.WrapKind(op, model.ErrGenerationUnavailable, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.RecordGenerationError()
		return "", model.NewKind(op, model.ErrGenerationUnavailable, "empty completion")
	}
	return text, nil
}

// placeholderParts renders a deterministic summary from the statistics
// alone, split into the marker with any no-history statement and the
// numeric sentences.
func placeholderParts(requester string, stats model.CorpusStats, personal []model.ScoreEvent) (string, string) {
	head := PlaceholderPrefix
	if len(personal) == 0 {
		head += " " + noHistoryLead(requester)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d entries from %d players, average score %.2f.", stats.Count, len(stats.Players), stats.Mean)
	for _, p := range stats.Players {
		if len(personal) > 0 && SamePlayer(p.Player, requester) {
			fmt.Fprintf(&b, " Your %d entries average %.2f, best %d, trend %s.", p.Count, p.Mean, p.Best, p.Trend)
			break
		}
	}
	return head, b.String()
}

func noHistoryLead(requester string) string {
	return fmt.Sprintf("%s for %s.", NoHistoryPhrase, requester)
}

func startsWithNoHistory(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), strings.ToLower(NoHistoryPhrase))
}

// capWithHead keeps head intact and fits body into the words left under
// limit. A head longer than limit is returned alone.
func capWithHead(head, body string, limit int) (string, bool) {
	head = strings.TrimSpace(head)
	if head == "" {
		return CapWords(body, limit)
	}
	room := limit - CountWords(head)
	if limit > 0 && room <= 0 {
		return head, CountWords(body) > 0 || room < 0
	}
	capped, cut := CapWords(body, room)
	if capped == "" {
		return head, cut
	}
	return head + " " + capped, cut
}

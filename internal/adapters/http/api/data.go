package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
)

// DataDependencies defines the interface for the read and analysis path.
type DataDependencies interface {
	Data(ctx context.Context, wallet string) (model.AnalysisResult, error)
}

// DataHandler handles data requests.
type DataHandler struct {
	deps DataDependencies
}

// NewDataHandler creates a new data handler.
func NewDataHandler(deps DataDependencies) *DataHandler {
	return &DataHandler{deps: deps}
}

type dataEntry struct {
	Player    string `json:"player"`
	Score     uint64 `json:"score"`
	RecordID  string `json:"recordId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type dataResponse struct {
	TotalEntries    int               `json:"totalEntries"`
	Data            []dataEntry       `json:"data"`
	AISummary       string            `json:"aiSummary"`
	SummaryDegraded bool              `json:"summaryDegraded"`
	Skipped         int               `json:"skipped"`
	Stats           model.CorpusStats `json:"stats"`
}

// HandleGetData handles GET /data?wallet=... requests.
func (h *DataHandler) HandleGetData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	wallet := strings.TrimSpace(r.URL.Query().Get("wallet"))
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingWallet)
		return
	}

	res, err := h.deps.Data(r.Context(), wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := dataResponse{
		TotalEntries:    res.TotalEntries,
		Data:            make([]dataEntry, 0, len(res.Records)),
		AISummary:       res.Summary,
		SummaryDegraded: res.SummaryDegraded,
		Skipped:         res.Skipped,
		Stats:           res.Stats,
	}
	for _, ev := range res.Records {
		e := dataEntry{Player: ev.Player, Score: ev.Score, RecordID: ev.RecordID}
		if !ev.Timestamp.IsZero() {
			e.Timestamp = ev.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		out.Data = append(out.Data, e)
	}
	if out.Stats.Players == nil {
		out.Stats.Players = []model.PlayerStats{}
	}
	writeJSON(w, http.StatusOK, out)
}

package httpserver

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/crossvenue/arbscan/internal/arbitrage"
	"github.com/crossvenue/arbscan/internal/scanner"
	"github.com/crossvenue/arbscan/pkg/types"
)

// maxStateOpportunities caps the dashboard payload. The book snapshot is
// sorted by edge descending, so the cap keeps the best ones.
const maxStateOpportunities = 50

// stateHandler serves the dashboard state snapshot.
type stateHandler struct {
	book   *arbitrage.Book
	scans  StateSource
	logger *zap.Logger
}

func newStateHandler(book *arbitrage.Book, scans StateSource, logger *zap.Logger) *stateHandler {
	return &stateHandler{
		book:   book,
		scans:  scans,
		logger: logger,
	}
}

// StateResponse is the dashboard state payload, served on /api/state and
// pushed as the initial websocket frame.
type StateResponse struct {
	Scan          *scanner.State       `json:"scan,omitempty"`
	Opportunities []*types.Opportunity `json:"opportunities"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// snapshot assembles the current state payload.
func (h *stateHandler) snapshot() StateResponse {
	snap := h.book.Snapshot()

	opps := snap.Opportunities
	if len(opps) > maxStateOpportunities {
		opps = opps[:maxStateOpportunities]
	}

	resp := StateResponse{
		Opportunities: opps,
		UpdatedAt:     snap.UpdatedAt,
	}
	if h.scans != nil {
		resp.Scan = h.scans.State()
	}
	return resp
}

// HandleState handles GET /api/state requests.
func (h *stateHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(h.snapshot())
	if err != nil {
		h.logger.Error("failed-to-encode-state", zap.Error(err))
	}
}

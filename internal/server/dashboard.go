// internal/server/dashboard.go
package server

import (
	"log"
	"net/http"

	"github.com/aegislab/aegishive/internal/dashboard"
	"github.com/aegislab/aegishive/internal/history"
)

// DashboardHandler serves the live status board. Unauthenticated and
// read-only: it renders a ledger snapshot and never mutates state.
type DashboardHandler struct {
	ledger *history.Ledger
}

// NewDashboardHandler wires the dashboard view over the ledger.
func NewDashboardHandler(ledger *history.Ledger) *DashboardHandler {
	return &DashboardHandler{ledger: ledger}
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	page, err := dashboard.Render(h.ledger.Snapshot())
	if err != nil {
		// Viewers never see raw errors, only the placeholder or cards.
		log.Printf("Dashboard render error: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

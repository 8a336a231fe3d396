package rigsim

import (
	"encoding/json"
	"net/http"
)

func NewHealthHandler(sim *Sim) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(struct {
			Status string `json:"status"`
			Stats
		}{Status: "ok", Stats: sim.Stats()})
	}
}

func NewFrameHandler(sim *Sim) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sim.Frame())
	}
}

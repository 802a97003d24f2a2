package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is satisfied by every kvstore backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	Store   Pinger
	Driver  string
	Loading func() bool
}

// Health
// @Summary Liveness and storage status
// @Tags health
// @Produce json
// @Success 200 {object} object
// @Router /health [get]
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	type resp struct {
		Status  string `json:"status"`
		Store   string `json:"store"`
		Driver  string `json:"driver,omitempty"`
		Loading bool   `json:"loading"`
		Time    string `json:"time"`
	}

	storeStatus := "ok"
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.Store == nil {
		storeStatus = "unconfigured"
	} else if err := h.Store.Ping(ctx); err != nil {
		storeStatus = "down"
	}

	loading := false
	if h.Loading != nil {
		loading = h.Loading()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp{
		Status:  "ok",
		Store:   storeStatus,
		Driver:  h.Driver,
		Loading: loading,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

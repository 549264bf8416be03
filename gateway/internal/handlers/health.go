package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/inventra-labs/inventra/common/httputil"
	"github.com/inventra-labs/inventra/common/messaging"
)

// Pinger is the part of the identity store health checks need.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store     Pinger
	publisher messaging.Publisher
	routes    int
	version   string
}

func NewHealthHandler(store Pinger, publisher messaging.Publisher, routes int, version string) *HealthHandler {
	return &HealthHandler{store: store, publisher: publisher, routes: routes, version: version}
}

type healthResponse struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version,omitempty"`
	Routes    int                     `json:"routes"`
	Store     string                  `json:"store"`
	Messaging *messaging.HealthStatus `json:"messaging,omitempty"`
}

// Health handles GET /health. Only the identity store affects the status;
// a disconnected broker is reported but the gateway keeps serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Version: h.version, Routes: h.routes, Store: "ok"}
	status := http.StatusOK

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Store = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	if h.publisher != nil {
		hs := messaging.CheckPublisherHealth(h.publisher)
		resp.Messaging = &hs
	}

	httputil.WriteJSON(w, status, resp)
}

package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// BrokerChecker reports whether the notification broker is reachable.
type BrokerChecker interface {
	Ping() error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client Pinger
	Broker BrokerChecker // optional
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. broker may be nil when
// notifications are only logged.
func NewHandler(client Pinger, broker BrokerChecker, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Broker: broker,
		Log:    logger,
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Broker   string `json:"broker,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "broker":"connected" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
//
// A broker outage is reported but does not fail the check; verification
// mail is best effort.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if h.Broker != nil {
		resp.Broker = "connected"
		if err := h.Broker.Ping(); err != nil {
			h.Log.Warn("health-check: broker unavailable", zap.Error(err))
			resp.Broker = "disconnected"
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// ServeLive handles GET /health/live. It reports only that the process is
// serving requests and never touches a backend.
func (h *Handler) ServeLive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

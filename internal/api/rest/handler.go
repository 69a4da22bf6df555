package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/market-indexer/internal/indexer"
	"github.com/feral-file/market-indexer/internal/store"
)

// Handler defines the status endpoints
type Handler interface {
	// HealthCheck reports liveness
	// GET /healthz
	HealthCheck(c *gin.Context)

	// GetStatus reports indexing progress and mirrored row counts
	// GET /v1/status
	GetStatus(c *gin.Context)
}

// StatusProvider exposes the live state of the indexing loop
type StatusProvider interface {
	Status() indexer.Status
}

// StatusResponse is the body of GET /v1/status
type StatusResponse struct {
	Indexer indexer.Status `json:"indexer"`
	// Lag is the number of blocks between the chain head and the checkpoint
	Lag   uint64       `json:"lag"`
	Stats *store.Stats `json:"stats"`
}

type handler struct {
	status StatusProvider
	store  store.Store
}

// NewHandler creates the status handler
func NewHandler(status StatusProvider, st store.Store) Handler {
	return &handler{
		status: status,
		store:  st,
	}
}

// HealthCheck returns the health status of the service.
// It fails while the loop has stopped running.
func (h *handler) HealthCheck(c *gin.Context) {
	status := h.status.Status()
	if !status.Running {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "stopped",
			"service": "market-indexer",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "market-indexer",
	})
}

// GetStatus returns the indexer state together with store statistics
func (h *handler) GetStatus(c *gin.Context) {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	stats, err := h.store.GetStats(ctx)
	if err != nil {
		respondInternalError(c, err, "Failed to read store statistics")
		return
	}

	status := h.status.Status()
	resp := StatusResponse{
		Indexer: status,
		Stats:   stats,
	}
	if status.ChainHead > status.LastIndexedBlock {
		resp.Lag = status.ChainHead - status.LastIndexedBlock
	}

	c.JSON(http.StatusOK, resp)
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabsession/internal/domain/archive"
	"github.com/GriffinCanCode/tabsession/internal/domain/session"
	"github.com/GriffinCanCode/tabsession/internal/engine"
)

// Handlers serves the debug endpoints of one engine
type Handlers struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewHandlers creates debug handlers
func NewHandlers(eng *engine.Engine) *Handlers {
	return &Handlers{
		engine: eng,
		logger: eng.Logger().Named("debug"),
	}
}

// ArchiveResponse describes the archive on disk
type ArchiveResponse struct {
	Path    string           `json:"path"`
	Exists  bool             `json:"exists"`
	Version int              `json:"version,omitempty"`
	Tabs    []session.Record `json:"tabs"`
}

// AssetsResponse lists stored screenshots
type AssetsResponse struct {
	Dir   string   `json:"dir"`
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

// Health reports liveness and pipeline state
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"restoring": h.engine.IsRestoring(),
		"pending":   h.engine.Coordinator().Pending(),
	})
}

// GetArchive returns the decoded archive without modifying it
func (h *Handlers) GetArchive(c *gin.Context) {
	file := h.engine.Archive()
	records, version, err := file.Peek()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, archive.ErrCorruptArchive) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if records == nil {
		records = []session.Record{}
	}
	c.JSON(http.StatusOK, ArchiveResponse{
		Path:    file.Path(),
		Exists:  version != 0,
		Version: int(version),
		Tabs:    records,
	})
}

// ListAssets returns the stored screenshot keys
func (h *Handlers) ListAssets(c *gin.Context) {
	keys := h.engine.Assets().Keys()
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, AssetsResponse{
		Dir:   h.engine.Assets().Dir(),
		Count: len(keys),
		Keys:  keys,
	})
}

// Flush writes the pending snapshot now
func (h *Handlers) Flush(c *gin.Context) {
	if err := h.engine.Flush(c.Request.Context()); err != nil {
		h.logger.Error("Flush failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flushed": true})
}

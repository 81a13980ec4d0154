package camera

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xhujustin/billiards-analytics-v1.5/pkg/response"
)

// Handler handles camera HTTP endpoints.
type Handler struct {
	controller *Controller
	logger     *zap.Logger
}

// NewHandler creates a camera handler.
func NewHandler(controller *Controller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{controller: controller, logger: logger}
}

// List handles GET /api/camera/list.
func (h *Handler) List(c *gin.Context) {
	devices, current, switching := h.controller.List(c.Request.Context())
	response.OK(c, gin.H{
		"cameras":      devices,
		"current":      current,
		"is_switching": switching,
	})
}

type switchRequest struct {
	DeviceID *int `json:"device_id" binding:"required"`
}

// Switch handles POST /api/camera/switch. The switch itself runs in the
// background; the response only acknowledges it started.
func (h *Handler) Switch(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "device_id required")
		return
	}
	err := h.controller.Switch(c.Request.Context(), *req.DeviceID)
	switch {
	case errors.Is(err, ErrSwitchInProgress):
		response.Conflict(c, "camera is currently switching")
	case errors.Is(err, ErrSameDevice):
		response.OK(c, gin.H{"status": "ok", "message": "already on this camera"})
	case err != nil:
		h.logger.Error("camera switch failed", zap.Error(err))
		response.Internal(c, "failed to switch camera")
	default:
		response.OK(c, gin.H{"status": "ok", "device_id": *req.DeviceID})
	}
}

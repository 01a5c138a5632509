package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vmaxx/repetier-go/device"
	"github.com/vmaxx/repetier-go/tool"
)

// StatusController exposes read-only views of the reconciled printer model.
type StatusController struct {
	dev *device.Device
}

func NewStatusController(dev *device.Device) *StatusController {
	return &StatusController{dev: dev}
}

// HandleStatus returns the connection tracker state.
// GET /api/repetier/v1/status
func (ctrl *StatusController) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ctrl.dev.Status())
}

// HandlePrinter returns a snapshot of the printer: temperatures, active job,
// SD support and camera.
// GET /api/repetier/v1/printer
func (ctrl *StatusController) HandlePrinter(c *gin.Context) {
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.dev.PrinterSnapshot()))
}

// HandleCamera returns the resolved camera stream descriptor.
// GET /api/repetier/v1/camera
func (ctrl *StatusController) HandleCamera(c *gin.Context) {
	camera := ctrl.dev.CameraOrientation()
	if camera.StreamURL == "" {
		c.JSON(http.StatusNotFound, tool.FastReturnError("No camera stream available"))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(camera))
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vmaxx/repetier-go/device"
	"github.com/vmaxx/repetier-go/tool"
)

// JobController drives the print-job lifecycle and g-code dispatch.
type JobController struct {
	dev *device.Device
}

func NewJobController(dev *device.Device) *JobController {
	return &JobController{dev: dev}
}

type printRequest struct {
	JobName string   `json:"jobName"`
	GCode   []string `json:"gcode" binding:"required"`
}

type commandsRequest struct {
	Commands []string `json:"commands" binding:"required"`
}

// HandlePrint submits g-code as a new print job. Whether the job starts
// immediately or is only stored follows the auto-print preference.
// POST /api/repetier/v1/job/print
func (ctrl *JobController) HandlePrint(c *gin.Context) {
	var req printRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError(err.Error()))
		return
	}
	ctrl.dev.StartPrintJob(req.JobName, req.GCode)
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandleQueue re-submits the held g-code for storage only, used after a
// busy rejection.
// POST /api/repetier/v1/job/queue
func (ctrl *JobController) HandleQueue(c *gin.Context) {
	ctrl.dev.QueuePrint()
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandlePause pauses the active job.
// POST /api/repetier/v1/job/pause
func (ctrl *JobController) HandlePause(c *gin.Context) {
	ctrl.dev.PausePrint()
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandleResume resumes (or pauses, when not paused) the active job.
// POST /api/repetier/v1/job/resume
func (ctrl *JobController) HandleResume(c *gin.Context) {
	ctrl.dev.ResumePrint()
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandleCancel aborts the active job.
// POST /api/repetier/v1/job/cancel
func (ctrl *JobController) HandleCancel(c *gin.Context) {
	ctrl.dev.CancelPrint()
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandleCancelUpload aborts an in-flight g-code upload.
// POST /api/repetier/v1/job/cancel-upload
func (ctrl *JobController) HandleCancelUpload(c *gin.Context) {
	ctrl.dev.CancelUpload()
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandleCommands queues raw g-code commands for the printer. Commands sent
// close together are coalesced into one batch.
// POST /api/repetier/v1/commands
func (ctrl *JobController) HandleCommands(c *gin.Context) {
	var req commandsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError(err.Error()))
		return
	}
	if len(req.Commands) == 0 {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("No commands provided"))
		return
	}
	for _, command := range req.Commands {
		ctrl.dev.SendCommand(command)
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vmaxx/repetier-go/notify"
	"github.com/vmaxx/repetier-go/tool"
)

// MessageController exposes the outbound message center: listing visible
// messages and triggering their actions (queue, cancel, open browser).
type MessageController struct {
	messages *notify.Center
}

func NewMessageController(messages *notify.Center) *MessageController {
	return &MessageController{messages: messages}
}

// HandleList returns all visible messages, oldest first.
// GET /api/repetier/v1/messages
func (ctrl *MessageController) HandleList(c *gin.Context) {
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.messages.List()))
}

// HandleTrigger runs the named action of a message, e.g. the queue action of
// a busy error or the cancel action of an upload progress message.
// POST /api/repetier/v1/messages/:id/actions/:action
func (ctrl *MessageController) HandleTrigger(c *gin.Context) {
	id := c.Param("id")
	action := c.Param("action")
	if !ctrl.messages.Trigger(id, action) {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Unknown message or action"))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

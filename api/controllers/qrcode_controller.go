package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/types"
)

const (
	defaultQRSize = 200
	maxQRSize     = 512
)

// QRCodeController renders QR codes pointing at the Repetier web interface.
type QRCodeController struct {
	endpoint *types.Endpoint
}

func NewQRCodeController(endpoint *types.Endpoint) *QRCodeController {
	return &QRCodeController{endpoint: endpoint}
}

// HandleQRCode returns a PNG QR code image. Without a data parameter it
// encodes the instance's web interface URL.
// GET ?size=200x200&data=<url-encoded-content>
func (ctrl *QRCodeController) HandleQRCode(c *gin.Context) {
	data := c.Query("data")
	if data == "" {
		data = ctrl.endpoint.BaseURL()
	}

	size := parseSize(c.Query("size"))
	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}

	png, err := qrcode.Encode(data, qrcode.Medium, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to encode QR code: "+err.Error()))
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// parseSize parses size from "200x200" or "200" and returns the pixel dimension.
func parseSize(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if idx := strings.Index(s, "x"); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

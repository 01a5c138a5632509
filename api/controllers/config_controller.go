package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/types"
)

// ConfigController reads and updates the persisted preferences.
type ConfigController struct{}

func NewConfigController() *ConfigController {
	return &ConfigController{}
}

type configResponse struct {
	Instance    instanceView      `json:"instance"`
	Preferences types.Preferences `json:"preferences"`
}

// instanceView omits the credentials.
type instanceView struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	Path     string `json:"path"`
	UseHTTPS bool   `json:"useHttps"`
}

type preferencesPatch struct {
	AutoPrint      *bool `json:"autoPrint"`
	StoreOnSD      *bool `json:"storeOnSd"`
	WebcamFlipY    *bool `json:"webcamFlipY"`
	PollIntervalMs *int  `json:"pollIntervalMs"`
}

// HandleGet returns the instance address and preferences. API key and basic
// auth credentials are never echoed back.
// GET /api/repetier/v1/config
func (ctrl *ConfigController) HandleGet(c *gin.Context) {
	cfg := tool.GetCurrentConfig()
	c.JSON(http.StatusOK, configResponse{
		Instance: instanceView{
			ID:       cfg.Instance.ID,
			Address:  cfg.Instance.Address,
			Port:     cfg.Instance.Port,
			Path:     cfg.Instance.Path,
			UseHTTPS: cfg.Instance.UseHTTPS,
		},
		Preferences: cfg.Preferences,
	})
}

// HandlePatch accepts partial preference updates and persists them. Instance
// address changes require a restart and are not accepted here.
// PATCH /api/repetier/v1/config
func (ctrl *ConfigController) HandlePatch(c *gin.Context) {
	var body preferencesPatch
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError(err.Error()))
		return
	}

	cfg := *tool.GetCurrentConfig()
	if body.AutoPrint != nil {
		cfg.Preferences.AutoPrint = *body.AutoPrint
	}
	if body.StoreOnSD != nil {
		cfg.Preferences.StoreOnSD = *body.StoreOnSD
	}
	if body.WebcamFlipY != nil {
		cfg.Preferences.WebcamFlipY = *body.WebcamFlipY
	}
	if body.PollIntervalMs != nil && *body.PollIntervalMs > 0 {
		cfg.Preferences.PollIntervalMs = *body.PollIntervalMs
	}
	tool.PersistAppConfig(&cfg)

	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

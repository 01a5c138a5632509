package main

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vmaxx/repetier-go/api"
	"github.com/vmaxx/repetier-go/device"
	"github.com/vmaxx/repetier-go/notify"
	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/types"
)

const userAgent = "repetier-go/1.0"

// configPrefs reads preferences from the live config so PATCHes through the
// facade take effect without a restart.
type configPrefs struct{}

func (configPrefs) AutoPrint() bool   { return tool.GetCurrentConfig().Preferences.AutoPrint }
func (configPrefs) StoreOnSD() bool   { return tool.GetCurrentConfig().Preferences.StoreOnSD }
func (configPrefs) WebcamFlipY() bool { return tool.GetCurrentConfig().Preferences.WebcamFlipY }

func main() {
	cfg := tool.SetFlags()
	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	if cfg.UseAddress != "" {
		appCfg.Instance.Address = cfg.UseAddress
	}
	if cfg.UsePort > 0 {
		appCfg.Instance.Port = cfg.UsePort
	}
	if cfg.UseAPIKey != "" {
		appCfg.Instance.APIKey = cfg.UseAPIKey
	}
	if cfg.UseListenPort > 0 {
		appCfg.ListenPort = cfg.UseListenPort
	}
	tool.PersistAppConfig(&appCfg)

	tool.InitLogger()
	if cfg.Log == "" {
		tool.DefaultLogger.SetLevel(log.DebugLevel)
	} else {
		switch strings.ToLower(cfg.Log) {
		case "dev":
			tool.DefaultLogger.SetLevel(log.DebugLevel)
		case "prod":
			tool.DefaultLogger.SetLevel(log.InfoLevel)
		case "none":
			tool.DefaultLogger.SetLevel(log.FatalLevel)
		default:
			tool.DefaultLogger.Warnf("Unknown log mode %q, using debug level", cfg.Log)
			tool.DefaultLogger.SetLevel(log.DebugLevel)
		}
	}

	instance := appCfg.Instance
	endpoint := types.NewEndpoint(
		instance.ID,
		instance.Address,
		instance.Port,
		instance.Path,
		instance.UseHTTPS,
		instance.APIKey,
		instance.Username,
		instance.Password,
	)

	messages := notify.NewCenter()
	messages.Subscribe(func(n types.Notification) {
		tool.DefaultLogger.Debugf("Notification %s: %s", n.Event, n.Message.Text)
	})

	pollInterval := time.Duration(appCfg.Preferences.PollIntervalMs) * time.Millisecond
	dev := device.NewDevice(endpoint, messages, configPrefs{}, nil, userAgent, pollInterval)
	dev.Connect()
	defer dev.Disconnect()

	apiServer := api.NewServer(appCfg.ListenPort, dev)
	if err := apiServer.Start(); err != nil {
		tool.DefaultLogger.Fatalf("API server startup failed: %v", err)
	}
}

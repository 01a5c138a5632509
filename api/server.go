package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/vmaxx/repetier-go/api/controllers"
	"github.com/vmaxx/repetier-go/api/middlewares"
	"github.com/vmaxx/repetier-go/api/notifyhub"
	"github.com/vmaxx/repetier-go/device"
	"github.com/vmaxx/repetier-go/tool"
)

// Server is the local HTTP facade over one device: status and printer
// snapshots, job lifecycle, messages and a notify WebSocket for the host UI.
type Server struct {
	port   int
	dev    *device.Device
	hub    *notifyhub.Hub
	engine *gin.Engine
	server *http.Server
	mu     sync.RWMutex
}

// NewServer creates the API server for the given device and attaches the
// WebSocket hub to its message center.
func NewServer(port int, dev *device.Device) *Server {
	s := &Server{
		port: port,
		dev:  dev,
		hub:  notifyhub.New(),
	}
	dev.Messages().SetBroadcaster(s.hub)
	return s
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.Default()
	engine.Use(gin.Recovery())

	statusCtrl := controllers.NewStatusController(s.dev)
	jobCtrl := controllers.NewJobController(s.dev)
	messageCtrl := controllers.NewMessageController(s.dev.Messages())
	qrCtrl := controllers.NewQRCodeController(s.dev.Endpoint())
	configCtrl := controllers.NewConfigController()

	v1 := engine.Group("/api/repetier/v1", middlewares.OnlyAllowLocal)
	{
		v1.GET("/status", statusCtrl.HandleStatus)
		v1.GET("/printer", statusCtrl.HandlePrinter)
		v1.GET("/camera", statusCtrl.HandleCamera)
		v1.POST("/job/print", jobCtrl.HandlePrint)
		v1.POST("/job/queue", jobCtrl.HandleQueue)
		v1.POST("/job/pause", jobCtrl.HandlePause)
		v1.POST("/job/resume", jobCtrl.HandleResume)
		v1.POST("/job/cancel", jobCtrl.HandleCancel)
		v1.POST("/job/cancel-upload", jobCtrl.HandleCancelUpload)
		v1.POST("/commands", jobCtrl.HandleCommands)
		v1.GET("/messages", messageCtrl.HandleList)
		v1.POST("/messages/:id/actions/:action", messageCtrl.HandleTrigger)
		v1.GET("/create-qr-code", qrCtrl.HandleQRCode)
		v1.GET("/config", configCtrl.HandleGet)
		v1.PATCH("/config", configCtrl.HandlePatch)
		v1.GET("/notify-ws", notifyhub.HandleNotifyWS(s.hub))
	}

	return engine
}

// Start starts the HTTP server. Blocks until the server stops.
func (s *Server) Start() error {
	engine := s.setupRoutes()

	s.mu.Lock()
	s.engine = engine
	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: engine,
	}
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting API server on http://127.0.0.1:%d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

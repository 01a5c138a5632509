package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vmaxx/repetier-go/device"
	"github.com/vmaxx/repetier-go/notify"
	"github.com/vmaxx/repetier-go/types"
)

type testPrefs struct{}

func (testPrefs) AutoPrint() bool   { return true }
func (testPrefs) StoreOnSD() bool   { return false }
func (testPrefs) WebcamFlipY() bool { return false }

// setupRouter creates a test router with all device endpoints bound to a
// device pointing at the given backend.
func setupRouter(t *testing.T, backend *httptest.Server) (*gin.Engine, *device.Device) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	u, err := url.Parse(backend.URL)
	if err != nil {
		t.Fatalf("Failed to parse backend URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("Failed to parse backend port: %v", err)
	}
	endpoint := types.NewEndpoint("p", u.Hostname(), port, "/", false, "key", "", "")
	dev := device.NewDevice(endpoint, notify.NewCenter(), testPrefs{}, nil, "test-agent", time.Second)

	router := gin.New()
	statusCtrl := NewStatusController(dev)
	jobCtrl := NewJobController(dev)
	messageCtrl := NewMessageController(dev.Messages())
	qrCtrl := NewQRCodeController(endpoint)

	v1 := router.Group("/api/repetier/v1")
	{
		v1.GET("/status", statusCtrl.HandleStatus)
		v1.GET("/printer", statusCtrl.HandlePrinter)
		v1.GET("/camera", statusCtrl.HandleCamera)
		v1.POST("/job/print", jobCtrl.HandlePrint)
		v1.POST("/commands", jobCtrl.HandleCommands)
		v1.GET("/messages", messageCtrl.HandleList)
		v1.POST("/messages/:id/actions/:action", messageCtrl.HandleTrigger)
		v1.GET("/create-qr-code", qrCtrl.HandleQRCode)
	}
	return router, dev
}

// TestHandleStatus tests the status endpoint shape
func TestHandleStatus(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()
	router, _ := setupRouter(t, backend)

	req, _ := http.NewRequest("GET", "/api/repetier/v1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["state"] != "closed" {
		t.Errorf("Expected closed state before connect, got %v", response["state"])
	}
	if _, ok := response["acceptsCommands"]; !ok {
		t.Error("Response should contain acceptsCommands")
	}
}

// TestHandlePrinter tests the printer snapshot endpoint
func TestHandlePrinter(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()
	router, _ := setupRouter(t, backend)

	req, _ := http.NewRequest("GET", "/api/repetier/v1/printer", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if _, ok := response["data"]; !ok {
		t.Error("Response should contain data")
	}
}

// TestHandleCameraMissing tests the no-camera case
func TestHandleCameraMissing(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()
	router, _ := setupRouter(t, backend)

	req, _ := http.NewRequest("GET", "/api/repetier/v1/camera", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a camera, got %d", w.Code)
	}
}

// TestHandlePrintInvalidBody tests request validation
func TestHandlePrintInvalidBody(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()
	router, _ := setupRouter(t, backend)

	req, _ := http.NewRequest("POST", "/api/repetier/v1/job/print", bytes.NewBufferString("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

// TestHandlePrint tests a job submission reaching the backend
func TestHandlePrint(t *testing.T) {
	uploaded := make(chan string, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "upload") {
			uploaded <- r.URL.Query().Get("name")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()
	router, _ := setupRouter(t, backend)

	body, _ := json.Marshal(printRequest{JobName: "benchy", GCode: []string{"G28\n"}})
	req, _ := http.NewRequest("POST", "/api/repetier/v1/job/print", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	select {
	case name := <-uploaded:
		if name != "benchy.gcode" {
			t.Errorf("Expected benchy.gcode, got %s", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the upload")
	}
}

// TestHandleCommandsEmpty tests the empty command list rejection
func TestHandleCommandsEmpty(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()
	router, _ := setupRouter(t, backend)

	req, _ := http.NewRequest("POST", "/api/repetier/v1/commands", bytes.NewBufferString(`{"commands":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

// TestHandleMessagesAndTrigger tests listing and triggering message actions
func TestHandleMessagesAndTrigger(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()
	router, dev := setupRouter(t, backend)

	fired := false
	id := dev.Messages().Show(types.UIMessage{
		Type:    types.MessageTypeError,
		Text:    "busy",
		Actions: []types.MessageAction{{ID: types.ActionQueue, Label: "Queue"}},
	}, map[string]func(){
		types.ActionQueue: func() { fired = true },
	})

	req, _ := http.NewRequest("GET", "/api/repetier/v1/messages", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "busy") {
		t.Errorf("Expected the message in the list, got %d: %s", w.Code, w.Body.String())
	}

	req, _ = http.NewRequest("POST", "/api/repetier/v1/messages/"+id+"/actions/"+types.ActionQueue, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 trigger, got %d", w.Code)
	}
	if !fired {
		t.Error("Expected the action handler to run")
	}

	req, _ = http.NewRequest("POST", "/api/repetier/v1/messages/unknown/actions/"+types.ActionQueue, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown message, got %d", w.Code)
	}
}

// TestHandleQRCode tests the PNG rendering
func TestHandleQRCode(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()
	router, _ := setupRouter(t, backend)

	req, _ := http.NewRequest("GET", "/api/repetier/v1/create-qr-code?size=128", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("Expected a PNG payload")
	}
}

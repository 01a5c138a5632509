package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestUploadGCodeForm tests the multipart shape of an auto-print upload
func TestUploadGCodeForm(t *testing.T) {
	var gotQuery string
	var gotFields map[string][]string
	var gotFileName, gotFileContent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			return
		}
		gotFields = r.MultipartForm.Value
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing file part: %v", err)
			return
		}
		defer file.Close()
		gotFileName = header.Filename
		content, _ := io.ReadAll(file)
		gotFileContent = string(content)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(testEndpoint(t, ts, "p"), "test", ts.Client())
	resp, err := client.UploadGCode(context.Background(), []byte("G28\nG1 X10\n"), UploadOptions{
		FileName:    "my job.gcode",
		Destination: "local",
		AutoPrint:   true,
	})
	if err != nil {
		t.Fatalf("UploadGCode failed: %v", err)
	}
	if !resp.OK() {
		t.Errorf("Expected 2xx, got %d", resp.StatusCode)
	}
	if gotQuery != "a=upload&name=my+job.gcode" {
		t.Errorf("Unexpected query: %s", gotQuery)
	}
	if got := gotFields["a"]; len(got) != 1 || got[0] != "upload" {
		t.Errorf("Unexpected a field: %v", got)
	}
	// The auto-print path carries an extra field named after the file.
	if got := gotFields["my job.gcode"]; len(got) != 1 || got[0] != "upload" {
		t.Errorf("Expected the auto-print marker field, got %v", gotFields)
	}
	if gotFileName != "my job.gcode" {
		t.Errorf("Unexpected file name: %s", gotFileName)
	}
	if gotFileContent != "G28\nG1 X10\n" {
		t.Errorf("Unexpected file content: %q", gotFileContent)
	}
}

// TestUploadGCodeQueuedOmitsMarker tests that the queued path skips the
// auto-print field
func TestUploadGCodeQueuedOmitsMarker(t *testing.T) {
	var gotFields map[string][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			return
		}
		gotFields = r.MultipartForm.Value
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(testEndpoint(t, ts, "p"), "test", ts.Client())
	_, err := client.UploadGCode(context.Background(), []byte("G28\n"), UploadOptions{
		FileName:    "job.gcode",
		AutoPrint:   true,
		ForcedQueue: true,
	})
	if err != nil {
		t.Fatalf("UploadGCode failed: %v", err)
	}
	if _, ok := gotFields["job.gcode"]; ok {
		t.Error("Queued upload must not carry the auto-print marker field")
	}
}

// TestUploadGCodeProgress tests that progress reaches 100%
func TestUploadGCodeProgress(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	var lastSent, total int64
	client := NewClient(testEndpoint(t, ts, "p"), "test", ts.Client())
	_, err := client.UploadGCode(context.Background(), []byte(strings.Repeat("G1 X1\n", 1000)), UploadOptions{
		FileName:  "job.gcode",
		AutoPrint: true,
		OnProgress: func(sent, t int64) {
			lastSent, total = sent, t
		},
	})
	if err != nil {
		t.Fatalf("UploadGCode failed: %v", err)
	}
	if total == 0 || lastSent != total {
		t.Errorf("Expected progress to complete, got %d/%d", lastSent, total)
	}
}

// TestUploadGCodeCancelled tests the cancellation error wrapping
func TestUploadGCodeCancelled(t *testing.T) {
	started := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(time.Second)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := NewClient(testEndpoint(t, ts, "p"), "test", ts.Client())
	_, err := client.UploadGCode(ctx, []byte("G28\n"), UploadOptions{FileName: "job.gcode", AutoPrint: true})
	if err == nil {
		t.Fatal("Expected a cancellation error")
	}
	if !strings.Contains(err.Error(), "upload cancelled") {
		t.Errorf("Expected a wrapped cancellation error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected the context error in the chain, got %v", err)
	}
}

package device

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/vmaxx/repetier-go/notify"
	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/transport"
	"github.com/vmaxx/repetier-go/types"
)

// RequestWrite starts a print from the injected g-code source for the given
// build plate. Without a source, or without g-code for the plate, it is a
// no-op.
func (d *Device) RequestWrite(buildPlate int) {
	if d.gcodeSrc == nil {
		return
	}
	gcode, ok := d.gcodeSrc.GCode(buildPlate)
	if !ok || len(gcode) == 0 {
		return
	}
	d.StartPrintJob(d.gcodeSrc.JobName(), gcode)
}

// StartPrintJob begins the print-submission state machine with the given
// job name and g-code lines.
func (d *Device) StartPrintJob(jobName string, gcode []string) {
	d.do(func() { d.startPrint(jobName, gcode) })
}

// QueuePrint uploads the held g-code for later printing, overriding the
// busy check.
func (d *Device) QueuePrint() {
	d.do(d.queuePrint)
}

// CancelUpload aborts an in-flight upload and hides the progress display.
// Safe to call when no upload is running or the transfer already completed.
func (d *Device) CancelUpload() {
	d.do(d.cancelUpload)
}

func (d *Device) startPrint(jobName string, gcode []string) {
	if d.errorMessageID != "" {
		d.messages.Hide(d.errorMessageID)
		d.errorMessageID = ""
	}
	if d.progressMessageID != "" {
		d.messages.Hide(d.progressMessageID)
		d.progressMessageID = ""
	}

	d.autoPrint = d.prefs == nil || d.prefs.AutoPrint()
	d.forcedQueue = false
	d.jobName = jobName
	d.gcode = gcode

	state := types.PrinterIdle
	if printer := d.reconciler.Printer(); printer != nil {
		state = printer.State
	}
	if state != types.PrinterIdle && state != "" {
		tool.DefaultLogger.Debugf("Tried starting a print, but current state is %s", state)
		switch {
		case !d.autoPrint:
			// Queueing on a busy printer is fine when auto-print is off.
		case state == types.PrinterOffline:
			d.errorMessageID = d.messages.Show(types.UIMessage{
				Type:     types.MessageTypeError,
				Text:     "The printer is offline. Unable to start a new job.",
				Progress: notify.NoProgress,
			}, nil)
			return
		default:
			d.errorMessageID = d.messages.Show(types.UIMessage{
				Type:     types.MessageTypeError,
				Text:     "Repetier is busy. Unable to start a new job.",
				Progress: notify.NoProgress,
				Actions: []types.MessageAction{{
					ID:      types.ActionQueue,
					Label:   "Queue job",
					Tooltip: "Queue this print job so it can be printed later",
				}},
			}, map[string]func(){
				types.ActionQueue: d.QueuePrint,
			})
			return
		}
	}

	d.startUpload()
}

func (d *Device) queuePrint() {
	if d.errorMessageID != "" {
		d.messages.Hide(d.errorMessageID)
		d.errorMessageID = ""
	}
	d.forcedQueue = true
	d.startUpload()
}

func (d *Device) startUpload() {
	jobName := strings.TrimSpace(d.jobName)
	if jobName == "" {
		jobName = "untitled_print"
	}
	fileName := jobName + ".gcode"
	tool.DefaultLogger.Debugf("Print job: [%s]", jobName)

	var payload strings.Builder
	for _, line := range d.gcode {
		payload.WriteString(line)
	}
	d.gcode = nil

	destination := "local"
	if d.reconciler.SDSupported() && d.prefs != nil && d.prefs.StoreOnSD() {
		destination = "sdcard"
	}

	d.uploadStoring = false
	d.progressMessageID = d.messages.Show(types.UIMessage{
		Type:     types.MessageTypeProgress,
		Text:     "Sending data to Repetier",
		Progress: 0,
		Actions:  []types.MessageAction{{ID: types.ActionCancel, Label: "Cancel"}},
	}, map[string]func(){
		types.ActionCancel: d.CancelUpload,
	})

	ctx, cancel := context.WithCancel(d.ctx)
	d.upload = &uploadState{cancel: cancel}

	// The routing flags are loop state; snapshot them here so the upload
	// goroutine never reads them while a later submission rewrites them.
	autoPrint, forcedQueue := d.autoPrint, d.forcedQueue
	data := []byte(payload.String())
	go func() {
		resp, err := d.client.UploadGCode(ctx, data, transport.UploadOptions{
			FileName:    fileName,
			Destination: destination,
			AutoPrint:   autoPrint,
			ForcedQueue: forcedQueue,
			OnProgress: func(sent, total int64) {
				d.do(func() { d.onUploadProgress(sent, total) })
			},
		})
		cancel()
		d.do(func() { d.onUploadFinished(resp, err, forcedQueue || !autoPrint) })
	}()
}

// onUploadProgress mirrors transfer progress into the progress message.
// Reaching 100% swaps the display to a storing message; progress also counts
// as liveness so long uploads do not trip the silence detector.
func (d *Device) onUploadProgress(sent, total int64) {
	if d.progressMessageID == "" {
		return
	}
	if total <= 0 {
		d.messages.SetProgress(d.progressMessageID, 0)
		return
	}
	d.lastResponseTime = time.Now()

	progress := float64(sent) / float64(total) * 100
	if progress < 100 {
		d.messages.SetProgress(d.progressMessageID, progress)
		return
	}
	if !d.uploadStoring {
		d.uploadStoring = true
		d.messages.Hide(d.progressMessageID)
		d.progressMessageID = d.messages.Show(types.UIMessage{
			Type:     types.MessageTypeProgress,
			Text:     "Storing data on Repetier",
			Progress: notify.NoProgress,
		}, nil)
	}
}

func (d *Device) onUploadFinished(resp *transport.Response, err error, stored bool) {
	cancelled := d.upload != nil && d.upload.cancelled
	d.upload = nil

	if cancelled || errors.Is(err, context.Canceled) {
		// cancelUpload already hid the progress display.
		return
	}

	if d.progressMessageID != "" {
		d.messages.Hide(d.progressMessageID)
		d.progressMessageID = ""
	}

	if err != nil {
		d.trackResponse(err)
		if d.ctx.Err() != nil {
			return
		}
		d.errorMessageID = d.messages.Show(types.UIMessage{
			Type:     types.MessageTypeError,
			Text:     "Unable to send data to Repetier.",
			Progress: notify.NoProgress,
		}, nil)
		return
	}
	d.trackResponse(nil)
	d.onUploadResponse(resp, stored)
}

// onUploadResponse handles the upload's HTTP outcome. stored is the routing
// decision taken at submit time: true when the file went to the model store
// rather than straight into a print.
func (d *Device) onUploadResponse(resp *transport.Response, stored bool) {
	if !resp.OK() {
		tool.DefaultLogger.Warnf("Upload returned status %d", resp.StatusCode)
		d.errorMessageID = d.messages.Show(types.UIMessage{
			Type:     types.MessageTypeError,
			Text:     "Unable to send data to Repetier.",
			Progress: notify.NoProgress,
		}, nil)
		return
	}

	if stored {
		text := "Saved to Repetier"
		if resp.Location != "" {
			text = "Saved to Repetier as " + path.Base(resp.Location)
		}
		webURL := d.endpoint.BaseURL()
		d.messages.Show(types.UIMessage{
			Type:     types.MessageTypeConfirmation,
			Text:     text,
			Progress: notify.NoProgress,
			Actions: []types.MessageAction{{
				ID:      types.ActionOpenBrowser,
				Label:   "Open Repetier...",
				Tooltip: "Open the Repetier web interface",
			}},
		}, map[string]func(){
			types.ActionOpenBrowser: func() {
				d.messages.Announce(types.Notification{
					Event: "open-url",
					Data:  map[string]any{"url": webURL},
				})
			},
		})
	}
	d.forcedQueue = false
}

func (d *Device) cancelUpload() {
	if d.upload != nil && !d.upload.cancelled {
		tool.DefaultLogger.Debugf("Stopping upload because the user pressed cancel.")
		d.upload.cancelled = true
		d.upload.cancel()
	}
	if d.progressMessageID != "" {
		d.messages.Hide(d.progressMessageID)
		d.progressMessageID = ""
	}
}

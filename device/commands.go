package device

import (
	"net/http"

	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/transport"
	"github.com/vmaxx/repetier-go/types"
)

// SendCommand queues a g-code command. Commands submitted in quick
// succession coalesce into a single batched request, in submission order.
func (d *Device) SendCommand(command string) {
	d.do(func() { d.enqueueCommand(command) })
}

func (d *Device) enqueueCommand(command string) {
	d.pendingCommands = append(d.pendingCommands, command)
	d.scheduleFlush()
}

// scheduleFlush arms at most one pending flush. The flush runs after the
// current event finishes, so every command enqueued during the same handler
// run joins one batch. scheduleFlush executes on the loop and defers through
// post rather than the events channel.
func (d *Device) scheduleFlush() {
	if d.flushScheduled {
		return
	}
	d.flushScheduled = true
	d.post(d.flushQueuedCommands)
}

// flushQueuedCommands drains the pending queue into one network call. At
// most one command send is in flight at a time; a batch arriving while one
// is outstanding waits for its completion.
func (d *Device) flushQueuedCommands() {
	d.flushScheduled = false
	if d.commandInFlight || len(d.pendingCommands) == 0 {
		return
	}
	commands := d.pendingCommands
	d.pendingCommands = nil

	body, err := types.EncodeCommandBatch(commands)
	if err != nil {
		tool.DefaultLogger.Warnf("Failed to encode command batch: %v", err)
		return
	}
	d.commandInFlight = true
	go func() {
		if err := d.cmdLimiter.Wait(d.ctx); err != nil {
			d.do(func() { d.commandInFlight = false })
			return
		}
		resp, err := d.client.Post(d.ctx, targetSend, body)
		d.do(func() { d.onRequestFinished(targetSend, resp, err) })
	}()
}

// onCommandFinished completes a batched send and releases the single-flight
// slot, flushing anything that queued up meanwhile.
func (d *Device) onCommandFinished(resp *transport.Response) {
	d.commandInFlight = false
	if resp.StatusCode == http.StatusNoContent || resp.OK() {
		tool.DefaultLogger.Debugf("Repetier command accepted")
	} else {
		tool.DefaultLogger.Warnf("Command send returned status %d", resp.StatusCode)
	}
	if len(d.pendingCommands) > 0 {
		d.scheduleFlush()
	}
}

// onControlFinished completes a single control command. Control commands do
// not occupy the batch single-flight slot.
func (d *Device) onControlFinished(resp *transport.Response, err error) {
	if !d.trackResponse(err) {
		return
	}
	if resp.StatusCode == http.StatusNoContent || resp.OK() {
		tool.DefaultLogger.Debugf("Repetier command accepted")
	} else {
		tool.DefaultLogger.Warnf("Control command returned status %d", resp.StatusCode)
	}
}

// PausePrint pauses the active job.
func (d *Device) PausePrint() {
	d.do(func() {
		if d.activeJob() == nil {
			return
		}
		d.sendJobCommand("pause")
	})
}

// ResumePrint resumes a paused job; on a job that is not paused it acts as a
// pause toggle.
func (d *Device) ResumePrint() {
	d.do(func() {
		job := d.activeJob()
		if job == nil {
			return
		}
		if job.State == types.JobPaused {
			d.sendJobCommand("start")
		} else {
			d.sendJobCommand("pause")
		}
	})
}

// CancelPrint stops the active job.
func (d *Device) CancelPrint() {
	d.do(func() { d.sendJobCommand("cancel") })
}

func (d *Device) activeJob() *types.Job {
	printer := d.reconciler.Printer()
	if printer == nil {
		return nil
	}
	return printer.ActiveJob
}

// sendJobCommand issues a pause/resume/cancel control immediately; these are
// single user actions and skip the coalescing queue.
func (d *Device) sendJobCommand(command string) {
	switch command {
	case "pause":
		body, err := types.EncodeControlCommand("@pause")
		if err != nil {
			tool.DefaultLogger.Warnf("Failed to encode control command: %v", err)
			return
		}
		go func() {
			resp, err := d.client.Post(d.ctx, targetSend, body)
			d.do(func() { d.onControlFinished(resp, err) })
		}()
	case "start":
		d.fetch(targetContinue)
	case "cancel":
		d.fetch(targetStop)
	default:
		tool.DefaultLogger.Warnf("Unknown job command %q", command)
	}
}

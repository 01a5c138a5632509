package reconcile

import (
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/types"
)

// HandleJobList reconciles a listPrinter response: active-job identity,
// lifecycle state and time accounting.
func (r *Reconciler) HandleJobList(statusCode int, body []byte) {
	printer := r.ensurePrinter()

	if statusCode != http.StatusOK {
		r.markJobOffline()
		r.connectionTextf("Repetier on %s bad response", r.instanceKey())
		return
	}

	var entries []types.JobListEntry
	if len(body) > 0 {
		if err := sonic.Unmarshal(body, &entries); err != nil {
			tool.DefaultLogger.Warnf("Received invalid JSON from Repetier instance.")
			return
		}
	}
	if len(entries) == 0 {
		return
	}
	entry := entries[0]

	if printer.ActiveJob == nil {
		printer.ActiveJob = &types.Job{State: types.JobReady}
	}
	job := printer.ActiveJob

	state := types.JobReady
	if entry.Job != nil {
		if *entry.Job != "none" {
			job.Name = *entry.Job
			state = types.JobPrinting
			printer.State = types.PrinterPrinting
		} else {
			// Server reports no job: replace with a fresh instance so
			// progress and time fields reset.
			state = types.JobReady
			printer.State = types.PrinterIdle
			job = &types.Job{State: types.JobReady}
			printer.ActiveJob = job
		}
	}
	if entry.Paused != nil && bool(*entry.Paused) {
		state = types.JobPaused
		printer.State = types.PrinterPaused
	}
	job.State = state

	done := 0.0
	if entry.Done != nil {
		done = *entry.Done
	}
	if entry.Start != nil && *entry.Start != 0 {
		if entry.PrintTime != nil {
			job.TimeTotal = *entry.PrintTime
		}
		switch {
		case entry.PrintedTimeComp != nil && *entry.PrintedTimeComp != 0:
			job.TimeElapsed = *entry.PrintedTimeComp
		case done > 0 && entry.PrintTime != nil:
			job.TimeTotal = *entry.PrintTime * (done / 100)
		default:
			job.TimeTotal = 0
		}
		if entry.Job != nil && *entry.Job != "none" {
			job.Name = *entry.Job
		}
	} else {
		job.TimeElapsed = 0
		job.TimeTotal = 0
	}
}

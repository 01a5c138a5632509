package reconcile

import (
	"fmt"

	"github.com/vmaxx/repetier-go/types"
)

// ConnectionNotifier feeds reconciliation outcomes back into the connection
// tracker. Implemented by the device.
type ConnectionNotifier interface {
	ConnectionState() types.ConnectionState
	SetConnectionState(state types.ConnectionState)
	SetConnectionText(text string)
	AcceptsCommands() bool
	SetAcceptsCommands(accepts bool)
}

// PreferenceProvider exposes the host-application preferences the reconciler
// consults.
type PreferenceProvider interface {
	WebcamFlipY() bool
}

// Reconciler merges freshly parsed server snapshots into the persistent
// in-memory model. All methods run on the device event loop, one at a time.
type Reconciler struct {
	endpoint *types.Endpoint
	notifier ConnectionNotifier
	prefs    PreferenceProvider

	printer      *types.Printer
	numExtruders int

	camera      types.Camera
	sdSupported bool

	// onCameraOrientation fires whenever the camera descriptor changes.
	onCameraOrientation func(camera types.Camera)
}

func NewReconciler(endpoint *types.Endpoint, notifier ConnectionNotifier, prefs PreferenceProvider) *Reconciler {
	return &Reconciler{
		endpoint:     endpoint,
		notifier:     notifier,
		prefs:        prefs,
		numExtruders: 1,
	}
}

// OnCameraOrientation registers the camera-orientation observer.
func (r *Reconciler) OnCameraOrientation(fn func(camera types.Camera)) {
	r.onCameraOrientation = fn
}

// Printer returns the reconciled model, or nil before the first response.
func (r *Reconciler) Printer() *types.Printer { return r.printer }

// SDSupported reports whether the server advertises SD-card storage.
func (r *Reconciler) SDSupported() bool { return r.sdSupported }

// Camera returns the current camera descriptor.
func (r *Reconciler) Camera() types.Camera { return r.camera }

// Reset discards the model; the next connect rebuilds it from scratch.
func (r *Reconciler) Reset() {
	r.printer = nil
	r.numExtruders = 1
	r.camera = types.Camera{}
	r.sdSupported = false
}

// ensurePrinter creates the printer model on demand, reattaching a
// previously resolved camera.
func (r *Reconciler) ensurePrinter() *types.Printer {
	if r.printer == nil {
		r.rebuildPrinter()
	}
	return r.printer
}

// rebuildPrinter recreates the printer with the current extruder count,
// preserving identity-level fields and reattaching the camera.
func (r *Reconciler) rebuildPrinter() {
	printer := types.NewPrinter(r.endpoint.ID, r.numExtruders)
	printer.SDSupported = r.sdSupported
	if r.printer != nil {
		printer.State = r.printer.State
		printer.ActiveJob = r.printer.ActiveJob
	}
	if r.camera.StreamURL != "" {
		cam := r.camera
		printer.Camera = &cam
	}
	r.printer = printer
}

// markJobOffline downgrades the active job, if any, to offline.
func (r *Reconciler) markJobOffline() {
	if r.printer != nil && r.printer.ActiveJob != nil {
		r.printer.ActiveJob.State = types.JobOffline
	}
}

// markPrinterOffline downgrades printer and active job to offline.
func (r *Reconciler) markPrinterOffline() {
	if r.printer == nil {
		return
	}
	r.printer.State = types.PrinterOffline
	r.markJobOffline()
}

// Snapshot returns a deep copy of the model for cross-goroutine readers.
func (r *Reconciler) Snapshot() types.Printer {
	if r.printer == nil {
		return types.Printer{State: types.PrinterOffline}
	}
	snapshot := *r.printer
	snapshot.Extruders = make([]*types.Extruder, len(r.printer.Extruders))
	for i, e := range r.printer.Extruders {
		extruder := *e
		snapshot.Extruders[i] = &extruder
	}
	if r.printer.ActiveJob != nil {
		job := *r.printer.ActiveJob
		snapshot.ActiveJob = &job
	}
	if r.printer.Camera != nil {
		cam := *r.printer.Camera
		snapshot.Camera = &cam
	}
	return snapshot
}

func (r *Reconciler) instanceKey() string {
	return r.endpoint.SanitizedID()
}

func (r *Reconciler) connectionTextf(format string, args ...any) {
	r.notifier.SetConnectionText(fmt.Sprintf(format, args...))
}

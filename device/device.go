package device

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/vmaxx/repetier-go/notify"
	"github.com/vmaxx/repetier-go/reconcile"
	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/transport"
	"github.com/vmaxx/repetier-go/types"
)

// Target names of the Repetier-Server API actions this device issues.
const (
	targetStateList = "stateList"
	targetJobList   = "listPrinter"
	targetConfig    = "getPrinterConfig"
	targetSend      = "send"
	targetContinue  = "continueJob"
	targetStop      = "stopJob"
)

const (
	defaultPollInterval = 2 * time.Second
	icmpProbeTimeout    = 2 * time.Second

	// Batched command flushes are paced, never dropped; bursts beyond the
	// coalescing window queue up behind the limiter.
	commandFlushRate  = 10
	commandFlushBurst = 20
)

// PreferenceProvider exposes the host-application preferences, read at call
// time rather than captured at construction.
type PreferenceProvider interface {
	AutoPrint() bool
	StoreOnSD() bool
	WebcamFlipY() bool
}

// GCodeSource hands over already-sliced g-code keyed by build-plate id.
type GCodeSource interface {
	GCode(buildPlate int) ([]string, bool)
	JobName() string
}

type uploadState struct {
	cancel    context.CancelFunc
	cancelled bool
}

// Device drives one connection to a Repetier-Server instance: polling,
// reconciliation, the print-job lifecycle and command dispatch. All model
// mutation happens on a single event-loop goroutine; exported methods post
// closures into that loop and are safe from any goroutine.
type Device struct {
	endpoint   *types.Endpoint
	client     *transport.Client
	reconciler *reconcile.Reconciler
	messages   *notify.Center
	prefs      PreferenceProvider
	gcodeSrc   GCodeSource

	pollInterval time.Duration

	events   chan func()
	deferred []func() // loop-internal posts, owned by the loop goroutine
	done     chan struct{}
	started  atomic.Bool
	closed   atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc

	// probe answers whether the instance host is reachable at all; swapped
	// out in tests.
	probe func(host string, timeout time.Duration) bool

	state              types.ConnectionState
	stateBeforeTimeout *types.ConnectionState
	connectionText     string
	acceptsCommands    bool
	lastResponseTime   time.Time

	autoPrint   bool
	forcedQueue bool
	jobName     string
	gcode       []string

	pendingCommands []string
	flushScheduled  bool
	commandInFlight bool
	cmdLimiter      *rate.Limiter

	upload            *uploadState
	uploadStoring     bool
	progressMessageID string
	errorMessageID    string
}

// NewDevice wires a device for the given endpoint. prefs and gcodeSrc may be
// nil when the caller drives prints through StartPrintJob directly.
func NewDevice(endpoint *types.Endpoint, messages *notify.Center, prefs PreferenceProvider, gcodeSrc GCodeSource, userAgent string, pollInterval time.Duration) *Device {
	if messages == nil {
		messages = notify.NewCenter()
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if userAgent == "" {
		userAgent = "repetier-go/1.0"
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Device{
		endpoint:     endpoint,
		messages:     messages,
		prefs:        prefs,
		gcodeSrc:     gcodeSrc,
		pollInterval: pollInterval,
		events:       make(chan func(), 128),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		state:        types.ConnectionClosed,
		autoPrint:    true,
		probe:        tool.QuickICMPProbe,
		cmdLimiter:   rate.NewLimiter(rate.Limit(commandFlushRate), commandFlushBurst),
	}
	d.client = transport.NewClient(endpoint, userAgent, nil)
	d.reconciler = reconcile.NewReconciler(endpoint, d, prefsOrDefault{prefs})
	d.reconciler.OnCameraOrientation(func(camera types.Camera) {
		d.messages.Announce(types.Notification{
			Event: "camera-orientation",
			Data: map[string]any{
				"mirror":   camera.Mirror,
				"rotation": camera.Rotation,
			},
		})
	})
	return d
}

// prefsOrDefault keeps the reconciler free of nil checks.
type prefsOrDefault struct{ p PreferenceProvider }

func (w prefsOrDefault) WebcamFlipY() bool {
	return w.p != nil && w.p.WebcamFlipY()
}

// Messages returns the outbound message center.
func (d *Device) Messages() *notify.Center { return d.messages }

// Endpoint returns the immutable instance endpoint.
func (d *Device) Endpoint() *types.Endpoint { return d.endpoint }

// Connect starts the event loop and polling, issues the first status fetches
// immediately and requests the server configuration once.
func (d *Device) Connect() {
	if d.closed.Load() || !d.started.CompareAndSwap(false, true) {
		return
	}
	go d.run()
	d.do(func() {
		d.setConnectionState(types.ConnectionConnecting)
		d.setAcceptsCommandsLocked(false)
		d.setConnectionTextLocked("Connecting to Repetier on " + d.endpoint.BaseURL())
		tool.DefaultLogger.Debugf("Connection with instance %s with url %s started", d.endpoint.SanitizedID(), d.endpoint.BaseURL())
		d.fetch(targetConfig)
		d.update()
	})
	go func() {
		if d.probe(d.endpoint.Address, icmpProbeTimeout) {
			tool.DefaultLogger.Debugf("Instance host %s answers ICMP", d.endpoint.Address)
		} else {
			tool.DefaultLogger.Debugf("Instance host %s did not answer ICMP", d.endpoint.Address)
		}
	}()
}

// Disconnect drives the connection to closed and stops polling. The device
// is not reusable afterwards; reconnection builds a fresh device.
func (d *Device) Disconnect() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	tool.DefaultLogger.Debugf("Connection with instance %s with url %s stopped", d.endpoint.SanitizedID(), d.endpoint.BaseURL())
	d.do(func() {
		d.cancelUpload()
		if d.errorMessageID != "" {
			d.messages.Hide(d.errorMessageID)
			d.errorMessageID = ""
		}
		d.setAcceptsCommandsLocked(false)
		d.setConnectionState(types.ConnectionClosed)
		d.reconciler.Reset()
		close(d.done)
		d.cancel()
	})
}

// run is the single event-processing goroutine: poll ticks and posted
// closures, never concurrently.
func (d *Device) run() {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			// Drain whatever was posted before close.
			for {
				d.runDeferred()
				select {
				case fn := <-d.events:
					fn()
				default:
					return
				}
			}
		case fn := <-d.events:
			fn()
			d.runDeferred()
		case <-ticker.C:
			d.update()
			d.runDeferred()
		}
	}
}

// do posts fn to the event loop. Before Connect the loop is not running, so
// fn runs inline (nothing else can touch the model yet). Must not be called
// from the loop goroutine itself: with a full events channel that would wedge
// the loop. Loop-internal code uses post instead.
func (d *Device) do(fn func()) {
	if !d.started.Load() {
		fn()
		return
	}
	select {
	case d.events <- fn:
	case <-d.done:
	}
}

// post defers fn until the current event finishes. Only for calls made from
// the loop goroutine; the deferred list is unbounded so the loop can never
// block on itself.
func (d *Device) post(fn func()) {
	if !d.started.Load() {
		fn()
		return
	}
	d.deferred = append(d.deferred, fn)
}

func (d *Device) runDeferred() {
	for len(d.deferred) > 0 {
		queue := d.deferred
		d.deferred = nil
		for _, fn := range queue {
			fn()
		}
	}
}

// call posts fn and waits for it, for cross-goroutine reads of the model.
func (d *Device) call(fn func()) bool {
	if !d.started.Load() {
		fn()
		return true
	}
	ran := make(chan struct{})
	select {
	case d.events <- func() { fn(); close(ran) }:
	case <-d.done:
		return false
	}
	select {
	case <-ran:
		return true
	case <-d.done:
		return false
	}
}

// update issues the recurring status fetches. The config fetch happens once
// at connect time only.
func (d *Device) update() {
	d.fetch(targetStateList)
	d.fetch(targetJobList)
}

// fetch runs one GET in its own goroutine and posts the result back.
func (d *Device) fetch(target string) {
	go func() {
		resp, err := d.client.Get(d.ctx, target)
		d.do(func() { d.onRequestFinished(target, resp, err) })
	}()
}

// trackResponse feeds one exchange into the connection tracker: timeouts
// remember the pre-timeout state and transition to error; the next clean
// response restores it. Reports whether the response should be dispatched.
func (d *Device) trackResponse(err error) bool {
	if err != nil && d.ctx.Err() != nil {
		return false // shutting down
	}
	if err != nil {
		if transport.IsTimeout(err) {
			tool.DefaultLogger.Warnf("Received a timeout on a request to the instance")
		} else {
			tool.DefaultLogger.Warnf("Transport error on a request to the instance: %v", err)
		}
		if d.stateBeforeTimeout == nil {
			state := d.state
			d.stateBeforeTimeout = &state
			// Only with the loop live; the verdict has to land serialized.
			if d.started.Load() {
				d.diagnoseSilence()
			}
		}
		d.setConnectionState(types.ConnectionError)
		return false
	}

	if d.stateBeforeTimeout != nil {
		if !d.lastResponseTime.IsZero() {
			tool.DefaultLogger.Debugf("We got a response from the instance after %s of silence", time.Since(d.lastResponseTime).Round(time.Millisecond))
		}
		d.setConnectionState(*d.stateBeforeTimeout)
		d.stateBeforeTimeout = nil
	}
	d.lastResponseTime = time.Now()
	return true
}

// diagnoseSilence runs once per silence episode, when the first error flips
// the tracker into the error state. An ICMP probe separates a host that went
// away from a Repetier service that stopped answering; the verdict lands back
// on the loop unless the connection recovered in the meantime.
func (d *Device) diagnoseSilence() {
	go func() {
		reachable := d.probe(d.endpoint.Address, icmpProbeTimeout)
		d.do(func() {
			if d.stateBeforeTimeout == nil {
				return
			}
			if reachable {
				d.setConnectionTextLocked("Repetier on " + d.endpoint.Address + " is not responding")
			} else {
				d.setConnectionTextLocked("The host " + d.endpoint.Address + " is unreachable")
			}
		})
	}()
}

// onRequestFinished is the single dispatch point for all responses: silence
// detection and recovery first, then routing by target identity.
func (d *Device) onRequestFinished(target string, resp *transport.Response, err error) {
	if !d.trackResponse(err) {
		return
	}

	switch {
	case target == targetStateList:
		d.reconciler.HandleState(resp.StatusCode, resp.Body)
	case target == targetJobList:
		d.reconciler.HandleJobList(resp.StatusCode, resp.Body)
	case target == targetConfig:
		d.reconciler.HandleConfig(resp.StatusCode, resp.Body)
	case target == targetSend:
		d.onCommandFinished(resp)
	case target == targetContinue, target == targetStop:
		if !resp.OK() {
			tool.DefaultLogger.Warnf("Job command %s returned status %d", target, resp.StatusCode)
		}
	default:
		tool.DefaultLogger.Debugf("Unhandled response for target %s", target)
	}
}

// setConnectionState transitions the tracker and announces the change.
func (d *Device) setConnectionState(state types.ConnectionState) {
	if d.state == state {
		return
	}
	d.state = state
	tool.DefaultLogger.Debugf("Connection state of %s is now %s", d.endpoint.SanitizedID(), state)
	d.messages.Announce(types.Notification{
		Event: "connection",
		Data:  map[string]any{"state": state.String(), "text": d.connectionText},
	})
}

func (d *Device) setConnectionTextLocked(text string) {
	if d.connectionText == text {
		return
	}
	d.connectionText = text
	d.messages.Announce(types.Notification{
		Event: "connection",
		Data:  map[string]any{"state": d.state.String(), "text": text},
	})
}

func (d *Device) setAcceptsCommandsLocked(accepts bool) {
	d.acceptsCommands = accepts
}

// ConnectionState implements reconcile.ConnectionNotifier. Runs on the loop.
func (d *Device) ConnectionState() types.ConnectionState { return d.state }

// SetConnectionState implements reconcile.ConnectionNotifier.
func (d *Device) SetConnectionState(state types.ConnectionState) { d.setConnectionState(state) }

// SetConnectionText implements reconcile.ConnectionNotifier.
func (d *Device) SetConnectionText(text string) { d.setConnectionTextLocked(text) }

// AcceptsCommands implements reconcile.ConnectionNotifier.
func (d *Device) AcceptsCommands() bool { return d.acceptsCommands }

// SetAcceptsCommands implements reconcile.ConnectionNotifier.
func (d *Device) SetAcceptsCommands(accepts bool) { d.setAcceptsCommandsLocked(accepts) }

// StatusSnapshot is a point-in-time view of the connection tracker.
type StatusSnapshot struct {
	State           types.ConnectionState `json:"-"`
	StateName       string                `json:"state"`
	Text            string                `json:"text"`
	AcceptsCommands bool                  `json:"acceptsCommands"`
}

// Status returns the connection state, text and whether the instance
// currently accepts commands. Safe from any goroutine.
func (d *Device) Status() StatusSnapshot {
	var snapshot StatusSnapshot
	if !d.call(func() {
		snapshot = StatusSnapshot{
			State:           d.state,
			Text:            d.connectionText,
			AcceptsCommands: d.acceptsCommands,
		}
	}) {
		snapshot = StatusSnapshot{State: types.ConnectionClosed}
	}
	snapshot.StateName = snapshot.State.String()
	return snapshot
}

// PrinterSnapshot returns a deep copy of the reconciled printer model.
func (d *Device) PrinterSnapshot() types.Printer {
	var snapshot types.Printer
	if !d.call(func() { snapshot = d.reconciler.Snapshot() }) {
		return types.Printer{State: types.PrinterOffline}
	}
	return snapshot
}

// CameraOrientation returns the current camera descriptor.
func (d *Device) CameraOrientation() types.Camera {
	var camera types.Camera
	d.call(func() { camera = d.reconciler.Camera() })
	return camera
}

package reconcile

import (
	"encoding/json"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/types"
)

// HandleState reconciles a stateList response: extruder and bed telemetry,
// plus the connectivity promotion rules for 200/401/409.
func (r *Reconciler) HandleState(statusCode int, body []byte) {
	r.ensurePrinter()

	switch statusCode {
	case http.StatusOK:
		if !r.notifier.AcceptsCommands() {
			r.notifier.SetAcceptsCommands(true)
			r.connectionTextf("Connected to Repetier on %s", r.instanceKey())
		}
		if r.notifier.ConnectionState() == types.ConnectionConnecting {
			r.notifier.SetConnectionState(types.ConnectionConnected)
		}
		r.applyTelemetry(body)

	case http.StatusUnauthorized:
		r.markPrinterOffline()
		r.connectionTextf("Repetier on %s does not allow access to print", r.instanceKey())

	case http.StatusConflict:
		// The instance answered, it is just not operational.
		if r.notifier.ConnectionState() == types.ConnectionConnecting {
			r.notifier.SetConnectionState(types.ConnectionConnected)
		}
		r.markPrinterOffline()
		r.connectionTextf("The printer connected to Repetier on %s is not operational", r.instanceKey())

	default:
		r.markPrinterOffline()
		tool.DefaultLogger.Warnf("Received an unexpected returncode: %d", statusCode)
	}
}

// applyTelemetry parses the stateList body and updates temperatures. A
// malformed body degrades to an empty payload; a malformed per-printer record
// marks the job offline, never aborts the poll cycle.
func (r *Reconciler) applyTelemetry(body []byte) {
	payload := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := sonic.Unmarshal(body, &payload); err != nil {
			tool.DefaultLogger.Warnf("Received invalid JSON from Repetier instance.")
			payload = map[string]json.RawMessage{}
		}
	}

	record, ok := payload[r.instanceKey()]
	if !ok {
		return
	}
	var telemetry types.PrinterTelemetry
	if err := sonic.Unmarshal(record, &telemetry); err != nil {
		tool.DefaultLogger.Warnf("Received invalid JSON from Repetier instance.")
		r.markJobOffline()
		r.connectionTextf("Repetier on %s configuration is invalid", r.instanceKey())
		return
	}

	if telemetry.NumExtruder != nil && *telemetry.NumExtruder > 0 && *telemetry.NumExtruder != r.numExtruders {
		r.numExtruders = *telemetry.NumExtruder
		r.rebuildPrinter()
	}
	printer := r.printer

	for index, extruder := range printer.Extruders {
		if index < len(telemetry.Extruder) {
			reading := telemetry.Extruder[index]
			if reading.TempRead != nil {
				extruder.HotendTemperature = *reading.TempRead
			}
			if reading.TempSet != nil {
				extruder.TargetTemperature = *reading.TempSet
			}
		} else {
			// The server stopped reporting this tool.
			extruder.HotendTemperature = 0
			extruder.TargetTemperature = 0
		}
	}

	bed := telemetry.HeatedBed
	if bed == nil && len(telemetry.HeatedBeds) > 0 {
		bed = &telemetry.HeatedBeds[0]
	}
	if bed != nil {
		if bed.TempRead != nil {
			printer.BedTemperature = *bed.TempRead
		} else {
			printer.BedTemperature = -1
		}
		if bed.TempSet != nil {
			printer.TargetBedTemperature = *bed.TempSet
		} else {
			printer.TargetBedTemperature = -1
		}
	} else {
		printer.BedTemperature = -1
		printer.TargetBedTemperature = 0
		r.markJobOffline()
	}
}

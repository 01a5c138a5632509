package types

import (
	"bytes"
	"strconv"

	"github.com/bytedance/sonic"
)

// Wire shapes for the Repetier-Server responses. Fields drift between server
// versions, so everything optional is a pointer and absent fields stay nil.

// TemperatureReading is one tempRead/tempSet pair (extruder or heated bed).
type TemperatureReading struct {
	TempRead *float64 `json:"tempRead"`
	TempSet  *float64 `json:"tempSet"`
}

// PrinterTelemetry is the per-printer sub-object of the stateList response,
// keyed by the sanitized instance identifier.
type PrinterTelemetry struct {
	NumExtruder *int                 `json:"numExtruder"`
	Extruder    []TemperatureReading `json:"extruder"`
	HeatedBed   *TemperatureReading  `json:"heatedBed"`
	HeatedBeds  []TemperatureReading `json:"heatedBeds"`
}

// Truthy decodes JSON bool, number or string into a bool without failing the
// surrounding record. Older servers report paused as 0/1.
type Truthy bool

func (t *Truthy) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*t = false
	case bytes.Equal(data, []byte("true")):
		*t = true
	case bytes.Equal(data, []byte("false")):
		*t = false
	default:
		s := string(bytes.Trim(data, `"`))
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			*t = n != 0
			return nil
		}
		*t = s != "" && s != "none"
	}
	return nil
}

// JobListEntry is one element of the listPrinter response. The first element
// describes the active job; job == "none" means the printer is idle.
type JobListEntry struct {
	Job             *string  `json:"job"`
	Paused          *Truthy  `json:"paused"`
	Done            *float64 `json:"done"`
	Start           *float64 `json:"start"`
	PrintTime       *float64 `json:"printTime"`
	PrintedTimeComp *float64 `json:"printedTimeComp"`
}

// WebcamConfig is a single webcam entry, either the legacy webcam object or
// one element of the newer webcams list.
type WebcamConfig struct {
	DynamicURL *string `json:"dynamicUrl"`
}

// GeneralConfig is the general section of the getPrinterConfig response.
type GeneralConfig struct {
	SDCard *bool `json:"sdcard"`
}

// ServerConfig is the getPrinterConfig response, fetched once per connection.
type ServerConfig struct {
	General *GeneralConfig `json:"general"`
	Webcam  *WebcamConfig  `json:"webcam"`
	Webcams []WebcamConfig `json:"webcams"`
}

// CommandBatch is the body of a batched ?a=send request. Commands are sent in
// submission order as a single call.
type CommandBatch struct {
	Commands []string `json:"commands"`
}

// ControlCommand is the body of a single control command, e.g. @pause.
type ControlCommand struct {
	Cmd string `json:"cmd"`
}

// EncodeCommandBatch serializes a command batch for the wire.
func EncodeCommandBatch(commands []string) ([]byte, error) {
	return sonic.Marshal(CommandBatch{Commands: commands})
}

// EncodeControlCommand serializes a single control command for the wire.
func EncodeControlCommand(cmd string) ([]byte, error) {
	return sonic.Marshal(ControlCommand{Cmd: cmd})
}

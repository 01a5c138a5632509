package types

// PrinterState mirrors the state strings the host application understands.
type PrinterState string

const (
	PrinterIdle     PrinterState = "idle"
	PrinterPrinting PrinterState = "printing"
	PrinterPaused   PrinterState = "paused"
	PrinterOffline  PrinterState = "offline"
)

// JobState is the lifecycle state of the active print job.
type JobState string

const (
	JobReady    JobState = "ready"
	JobPrinting JobState = "printing"
	JobPaused   JobState = "paused"
	JobOffline  JobState = "offline"
)

// Extruder holds the last reported hotend temperatures for one tool index.
type Extruder struct {
	Index             int     `json:"index"`
	HotendTemperature float64 `json:"hotendTemperature"`
	TargetTemperature float64 `json:"targetTemperature"`
}

// Job is the at-most-one active print job of a printer. A fresh Job replaces
// the old one when the server reports no job, resetting progress and time.
type Job struct {
	Name        string   `json:"name"`
	State       JobState `json:"state"`
	TimeElapsed float64  `json:"timeElapsed"`
	TimeTotal   float64  `json:"timeTotal"`
}

// Camera describes the webcam stream derived from the server configuration.
type Camera struct {
	StreamURL   string `json:"streamUrl"`
	Mirror      bool   `json:"mirror"`
	Rotation    int    `json:"rotation"`
	SharesProxy bool   `json:"sharesProxy"`
}

// Printer is the reconciled in-memory model of the remote printer. It is
// created lazily on the first status response and rebuilt when the reported
// extruder count changes. All mutation happens on the device event loop.
type Printer struct {
	Name                 string       `json:"name"`
	State                PrinterState `json:"state"`
	BedTemperature       float64      `json:"bedTemperature"`
	TargetBedTemperature float64      `json:"targetBedTemperature"`
	Extruders            []*Extruder  `json:"extruders"`
	ActiveJob            *Job         `json:"activeJob,omitempty"`
	SDSupported          bool         `json:"sdSupported"`
	Camera               *Camera      `json:"camera,omitempty"`
}

// NewPrinter builds a printer with the given number of extruders.
func NewPrinter(name string, numExtruders int) *Printer {
	if numExtruders < 1 {
		numExtruders = 1
	}
	extruders := make([]*Extruder, numExtruders)
	for i := range extruders {
		extruders[i] = &Extruder{Index: i}
	}
	return &Printer{
		Name:      name,
		State:     PrinterIdle,
		Extruders: extruders,
	}
}

package events

import (
	"fmt"
	"io"
	"time"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

var vehiclePalette = []string{colorGreen, colorBlue, colorYellow, colorMagenta, colorCyan}

// ColorWriter prints events using ANSI colors, one line each.
type ColorWriter struct {
	out           io.Writer
	vehicleColors map[string]string
	colorIdx      int
}

// NewColorWriter creates a ColorWriter on out.
func NewColorWriter(out io.Writer) *ColorWriter {
	return &ColorWriter{out: out, vehicleColors: make(map[string]string)}
}

func (w *ColorWriter) vehicleColor(id string) string {
	if c, ok := w.vehicleColors[id]; ok {
		return c
	}
	c := vehiclePalette[w.colorIdx%len(vehiclePalette)]
	w.vehicleColors[id] = c
	w.colorIdx++
	return c
}

func (w *ColorWriter) prefix(ts time.Time, vehicle string) {
	fmt.Fprintf(w.out, "%s[%s]%s %s%s%s ", colorGray, ts.Format(time.RFC3339), colorReset,
		w.vehicleColor(vehicle), vehicle, colorReset)
}

// WriteStep prints a step transition.
func (w *ColorWriter) WriteStep(e StepEvent) error {
	w.prefix(e.Timestamp, e.VehicleID)
	phaseColor := colorCyan
	if e.Phase == PhaseEnd {
		phaseColor = colorGray
	}
	_, err := fmt.Fprintf(w.out, "%sSTEP %s%s #%d %s plan=%s t=%.1fs\n",
		phaseColor, e.Phase, colorReset, e.Step, e.Action, e.PlanID, e.MissionTime)
	return err
}

// WriteAbort prints a safety abort.
func (w *ColorWriter) WriteAbort(e AbortEvent) error {
	w.prefix(e.Timestamp, e.VehicleID)
	_, err := fmt.Fprintf(w.out, "%sABORT%s plan=%s step=%d reason=%q mode=%s dropped=%d\n",
		colorYellow, colorReset, e.PlanID, e.Step, e.Reason, e.Mode, e.Dropped)
	return err
}

// WriteFault prints an autopilot fault.
func (w *ColorWriter) WriteFault(e FaultEvent) error {
	w.prefix(e.Timestamp, e.VehicleID)
	_, err := fmt.Fprintf(w.out, "%sFAULT%s plan=%s step=%d err=%q recovered=%t\n",
		colorRed, colorReset, e.PlanID, e.Step, e.Error, e.Recovered)
	return err
}

// WriteDispatch prints an investigation dispatch.
func (w *ColorWriter) WriteDispatch(e DispatchEvent) error {
	w.prefix(e.Timestamp, e.SecondaryID)
	status, col := "sent", colorGreen
	if !e.OK() {
		status, col = "failed: "+e.Error, colorRed
	}
	_, err := fmt.Fprintf(w.out, "%sDISPATCH%s from=%s source=%d value=%.2f at=(%.6f,%.6f) offset=(%.1fN,%.1fE) attempts=%d %s%s%s\n",
		colorMagenta, colorReset, e.PrimaryID, e.SourceID, e.Value, e.Lat, e.Lon, e.North, e.East,
		e.Attempts, col, status, colorReset)
	return err
}

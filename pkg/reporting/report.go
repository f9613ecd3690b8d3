// Package reporting writes the artifacts of a drone-comms run: the message
// lifecycle log, per-step telemetry and the end-of-run report.
package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/picogrid/drone-comms-sim/pkg/comms"
	"github.com/picogrid/drone-comms-sim/pkg/logger"
	"github.com/picogrid/drone-comms-sim/pkg/physics"
)

// Color definitions
var (
	colorHeader  = color.New(color.FgCyan, color.Bold)
	colorSuccess = color.New(color.FgGreen)
	colorWarning = color.New(color.FgYellow)
	colorError   = color.New(color.FgRed)
	colorNode    = color.New(color.FgBlue, color.Bold)
)

// RunReport is the end-of-run record of a simulation
type RunReport struct {
	RunID          uuid.UUID            `json:"run_id"`
	Scenario       string               `json:"scenario"`
	Seed           uint64               `json:"seed"`
	GeneratedAt    time.Time            `json:"generated_at"`
	WallDuration   string               `json:"wall_duration"`
	Steps          int                  `json:"steps"`
	Summary        comms.Summary        `json:"summary"`
	AverageLatency *float64             `json:"average_latency,omitempty"`
	DeliveryRate   float64              `json:"delivery_rate"`
	Drones         []physics.DroneState `json:"drones"`
}

// NewRunReport builds a report from the final network summary and fleet state
func NewRunReport(runID uuid.UUID, scenario string, seed uint64, summary comms.Summary, drones []physics.DroneState) *RunReport {
	r := &RunReport{
		RunID:       runID,
		Scenario:    scenario,
		Seed:        seed,
		GeneratedAt: time.Now(),
		Summary:     summary,
		Drones:      drones,
	}
	if avg, ok := summary.AverageLatency(); ok {
		r.AverageLatency = &avg
	}
	if summary.Sent > 0 {
		r.DeliveryRate = float64(summary.Delivered) / float64(summary.Sent)
	}
	return r
}

// Print writes the human readable summary: delivery statistics followed by
// the contents of every endpoint inbox.
func (r *RunReport) Print(w io.Writer, noColor bool) {
	paint := func(c *color.Color, format string, args ...interface{}) string {
		if noColor {
			return fmt.Sprintf(format, args...)
		}
		return c.Sprintf(format, args...)
	}

	s := r.Summary
	fmt.Fprintf(w, "\n%s\n", paint(colorHeader, "=== Simulation Summary (t=%.3f) ===", s.FinalTime))
	fmt.Fprintf(w, "Run ID:             %s\n", r.RunID)
	fmt.Fprintf(w, "Messages sent:      %d\n", s.Sent)
	fmt.Fprintf(w, "Delivered messages: %s\n", paint(colorSuccess, "%d", s.Delivered))
	fmt.Fprintf(w, "Dropped messages:   %s\n", paint(colorWarning, "%d", s.Dropped))
	if s.Undeliverable > 0 {
		fmt.Fprintf(w, "Undeliverable:      %s\n", paint(colorError, "%d", s.Undeliverable))
	}
	if s.InFlight > 0 {
		fmt.Fprintf(w, "Still in flight:    %d\n", s.InFlight)
	}
	if r.AverageLatency != nil {
		fmt.Fprintf(w, "Average latency:    %.3f s\n", *r.AverageLatency)
	}

	fmt.Fprintf(w, "\nPer-node inbox contents:\n")
	for _, ep := range s.Endpoints {
		fmt.Fprintf(w, "Node %s:\n", paint(colorNode, "%s", ep.Name))
		for _, rec := range ep.Inbox {
			fmt.Fprintf(w, "  at t=%.3f  from=%s  id=%d  latency=%.3f  payload=%q\n",
				rec.ArrivalTime, rec.From, rec.MessageID, rec.Latency, rec.Payload)
		}
	}
}

// Table returns a per-endpoint overview suitable for logger.Table output
func (r *RunReport) Table() *logger.Table {
	t := logger.NewTable("Node", "Received", "Avg Latency")
	for _, ep := range r.Summary.Endpoints {
		avg := "-"
		if n := len(ep.Inbox); n > 0 {
			var total float64
			for _, rec := range ep.Inbox {
				total += rec.Latency
			}
			avg = fmt.Sprintf("%.3fs", total/float64(n))
		}
		t.AddRow(ep.Name, fmt.Sprintf("%d", len(ep.Inbox)), avg)
	}
	return t
}

// SaveJSON writes the report to path
func (r *RunReport) SaveJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

package reporting

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/picogrid/drone-comms-sim/pkg/physics"
)

// TelemetryLogHeader is the first line of every telemetry log
const TelemetryLogHeader = "time,drone_id,x,y,vx,vy"

// TelemetryLog writes one CSV row per drone per step
type TelemetryLog struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
}

// NewTelemetryLog writes the header to w and returns the log
func NewTelemetryLog(w io.Writer) (*TelemetryLog, error) {
	l := &TelemetryLog{w: bufio.NewWriter(w)}
	if _, err := l.w.WriteString(TelemetryLogHeader + "\n"); err != nil {
		return nil, fmt.Errorf("failed to write telemetry header: %w", err)
	}
	return l, nil
}

// CreateTelemetryLog creates (or truncates) the file at path
func CreateTelemetryLog(path string) (*TelemetryLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry log: %w", err)
	}
	l, err := NewTelemetryLog(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	l.closer = f
	return l, nil
}

// Write appends the state of every drone at simulation time t
func (l *TelemetryLog) Write(t float64, drones []physics.DroneState) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, d := range drones {
		row := strings.Join([]string{
			formatFloat(t),
			strconv.Itoa(d.ID),
			formatFloat(d.Position.X),
			formatFloat(d.Position.Y),
			formatFloat(d.Velocity.X),
			formatFloat(d.Velocity.Y),
		}, ",")
		if _, err := l.w.WriteString(row + "\n"); err != nil {
			return fmt.Errorf("failed to write telemetry row: %w", err)
		}
	}
	return nil
}

// Close flushes the log and closes the file opened by CreateTelemetryLog
func (l *TelemetryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.w.Flush(); err != nil {
		return err
	}
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

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

	"github.com/picogrid/drone-comms-sim/pkg/comms"
)

// CommsLogHeader is the first line of every comms log
const CommsLogHeader = "event,time,id,from,to,latency,dropped,payload"

// CommsLog writes message lifecycle events as CSV rows. It implements
// comms.EventSink.
type CommsLog struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	rows   int
}

// NewCommsLog writes the header to w and returns the log
func NewCommsLog(w io.Writer) (*CommsLog, error) {
	l := &CommsLog{w: bufio.NewWriter(w)}
	if _, err := l.w.WriteString(CommsLogHeader + "\n"); err != nil {
		return nil, fmt.Errorf("failed to write comms log header: %w", err)
	}
	return l, nil
}

// CreateCommsLog creates (or truncates) the file at path
func CreateCommsLog(path string) (*CommsLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create comms log: %w", err)
	}
	l, err := NewCommsLog(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	l.closer = f
	return l, nil
}

// Record appends one event row
func (l *CommsLog) Record(ev comms.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dropped := "0"
	if ev.Kind == comms.EventDropScheduled {
		dropped = "1"
	}

	row := strings.Join([]string{
		string(ev.Kind),
		formatFloat(ev.Time),
		strconv.FormatUint(ev.MessageID, 10),
		ev.From,
		ev.To,
		formatFloat(ev.Latency),
		dropped,
		quote(ev.Payload),
	}, ",")

	if _, err := l.w.WriteString(row + "\n"); err != nil {
		return fmt.Errorf("failed to write comms log row: %w", err)
	}
	l.rows++
	return nil
}

// Rows returns the number of event rows written
func (l *CommsLog) Rows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

// Flush writes buffered rows to the underlying writer
func (l *CommsLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Flush()
}

// Close flushes the log and closes the file opened by CreateCommsLog
func (l *CommsLog) Close() error {
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

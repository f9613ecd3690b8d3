package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Icons and symbols for different log types
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconRocket  = "🚀"
	IconConfig  = "⚙️"
	IconNetwork = "🌐"
	IconTime    = "⏱️"
	IconFile    = "📄"
	IconRefresh = "🔄"
	IconDot     = "•"
	IconArrow   = "→"
)

// Success logs a success message with a green checkmark
func Success(args ...interface{}) {
	message := fmt.Sprint(args...)
	defaultLogger.Info(IconSuccess + " " + message)
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Progress logs a progress message with a refresh icon
func Progress(args ...interface{}) {
	message := fmt.Sprint(args...)
	defaultLogger.Info(IconRefresh + " " + message)
}

// Progressf logs a formatted progress message
func Progressf(format string, args ...interface{}) {
	Progress(fmt.Sprintf(format, args...))
}

// Network logs a network-related message
func Network(args ...interface{}) {
	message := fmt.Sprint(args...)
	defaultLogger.Info(IconNetwork + " " + message)
}

// Networkf logs a formatted network message
func Networkf(format string, args ...interface{}) {
	Network(fmt.Sprintf(format, args...))
}

// defaultOutput returns the writer and color setting of the default logger
func defaultOutput() (io.Writer, bool) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		defer l.out.mu.Unlock()
		return l.out.writer, l.out.noColor
	}
	return os.Stdout, true
}

func paintIf(noColor bool, s string, attrs ...color.Attribute) string {
	if noColor {
		return s
	}
	return color.New(attrs...).Sprint(s)
}

// LogSection creates a visual section separator
func LogSection(title string) {
	w, noColor := defaultOutput()
	line := strings.Repeat("=", 50)

	_, _ = fmt.Fprintln(w, paintIf(noColor, line, color.FgCyan))
	_, _ = fmt.Fprintln(w, paintIf(noColor, title, color.FgCyan, color.Bold))
	_, _ = fmt.Fprintln(w, paintIf(noColor, line, color.FgCyan))
}

// LogSubSection creates a visual subsection separator
func LogSubSection(title string) {
	w, noColor := defaultOutput()
	line := strings.Repeat("-", 40)

	_, _ = fmt.Fprintln(w, paintIf(noColor, line, color.FgHiBlack))
	_, _ = fmt.Fprintln(w, paintIf(noColor, title, color.FgHiBlack))
	_, _ = fmt.Fprintln(w, paintIf(noColor, line, color.FgHiBlack))
}

// LogList logs a list of items with bullets
func LogList(title string, items []string) {
	w, _ := defaultOutput()
	Info(title)
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  %s %s\n", IconDot, item)
	}
}

// LogKeyValue logs a key-value pair with nice formatting
func LogKeyValue(key string, value interface{}) {
	w, noColor := defaultOutput()
	_, _ = fmt.Fprintf(w, "%s %v\n", paintIf(noColor, key+":", color.FgCyan), value)
}

// LogKeyValues logs multiple key-value pairs in key order
func LogKeyValues(pairs map[string]interface{}) {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		LogKeyValue(k, pairs[k])
	}
}

// Table represents a simple table for logging
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    [][]string{},
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Print prints the table to the default logger output
func (t *Table) Print() {
	w, _ := defaultOutput()
	t.Fprint(w)
}

// Fprint writes the table to w
func (t *Table) Fprint(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	// Calculate column widths
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, h := range t.headers {
		_, _ = fmt.Fprintf(w, "%-*s  ", widths[i], h)
	}
	_, _ = fmt.Fprintln(w)

	for i := range t.headers {
		_, _ = fmt.Fprint(w, strings.Repeat("-", widths[i])+"  ")
	}
	_, _ = fmt.Fprintln(w)

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				_, _ = fmt.Fprintf(w, "%-*s  ", widths[i], cell)
			}
		}
		_, _ = fmt.Fprintln(w)
	}
}

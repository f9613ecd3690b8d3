package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/picogrid/drone-comms-sim/pkg/comms"
	"github.com/picogrid/drone-comms-sim/pkg/geom"
	"github.com/picogrid/drone-comms-sim/pkg/logger"
	"github.com/picogrid/drone-comms-sim/pkg/physics"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{0.5, "0.5"},
		{1, "1.0"},
		{0.1 + 0.2, "0.3"},
		{12.3456789, "12.345679"},
		{-2.25, "-2.25"},
		{-0.0000001, "0.0"},
	}

	for _, tt := range tests {
		if got := formatFloat(tt.in); got != tt.want {
			t.Errorf("formatFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommsLogRows(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewCommsLog(&buf)
	if err != nil {
		t.Fatalf("NewCommsLog: %v", err)
	}

	events := []comms.Event{
		{Kind: comms.EventSend, Time: 0.5, MessageID: 1, From: "Drone0", To: "HQ", Payload: "STATUS pos=(1.00,2.00) vel=(0.00,0.00)"},
		{Kind: comms.EventDropScheduled, Time: 0.5, MessageID: 2, From: "Drone1", To: "HQ", Dropped: true, Payload: "x"},
		{Kind: comms.EventDeliver, Time: 1, MessageID: 1, From: "Drone0", To: "HQ", Latency: 0.5, Payload: `say "hi"`},
	}
	for _, ev := range events {
		if err := log.Record(ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := CommsLogHeader + "\n" +
		`send,0.5,1,Drone0,HQ,0.0,0,"STATUS pos=(1.00,2.00) vel=(0.00,0.00)"` + "\n" +
		`drop_scheduled,0.5,2,Drone1,HQ,0.0,1,"x"` + "\n" +
		`deliver,1.0,1,Drone0,HQ,0.5,0,"say ""hi"""` + "\n"
	if got := buf.String(); got != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, got)
	}
	if log.Rows() != 3 {
		t.Errorf("Expected 3 rows, got %d", log.Rows())
	}
}

func TestCommsLogAsNetworkSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "comms_log.csv")
	log, err := CreateCommsLog(path)
	if err != nil {
		t.Fatalf("CreateCommsLog: %v", err)
	}

	n, err := comms.NewNetwork(comms.Config{BaseLatency: 0.5, Key: []byte("k")},
		comms.WithSeed(1), comms.WithEventSink(log), comms.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = n.RegisterEndpoint("B")
	n.Send("A", "B", "X", 0)
	n.Step(0.5)

	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %q", data)
	}
	if lines[2] != `deliver,0.5,1,A,B,0.5,0,"X"` {
		t.Errorf("unexpected deliver row %q", lines[2])
	}
}

func TestTelemetryLog(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewTelemetryLog(&buf)
	if err != nil {
		t.Fatal(err)
	}

	states := []physics.DroneState{
		{ID: 0, Position: geom.V(50, 50.2), Velocity: geom.V(0, 0.2)},
		{ID: 1, Position: geom.V(10, 0), Velocity: geom.V(-1.5, 0)},
	}
	if err := log.Write(0.1, states); err != nil {
		t.Fatal(err)
	}
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	want := TelemetryLogHeader + "\n" +
		"0.1,0,50.0,50.2,0.0,0.2\n" +
		"0.1,1,10.0,0.0,-1.5,0.0\n"
	if got := buf.String(); got != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, got)
	}
}

func testSummary() comms.Summary {
	return comms.Summary{
		FinalTime:    2,
		Sent:         4,
		Delivered:    2,
		Dropped:      1,
		InFlight:     1,
		TotalLatency: 1.2,
		Endpoints: []comms.EndpointSnapshot{
			{Name: "HQ", Inbox: []comms.ReceivedRecord{
				{MessageID: 1, From: "Drone0", Payload: "STATUS a", ArrivalTime: 1.1, Latency: 0.6},
				{MessageID: 3, From: "Drone0", Payload: "STATUS b", ArrivalTime: 1.6, Latency: 0.6},
			}},
			{Name: "Drone0"},
		},
	}
}

func TestRunReportPrint(t *testing.T) {
	id := uuid.MustParse("6f1c1d8e-4b8e-4c4f-9a55-1b2b3c4d5e6f")
	r := NewRunReport(id, "drone-comms", 7, testSummary(), nil)

	if r.AverageLatency == nil || *r.AverageLatency < 0.599 || *r.AverageLatency > 0.601 {
		t.Fatalf("Expected average latency 0.6, got %v", r.AverageLatency)
	}
	if r.DeliveryRate != 0.5 {
		t.Errorf("Expected delivery rate 0.5, got %f", r.DeliveryRate)
	}

	var buf bytes.Buffer
	r.Print(&buf, true)
	out := buf.String()

	for _, want := range []string{
		"=== Simulation Summary (t=2.000) ===",
		"Run ID:             " + id.String(),
		"Delivered messages: 2",
		"Dropped messages:   1",
		"Still in flight:    1",
		"Average latency:    0.600 s",
		"Node HQ:",
		`  at t=1.100  from=Drone0  id=1  latency=0.600  payload="STATUS a"`,
		"Node Drone0:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Undeliverable") {
		t.Errorf("undeliverable line should be omitted when zero")
	}
}

func TestRunReportPrintWithoutTerminal(t *testing.T) {
	prev := color.NoColor
	t.Cleanup(func() { color.NoColor = prev })
	color.NoColor = true

	var buf bytes.Buffer
	NewRunReport(uuid.New(), "drone-comms", 7, testSummary(), nil).Print(&buf, false)

	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("Expected no escape codes when color is unavailable, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "Delivered messages: 2") {
		t.Errorf("Expected plain delivered count, got:\n%s", buf.String())
	}
}

func TestRunReportWithoutDeliveries(t *testing.T) {
	r := NewRunReport(uuid.New(), "x", 0, comms.Summary{Dropped: 3, Sent: 3}, nil)

	var buf bytes.Buffer
	r.Print(&buf, true)
	if strings.Contains(buf.String(), "Average latency") {
		t.Errorf("average latency must be omitted with no deliveries")
	}
}

func TestRunReportSaveJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	r := NewRunReport(uuid.New(), "drone-comms", 1, testSummary(), []physics.DroneState{{ID: 0}})

	if err := r.SaveJSON(path); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded RunReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded.RunID != r.RunID || decoded.Summary.Delivered != 2 || len(decoded.Drones) != 1 {
		t.Errorf("unexpected decoded report %+v", decoded)
	}
}

func TestRunReportTable(t *testing.T) {
	r := NewRunReport(uuid.New(), "x", 0, testSummary(), nil)

	var buf bytes.Buffer
	r.Table().Fprint(&buf)
	if !strings.Contains(buf.String(), "0.600s") {
		t.Errorf("Expected HQ average latency in table, got %q", buf.String())
	}
}

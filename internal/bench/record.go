package bench

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Protocol labels on measurement rows.
const (
	ProtocolREST = "REST"
	ProtocolRPC  = "RPC"
)

// Record is one benchmark measurement. Core fields are always present;
// the extras carry scenario-specific metrics and stay zero elsewhere.
type Record struct {
	Protocol  string
	Scenario  string
	Turn      int
	LatencyMs float64
	BytesSent int

	Polls       int
	Events      int
	Steps       int
	RPS         float64
	SuccessRate float64

	Dropped bool // simulated packet loss
	Failed  bool // endpoint-level failure
}

type Recorder interface {
	OnRecord(rec Record)
	Close() error
}

type CSVRecorder struct {
	f *os.File
	w *csv.Writer
}

func NewCSVRecorder(path string) (*CSVRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)

	hdr := []string{
		"protocol",
		"scenario",
		"turn",
		"latency_ms",
		"bytes_sent",
		"polls",
		"events",
		"steps",
		"rps",
		"success_rate",
		"dropped",
		"failed",
	}
	if err := w.Write(hdr); err != nil {
		_ = f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVRecorder{f: f, w: w}, nil
}

func (r *CSVRecorder) OnRecord(rec Record) {
	row := []string{
		rec.Protocol,
		rec.Scenario,
		strconv.Itoa(rec.Turn),
		ff(rec.LatencyMs),
		strconv.Itoa(rec.BytesSent),
		strconv.Itoa(rec.Polls),
		strconv.Itoa(rec.Events),
		strconv.Itoa(rec.Steps),
		ff(rec.RPS),
		ff(rec.SuccessRate),
		strconv.FormatBool(rec.Dropped),
		strconv.FormatBool(rec.Failed),
	}
	_ = r.w.Write(row)
}

func (r *CSVRecorder) Close() error {
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		_ = r.f.Close()
		return err
	}
	return r.f.Close()
}

func ff(v float64) string { return fmt.Sprintf("%.6f", v) }

// MultiRecorder fans records out to multiple Recorder implementations.
type multiRecorder struct {
	rs []Recorder
}

func MultiRecorder(rs ...Recorder) Recorder {
	out := &multiRecorder{rs: make([]Recorder, 0, len(rs))}
	for _, r := range rs {
		if r != nil {
			out.rs = append(out.rs, r)
		}
	}
	return out
}

func (m *multiRecorder) OnRecord(rec Record) {
	for _, r := range m.rs {
		r.OnRecord(rec)
	}
}

func (m *multiRecorder) Close() error {
	var firstErr error
	for _, r := range m.rs {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

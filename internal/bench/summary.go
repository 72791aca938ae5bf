package bench

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// SummaryRecorder aggregates records into one row per protocol/scenario
// pair. It implements Recorder so it can be fanned out next to the raw
// CSV without touching the runner.
type SummaryRecorder struct {
	order []string
	aggs  map[string]*agg
}

type agg struct {
	protocol string
	scenario string

	count   int64
	drops   int64
	fails   int64
	sumLat  float64
	maxLat  float64
	bytes   int64
	polls   int64
	events  int64
	sumRPS  float64
	rpsObs  int64
}

func NewSummaryRecorder() *SummaryRecorder {
	return &SummaryRecorder{aggs: make(map[string]*agg)}
}

func (s *SummaryRecorder) OnRecord(rec Record) {
	key := rec.Protocol + "\x00" + rec.Scenario
	a, ok := s.aggs[key]
	if !ok {
		a = &agg{protocol: rec.Protocol, scenario: rec.Scenario}
		s.aggs[key] = a
		s.order = append(s.order, key)
	}

	a.count++
	if rec.Dropped {
		a.drops++
	}
	if rec.Failed {
		a.fails++
	}
	a.sumLat += rec.LatencyMs
	if rec.LatencyMs > a.maxLat {
		a.maxLat = rec.LatencyMs
	}
	a.bytes += int64(rec.BytesSent)
	a.polls += int64(rec.Polls)
	a.events += int64(rec.Events)
	if rec.RPS > 0 {
		a.sumRPS += rec.RPS
		a.rpsObs++
	}
}

func (s *SummaryRecorder) Close() error { return nil }

type SummaryRow struct {
	Protocol string
	Scenario string

	Count       int64
	Drops       int64
	Fails       int64
	SuccessRate float64

	MeanLatencyMs float64
	MaxLatencyMs  float64

	TotalBytes  int64
	MeanBytes   float64
	TotalPolls  int64
	TotalEvents int64
	MeanRPS     float64
}

// Rows returns aggregates in first-seen order, scenario-major.
func (s *SummaryRecorder) Rows() []SummaryRow {
	keys := append([]string(nil), s.order...)
	sort.SliceStable(keys, func(i, j int) bool {
		return s.aggs[keys[i]].scenario < s.aggs[keys[j]].scenario
	})

	rows := make([]SummaryRow, 0, len(keys))
	for _, k := range keys {
		a := s.aggs[k]
		row := SummaryRow{
			Protocol:     a.protocol,
			Scenario:     a.scenario,
			Count:        a.count,
			Drops:        a.drops,
			Fails:        a.fails,
			MaxLatencyMs: a.maxLat,
			TotalBytes:   a.bytes,
			TotalPolls:   a.polls,
			TotalEvents:  a.events,
		}
		if a.count > 0 {
			row.SuccessRate = float64(a.count-a.drops-a.fails) / float64(a.count) * 100
			row.MeanLatencyMs = a.sumLat / float64(a.count)
			row.MeanBytes = float64(a.bytes) / float64(a.count)
		}
		if a.rpsObs > 0 {
			row.MeanRPS = a.sumRPS / float64(a.rpsObs)
		}
		rows = append(rows, row)
	}
	return rows
}

type SummaryCSVWriter struct {
	f *os.File
	w *csv.Writer
}

func NewSummaryCSVWriter(path string) (*SummaryCSVWriter, error) {
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
		"count",
		"drops",
		"fails",
		"success_rate",
		"mean_latency_ms",
		"max_latency_ms",
		"total_bytes",
		"mean_bytes",
		"total_polls",
		"total_events",
		"mean_rps",
	}
	if err := w.Write(hdr); err != nil {
		_ = f.Close()
		return nil, err
	}
	w.Flush()
	return &SummaryCSVWriter{f: f, w: w}, nil
}

func (s *SummaryCSVWriter) WriteRow(r SummaryRow) error {
	row := []string{
		r.Protocol,
		r.Scenario,
		strconv.FormatInt(r.Count, 10),
		strconv.FormatInt(r.Drops, 10),
		strconv.FormatInt(r.Fails, 10),
		ff(r.SuccessRate),
		ff(r.MeanLatencyMs),
		ff(r.MaxLatencyMs),
		strconv.FormatInt(r.TotalBytes, 10),
		ff(r.MeanBytes),
		strconv.FormatInt(r.TotalPolls, 10),
		strconv.FormatInt(r.TotalEvents, 10),
		ff(r.MeanRPS),
	}
	return s.w.Write(row)
}

func (s *SummaryCSVWriter) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}

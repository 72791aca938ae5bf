package bench

import (
	"fmt"
	"io"
	"time"
)

// WriteReport renders the aggregated summary as a Markdown comparison of
// the two disciplines. Verdicts are computed from the rows, scenario by
// scenario, with a metrics table and an overall tally at the end.
func WriteReport(w io.Writer, rows []SummaryRow, generated time.Time) error {
	bw := &reportWriter{w: w}

	bw.printf("# Stateless vs Streamed Transport Benchmark\n\n")
	bw.printf("Generated: %s\n\n", generated.Format(time.RFC3339))
	bw.printf("Each scenario runs the same workload over both disciplines on a\n")
	bw.printf("simulated link: %s resends accumulated state per exchange, %s holds a\n", ProtocolREST, ProtocolRPC)
	bw.printf("session and sends deltas with server push.\n\n")

	bw.printf("## Scenario verdicts\n\n")

	latWins := map[string]int{}
	byteWins := map[string]int{}

	for _, p := range pairRows(rows) {
		bw.printf("### %s\n\n", p.scenario)
		if p.rest == nil || p.rpc == nil {
			bw.printf("Incomplete data, no verdict.\n\n")
			continue
		}

		if p.rest.MeanLatencyMs > 0 || p.rpc.MeanLatencyMs > 0 {
			winner := pickLower(p.rest.MeanLatencyMs, p.rpc.MeanLatencyMs)
			latWins[winner]++
			bw.printf("- Latency: %s %sms vs %s %sms, %s lower\n",
				ProtocolREST, fms(p.rest.MeanLatencyMs), ProtocolRPC, fms(p.rpc.MeanLatencyMs), winner)
		}
		if p.rest.TotalBytes > 0 || p.rpc.TotalBytes > 0 {
			winner := ProtocolREST
			if p.rpc.TotalBytes < p.rest.TotalBytes {
				winner = ProtocolRPC
			}
			byteWins[winner]++
			bw.printf("- Bytes sent: %s %d vs %s %d, %s lower\n",
				ProtocolREST, p.rest.TotalBytes, ProtocolRPC, p.rpc.TotalBytes, winner)
		}
		if p.rest.TotalPolls > 0 || p.rpc.TotalEvents > 0 {
			bw.printf("- Overhead: %s issued %d polls, %s received %d pushed events\n",
				ProtocolREST, p.rest.TotalPolls, ProtocolRPC, p.rpc.TotalEvents)
		}
		if p.rest.Drops+p.rpc.Drops+p.rest.Fails+p.rpc.Fails > 0 {
			bw.printf("- Success rate: %s %s%% vs %s %s%%\n",
				ProtocolREST, fms(p.rest.SuccessRate), ProtocolRPC, fms(p.rpc.SuccessRate))
		}
		if p.rest.MeanRPS > 0 || p.rpc.MeanRPS > 0 {
			bw.printf("- Throughput: %s %s req/s vs %s %s req/s\n",
				ProtocolREST, fms(p.rest.MeanRPS), ProtocolRPC, fms(p.rpc.MeanRPS))
		}
		bw.printf("\n")
	}

	bw.printf("## Metrics\n\n")
	bw.printf("| scenario | protocol | count | success %% | mean ms | max ms | mean bytes | polls | events | rps |\n")
	bw.printf("|---|---|---|---|---|---|---|---|---|---|\n")
	for _, row := range rows {
		bw.printf("| %s | %s | %d | %s | %s | %s | %s | %d | %d | %s |\n",
			row.Scenario, row.Protocol, row.Count, fms(row.SuccessRate),
			fms(row.MeanLatencyMs), fms(row.MaxLatencyMs), fms(row.MeanBytes),
			row.TotalPolls, row.TotalEvents, fms(row.MeanRPS))
	}
	bw.printf("\n")

	bw.printf("## Tally\n\n")
	bw.printf("- Lower latency: %s %d scenarios, %s %d\n",
		ProtocolREST, latWins[ProtocolREST], ProtocolRPC, latWins[ProtocolRPC])
	bw.printf("- Fewer bytes: %s %d scenarios, %s %d\n",
		ProtocolREST, byteWins[ProtocolREST], ProtocolRPC, byteWins[ProtocolRPC])

	return bw.err
}

type reportWriter struct {
	w   io.Writer
	err error
}

func (b *reportWriter) printf(format string, args ...any) {
	if b.err != nil {
		return
	}
	_, b.err = fmt.Fprintf(b.w, format, args...)
}

// scenarioPair joins both protocols' rows for one scenario.
type scenarioPair struct {
	scenario string
	rest     *SummaryRow
	rpc      *SummaryRow
}

// pairRows preserves the first-seen scenario order of the input rows.
func pairRows(rows []SummaryRow) []scenarioPair {
	index := map[string]int{}
	var pairs []scenarioPair
	for i := range rows {
		row := &rows[i]
		j, ok := index[row.Scenario]
		if !ok {
			j = len(pairs)
			index[row.Scenario] = j
			pairs = append(pairs, scenarioPair{scenario: row.Scenario})
		}
		switch row.Protocol {
		case ProtocolREST:
			pairs[j].rest = row
		case ProtocolRPC:
			pairs[j].rpc = row
		}
	}
	return pairs
}

func pickLower(rest, rpc float64) string {
	if rpc < rest {
		return ProtocolRPC
	}
	return ProtocolREST
}

// fms trims report numbers to two decimals; CSV output keeps full
// precision via ff.
func fms(v float64) string { return fmt.Sprintf("%.2f", v) }

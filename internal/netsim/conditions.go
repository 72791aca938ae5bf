package netsim

import (
	"fmt"
	"time"
)

// Conditions describes one degraded-link profile. The zero value is a
// perfect link: no latency, no loss, unlimited bandwidth.
type Conditions struct {
	LatencyMs      float64
	PacketLossRate float64
	BandwidthMbps  float64 // 0 = unlimited
}

func (c Conditions) Validate() error {
	if c.LatencyMs < 0 {
		return fmt.Errorf("netsim: negative latency %.3fms", c.LatencyMs)
	}
	if c.PacketLossRate < 0 || c.PacketLossRate > 1 {
		return fmt.Errorf("netsim: loss rate %.3f outside [0,1]", c.PacketLossRate)
	}
	if c.BandwidthMbps < 0 {
		return fmt.Errorf("netsim: negative bandwidth %.3fMbps", c.BandwidthMbps)
	}
	return nil
}

func (c Conditions) Latency() time.Duration {
	if c.LatencyMs <= 0 {
		return 0
	}
	return time.Duration(c.LatencyMs * float64(time.Millisecond))
}

// TransferTime is the serialization delay for byteCount at the capped rate:
// (bytes * 8) / (mbps * 1e6) seconds. Unlimited bandwidth costs nothing.
func (c Conditions) TransferTime(byteCount int) time.Duration {
	if c.BandwidthMbps <= 0 || byteCount <= 0 {
		return 0
	}
	sec := (float64(byteCount) * 8.0) / (c.BandwidthMbps * 1_000_000)
	return time.Duration(sec * float64(time.Second))
}

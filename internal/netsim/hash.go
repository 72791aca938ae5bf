package netsim

import (
	"hash/fnv"
	"math"
)

// splitmix64: deterministic 64-bit mixer
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// u01 returns a deterministic float in [0,1) from (seed,seq)
func u01(seed int64, seq uint64) float64 {
	x := uint64(seed) ^ (seq * 0x9e3779b97f4a7c15)

	y := splitmix64(x)

	// take top 53 bits -> float64 in [0,1)
	v := float64(y>>11) / (1 << 53)
	if v >= 1 {
		return math.Nextafter(1, 0)
	}
	return v
}

// DeriveSeed maps (base seed, label) onto a per-run seed so that every
// scenario/protocol pair draws from its own reproducible stream.
func DeriveSeed(base int64, label string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(label))
	return int64(splitmix64(uint64(base) ^ h.Sum64()))
}

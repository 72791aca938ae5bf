package netsim

import (
	"math/rand"
)

// LossModel decides whether exchange number seq on a link is dropped.
// seq increases by one per attempted exchange, so a model seeded the same
// way replays the same drop pattern.
type LossModel interface {
	Name() string
	Drop(seq uint64) bool
}

// BernoulliLoss drops each exchange independently with probability P.
type BernoulliLoss struct {
	Seed int64
	P    float64
}

func NewBernoulliLoss(seed int64, p float64) *BernoulliLoss {
	return &BernoulliLoss{Seed: seed, P: p}
}

func (m *BernoulliLoss) Name() string { return "bernoulli" }

func (m *BernoulliLoss) Drop(seq uint64) bool {
	if m.P <= 0 {
		return false
	}
	if m.P >= 1 {
		return true
	}
	return u01(m.Seed, seq) < m.P
}

// GilbertElliottLoss is a two-state burst loss model: a good state with
// drop probability PG and a bad state with PB, with transition
// probabilities PGB/PBG between them.
type GilbertElliottLoss struct {
	Seed int64

	PGB float64
	PBG float64
	PG  float64
	PB  float64

	bad bool
	r   *rand.Rand
}

func NewGilbertElliottLoss(seed int64, pGB, pBG, pG, pB float64) *GilbertElliottLoss {
	return &GilbertElliottLoss{
		Seed: seed,
		PGB:  pGB, PBG: pBG, PG: pG, PB: pB,
		r: rand.New(rand.NewSource(seed)),
	}
}

func (m *GilbertElliottLoss) Name() string { return "gilbert" }

func (m *GilbertElliottLoss) Drop(_ uint64) bool {
	if !m.bad {
		if m.r.Float64() < m.PGB {
			m.bad = true
		}
	} else {
		if m.r.Float64() < m.PBG {
			m.bad = false
		}
	}

	p := m.PG
	if m.bad {
		p = m.PB
	}
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return m.r.Float64() < p
}

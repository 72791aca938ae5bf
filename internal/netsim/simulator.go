// Package netsim models a degraded network link: fixed per-call latency,
// probabilistic packet loss and bandwidth-proportional transfer delay,
// injected into otherwise-instant mock exchanges.
package netsim

import (
	"context"
	"errors"
	"time"
)

// ErrDropped is returned when the loss model drops an exchange. The caller
// has already paid the full link latency by the time it sees this error:
// a lost packet costs a timeout, not an instant failure.
var ErrDropped = errors.New("netsim: simulated packet loss")

// Simulator applies Conditions to simulated exchanges. Each client or
// session owns its own Simulator; conditions are not expected to change
// while an exchange is in flight.
type Simulator struct {
	seed int64

	cond Conditions
	loss LossModel
	seq  uint64
}

func New(seed int64) *Simulator {
	return &Simulator{seed: seed}
}

// SetConditions replaces all three link parameters at once. The loss model
// is re-armed as a Bernoulli draw at the new rate (or disarmed entirely at
// rate 0, so a zero rate provably never draws randomness).
func (s *Simulator) SetConditions(c Conditions) {
	s.cond = c
	if c.PacketLossRate > 0 {
		s.loss = NewBernoulliLoss(s.seed, c.PacketLossRate)
	} else {
		s.loss = nil
	}
}

// SetLossModel overrides the Bernoulli default, e.g. with burst loss.
// A later SetConditions discards the override.
func (s *Simulator) SetLossModel(m LossModel) {
	s.loss = m
}

func (s *Simulator) Conditions() Conditions { return s.cond }

// Link models one bare round trip: the loss gate, then the fixed latency.
// On a drop the latency is still paid before ErrDropped is returned.
func (s *Simulator) Link(ctx context.Context) error {
	seq := s.seq
	s.seq++

	if s.loss != nil && s.loss.Drop(seq) {
		if err := sleep(ctx, s.cond.Latency()); err != nil {
			return err
		}
		return ErrDropped
	}
	if d := s.cond.Latency(); d > 0 {
		return sleep(ctx, d)
	}
	return nil
}

// Transfer models a payload-carrying round trip: the Link gate applies to
// every transfer, then the serialization delay for byteCount at the
// bandwidth cap. Unlimited bandwidth adds nothing beyond Link.
func (s *Simulator) Transfer(ctx context.Context, byteCount int) error {
	if err := s.Link(ctx); err != nil {
		return err
	}
	if d := s.cond.TransferTime(byteCount); d > 0 {
		return sleep(ctx, d)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

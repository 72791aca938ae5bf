package netsim

import (
	"sort"
	"time"
)

// ConditionSchedule is a step function from elapsed run time to link
// conditions. The runner evaluates it between iterations only; an
// in-flight exchange always completes under the conditions it started with.
type ConditionSchedule struct {
	Points  []ConditionPoint
	Default Conditions
}

type ConditionPoint struct {
	At   time.Duration
	Cond Conditions
}

func NewConditionSchedule(def Conditions, points ...ConditionPoint) *ConditionSchedule {
	p := append([]ConditionPoint(nil), points...)
	sort.Slice(p, func(i, j int) bool { return p[i].At < p[j].At })
	return &ConditionSchedule{Points: p, Default: def}
}

func (s *ConditionSchedule) At(t time.Duration) Conditions {
	if s == nil || len(s.Points) == 0 {
		if s == nil {
			return Conditions{}
		}
		return s.Default
	}
	v := s.Default
	for i := 0; i < len(s.Points); i++ {
		if t < s.Points[i].At {
			break
		}
		v = s.Points[i].Cond
	}
	return v
}

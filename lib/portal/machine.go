package portal

import "fmt"

type Stage int

const (
	Unselected Stage = iota
	StateChosen
	DistrictChosen
	ComplexChosen
	Submitted
	Rendered
	Failed
)

func (s Stage) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case StateChosen:
		return "state_chosen"
	case DistrictChosen:
		return "district_chosen"
	case ComplexChosen:
		return "complex_chosen"
	case Submitted:
		return "submitted"
	case Rendered:
		return "rendered"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// machine tracks a lookup through the cascading form. Each level only
// advances to the next one, the option reload behind every transition must
// have settled before advance is called.
type machine struct {
	stage   Stage
	history []Stage
}

func newMachine() *machine {
	return &machine{stage: Unselected, history: []Stage{Unselected}}
}

func (m *machine) Stage() Stage {
	return m.stage
}

func (m *machine) advance(to Stage) error {
	if m.stage == Rendered || m.stage == Failed {
		return fmt.Errorf("lookup already finished in %s, cannot move to %s", m.stage, to)
	}
	if to != Failed && to != m.stage+1 {
		return fmt.Errorf("illegal transition %s -> %s", m.stage, to)
	}
	m.stage = to
	m.history = append(m.history, to)
	return nil
}

func (m *machine) fail() {
	if m.stage == Rendered || m.stage == Failed {
		return
	}
	m.stage = Failed
	m.history = append(m.history, Failed)
}

package gacha

// Reveal timings in host ticks (20 per second).
const (
	CountdownInterval = 20
	RevealDelay       = 60
	RevealInterval    = 7
)

// StepKind says what the presentation layer does at a step.
type StepKind int

const (
	StepCountdown StepKind = iota
	StepReveal
	StepStream
	StepGrant
)

func (k StepKind) String() string {
	switch k {
	case StepCountdown:
		return "countdown"
	case StepReveal:
		return "reveal"
	case StepStream:
		return "stream"
	default:
		return "grant"
	}
}

// RevealStep is one scheduled presentation event. Slot is -1 for steps
// that apply to the whole batch.
type RevealStep struct {
	Kind StepKind
	Slot int
	At   int // ticks after the batch was resolved
}

// RevealPlan is the schedule for presenting one resolved batch.
// Immediate plans complete the session as soon as the batch resolves.
type RevealPlan struct {
	Style      AnimationStyle
	Immediate  bool
	Steps      []RevealStep
	CompleteAt int
}

// RevealStrategy turns a batch size into a reveal schedule. The batch
// itself is resolved once, independently of the strategy.
type RevealStrategy interface {
	Plan(slots int) RevealPlan
}

// RevealStrategyFor returns the strategy for a style.
func RevealStrategyFor(style AnimationStyle) RevealStrategy {
	switch style {
	case AnimationNone:
		return noneReveal{}
	case AnimationPhysical:
		return physicalReveal{}
	default:
		return interfaceReveal{}
	}
}

type noneReveal struct{}

func (noneReveal) Plan(int) RevealPlan {
	return RevealPlan{Style: AnimationNone, Immediate: true}
}

// interfaceReveal counts down three times and then flips one slot every
// RevealInterval ticks. Rewards are granted when the view closes.
type interfaceReveal struct{}

func (interfaceReveal) Plan(slots int) RevealPlan {
	p := RevealPlan{Style: AnimationInterface}
	for i := range 3 {
		p.Steps = append(p.Steps, RevealStep{Kind: StepCountdown, Slot: -1, At: i * CountdownInterval})
	}
	for i := range max(slots, 0) {
		p.Steps = append(p.Steps, RevealStep{Kind: StepReveal, Slot: i, At: RevealDelay + i*RevealInterval})
	}
	p.CompleteAt = RevealDelay + max(slots, 0)*RevealInterval
	return p
}

// physicalReveal streams one effect per slot, then grants the slots one by
// one at the banner location.
type physicalReveal struct{}

// GrantInterval is the tick spacing between physical grants.
func GrantInterval(slots int) int {
	return max(RevealInterval, int(CountdownInterval*0.7/float64(max(slots, 1))))
}

func (physicalReveal) Plan(slots int) RevealPlan {
	n := max(slots, 0)
	p := RevealPlan{Style: AnimationPhysical}
	for i := range n {
		p.Steps = append(p.Steps, RevealStep{Kind: StepStream, Slot: i, At: i * RevealInterval})
	}
	start := n*RevealInterval + RevealDelay
	every := GrantInterval(n)
	for i := range n {
		p.Steps = append(p.Steps, RevealStep{Kind: StepGrant, Slot: i, At: start + i*every})
	}
	p.CompleteAt = start + n*every
	return p
}

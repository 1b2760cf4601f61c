package operator

// Expander register layout (PCF8574 port, lines idle high).
const (
	bitRotaryClock     = 0
	bitRotaryDirection = 1 // 1 = clockwise
	bitConfirm         = 2 // active low

	idleRegister byte = 0xFF
)

// Edges is the set of input events decoded from two consecutive register
// reads.
type Edges struct {
	Step      bool // rotary moved one detent
	Clockwise bool // direction of Step
	Confirm   bool // button pressed
}

// Any reports whether any event is present.
func (e Edges) Any() bool { return e.Step || e.Confirm }

// EdgeDetector turns register polls into edges. A rotary step is only seen
// on the high-to-low transition of the clock line, so an encoder resting on
// a detent with the clock low does not re-trigger.
type EdgeDetector struct {
	prev byte
}

// NewEdgeDetector returns a detector that assumes all lines idle high.
func NewEdgeDetector() *EdgeDetector {
	return &EdgeDetector{prev: idleRegister}
}

// Update consumes the current register value and returns the edges since
// the previous call.
func (d *EdgeDetector) Update(reg byte) Edges {
	var e Edges
	if falling(d.prev, reg, bitRotaryClock) {
		e.Step = true
		e.Clockwise = bit(reg, bitRotaryDirection)
	}
	e.Confirm = falling(d.prev, reg, bitConfirm)
	d.prev = reg
	return e
}

func bit(v byte, n uint) bool { return v>>n&1 == 1 }

func falling(prev, cur byte, n uint) bool {
	return bit(prev, n) && !bit(cur, n)
}

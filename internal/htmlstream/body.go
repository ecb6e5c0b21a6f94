package htmlstream

// BodyDetector tracks how deep the scan position is below the first <body>.
// It implements Handler and asks for a pause whenever the position becomes a
// direct child of body, which is where markup can be spliced in safely.
//
// Only a depth counter is kept: which element is open does not matter, only
// how many are.
type BodyDetector struct {
	depth       int
	directChild bool
	next        Handler
}

// NewBodyDetector returns a detector positioned outside body. If next is not
// nil it sees every event after the detector has updated its depth; a Pause
// from next is honored as well.
func NewBodyDetector(next Handler) *BodyDetector {
	return &BodyDetector{depth: -1, next: next}
}

// Depth is -1 outside body, 0 directly inside body and positive when nested.
func (d *BodyDetector) Depth() int { return d.depth }

// DirectChild reports whether the position after the last tag is a direct
// child of body.
func (d *BodyDetector) DirectChild() bool { return d.directChild }

// InBody reports whether a <body> is currently open.
func (d *BodyDetector) InBody() bool { return d.depth >= 0 }

func (d *BodyDetector) OpenTag(name string) Action {
	if name == "body" && d.depth < 0 {
		d.depth = 0
		d.directChild = true
	} else if d.depth >= 0 {
		d.depth++
		d.directChild = false
	}
	return d.forward(d.next != nil && d.next.OpenTag(name) == Pause)
}

func (d *BodyDetector) CloseTag(name string) Action {
	if name == "body" {
		d.depth = -1
		d.directChild = false
	} else if d.depth >= 0 {
		// A stray end tag directly inside body drops below it; nothing
		// after it is a direct child until the next <body>.
		d.depth--
		d.directChild = d.depth == 0
	}
	return d.forward(d.next != nil && d.next.CloseTag(name) == Pause)
}

func (d *BodyDetector) forward(observerPaused bool) Action {
	if d.directChild || observerPaused {
		return Pause
	}
	return Continue
}

package parser

// Tracker follows which namespace section is open. At most one section is
// open at a time; sections do not nest.
type Tracker struct {
	open string
}

// Apply advances the tracker with a classified line.
func (t *Tracker) Apply(l Line) {
	switch l.Kind {
	case KindMessageStart:
		// A new message always starts outside any section, even if the
		// previous one never closed its section.
		t.open = ""
	case KindSectionOpen:
		t.open = l.Namespace
	case KindSectionClose:
		t.open = ""
	}
}

// Current returns the open namespace, if any.
func (t *Tracker) Current() (string, bool) {
	return t.open, t.open != ""
}

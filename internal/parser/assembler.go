package parser

import "github.com/V4T54L/adru-export/internal/domain"

// Assembler groups attributes into message records. A record is only known
// complete when the next message starts or the stream ends, so exactly one
// record is held in progress and flushed on the next boundary.
type Assembler struct {
	current *domain.MessageRecord
	emit    func(domain.MessageRecord) error
}

// NewAssembler returns an assembler handing finished records to emit.
// A nil emit discards records.
func NewAssembler(emit func(domain.MessageRecord) error) *Assembler {
	return &Assembler{emit: emit}
}

// Begin flushes the in-progress record and starts a new one.
func (a *Assembler) Begin(localID int64) error {
	if err := a.Flush(); err != nil {
		return err
	}
	a.current = &domain.MessageRecord{
		LocalID:  localID,
		Sections: make(map[string]*domain.Attributes),
	}
	return nil
}

// InProgress reports whether a record is being assembled.
func (a *Assembler) InProgress() bool {
	return a.current != nil
}

// Add records an attribute on the in-progress record. It is a no-op before
// the first message start.
func (a *Assembler) Add(namespace, name, value string) {
	if a.current == nil {
		return
	}
	section, ok := a.current.Sections[namespace]
	if !ok {
		section = domain.NewAttributes()
		a.current.Sections[namespace] = section
	}
	section.Set(name, value)
}

// Flush emits the in-progress record, if any.
func (a *Assembler) Flush() error {
	if a.current == nil {
		return nil
	}
	rec := *a.current
	a.current = nil
	if a.emit == nil {
		return nil
	}
	return a.emit(rec)
}

// Package parser turns the text dump of a decoded ADRU export into message
// records. The format is line oriented:
//
//	Msg 12:
//	JRU (
//	3 NID_C: 42
//	V_TRAIN = 80
//	)
//
// A `Msg` line starts a message, a marker line opens a namespace section, a
// bare `)` closes it, and `name: value` or `name = value` lines inside a
// section are attributes. Everything else is ignored.
package parser

import (
	"strconv"
	"strings"

	"github.com/V4T54L/adru-export/internal/domain"
)

// Kind tags a classified line.
type Kind int

const (
	KindInsignificant Kind = iota
	KindMessageStart
	KindSectionOpen
	KindSectionClose
	KindAttribute
	// KindMalformed is a message-start line whose id is not an integer.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindMessageStart:
		return "message-start"
	case KindSectionOpen:
		return "section-open"
	case KindSectionClose:
		return "section-close"
	case KindAttribute:
		return "attribute"
	case KindMalformed:
		return "malformed"
	default:
		return "insignificant"
	}
}

const (
	messagePrefix = "Msg "
	sectionCloser = ")"
)

// Line is the classification of one input line.
type Line struct {
	Kind Kind
	// LocalID is set for KindMessageStart.
	LocalID int64
	// Namespace is set for KindSectionOpen.
	Namespace string
	// Text is the trimmed line, kept for KindAttribute.
	Text string
}

// Classifier tags lines using the section markers of a vocabulary.
type Classifier struct {
	markers map[string]string
}

// NewClassifier builds a classifier recognizing the markers of namespaces.
func NewClassifier(namespaces []domain.Namespace) *Classifier {
	markers := make(map[string]string, len(namespaces))
	for _, ns := range namespaces {
		markers[ns.Marker] = ns.Key
	}
	return &Classifier{markers: markers}
}

// Classify tags a single line. It holds no state between calls.
func (c *Classifier) Classify(raw string) Line {
	line := strings.TrimSpace(raw)

	if strings.HasPrefix(line, messagePrefix) {
		id, ok := parseLocalID(line[len(messagePrefix):])
		if !ok {
			return Line{Kind: KindMalformed, Text: line}
		}
		return Line{Kind: KindMessageStart, LocalID: id}
	}

	if ns, ok := c.markers[line]; ok {
		return Line{Kind: KindSectionOpen, Namespace: ns}
	}

	if line == sectionCloser {
		return Line{Kind: KindSectionClose}
	}

	if strings.ContainsAny(line, ":=") {
		return Line{Kind: KindAttribute, Text: line}
	}

	return Line{Kind: KindInsignificant}
}

// parseLocalID reads the first whitespace-delimited token, minus a trailing colon.
func parseLocalID(rest string) (int64, bool) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(fields[0], ":"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

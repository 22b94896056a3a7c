// Package transcript holds caption segments and the boundary parser for the
// backend transcript payload.
package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrUnexpectedShape is returned when a payload is neither a segment array nor
// an object carrying a segment array under "transcript".
var ErrUnexpectedShape = errors.New("unexpected transcript shape")

// Segment is one timed caption line. Start and Duration are seconds.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the exclusive end offset of the segment.
func (s Segment) End() float64 {
	return s.Start + s.Duration
}

// Contains reports whether t falls in [Start, End).
func (s Segment) Contains(t float64) bool {
	return s.Start <= t && t < s.End()
}

// Shape records which of the two accepted layouts a payload used.
type Shape int

const (
	ShapeArray Shape = iota
	ShapeWrapped
)

// Payload is a validated transcript response.
type Payload struct {
	Segments []Segment
	Shape    Shape
	// Raw is the upstream body, kept so handlers can pass it through untouched.
	Raw []byte
}

// Parse validates data and decodes its segments.
func Parse(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Payload{}, ErrUnexpectedShape
	}

	switch trimmed[0] {
	case '[':
		var segments []Segment
		if err := sonic.Unmarshal(trimmed, &segments); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return Payload{Segments: nonNil(segments), Shape: ShapeArray, Raw: data}, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := sonic.Unmarshal(trimmed, &envelope); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		inner, ok := envelope["transcript"]
		inner = bytes.TrimSpace(inner)
		if !ok || len(inner) == 0 || inner[0] != '[' {
			return Payload{}, ErrUnexpectedShape
		}
		var segments []Segment
		if err := sonic.Unmarshal(inner, &segments); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return Payload{Segments: nonNil(segments), Shape: ShapeWrapped, Raw: data}, nil
	default:
		return Payload{}, ErrUnexpectedShape
	}
}

// JoinText concatenates segment texts with single spaces.
func JoinText(segments []Segment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// Encode renders segments back in the given shape.
func Encode(segments []Segment, shape Shape) ([]byte, error) {
	segments = nonNil(segments)
	if shape == ShapeWrapped {
		return sonic.Marshal(map[string][]Segment{"transcript": segments})
	}
	return sonic.Marshal(segments)
}

func nonNil(segments []Segment) []Segment {
	if segments == nil {
		return []Segment{}
	}
	return segments
}

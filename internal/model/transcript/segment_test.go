package transcript

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantShape Shape
		wantLen   int
		wantErr   bool
	}{
		{name: "array", body: `[{"text":"hello","start":0,"duration":2}]`, wantShape: ShapeArray, wantLen: 1},
		{name: "wrapped", body: `{"transcript":[{"text":"a","start":0,"duration":1},{"text":"b","start":1,"duration":1}]}`, wantShape: ShapeWrapped, wantLen: 2},
		{name: "empty array", body: ` [] `, wantShape: ShapeArray, wantLen: 0},
		{name: "object without transcript", body: `{"status":"ok"}`, wantErr: true},
		{name: "transcript is string", body: `{"transcript":"hello"}`, wantErr: true},
		{name: "scalar", body: `42`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
		{name: "broken json", body: `[{"text":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Parse([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnexpectedShape))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantShape, payload.Shape)
			assert.Len(t, payload.Segments, tt.wantLen)
			assert.Equal(t, tt.body, string(payload.Raw))
		})
	}
}

func TestJoinText(t *testing.T) {
	segments := []Segment{{Text: "hello"}, {Text: "there"}, {Text: "world"}}
	assert.Equal(t, "hello there world", JoinText(segments))
	assert.Equal(t, "", JoinText(nil))
}

func TestSegmentContains(t *testing.T) {
	s := Segment{Start: 1, Duration: 2}
	assert.False(t, s.Contains(0.99))
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(2.99))
	assert.False(t, s.Contains(3))
	assert.Equal(t, 3.0, s.End())
}

func TestEncodeKeepsShape(t *testing.T) {
	segments := []Segment{{Text: "hi", Start: 0, Duration: 1}}

	wrapped, err := Encode(segments, ShapeWrapped)
	require.NoError(t, err)
	payload, err := Parse(wrapped)
	require.NoError(t, err)
	assert.Equal(t, ShapeWrapped, payload.Shape)
	assert.Equal(t, segments, payload.Segments)

	empty, err := Encode(nil, ShapeArray)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://www.youtube.com/watch?v=HB3l1BPi7zo", want: "HB3l1BPi7zo"},
		{in: "youtube.com/watch?v=HB3l1BPi7zo&t=42s", want: "HB3l1BPi7zo"},
		{in: "https://m.youtube.com/watch?feature=share&v=HB3l1BPi7zo", want: "HB3l1BPi7zo"},
		{in: "https://youtu.be/HB3l1BPi7zo", want: "HB3l1BPi7zo"},
		{in: "youtu.be/HB3l1BPi7zo?si=abc", want: "HB3l1BPi7zo"},
		{in: "https://www.youtube.com/embed/HB3l1BPi7zo", want: "HB3l1BPi7zo"},
		{in: "https://youtube.com/shorts/HB3l1BPi7zo/", want: "HB3l1BPi7zo"},
		{in: "  HB3l1BPi7zo ", want: "HB3l1BPi7zo"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExtractVideoID(tt.in)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractVideoIDRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"https://vimeo.com/123456",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=short",
		"https://youtu.be/",
		"not a url at all",
	} {
		_, err := ExtractVideoID(in)
		assert.ErrorIs(t, err, ErrInvalidVideoURL, in)
	}
}

package subtitle

import (
	"fmt"
	"strings"
)

// Segment is one time-aligned chunk of recognized speech. Offsets are in
// seconds from the start of the media.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Document renders segments as a subtitle document: per segment, the
// formatted start/end pair on one line, the text on the next, and a blank
// separator line. A single leading space on the segment text is stripped;
// whisper emits one before nearly every segment.
func Document(segments []Segment) string {
	var b strings.Builder
	for _, segment := range segments {
		text := segment.Text
		if strings.HasPrefix(text, " ") {
			text = text[1:]
		}
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n", Timestamp(segment.Start), Timestamp(segment.End), text)
	}
	return b.String()
}

// Timestamp formats a second offset as H:MM:SS,000. Hours are not padded
// beyond one digit; fractional seconds are truncated, matching the whole-
// second alignment the transcriber provides.
func Timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d,000", h, m, s)
}

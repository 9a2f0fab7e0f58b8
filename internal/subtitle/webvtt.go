package subtitle

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var vttTiming = regexp.MustCompile(`^(?:(\d{1,2}):)?(\d{1,2}):(\d{1,2})\.(\d{3})\s*-->\s*(?:(\d{1,2}):)?(\d{1,2}):(\d{1,2})\.(\d{3})`)

func parseWebVTT(text string, _ float64) (*Subtitle, error) {
	lines := splitLines(text)
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "WEBVTT") {
		return nil, fmt.Errorf("webvtt: missing WEBVTT magic")
	}

	sub := &Subtitle{Format: FormatWebVTT}
	i := 1
	for i < len(lines) {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			i++
			continue
		}
		// NOTE and STYLE blocks, and optional cue identifiers, run
		// until the next timing line
		m := vttTiming.FindStringSubmatch(t)
		if m == nil {
			i++
			continue
		}
		start := vttTime(m[1], m[2], m[3], m[4])
		end := vttTime(m[5], m[6], m[7], m[8])
		i++

		var cueLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			cueLines = append(cueLines, strings.TrimRight(lines[i], "\r"))
			i++
		}
		sub.Cues = append(sub.Cues, &Cue{
			Start:      start,
			End:        end,
			Lines:      cueLines,
			PlainLines: stripTags(cueLines),
		})
	}

	if len(sub.Cues) == 0 {
		return nil, fmt.Errorf("webvtt: no cues")
	}
	return sub, nil
}

func vttTime(h, m, s, ms string) time.Duration {
	if h == "" {
		h = "0"
	}
	return clockTime(h, m, s, ms)
}

func renderWebVTT(sub *Subtitle) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, cue := range sub.Cues {
		fmt.Fprintf(&b, "%s --> %s\n", vttStamp(cue.Start), vttStamp(cue.End))
		for _, line := range cue.Lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func vttStamp(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

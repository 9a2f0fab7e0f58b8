package subtitle

import (
	"fmt"
	"regexp"
	"strings"
)

var svTiming = regexp.MustCompile(`^(\d{1,2}):(\d{1,2}):(\d{1,2})\.(\d{1,3})\s*,\s*(\d{1,2}):(\d{1,2}):(\d{1,2})\.(\d{1,3})$`)

func parseSubViewer(text string, _ float64) (*Subtitle, error) {
	sub := &Subtitle{Format: FormatSubViewer}

	lines := splitLines(text)
	i := 0
	// optional [INFORMATION] header runs until the first timing line
	for i < len(lines) && !svTiming.MatchString(strings.TrimSpace(lines[i])) {
		t := strings.TrimSpace(lines[i])
		if t != "" && !strings.HasPrefix(t, "[") && !strings.Contains(t, "=") {
			return nil, fmt.Errorf("subviewer: unexpected header line %q", t)
		}
		i++
	}

	for i < len(lines) {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			i++
			continue
		}
		m := svTiming.FindStringSubmatch(t)
		if m == nil {
			return nil, fmt.Errorf("subviewer: bad timing %q", t)
		}
		i++
		if i >= len(lines) {
			return nil, fmt.Errorf("subviewer: truncated cue")
		}
		var cueLines []string
		for _, part := range strings.Split(strings.TrimSpace(lines[i]), "[br]") {
			cueLines = append(cueLines, strings.TrimSpace(part))
		}
		i++
		sub.Cues = append(sub.Cues, &Cue{
			Start:      clockTime(m[1], m[2], m[3], m[4]),
			End:        clockTime(m[5], m[6], m[7], m[8]),
			Lines:      cueLines,
			PlainLines: stripTags(cueLines),
		})
	}

	if len(sub.Cues) == 0 {
		return nil, fmt.Errorf("subviewer: no cues")
	}
	return sub, nil
}

package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var mdvdLine = regexp.MustCompile(`^\{(\d+)\}\{(\d+)\}(.*)$`)

// MicroDVD cues carry frame numbers, so playback speed must come from
// an embedded {1}{1}fps header, the caller, or the 25 fps default.
func parseMicroDVD(text string, fallbackFPS float64) (*Subtitle, error) {
	sub := &Subtitle{Format: FormatMicroDVD}

	fps := fallbackFPS
	type rawCue struct {
		startFrame, endFrame int64
		lines                []string
	}
	var raw []rawCue

	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := mdvdLine.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("microdvd: bad line %q", line)
		}
		start, _ := strconv.ParseInt(m[1], 10, 64)
		end, _ := strconv.ParseInt(m[2], 10, 64)
		body := m[3]

		// {1}{1}23.976 declares the frame rate
		if start == 1 && end == 1 && len(raw) == 0 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(body), 64); err == nil && v > 0 {
				fps = v
				continue
			}
		}

		var cueLines []string
		for _, part := range strings.Split(body, "|") {
			cueLines = append(cueLines, stripBraces(part))
		}
		raw = append(raw, rawCue{start, end, cueLines})
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("microdvd: no cues")
	}
	if fps <= 0 {
		fps = 25
	}
	sub.FPS = fps

	for _, rc := range raw {
		sub.Cues = append(sub.Cues, &Cue{
			Start:      framesToDuration(rc.startFrame, fps),
			End:        framesToDuration(rc.endFrame, fps),
			Lines:      rc.lines,
			PlainLines: stripTags(rc.lines),
		})
	}
	return sub, nil
}

var mdvdBraces = regexp.MustCompile(`\{[^{}]*\}`)

func stripBraces(s string) string {
	return strings.TrimSpace(mdvdBraces.ReplaceAllString(s, ""))
}

func framesToDuration(frame int64, fps float64) time.Duration {
	return time.Duration(float64(frame) / fps * float64(time.Second))
}

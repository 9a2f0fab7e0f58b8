package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ssaOverride = regexp.MustCompile(`\{\\[^{}]*\}`)
	ssaClock    = regexp.MustCompile(`^(\d+):(\d{1,2}):(\d{1,2})[.:](\d{1,2})$`)
)

func parseSSA(text string, _ float64) (*Subtitle, error) {
	sub := &Subtitle{Format: FormatSSA}

	inEvents := false
	startIdx, endIdx, textIdx, fieldCount := -1, -1, -1, 0

	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "["):
			inEvents = strings.EqualFold(line, "[Events]")
		case inEvents && strings.HasPrefix(line, "Format:"):
			fields := strings.Split(strings.TrimPrefix(line, "Format:"), ",")
			fieldCount = len(fields)
			for idx, f := range fields {
				switch strings.ToLower(strings.TrimSpace(f)) {
				case "start":
					startIdx = idx
				case "end":
					endIdx = idx
				case "text":
					textIdx = idx
				}
			}
		case inEvents && strings.HasPrefix(line, "Dialogue:"):
			if startIdx < 0 || endIdx < 0 || textIdx < 0 {
				return nil, fmt.Errorf("ssa: Dialogue before Format line")
			}
			parts := strings.SplitN(strings.TrimPrefix(line, "Dialogue:"), ",", fieldCount)
			if len(parts) < fieldCount {
				return nil, fmt.Errorf("ssa: short Dialogue line")
			}
			start, err := ssaTime(strings.TrimSpace(parts[startIdx]))
			if err != nil {
				return nil, err
			}
			end, err := ssaTime(strings.TrimSpace(parts[endIdx]))
			if err != nil {
				return nil, err
			}
			cueLines := strings.Split(parts[textIdx], `\N`)
			plain := make([]string, 0, len(cueLines))
			for _, l := range cueLines {
				plain = append(plain, strings.TrimSpace(ssaOverride.ReplaceAllString(l, "")))
			}
			sub.Cues = append(sub.Cues, &Cue{
				Start:      start,
				End:        end,
				Lines:      cueLines,
				PlainLines: plain,
			})
		}
	}

	if len(sub.Cues) == 0 {
		return nil, fmt.Errorf("ssa: no dialogue events")
	}
	return sub, nil
}

// ssaTime parses H:MM:SS.cc where the fraction is centiseconds.
func ssaTime(s string) (time.Duration, error) {
	m := ssaClock.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("ssa: bad timestamp %q", s)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	ss, _ := strconv.Atoi(m[3])
	cs, _ := strconv.Atoi(m[4])
	return time.Duration(h)*time.Hour + time.Duration(mm)*time.Minute +
		time.Duration(ss)*time.Second + time.Duration(cs)*10*time.Millisecond, nil
}

func renderSSA(sub *Subtitle) []byte {
	var b strings.Builder
	b.WriteString("[Script Info]\r\nScriptType: v4.00+\r\n\r\n")
	b.WriteString("[V4+ Styles]\r\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\r\n")
	b.WriteString("Style: Default,Arial,20,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1\r\n\r\n")
	b.WriteString("[Events]\r\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\r\n")
	for _, cue := range sub.Cues {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\r\n",
			ssaStamp(cue.Start), ssaStamp(cue.End), strings.Join(cue.Lines, `\N`))
	}
	return []byte(b.String())
}

func ssaStamp(d time.Duration) string {
	cs := d.Milliseconds() / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}

package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	srtTiming = regexp.MustCompile(`^(\d{1,2}):(\d{1,2}):(\d{1,2})[,.](\d{1,3})\s*-->\s*(\d{1,2}):(\d{1,2}):(\d{1,2})[,.](\d{1,3})`)
	tagMarkup = regexp.MustCompile(`</?[^<>]+>`)
)

func parseSubRip(text string, _ float64) (*Subtitle, error) {
	sub := &Subtitle{}

	lines := splitLines(text)
	i := 0
	for i < len(lines) {
		// skip blank separators
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) {
			break
		}
		// cue index line
		if _, err := strconv.Atoi(strings.TrimSpace(lines[i])); err != nil {
			return nil, fmt.Errorf("subrip: expected cue index at line %d", i+1)
		}
		i++
		if i >= len(lines) {
			return nil, fmt.Errorf("subrip: truncated cue")
		}
		m := srtTiming.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			return nil, fmt.Errorf("subrip: bad timing at line %d", i+1)
		}
		start := clockTime(m[1], m[2], m[3], m[4])
		end := clockTime(m[5], m[6], m[7], m[8])
		i++

		var textLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			textLines = append(textLines, strings.TrimRight(lines[i], "\r"))
			i++
		}
		sub.Cues = append(sub.Cues, &Cue{
			Start:      start,
			End:        end,
			Lines:      textLines,
			PlainLines: stripTags(textLines),
		})
	}

	if len(sub.Cues) == 0 {
		return nil, fmt.Errorf("subrip: no cues")
	}
	return sub, nil
}

func renderSubRip(sub *Subtitle) []byte {
	var b strings.Builder
	for i, cue := range sub.Cues {
		fmt.Fprintf(&b, "%d\r\n%s --> %s\r\n", i+1, srtStamp(cue.Start), srtStamp(cue.End))
		for _, line := range cue.Lines {
			b.WriteString(line)
			b.WriteString("\r\n")
		}
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}

func srtStamp(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

func clockTime(h, m, s, frac string) time.Duration {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	// fractional part may have fewer than 3 digits
	for len(frac) < 3 {
		frac += "0"
	}
	msec, _ := strconv.Atoi(frac[:3])
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute +
		time.Duration(ss)*time.Second + time.Duration(msec)*time.Millisecond
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func stripTags(lines []string) []string {
	plain := make([]string, 0, len(lines))
	for _, line := range lines {
		plain = append(plain, strings.TrimSpace(tagMarkup.ReplaceAllString(line, "")))
	}
	return plain
}

package subtitle

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type ttmlDoc struct {
	XMLName xml.Name `xml:"tt"`
	Body    struct {
		Divs []struct {
			Paragraphs []ttmlPara `xml:"p"`
		} `xml:"div"`
	} `xml:"body"`
}

type ttmlPara struct {
	Begin   string `xml:"begin,attr"`
	End     string `xml:"end,attr"`
	Dur     string `xml:"dur,attr"`
	Content string `xml:",innerxml"`
}

var (
	ttmlClockRe = regexp.MustCompile(`^(\d+):(\d{1,2}):(\d{1,2})(?:[.,](\d{1,3}))?$`)
	ttmlBr      = regexp.MustCompile(`(?i)<br\s*/?\s*>`)
)

func parseTTML(text string, _ float64) (*Subtitle, error) {
	var doc ttmlDoc
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("ttml: %w", err)
	}
	if doc.XMLName.Local != "tt" {
		return nil, fmt.Errorf("ttml: root element is %q", doc.XMLName.Local)
	}

	sub := &Subtitle{Format: FormatTTML}
	for _, div := range doc.Body.Divs {
		for _, p := range div.Paragraphs {
			start, err := ttmlTime(p.Begin)
			if err != nil {
				return nil, err
			}
			var end time.Duration
			switch {
			case p.End != "":
				if end, err = ttmlTime(p.End); err != nil {
					return nil, err
				}
			case p.Dur != "":
				d, err := ttmlTime(p.Dur)
				if err != nil {
					return nil, err
				}
				end = start + d
			default:
				return nil, fmt.Errorf("ttml: paragraph without end or dur")
			}

			var cueLines []string
			for _, part := range ttmlBr.Split(p.Content, -1) {
				line := strings.TrimSpace(tagMarkup.ReplaceAllString(part, ""))
				line = xmlUnescape(line)
				if line != "" {
					cueLines = append(cueLines, line)
				}
			}
			sub.Cues = append(sub.Cues, &Cue{
				Start:      start,
				End:        end,
				Lines:      cueLines,
				PlainLines: stripTags(cueLines),
			})
		}
	}

	if len(sub.Cues) == 0 {
		return nil, fmt.Errorf("ttml: no paragraphs")
	}
	return sub, nil
}

// ttmlTime accepts clock values (hh:mm:ss.fff) and offset values with
// an s or ms metric suffix.
func ttmlTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if m := ttmlClockRe.FindStringSubmatch(s); m != nil {
		frac := m[4]
		if frac == "" {
			frac = "0"
		}
		return clockTime(m[1], m[2], m[3], frac), nil
	}
	switch {
	case strings.HasSuffix(s, "ms"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "ms"), 64)
		if err != nil {
			return 0, fmt.Errorf("ttml: bad time %q", s)
		}
		return time.Duration(v * float64(time.Millisecond)), nil
	case strings.HasSuffix(s, "s"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
		if err != nil {
			return 0, fmt.Errorf("ttml: bad time %q", s)
		}
		return time.Duration(v * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("ttml: bad time %q", s)
}

var xmlEntities = strings.NewReplacer(
	"&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&#39;", "'", "&amp;", "&",
)

func xmlUnescape(s string) string {
	return xmlEntities.Replace(s)
}

package subtitle

import (
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
)

type ytTranscript struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start   string `xml:"start,attr"`
		Dur     string `xml:"dur,attr"`
		Content string `xml:",innerxml"`
	} `xml:"text"`
}

// YouTube timed-text documents double-escape their payload, so entity
// decoding runs after the XML layer.
func parseYouTubeXML(text string, _ float64) (*Subtitle, error) {
	var doc ytTranscript
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("youtube: %w", err)
	}
	if doc.XMLName.Local != "transcript" {
		return nil, fmt.Errorf("youtube: root element is %q", doc.XMLName.Local)
	}

	sub := &Subtitle{Format: FormatYouTubeXML}
	for _, t := range doc.Texts {
		start, err := strconv.ParseFloat(t.Start, 64)
		if err != nil {
			return nil, fmt.Errorf("youtube: bad start %q", t.Start)
		}
		dur := 2.0
		if t.Dur != "" {
			if dur, err = strconv.ParseFloat(t.Dur, 64); err != nil {
				return nil, fmt.Errorf("youtube: bad dur %q", t.Dur)
			}
		}

		content := html.UnescapeString(xmlUnescape(t.Content))
		var cueLines []string
		for _, part := range ttmlBr.Split(content, -1) {
			line := strings.TrimSpace(tagMarkup.ReplaceAllString(part, ""))
			if line != "" {
				cueLines = append(cueLines, line)
			}
		}
		sub.Cues = append(sub.Cues, &Cue{
			Start:      time.Duration(start * float64(time.Second)),
			End:        time.Duration((start + dur) * float64(time.Second)),
			Lines:      cueLines,
			PlainLines: stripTags(cueLines),
		})
	}

	if len(sub.Cues) == 0 {
		return nil, fmt.Errorf("youtube: no text nodes")
	}
	return sub, nil
}

// Package subtitle detects, parses and re-serializes subtitle files.
// Detection tries a fixed, ordered list of format parsers; the first one
// that parses without error wins. Stricter formats sit earlier in the list
// so loose parsers cannot shadow them.
package subtitle

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Format identifies a subtitle text format.
type Format string

const (
	FormatSubRip     Format = "subrip"
	FormatMicroDVD   Format = "microdvd"
	FormatSubViewer  Format = "subviewer"
	FormatSSA        Format = "substationalpha"
	FormatTTML       Format = "ttml"
	FormatWebVTT     Format = "webvtt"
	FormatYouTubeXML Format = "youtube-xml"
)

// Extension returns the conventional file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatSubRip:
		return "srt"
	case FormatMicroDVD, FormatSubViewer:
		return "sub"
	case FormatSSA:
		return "ssa"
	case FormatTTML:
		return "ttml"
	case FormatWebVTT:
		return "vtt"
	default:
		return "txt"
	}
}

// Cue is one timed text event. Lines keeps the source markup, PlainLines is
// markup-stripped text used for character counting and scoring.
type Cue struct {
	Start      time.Duration
	End        time.Duration
	Lines      []string
	PlainLines []string
}

// Subtitle is a parsed file. Cues keep the order produced by the source
// parser and are not re-sorted.
type Subtitle struct {
	Format   Format
	Encoding string  // charset the payload was decoded from
	FPS      float64 // detected frame rate for frame-based formats, else 0
	Cues     []*Cue

	text string // decoded source text, kept for the fast re-encode path
}

// Options configures charset resolution for Load.
type Options struct {
	DefaultEncoding string // used when detection is off or unconfident
	AutoDetect      bool
}

// ErrUnrecognized is returned when no parser accepts the payload.
var ErrUnrecognized = errors.New("subtitle format not recognized")

type parser struct {
	format Format
	parse  func(text string, fps float64) (*Subtitle, error)
}

// Parser order is a deliberate heuristic: more specific formats first,
// ties broken by position, never by content inspection.
var parsers = []parser{
	{FormatSubRip, parseSubRip},
	{FormatMicroDVD, parseMicroDVD},
	{FormatSubViewer, parseSubViewer},
	{FormatSSA, parseSSA},
	{FormatTTML, parseTTML},
	{FormatWebVTT, parseWebVTT},
	{FormatYouTubeXML, parseYouTubeXML},
}

// Load decodes the payload's charset and tries each format parser in order.
// fallbackFPS seeds frame-based formats that carry no fps header.
func Load(data []byte, opts Options, fallbackFPS float64) (*Subtitle, error) {
	if len(data) == 0 {
		return nil, ErrUnrecognized
	}
	text, charset := decodeText(data, opts)

	for _, p := range parsers {
		sub, err := p.parse(text, fallbackFPS)
		if err != nil {
			continue
		}
		sub.Format = p.format
		sub.Encoding = charset
		sub.text = text
		logrus.WithField("component", "subtitle").WithFields(logrus.Fields{
			"format":  sub.Format,
			"charset": charset,
			"cues":    len(sub.Cues),
		}).Debug("subtitle parsed")
		return sub, nil
	}
	return nil, ErrUnrecognized
}

// hostFormats is the small set the host can serve directly.
var hostFormats = map[Format]bool{
	FormatSubRip: true,
	FormatSSA:    true,
	FormatWebVTT: true,
}

// PostProcess requests timing adjustment during conversion.
type PostProcess struct {
	AdjustDuration bool
	ExtendOnly     bool
	CPS            float64
}

// ToSupportedFormat re-serializes the subtitle into a host-supported
// format. Without post-processing, an already-supported format takes a
// fast path that only changed the character set at load time, minimizing
// fidelity loss. Everything else is converted to SubRip.
func ToSupportedFormat(sub *Subtitle, pp *PostProcess) ([]byte, Format) {
	needsProcessing := pp != nil && pp.AdjustDuration
	if !needsProcessing && hostFormats[sub.Format] {
		return []byte(sub.text), sub.Format
	}

	if needsProcessing {
		AdjustDuration(sub, pp.CPS, pp.ExtendOnly)
	}

	switch sub.Format {
	case FormatSSA:
		return renderSSA(sub), FormatSSA
	case FormatWebVTT:
		return renderWebVTT(sub), FormatWebVTT
	default:
		return renderSubRip(sub), FormatSubRip
	}
}

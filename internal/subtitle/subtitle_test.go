package subtitle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = "1\r\n00:00:01,000 --> 00:00:03,500\r\nHello <i>there</i>\r\nsecond line\r\n\r\n2\r\n00:00:05,000 --> 00:00:07,000\r\nBye\r\n"

func TestLoadSubRip(t *testing.T) {
	sub, err := Load([]byte(sampleSRT), Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, FormatSubRip, sub.Format)
	require.Len(t, sub.Cues, 2)

	assert.Equal(t, time.Second, sub.Cues[0].Start)
	assert.Equal(t, 3500*time.Millisecond, sub.Cues[0].End)
	assert.Equal(t, []string{"Hello <i>there</i>", "second line"}, sub.Cues[0].Lines)
	assert.Equal(t, []string{"Hello there", "second line"}, sub.Cues[0].PlainLines)
}

func TestLoadMicroDVD(t *testing.T) {
	data := "{1}{1}23.976\n{24}{72}First line|Second {y:i}line\n{120}{168}Next\n"
	sub, err := Load([]byte(data), Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, FormatMicroDVD, sub.Format)
	assert.InDelta(t, 23.976, sub.FPS, 0.001)
	require.Len(t, sub.Cues, 2)

	// frame 24 at 23.976 fps is just over one second
	assert.InDelta(t, 1.001, sub.Cues[0].Start.Seconds(), 0.001)
	assert.Equal(t, []string{"First line", "Second line"}, sub.Cues[0].Lines)
}

func TestLoadMicroDVDFallbackFPS(t *testing.T) {
	data := "{25}{75}No header here\n"
	sub, err := Load([]byte(data), Options{}, 25)
	require.NoError(t, err)
	assert.Equal(t, 25.0, sub.FPS)
	assert.Equal(t, time.Second, sub.Cues[0].Start)
}

func TestLoadSubViewer(t *testing.T) {
	data := "[INFORMATION]\n[TITLE]test\n\n00:00:01.000,00:00:03.000\nLine one[br]Line two\n\n00:00:04.000,00:00:05.000\nBye\n"
	sub, err := Load([]byte(data), Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, FormatSubViewer, sub.Format)
	require.Len(t, sub.Cues, 2)
	assert.Equal(t, []string{"Line one", "Line two"}, sub.Cues[0].Lines)
}

func TestLoadSSA(t *testing.T) {
	data := "[Script Info]\nScriptType: v4.00+\n\n[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\nDialogue: 0,0:00:01.50,0:00:04.00,Default,,0,0,0,,{\\i1}Styled{\\i0} text\\Nsecond\n"
	sub, err := Load([]byte(data), Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, FormatSSA, sub.Format)
	require.Len(t, sub.Cues, 1)

	assert.Equal(t, 1500*time.Millisecond, sub.Cues[0].Start)
	assert.Equal(t, 4*time.Second, sub.Cues[0].End)
	assert.Equal(t, []string{"Styled text", "second"}, sub.Cues[0].PlainLines)
}

func TestLoadSSACommasInText(t *testing.T) {
	data := "[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\nDialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,one, two, three\n"
	sub, err := Load([]byte(data), Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"one, two, three"}, sub.Cues[0].Lines)
}

func TestLoadWebVTT(t *testing.T) {
	data := "WEBVTT\n\nintro\n00:01.000 --> 00:03.000\nShort form\n\n00:00:05.000 --> 00:00:06.500\nLong form\n"
	sub, err := Load([]byte(data), Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, FormatWebVTT, sub.Format)
	require.Len(t, sub.Cues, 2)
	assert.Equal(t, time.Second, sub.Cues[0].Start)
	assert.Equal(t, 5*time.Second, sub.Cues[1].Start)
}

func TestLoadTTML(t *testing.T) {
	data := `<?xml version="1.0"?><tt xmlns="http://www.w3.org/ns/ttml"><body><div>
<p begin="00:00:01.000" end="00:00:03.000">First<br/>Second &amp; third</p>
<p begin="4s" dur="1.5s">Offset form</p>
</div></body></tt>`
	sub, err := Load([]byte(data), Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, FormatTTML, sub.Format)
	require.Len(t, sub.Cues, 2)
	assert.Equal(t, []string{"First", "Second & third"}, sub.Cues[0].Lines)
	assert.Equal(t, 4*time.Second, sub.Cues[1].Start)
	assert.Equal(t, 5500*time.Millisecond, sub.Cues[1].End)
}

func TestLoadYouTubeXML(t *testing.T) {
	data := `<transcript><text start="1.2" dur="2.4">Hello &amp;amp; welcome</text><text start="5">No dur</text></transcript>`
	sub, err := Load([]byte(data), Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, FormatYouTubeXML, sub.Format)
	require.Len(t, sub.Cues, 2)
	assert.Equal(t, []string{"Hello & welcome"}, sub.Cues[0].Lines)
	assert.InDelta(t, 3.6, sub.Cues[0].End.Seconds(), 0.001)
}

func TestLoadUnrecognized(t *testing.T) {
	_, err := Load([]byte("this is not a subtitle file\njust prose\n"), Options{}, 0)
	assert.ErrorIs(t, err, ErrUnrecognized)

	_, err = Load(nil, Options{}, 0)
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestLoadWindows1252Default(t *testing.T) {
	// 0xE9 is é in windows-1252
	data := []byte("1\n00:00:01,000 --> 00:00:02,000\ncaf\xe9\n")
	sub, err := Load(data, Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "café", sub.Cues[0].Lines[0])
}

func TestLoadUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(sampleSRT)...)
	sub, err := Load(data, Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", sub.Encoding)
}

func TestToSupportedFormatFastPath(t *testing.T) {
	sub, err := Load([]byte(sampleSRT), Options{}, 0)
	require.NoError(t, err)

	out, format := ToSupportedFormat(sub, nil)
	assert.Equal(t, FormatSubRip, format)
	assert.Equal(t, sampleSRT, string(out))
}

func TestToSupportedFormatConvertsToSubRip(t *testing.T) {
	data := "{1}{1}25\n{25}{75}Converted\n"
	sub, err := Load([]byte(data), Options{}, 0)
	require.NoError(t, err)

	out, format := ToSupportedFormat(sub, nil)
	assert.Equal(t, FormatSubRip, format)
	assert.Contains(t, string(out), "00:00:01,000 --> 00:00:03,000")
	assert.Contains(t, string(out), "Converted")
}

func TestToSupportedFormatPostProcessing(t *testing.T) {
	sub, err := Load([]byte(sampleSRT), Options{}, 0)
	require.NoError(t, err)

	out, format := ToSupportedFormat(sub, &PostProcess{AdjustDuration: true, CPS: DefaultCPS})
	assert.Equal(t, FormatSubRip, format)
	// post-processing forces a re-render even for host formats
	assert.NotEqual(t, sampleSRT, string(out))
	assert.True(t, strings.HasPrefix(string(out), "1\r\n"))
}

func TestRenderWebVTTRoundTrip(t *testing.T) {
	orig := "WEBVTT\n\n00:00:01.000 --> 00:00:03.000\nhello\n"
	sub, err := Load([]byte(orig), Options{}, 0)
	require.NoError(t, err)

	out := renderWebVTT(sub)
	sub2, err := Load(out, Options{}, 0)
	require.NoError(t, err)
	assert.Equal(t, sub.Cues[0].Start, sub2.Cues[0].Start)
	assert.Equal(t, sub.Cues[0].Lines, sub2.Cues[0].Lines)
}

func TestRenderSSAParseable(t *testing.T) {
	sub := &Subtitle{Format: FormatSSA, Cues: []*Cue{
		{Start: time.Second, End: 3 * time.Second, Lines: []string{"a", "b"}, PlainLines: []string{"a", "b"}},
	}}
	out := renderSSA(sub)
	sub2, err := parseSSA(string(out), 0)
	require.NoError(t, err)
	require.Len(t, sub2.Cues, 1)
	assert.Equal(t, time.Second, sub2.Cues[0].Start)
	assert.Equal(t, []string{"a", "b"}, sub2.Cues[0].Lines)
}

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, "srt", FormatSubRip.Extension())
	assert.Equal(t, "sub", FormatMicroDVD.Extension())
	assert.Equal(t, "vtt", FormatWebVTT.Extension())
	assert.Equal(t, "txt", Format("bogus").Extension())
}

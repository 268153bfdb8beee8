package subtitle

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"subtitle-batcher/internal/domain"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
Hello there.

2
00:00:04,000 --> 00:00:06,250
Second line
continued here.
`

// TestParseSRT parses a well-formed file into timed cues.
func TestParseSRT(t *testing.T) {
	cues, err := ParseSRT(sampleSRT)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("cues = %d, want 2", len(cues))
	}

	if cues[0].Start != time.Second || cues[0].End != 3500*time.Millisecond {
		t.Fatalf("cue timing = %v..%v", cues[0].Start, cues[0].End)
	}
	if cues[1].Text != "Second line\ncontinued here." {
		t.Fatalf("multiline text = %q", cues[1].Text)
	}
}

// TestParseSRTSkipsMalformedBlocks keeps good cues and drops bad ones.
func TestParseSRTSkipsMalformedBlocks(t *testing.T) {
	content := "not-a-number\n00:00:01,000 --> 00:00:02,000\nbad\n\n" +
		"1\nbroken timestamps\nbad\n\n" +
		"2\n00:00:03,000 --> 00:00:04,000\ngood\n"

	cues, err := ParseSRT(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cues) != 1 || cues[0].Text != "good" {
		t.Fatalf("cues = %+v", cues)
	}
}

// TestParseSRTEmpty rejects content with no usable cues.
func TestParseSRTEmpty(t *testing.T) {
	if _, err := ParseSRT("garbage without cues"); err == nil {
		t.Fatal("expected error for empty parse result")
	}
}

// TestParseSRTWindowsLineEndings handles CRLF transcripts.
func TestParseSRTWindowsLineEndings(t *testing.T) {
	content := strings.ReplaceAll(sampleSRT, "\n", "\r\n")
	cues, err := ParseSRT(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("cues = %d, want 2", len(cues))
	}
}

// TestRenderSRTRoundTrip renders cues and parses them back.
func TestRenderSRTRoundTrip(t *testing.T) {
	cues, err := ParseSRT(sampleSRT)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	out, err := Render(cues, domain.FormatSRT)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	again, err := ParseSRT(string(out))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(again) != len(cues) || again[0].Text != cues[0].Text {
		t.Fatalf("round trip mismatch: %+v", again)
	}
}

// TestRenderVTT writes the WEBVTT header and dot millisecond separators.
func TestRenderVTT(t *testing.T) {
	cues := []Cue{{Index: 1, Start: time.Second, End: 2 * time.Second, Text: "hi"}}

	out, err := Render(cues, domain.FormatVTT)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(out)
	if !strings.HasPrefix(text, "WEBVTT\n\n") {
		t.Fatalf("missing header: %q", text)
	}
	if !strings.Contains(text, "00:00:01.000 --> 00:00:02.000") {
		t.Fatalf("timestamps = %q", text)
	}
}

// TestRenderTXT writes one line of text per cue without timings.
func TestRenderTXT(t *testing.T) {
	cues := []Cue{
		{Index: 1, Start: 0, End: time.Second, Text: "one"},
		{Index: 2, Start: time.Second, End: 2 * time.Second, Text: "two"},
	}

	out, err := Render(cues, domain.FormatTXT)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(out) != "one\ntwo\n" {
		t.Fatalf("txt = %q", string(out))
	}
}

// TestRenderJSON writes cue timings in seconds.
func TestRenderJSON(t *testing.T) {
	cues := []Cue{{Index: 1, Start: 1500 * time.Millisecond, End: 3 * time.Second, Text: "hi"}}

	out, err := Render(cues, domain.FormatJSON)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var decoded []struct {
		Index int     `json:"index"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Start != 1.5 || decoded[0].End != 3.0 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

// TestRenderUnknownFormat rejects unsupported format IDs.
func TestRenderUnknownFormat(t *testing.T) {
	if _, err := Render(nil, "doc"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

// TestFileNameFor covers language suffixes and extension mapping.
func TestFileNameFor(t *testing.T) {
	cases := []struct {
		media  string
		lang   string
		format string
		want   string
	}{
		{"movie.mp4", "es", domain.FormatSRT, "movie-es.srt"},
		{"movie.mp4", "", domain.FormatVTT, "movie.vtt"},
		{"/tmp/clips/talk.mkv", "original", domain.FormatTXT, "talk-original.txt"},
		{"movie.mp4", "en", domain.FormatOoona, "movie-en.ooona"},
		{"", "en", domain.FormatSRT, "subtitles-en.srt"},
	}

	for _, tc := range cases {
		if got := FileNameFor(tc.media, tc.lang, tc.format); got != tc.want {
			t.Fatalf("FileNameFor(%q, %q, %q) = %q, want %q", tc.media, tc.lang, tc.format, got, tc.want)
		}
	}
}

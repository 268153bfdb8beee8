// Package subtitle holds the cue model, the SRT parser used to read
// whisper.cpp output, and the renderers for the supported output formats.
package subtitle

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"subtitle-batcher/internal/domain"
)

// Cue is one timed subtitle line.
type Cue struct {
	Index int           `json:"index"`
	Start time.Duration `json:"-"`
	End   time.Duration `json:"-"`
	Text  string        `json:"text"`
}

// cueJSON is the wire shape for the JSON output format.
type cueJSON struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ParseSRT parses SubRip content into cues. Blocks that are not well formed
// are skipped rather than failing the whole file; an empty result is an
// error because it means the transcription produced nothing usable.
func ParseSRT(content string) ([]Cue, error) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(normalized, "\n\n")

	var cues []Cue
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}

		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}

		start, end, err := parseTimeRange(lines[1])
		if err != nil {
			continue
		}

		text := strings.TrimSpace(strings.Join(lines[2:], "\n"))
		if text == "" {
			continue
		}

		cues = append(cues, Cue{Index: index, Start: start, End: end, Text: text})
	}

	if len(cues) == 0 {
		return nil, fmt.Errorf("no cues found in srt content")
	}
	return cues, nil
}

// Render serializes cues into the requested output format.
func Render(cues []Cue, format string) ([]byte, error) {
	switch format {
	case domain.FormatSRT:
		return renderSRT(cues), nil
	case domain.FormatVTT:
		return renderVTT(cues), nil
	case domain.FormatTXT:
		return renderTXT(cues), nil
	case domain.FormatJSON:
		return renderJSON(cues)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// FileNameFor builds the output file name from the input media name, the
// language suffix, and the format extension.
func FileNameFor(mediaName, langSuffix, format string) string {
	base := strings.TrimSuffix(filepath.Base(mediaName), filepath.Ext(mediaName))
	base = strings.TrimSpace(base)
	if base == "" || base == "." {
		base = "subtitles"
	}

	ext := "." + format
	if f, ok := domain.FormatByID(format); ok {
		ext = f.Extension
	}

	if langSuffix == "" {
		return base + ext
	}
	return base + "-" + langSuffix + ext
}

// renderSRT writes SubRip blocks with comma-separated milliseconds.
func renderSRT(cues []Cue) []byte {
	var b strings.Builder
	for i, cue := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, formatTimestamp(cue.Start, ","), formatTimestamp(cue.End, ","), cue.Text)
	}
	return []byte(b.String())
}

// renderVTT writes WebVTT with dot-separated milliseconds and a header.
func renderVTT(cues []Cue) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, cue := range cues {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			formatTimestamp(cue.Start, "."), formatTimestamp(cue.End, "."), cue.Text)
	}
	return []byte(b.String())
}

// renderTXT writes the bare transcript, one cue per line.
func renderTXT(cues []Cue) []byte {
	var b strings.Builder
	for _, cue := range cues {
		b.WriteString(cue.Text)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// renderJSON writes cues with start and end in seconds.
func renderJSON(cues []Cue) ([]byte, error) {
	out := make([]cueJSON, 0, len(cues))
	for i, cue := range cues {
		out = append(out, cueJSON{
			Index: i + 1,
			Start: cue.Start.Seconds(),
			End:   cue.End.Seconds(),
			Text:  cue.Text,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// parseTimeRange parses "HH:MM:SS,mmm --> HH:MM:SS,mmm".
func parseTimeRange(line string) (time.Duration, time.Duration, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed time range: %s", line)
	}

	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp parses "HH:MM:SS,mmm" (or with a dot separator).
func parseTimestamp(raw string) (time.Duration, error) {
	clock := strings.ReplaceAll(raw, ",", ".")
	fields := strings.Split(clock, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("malformed timestamp: %s", raw)
	}

	hours, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp: %s", raw)
	}
	minutes, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp: %s", raw)
	}
	seconds, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp: %s", raw)
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second)), nil
}

// formatTimestamp writes "HH:MM:SS<sep>mmm".
func formatTimestamp(d time.Duration, sep string) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	seconds := int(d % time.Minute / time.Second)
	millis := int(d % time.Second / time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, seconds, sep, millis)
}

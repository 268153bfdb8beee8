package domain

// Subtitle output format identifiers.
const (
	FormatSRT   = "srt"
	FormatVTT   = "vtt"
	FormatTXT   = "txt"
	FormatJSON  = "json"
	FormatOoona = "ooona"
)

// OutputFormat describes one selectable subtitle output format.
type OutputFormat struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	ContentType string `json:"contentType"`
	NeedsOoona  bool   `json:"needsOoona"`
}

// OutputFormats lists supported formats in display order.
func OutputFormats() []OutputFormat {
	return []OutputFormat{
		{ID: FormatSRT, Name: "SubRip", Extension: ".srt", ContentType: "application/x-subrip"},
		{ID: FormatVTT, Name: "WebVTT", Extension: ".vtt", ContentType: "text/vtt"},
		{ID: FormatTXT, Name: "Plain text", Extension: ".txt", ContentType: "text/plain; charset=utf-8"},
		{ID: FormatJSON, Name: "JSON cues", Extension: ".json", ContentType: "application/json"},
		{ID: FormatOoona, Name: "OOONA project", Extension: ".ooona", ContentType: "application/json", NeedsOoona: true},
	}
}

// FormatByID returns the format descriptor for id.
func FormatByID(id string) (OutputFormat, bool) {
	for _, f := range OutputFormats() {
		if f.ID == id {
			return f, true
		}
	}
	return OutputFormat{}, false
}

// TranslationLanguages lists target language codes the local translation
// model accepts, in display order.
func TranslationLanguages() []string {
	return []string{
		"en", "es", "fr", "de", "it", "pt", "nl", "pl", "ru", "uk",
		"tr", "ar", "he", "hi", "zh", "ja", "ko", "vi", "sv", "da",
	}
}

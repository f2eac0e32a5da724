// Package normalize cleans user-supplied catalog fields before they are
// stored or compared.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Language names accepted in addition to BCP 47 tags and ISO 639 codes.
//
//nolint:gochecknoglobals // Static lookup table
var languageNames = map[string]string{
	"english": "en", "spanish": "es", "french": "fr", "german": "de",
	"italian": "it", "portuguese": "pt", "dutch": "nl", "russian": "ru",
	"japanese": "ja", "chinese": "zh", "mandarin": "zh", "korean": "ko",
	"arabic": "ar", "hindi": "hi", "polish": "pl", "swedish": "sv",
	"norwegian": "no", "danish": "da", "finnish": "fi", "turkish": "tr",
	"greek": "el", "hebrew": "he", "czech": "cs", "hungarian": "hu",
	"ukrainian": "uk", "latin": "la", "persian": "fa", "farsi": "fa",
}

var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// LanguageCode converts a language tag, ISO 639 code, locale or English
// language name to a two-letter ISO 639-1 code where one exists.
//
//	"en-US" -> "en", "eng" -> "en", "pt_BR" -> "pt", "German" -> "de"
//
// Unrecognized values return "".
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if code, ok := languageNames[s]; ok {
		return code
	}

	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No || base.String() == "und" {
		return ""
	}
	return base.String()
}

// NameKey folds a personal or shelf name into a comparison key: accents
// stripped, case folded, whitespace collapsed. "Gabriel García  Márquez"
// and "gabriel garcia marquez" share a key.
func NameKey(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = cases.Fold().String(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// ISBN strips separators from an ISBN and upper-cases a trailing check
// character. "0-306-40615-2" -> "0306406152".
func ISBN(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		}
	}
	return b.String()
}

// Description converts HTML descriptions to Markdown. Plain text passes
// through unchanged, and so does HTML the converter rejects.
func Description(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}

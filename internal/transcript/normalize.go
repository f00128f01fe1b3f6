package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Words that usually close a sentence in dictated clinical notes.
var sentenceEndings = map[string]bool{
	"patient": true, "treatment": true, "cavity": true, "procedure": true,
	"tooth": true, "examination": true, "recommended": true, "performed": true,
	"completed": true, "noted": true, "observed": true, "found": true,
	"present": true, "visible": true, "detected": true,
}

var discourseMarkers = map[string]bool{
	"however": true, "additionally": true, "furthermore": true, "moreover": true,
}

var (
	reToothNumber = regexp.MustCompile(`^#?\d{1,2}$`)
	reDoubleAnd   = regexp.MustCompile(`\band\s+and\s+`)
	reFiller      = regexp.MustCompile(`\b(?:um|uh)\s+`)
	reSpaces      = regexp.MustCompile(`\s+`)
)

// Normalize cleans up raw dictation before it reaches the edit stage: it
// restores punctuation recognizers drop, removes filler words, and collapses
// whitespace. Empty input stays empty.
func Normalize(text string) string {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return ""
	}

	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for i, word := range words {
		out = append(out, word)
		hasNext := i < len(words)-1
		lower := strings.ToLower(word)

		if hasNext && sentenceEndings[lower] && startsUpper(words[i+1]) {
			out[len(out)-1] = word + "."
		}
		if hasNext && reToothNumber.MatchString(word) && !strings.HasPrefix(words[i+1], "#") {
			out[len(out)-1] = word + ","
		}
		if discourseMarkers[lower] {
			out[len(out)-1] = word + ","
		}
	}

	text = strings.Join(out, " ")
	if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
		text += "."
	}
	text = reDoubleAnd.ReplaceAllString(text, " and ")
	text = reFiller.ReplaceAllString(text, "")
	text = reSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

// secondsPerChar estimates narration length from text length
const secondsPerChar = 0.05

// WordBoundary is the approximate position of one spoken word
type WordBoundary struct {
	TextOffset  int     `json:"text_offset"`  // rune offset into the text
	AudioOffset int     `json:"audio_offset"` // milliseconds
	Word        string  `json:"word"`
	Start       float64 `json:"start"` // seconds
	End         float64 `json:"end"`   // seconds
}

// EstimateDuration returns the assumed narration length of text in seconds
func EstimateDuration(text string) float64 {
	return float64(len([]rune(text))) * secondsPerChar
}

// WordBoundaries spreads the estimated duration of text evenly over its
// whitespace separated words. It returns nil boundaries when text has no words.
func WordBoundaries(text string) ([]WordBoundary, float64) {
	duration := EstimateDuration(text)
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, duration
	}

	runes := []rune(text)
	perWord := duration / float64(len(words))
	boundaries := make([]WordBoundary, 0, len(words))

	offset := 0
	for i, word := range words {
		w := []rune(word)
		for offset < len(runes) && !hasRunePrefix(runes[offset:], w) {
			offset++
		}

		boundaries = append(boundaries, WordBoundary{
			TextOffset:  offset,
			AudioOffset: int(float64(i) * perWord * 1000),
			Word:        word,
			Start:       float64(i) * perWord,
			End:         float64(i+1) * perWord,
		})
		offset += len(w)
	}

	return boundaries, duration
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}

var bookmarkRe = regexp.MustCompile(`<bookmark\s*mark\s*=\s*['"]\w*['"]\s*/>`)

// RemoveBookmarks strips <bookmark mark="..."/> tags used for scene timing
func RemoveBookmarks(text string) string {
	return bookmarkRe.ReplaceAllString(text, "")
}

// Fingerprint returns the cache key of a request: the sha256 of its
// JSON encoded input data. Map keys are encoded in sorted order.
func Fingerprint(inputData map[string]any) string {
	data, _ := json.Marshal(inputData)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AudioBasename names the audio file of a request after its text and fingerprint
func AudioBasename(inputData map[string]any) string {
	text, _ := inputData["input_text"].(string)
	slug := slugify(RemoveBookmarks(text))
	if r := []rune(slug); len(r) > 50 {
		slug = strings.TrimRight(string(r[:50]), "-")
	}
	return slug + "-" + Fingerprint(inputData)[:8]
}

// slugify lowercases text and joins runs of letters and digits with dashes
func slugify(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

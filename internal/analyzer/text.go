package analyzer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// scriptLanguages maps a writing system to the language assumed for it
var scriptLanguages = []struct {
	table *unicode.RangeTable
	tag   language.Tag
}{
	{unicode.Hebrew, language.Hebrew},
	{unicode.Arabic, language.Arabic},
	{unicode.Cyrillic, language.Russian},
	{unicode.Hangul, language.Korean},
	{unicode.Han, language.Chinese},
}

// minScriptShare is the fraction of letters a script needs to decide the language
const minScriptShare = 0.1

// DetectLanguage guesses the language of text from its dominant non-Latin
// script. Latin text and text without letters report English.
func DetectLanguage(text string) language.Tag {
	counts := make([]int, len(scriptLanguages))
	letters, kana := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.In(r, unicode.Hiragana, unicode.Katakana) {
			kana++
			continue
		}
		for i, s := range scriptLanguages {
			if unicode.Is(s.table, r) {
				counts[i]++
				break
			}
		}
	}
	if letters == 0 {
		return language.English
	}

	// Kana only occurs in Japanese, which also uses Han characters
	if float64(kana)/float64(letters) > 0.05 {
		return language.Japanese
	}

	best, bestCount := language.English, 0
	for i, n := range counts {
		if n > bestCount && float64(n)/float64(letters) >= minScriptShare {
			best, bestCount = scriptLanguages[i].tag, n
		}
	}
	return best
}

// languageInstruction asks the model to answer in the language of the email
func languageInstruction(tag language.Tag) string {
	if tag == language.English {
		return ""
	}
	return "Write the summary and the tasks in " + display.English.Tags().Name(tag) + "."
}

var (
	tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)
	stopwords    = map[string]struct{}{
		"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {}, "for": {},
		"from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "our": {},
		"please": {}, "the": {}, "their": {}, "this": {}, "that": {}, "to": {}, "with": {},
		"you": {}, "your": {},
	}
)

// taskKey is a normalized form of a task description. Descriptions differing
// only in stopwords, case, punctuation or word order share a key.
func taskKey(description string) string {
	raw := tokenPattern.FindAllString(strings.ToLower(description), -1)
	tokens := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, tok := range raw {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		return strings.ToLower(strings.TrimSpace(description))
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

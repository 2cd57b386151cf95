package analyzer

import (
	"strings"
	"unicode"
)

// MinDetectWords is the shortest sentence, in words, that gets a language.
const MinDetectWords = 3

// Detector guesses the language of a sentence.
type Detector interface {
	// Detect returns an ISO 639-1 code, or false when unsure.
	Detect(text string) (string, bool)
}

// scriptRanges maps scripts used by a single major language to that language.
var scriptRanges = []struct {
	table *unicode.RangeTable
	code  string
}{
	{unicode.Hangul, "ko"},
	{unicode.Hiragana, "ja"},
	{unicode.Katakana, "ja"},
	{unicode.Han, "zh"},
	{unicode.Cyrillic, "ru"},
	{unicode.Arabic, "ar"},
	{unicode.Devanagari, "hi"},
	{unicode.Bengali, "bn"},
	{unicode.Thai, "th"},
	{unicode.Hebrew, "he"},
	{unicode.Greek, "el"},
}

// stopwords are frequent function words per Latin-script language.
var stopwords = map[string][]string{
	"en": {"the", "and", "is", "are", "was", "this", "that", "with", "for", "you", "have", "not", "of", "to", "in", "it", "be", "on", "my", "we"},
	"es": {"el", "la", "los", "las", "de", "que", "y", "en", "un", "una", "es", "por", "con", "para", "como", "pero", "muy", "más", "del", "se"},
	"pt": {"o", "a", "os", "as", "de", "que", "e", "em", "um", "uma", "é", "não", "com", "para", "mais", "muito", "do", "da", "se", "por"},
	"de": {"der", "die", "das", "und", "ist", "nicht", "ich", "zu", "mit", "den", "ein", "eine", "auf", "sich", "auch", "es", "dem", "von", "wir", "sie"},
	"fr": {"le", "la", "les", "et", "est", "un", "une", "des", "que", "qui", "dans", "pour", "pas", "sur", "avec", "ce", "je", "nous", "du", "il"},
	"it": {"il", "la", "di", "che", "e", "è", "un", "una", "per", "non", "con", "sono", "del", "della", "ma", "gli", "questo", "anche", "come", "si"},
	"nl": {"de", "het", "een", "en", "van", "is", "dat", "niet", "ik", "op", "te", "zijn", "met", "voor", "ook", "maar", "wij", "dit", "er", "je"},
	"pl": {"i", "w", "na", "nie", "się", "z", "jest", "to", "że", "do", "jak", "ale", "co", "tak", "od", "po", "przez", "dla", "są", "jestem"},
	"id": {"yang", "dan", "di", "ini", "itu", "dengan", "untuk", "tidak", "dari", "dalam", "akan", "ada", "saya", "kita", "juga", "karena", "bisa", "sudah", "atau", "pada"},
	"tr": {"ve", "bir", "bu", "da", "de", "için", "ile", "çok", "ne", "ama", "gibi", "daha", "olarak", "var", "ben", "sen", "o", "mi", "değil", "en"},
}

// HeuristicDetector detects non-Latin scripts by code point and Latin-script
// languages by stopword frequency.
type HeuristicDetector struct {
	// MinShare is the fraction of evidence the winner needs.
	MinShare float64
	sets     map[string]map[string]struct{}
}

// NewHeuristicDetector builds the stopword sets.
func NewHeuristicDetector() *HeuristicDetector {
	sets := make(map[string]map[string]struct{}, len(stopwords))
	for code, list := range stopwords {
		set := make(map[string]struct{}, len(list))
		for _, w := range list {
			set[w] = struct{}{}
		}
		sets[code] = set
	}
	return &HeuristicDetector{MinShare: 0.5, sets: sets}
}

func (d *HeuristicDetector) Detect(text string) (string, bool) {
	tokens := words(text)
	if len(tokens) < MinDetectWords {
		return "", false
	}

	if code, ok := d.byScript(text); ok {
		return code, true
	}
	return d.byStopwords(tokens)
}

func (d *HeuristicDetector) byScript(text string) (string, bool) {
	counts := make(map[string]int)
	letters := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		for _, s := range scriptRanges {
			if unicode.Is(s.table, r) {
				counts[s.code]++
				break
			}
		}
	}
	if letters == 0 {
		return "", false
	}

	// Kana marks Japanese even when mixed with Han.
	if counts["ja"] > 0 {
		counts["ja"] += counts["zh"]
		delete(counts, "zh")
	}

	best, bestN := "", 0
	for _, s := range scriptRanges {
		if n := counts[s.code]; n > bestN {
			best, bestN = s.code, n
		}
	}
	if float64(bestN)/float64(letters) > d.MinShare {
		return best, true
	}
	return "", false
}

func (d *HeuristicDetector) byStopwords(tokens []string) (string, bool) {
	scores := make(map[string]int, len(d.sets))
	total := 0
	for _, t := range tokens {
		t = strings.ToLower(t)
		for code, set := range d.sets {
			if _, ok := set[t]; ok {
				scores[code]++
				total++
			}
		}
	}
	if total == 0 {
		return "", false
	}

	best, bestN := "", 0
	for _, code := range sortedCodes() {
		if n := scores[code]; n > bestN {
			best, bestN = code, n
		}
	}
	if float64(bestN)/float64(total) > d.MinShare {
		return best, true
	}
	return "", false
}

// sortedCodes fixes iteration order so ties resolve the same way every run.
func sortedCodes() []string {
	return []string{"en", "es", "pt", "de", "fr", "it", "nl", "pl", "id", "tr"}
}

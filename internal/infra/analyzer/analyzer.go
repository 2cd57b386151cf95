// Package analyzer computes structural and language statistics of post bodies.
package analyzer

import (
	"github.com/russross/blackfriday/v2"

	"github.com/vietddude/steemstream/internal/core/domain"
)

// Config selects the dictionary directory used for spelling checks.
type Config struct {
	DictionaryDir string `yaml:"dictionary_dir"`
}

// Analyzer implements the content analysis used by the post handler.
// It is not safe for concurrent use.
type Analyzer struct {
	detector Detector
	dicts    *Dictionaries
}

// New creates an analyzer with the heuristic detector and the configured dictionaries.
func New(cfg Config) (*Analyzer, error) {
	dicts, err := LoadDictionaries(cfg.DictionaryDir)
	if err != nil {
		return nil, err
	}
	return NewWith(NewHeuristicDetector(), dicts), nil
}

// NewWith creates an analyzer from explicit parts.
func NewWith(detector Detector, dicts *Dictionaries) *Analyzer {
	if dicts == nil {
		dicts = NewDictionaries()
	}
	return &Analyzer{detector: detector, dicts: dicts}
}

// Analyze renders markdown to HTML and counts words, sentences, paragraphs
// and images. Images written as markdown or as raw HTML tags are both counted.
func (a *Analyzer) Analyze(markdown string) domain.BodyStats {
	rendered := blackfriday.Run([]byte(markdown))
	doc := extract(string(rendered))

	return domain.BodyStats{
		WordCount:      len(words(doc.text)),
		SentenceCount:  len(sentences(doc.text)),
		ParagraphCount: len(paragraphs(doc.text)),
		ImageCount:     doc.images,
	}
}

// SegmentByLanguage assigns each paragraph to the language most of its
// sentences are written in. Only sentences in that language are kept for the
// paragraph. Paragraphs with no detectable sentence are dropped.
func (a *Analyzer) SegmentByLanguage(htmlText string) map[string]domain.LanguageStats {
	doc := extract(htmlText)
	out := make(map[string]domain.LanguageStats)

	for _, para := range paragraphs(doc.text) {
		type tagged struct{ text, code string }
		var (
			kept   []tagged
			counts = make(map[string]int)
			order  []string
		)
		for _, s := range sentences(para) {
			code, ok := a.detector.Detect(s)
			if !ok {
				continue
			}
			if counts[code] == 0 {
				order = append(order, code)
			}
			counts[code]++
			kept = append(kept, tagged{s, code})
		}
		if len(kept) == 0 {
			continue
		}

		dominant := order[0]
		for _, code := range order[1:] {
			if counts[code] > counts[dominant] {
				dominant = code
			}
		}

		stats := out[dominant]
		stats.Paragraphs++
		for _, k := range kept {
			if k.code == dominant {
				stats.Sentences = append(stats.Sentences, k.text)
			}
		}
		out[dominant] = stats
	}

	for code, stats := range out {
		stats.Words, stats.Errors = a.dicts.Errors(code, stats.Sentences)
		out[code] = stats
	}
	return out
}

package analyzer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	sentenceBreak  = regexp.MustCompile(`([.?!।])\s+`)
)

// document is the text content of an HTML fragment.
type document struct {
	text   string
	images int
}

// extract walks an HTML fragment and joins its text nodes with newlines.
// Script and style contents are dropped.
func extract(fragment string) document {
	var (
		parts  []string
		images int
	)

	z := html.NewTokenizer(strings.NewReader(fragment))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return document{text: strings.TrimSpace(strings.Join(parts, "\n")), images: images}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Img:
				images++
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					skip++
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				parts = append(parts, string(z.Text()))
			}
		}
	}
}

// paragraphs splits text on blank lines and drops empty pieces.
func paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentences splits text after terminal punctuation followed by whitespace.
func sentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceBreak.ReplaceAllString(text, "$1\x00")
	var out []string
	for _, s := range strings.Split(marked, "\x00") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// words returns the runs of letters and digits in text.
func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r) && r != '\''
	})
}

const trimmedPunctuation = `.,!?"“”‘’():;[]{}`

// spellingTokens splits on whitespace and trims surrounding punctuation.
func spellingTokens(sentence string) []string {
	fields := strings.Fields(sentence)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.Trim(f, trimmedPunctuation))
	}
	return out
}

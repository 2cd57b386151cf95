package analyzer

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NoDictionary is the error count reported for languages without a word list.
const NoDictionary = -1

// Dictionaries holds one word list per language base code.
type Dictionaries struct {
	fold  cases.Caser
	words map[string]map[string]struct{}
}

// NewDictionaries returns an empty set of dictionaries.
func NewDictionaries() *Dictionaries {
	return &Dictionaries{
		fold:  cases.Fold(),
		words: make(map[string]map[string]struct{}),
	}
}

// LoadDictionaries reads every *.dic and *.txt file in dir. The file name is
// the language tag, e.g. en_US.dic or es.txt. Hunspell affix flags after '/'
// and a leading entry-count line are ignored.
func LoadDictionaries(dir string) (*Dictionaries, error) {
	d := NewDictionaries()
	if dir == "" {
		return d, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary dir %s: %w", dir, err)
	}

	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".dic" && ext != ".txt") {
			continue
		}
		code, ok := baseCode(strings.TrimSuffix(e.Name(), ext))
		if !ok {
			slog.Warn("Skipping dictionary with unknown language tag", "file", e.Name())
			continue
		}
		n, err := d.loadFile(code, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		slog.Info("Loaded dictionary", "language", code, "words", n)
	}
	return d, nil
}

func (d *Dictionaries) loadFile(code, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open dictionary %s: %w", path, err)
	}
	defer f.Close()

	var list []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(line, '/'); i >= 0 {
			line = line[:i]
		}
		if line == "" || isNumber(line) {
			continue
		}
		list = append(list, line)
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}
	d.Add(code, list...)
	return len(list), nil
}

// Add registers words for a language.
func (d *Dictionaries) Add(code string, words ...string) {
	set, ok := d.words[code]
	if !ok {
		set = make(map[string]struct{}, len(words))
		d.words[code] = set
	}
	for _, w := range words {
		set[d.key(w)] = struct{}{}
	}
}

// Has reports whether a dictionary exists for code.
func (d *Dictionaries) Has(code string) bool {
	_, ok := d.words[code]
	return ok
}

// Errors counts tokens of sentences missing from the dictionary for code.
// It returns the token count and NoDictionary when there is no dictionary.
func (d *Dictionaries) Errors(code string, sentences []string) (tokens, errors int) {
	set, ok := d.words[code]
	if !ok {
		errors = NoDictionary
	}
	for _, s := range sentences {
		for _, w := range spellingTokens(s) {
			tokens++
			if !ok || w == "" || isNumber(w) {
				continue
			}
			if _, known := set[d.key(w)]; !known {
				errors++
			}
		}
	}
	return tokens, errors
}

func (d *Dictionaries) key(w string) string {
	return d.fold.String(norm.NFC.String(w))
}

// baseCode turns a file-style tag such as en_US into its ISO 639-1 base.
func baseCode(tag string) (string, bool) {
	t, err := language.Parse(strings.ReplaceAll(tag, "_", "-"))
	if err != nil {
		return "", false
	}
	base, conf := t.Base()
	if conf == language.No {
		return "", false
	}
	return base.String(), true
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return false
		}
	}
	return s != ""
}

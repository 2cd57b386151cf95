package analyzer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAnalyze(t *testing.T) {
	a := NewWith(NewHeuristicDetector(), nil)

	body := "# Title\n\nFirst paragraph here. It has two sentences.\n\n" +
		"![cat](https://img.example/cat.png)\n\n" +
		"Second paragraph with <img src=\"https://img.example/dog.png\"> inline."

	stats := a.Analyze(body)

	if stats.ImageCount != 2 {
		t.Errorf("Expected 2 images, got %d", stats.ImageCount)
	}
	if stats.ParagraphCount != 3 {
		t.Errorf("Expected 3 paragraphs, got %d", stats.ParagraphCount)
	}
	if stats.SentenceCount < 3 {
		t.Errorf("Expected at least 3 sentences, got %d", stats.SentenceCount)
	}
	if stats.WordCount != 12 {
		t.Errorf("Expected 12 words, got %d", stats.WordCount)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	stats := NewWith(NewHeuristicDetector(), nil).Analyze("")
	if stats.WordCount != 0 || stats.SentenceCount != 0 || stats.ParagraphCount != 0 || stats.ImageCount != 0 {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}

func TestSentences(t *testing.T) {
	tests := []struct {
		in       string
		expected int
	}{
		{"One. Two? Three!", 3},
		{"No terminal punctuation", 1},
		{"Decimal 3.5 stays together.", 1},
		{"", 0},
		{"यह एक वाक्य है। दूसरा वाक्य", 2},
	}
	for _, tt := range tests {
		if got := len(sentences(tt.in)); got != tt.expected {
			t.Errorf("sentences(%q): expected %d, got %d", tt.in, tt.expected, got)
		}
	}
}

func TestHeuristicDetector(t *testing.T) {
	d := NewHeuristicDetector()

	tests := []struct {
		name   string
		text   string
		code   string
		detect bool
	}{
		{"english", "This is the best post that I have seen", "en", true},
		{"spanish", "El perro es muy grande y la casa es pequeña", "es", true},
		{"german", "Ich bin nicht sicher, ob das die richtige Antwort ist", "de", true},
		{"korean", "오늘은 정말 좋은 날입니다 감사합니다", "ko", true},
		{"russian", "Это очень хороший пост спасибо", "ru", true},
		{"japanese", "今日は とても 良い 天気ですね", "ja", true},
		{"too short", "hello world", "", false},
		{"no evidence", "qwrt zxcv plkm", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := d.Detect(tt.text)
			if ok != tt.detect || code != tt.code {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.code, tt.detect, code, ok)
			}
		})
	}
}

func TestSegmentByLanguage(t *testing.T) {
	dicts := NewDictionaries()
	dicts.Add("en", "this", "is", "the", "first", "paragraph", "and", "it", "was", "written", "in", "english")
	a := NewWith(NewHeuristicDetector(), dicts)

	html := "<p>This is the first paragraph. And it was written in englsh.</p>\n\n" +
		"<p>El perro es muy grande y la casa es pequeña.</p>\n\n" +
		"<p>ok</p>"

	segments := a.SegmentByLanguage(html)

	en, ok := segments["en"]
	if !ok {
		t.Fatalf("Expected english segment, got %v", segments)
	}
	if en.Paragraphs != 1 || len(en.Sentences) != 2 {
		t.Errorf("Expected 1 paragraph with 2 sentences, got %+v", en)
	}
	if en.Errors != 1 {
		t.Errorf("Expected 1 spelling error, got %d", en.Errors)
	}
	if en.Words != 11 {
		t.Errorf("Expected 11 words, got %d", en.Words)
	}

	es, ok := segments["es"]
	if !ok {
		t.Fatalf("Expected spanish segment, got %v", segments)
	}
	if es.Errors != NoDictionary {
		t.Errorf("Expected %d errors without dictionary, got %d", NoDictionary, es.Errors)
	}
	if len(segments) != 2 {
		t.Errorf("Expected 2 languages, got %d", len(segments))
	}
}

func TestSegmentByLanguage_DominantPerParagraph(t *testing.T) {
	a := NewWith(NewHeuristicDetector(), nil)

	para := "This is the first line of text. This is the second line of text. El perro es muy grande y la casa."
	segments := a.SegmentByLanguage(para)

	if len(segments) != 1 {
		t.Fatalf("Expected only the dominant language, got %v", segments)
	}
	if got := len(segments["en"].Sentences); got != 2 {
		t.Errorf("Expected 2 english sentences kept, got %d", got)
	}
}

func TestLoadDictionaries(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "en_US.dic"), []byte("3\nhello/MS\nWorld\nsteem\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadDictionaries(dir)
	if err != nil {
		t.Fatalf("LoadDictionaries failed: %v", err)
	}
	if !d.Has("en") {
		t.Fatal("Expected en dictionary")
	}

	tokens, errs := d.Errors("en", []string{"Hello world, STEEM rocks!"})
	if tokens != 4 || errs != 1 {
		t.Errorf("Expected 4 tokens and 1 error, got %d and %d", tokens, errs)
	}
}

func TestLoadDictionaries_EmptyDir(t *testing.T) {
	d, err := LoadDictionaries("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if d.Has("en") {
		t.Error("Expected no dictionaries")
	}
}

// Package docsearch provides the search_documents tool: a keyword (BM25)
// index over a directory of text and markdown files.
package docsearch

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// BM25 parameters.
const (
	k1 = 1.2
	b  = 0.75
)

// MaxPassageSize bounds a passage, in bytes. Longer paragraphs are split on
// sentence or word boundaries.
const MaxPassageSize = 800

// DefaultExtensions are indexed by LoadDir when none are given.
var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// Result is one matching passage.
type Result struct {
	Source  string  `json:"source"`
	Passage string  `json:"passage"`
	Score   float64 `json:"score"`
}

type passage struct {
	source string
	text   string
	terms  map[string]int
	length int
}

// Index is an in-memory BM25 index. It is safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	passages []passage
	df       map[string]int
	totalLen int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{df: make(map[string]int)}
}

// Add splits text into passages and indexes them under source.
func (idx *Index) Add(source, text string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, chunk := range split(text) {
		terms := tokenize(chunk)
		if len(terms) == 0 {
			continue
		}
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			idx.df[t]++
		}
		idx.passages = append(idx.passages, passage{source: source, text: chunk, terms: tf, length: len(terms)})
		idx.totalLen += len(terms)
	}
}

// LoadDir indexes every file under dir whose extension is listed.
// Sources are recorded relative to dir with forward slashes.
func (idx *Index) LoadDir(dir string, exts ...string) error {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasExt(path, exts) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("docsearch: %w", err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		idx.Add(filepath.ToSlash(rel), string(data))
		return nil
	})
}

// Len returns the number of indexed passages.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.passages)
}

// Search returns up to limit passages ranked by BM25 score.
// Passages sharing no term with the query are never returned.
func (idx *Index) Search(query string, limit int) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := unique(tokenize(query))
	if len(terms) == 0 || len(idx.passages) == 0 || limit <= 0 {
		return nil
	}

	n := float64(len(idx.passages))
	avg := float64(idx.totalLen) / n

	var results []Result
	for _, p := range idx.passages {
		score := 0.0
		for _, t := range terms {
			f := float64(p.terms[t])
			if f == 0 {
				continue
			}
			df := float64(idx.df[t])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			score += idf * f * (k1 + 1) / (f + k1*(1-b+b*float64(p.length)/avg))
		}
		if score > 0 {
			results = append(results, Result{Source: p.source, Passage: p.text, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 && !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

func unique(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// split cuts text into paragraphs, then bounds each by MaxPassageSize.
func split(text string) []string {
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		for len(para) > MaxPassageSize {
			cut := strings.LastIndexAny(para[:MaxPassageSize], ".!?\n")
			if cut < MaxPassageSize/2 {
				cut = strings.LastIndex(para[:MaxPassageSize], " ")
			}
			if cut <= 0 {
				cut = MaxPassageSize - 1
			}
			out = append(out, strings.TrimSpace(para[:cut+1]))
			para = strings.TrimSpace(para[cut+1:])
		}
		if para != "" {
			out = append(out, para)
		}
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "or": true, "of": true, "to": true, "in": true,
	"is": true, "it": true, "on": true, "for": true, "with": true, "as": true,
	"at": true, "by": true, "an": true, "be": true, "are": true, "was": true,
	"this": true, "that": true, "from": true, "how": true, "what": true, "do": true,
}

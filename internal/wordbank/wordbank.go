// Package wordbank is the stateless word-bank helper: N random words per
// category, and construction / progressive reveal of the dashed hint. The
// word list is loaded via go:embed rather than a runtime file path, since it
// ships inside the binary and has no reason to be an external dependency the
// process can fail to find at startup.
package wordbank

import (
	"bytes"
	"embed"
	"encoding/csv"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
)

//go:embed words.csv
var wordsCSV []byte

const CategoryMixed = "mixed"

var (
	once       sync.Once
	byCategory map[string][]string
	allWords   []string
)

func load() {
	once.Do(func() {
		byCategory = make(map[string][]string)
		r := csv.NewReader(bytes.NewReader(wordsCSV))
		records, err := r.ReadAll()
		if err != nil {
			log.Fatalf("wordbank: unable to parse embedded word list: %v", err)
		}
		for _, rec := range records {
			if len(rec) < 2 {
				continue
			}
			word, category := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
			if word == "" || category == "" {
				continue
			}
			byCategory[category] = append(byCategory[category], word)
			allWords = append(allWords, word)
		}
	})
}

// Choices returns n random, unique words drawn from category. An unknown or
// "mixed" category pools every word across every category.
func Choices(category string, n int) []string {
	load()

	pool := allWords
	if category != "" && category != CategoryMixed {
		if p, ok := byCategory[category]; ok && len(p) > 0 {
			pool = p
		}
	}
	if len(pool) == 0 {
		return nil
	}

	seen := make(map[string]bool, n)
	choices := make([]string, 0, n)
	for len(choices) < n && len(seen) < len(pool) {
		w := pool[rand.Intn(len(pool))]
		if seen[w] {
			continue
		}
		seen[w] = true
		choices = append(choices, w)
	}
	return choices
}

// Mask renders the initial hint: each letter becomes an underscore, each
// space becomes a double-space, letters joined by single spaces.
func Mask(word string) string {
	return NewHint(word).Render()
}

// Hint tracks which letters of a secret word have been progressively
// revealed. It holds no shared state and is owned by the round controller
// for the lifetime of a single round.
type Hint struct {
	word     string
	revealed []bool // indexed by letter position, spaces excluded
}

func NewHint(word string) *Hint {
	letterCount := 0
	for _, r := range word {
		if r != ' ' {
			letterCount++
		}
	}
	return &Hint{word: word, revealed: make([]bool, letterCount)}
}

// Render builds the current dashed/revealed representation.
func (h *Hint) Render() string {
	tokens := make([]string, 0, len(h.word))
	li := 0
	for _, r := range h.word {
		if r == ' ' {
			tokens = append(tokens, "")
			continue
		}
		if h.revealed[li] {
			tokens = append(tokens, string(r))
		} else {
			tokens = append(tokens, "_")
		}
		li++
	}
	return strings.Join(tokens, " ")
}

// RevealRandomLetter replaces one uniformly random still-masked letter with
// its true letter. Returns false if every letter is already revealed.
func (h *Hint) RevealRandomLetter() bool {
	var candidates []int
	for i, done := range h.revealed {
		if !done {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return false
	}
	h.revealed[candidates[rand.Intn(len(candidates))]] = true
	return true
}

// Matches normalizes both sides (trim + lowercase) and compares for plain
// string equality.
func Matches(guess, secret string) bool {
	return strings.ToLower(strings.TrimSpace(guess)) == strings.ToLower(strings.TrimSpace(secret))
}

func validateCategory(category string) error {
	load()
	if category == "" || category == CategoryMixed {
		return nil
	}
	if _, ok := byCategory[category]; !ok {
		return fmt.Errorf("unknown word category %q", category)
	}
	return nil
}

// ValidateCategory is exported for the Room's setGameMode/startGame settings
// validation path.
func ValidateCategory(category string) error { return validateCategory(category) }

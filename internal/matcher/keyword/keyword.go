// Package keyword implements the Matcher interface with a deterministic,
// in-process phrase matcher.
//
// The transcript is folded (case, diacritics), stripped of disfluencies,
// partial words and stutters, singularised, and then scanned for the spoken
// aliases of every catalog item. Only whole-phrase hits count; nothing is
// guessed from similarity.
package keyword

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/nadzzz/stockline/internal/catalog"
	"github.com/nadzzz/stockline/internal/matcher"
)

// defaultAliases are the spoken forms recognised for each item in addition to
// the canonical name itself. Words with common unrelated senses ("coats" of
// paint) only count inside a longer phrase.
var defaultAliases = map[catalog.Item][]string{
	"Canned Black Beans":       {"black beans", "canned beans", "beans"},
	"Chicken Noodle Soup":      {"noodle soup", "chicken soup", "soup"},
	"Boxes of Diapers":         {"diapers", "nappies"},
	"Children's Multivitamins": {"multivitamins", "multi vitamins", "vitamins", "kids vitamins"},
	"Winter Coats":             {"winter jackets", "warm coats", "jackets", "parkas"},
	"Shelf-Stable Milk":        {"milk"},
	"Boxes of Cereal":          {"cereal"},
	"Toothbrush Kits":          {"toothbrushes", "tooth brushes", "toothbrush"},
	"Lays Chips":               {"lays", "chips", "potato chips", "crisps"},
	"Reusable Water Bottles":   {"water bottles", "bottles"},
	"Canned Tuna":              {"tuna"},
	"Bags of Rice":             {"rice"},
	"First-Aid Kits":           {"first aid", "bandages", "med kits"},
	"Hand Sanitizer":           {"sanitizer", "sanitiser", "hand sanitiser"},
	"Blankets/Throws":          {"blankets", "throws", "throw blankets"},
	"Peanut Butter Jars":       {"peanut butter"},
	"Pasta & Sauce Kits":       {"pasta", "pasta sauce", "spaghetti"},
	"Feminine Hygiene Pads":    {"feminine hygiene", "feminine pads", "sanitary pads", "hygiene pads", "menstrual pads"},
	"Reading Glasses":          {"reading glasses", "eyeglasses", "spectacles"},
	"Backpacks":                {"backpacks", "back packs", "book bags", "bookbags", "school bags"},
}

// fillers are dropped before matching.
var fillers = map[string]bool{
	"um": true, "umm": true, "uh": true, "uhh": true, "uhm": true,
	"er": true, "erm": true, "ah": true, "ahh": true, "eh": true,
	"hmm": true, "hm": true, "mm": true, "mhm": true,
	"hey": true, "oh": true, "okay": true, "ok": true,
	"like": true, "well": true, "so": true,
}

type phrase struct {
	item   catalog.Item
	tokens []string
}

// Matcher implements matcher.Matcher over catalog aliases.
type Matcher struct {
	phrases []phrase
	logger  *slog.Logger
}

// New creates a keyword matcher. extra adds aliases keyed by exact catalog
// item name; an unknown key is a configuration error.
func New(extra map[string][]string) (*Matcher, error) {
	byItem := make(map[catalog.Item][]string, len(defaultAliases))
	for it, list := range defaultAliases {
		byItem[it] = append([]string(nil), list...)
	}
	for name, list := range extra {
		it, ok := catalog.LookupItem(name)
		if !ok {
			return nil, fmt.Errorf("alias for unknown catalog item %q", name)
		}
		byItem[it] = append(byItem[it], list...)
	}

	var phrases []phrase
	for _, it := range catalog.Items() {
		for _, a := range append([]string{string(it)}, byItem[it]...) {
			toks := tokenize(a)
			if len(toks) == 0 {
				continue
			}
			phrases = append(phrases, phrase{item: it, tokens: toks})
		}
	}

	return &Matcher{
		phrases: phrases,
		logger:  slog.Default().With("component", "keyword-matcher"),
	}, nil
}

// Name returns the backend identifier.
func (m *Matcher) Name() string { return "keyword" }

// Match scans the cleaned transcript for catalog phrases. Items are returned
// in the order they are first mentioned.
func (m *Matcher) Match(ctx context.Context, transcript string) (matcher.Result, error) {
	if err := ctx.Err(); err != nil {
		return matcher.Result{}, err
	}

	tokens := tokenize(transcript)

	first := make(map[catalog.Item]int)
	for _, p := range m.phrases {
		pos := indexOf(tokens, p.tokens)
		if pos < 0 {
			continue
		}
		if prev, ok := first[p.item]; !ok || pos < prev {
			first[p.item] = pos
		}
	}

	order := make(map[catalog.Item]int)
	for i, it := range catalog.Items() {
		order[it] = i
	}
	items := make([]catalog.Item, 0, len(first))
	for it := range first {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if first[items[i]] != first[items[j]] {
			return first[items[i]] < first[items[j]]
		}
		return order[items[i]] < order[items[j]]
	})

	m.logger.Debug("keyword match complete", "tokens", len(tokens), "matched", len(items))
	return matcher.Result{Items: items}, nil
}

// indexOf returns the first position of needle as a contiguous run in hay.
func indexOf(hay, needle []string) int {
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// tokenize folds text and returns cleaned, singularised word tokens.
func tokenize(text string) []string {
	folded, _, err := transform.String(folder, text)
	if err != nil {
		folded = text
	}
	folded = cases.Fold().String(folded)
	// Apostrophes join their word ("children's" -> "childrens").
	folded = strings.NewReplacer("'", "", "’", "").Replace(folded)

	var out []string
	for _, raw := range strings.Fields(folded) {
		// A trailing dash ("cer-") marks a word the speaker abandoned.
		if strings.HasSuffix(raw, "-") || strings.HasSuffix(raw, "—") {
			continue
		}
		for _, w := range strings.FieldsFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			if fillers[w] {
				continue
			}
			w = singular(w)
			if n := len(out); n > 0 && out[n-1] == w {
				continue
			}
			out = append(out, w)
		}
	}
	return out
}

// singular strips common English plural endings.
func singular(w string) string {
	switch {
	case len(w) <= 3:
		return w
	case strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "ches"), strings.HasSuffix(w, "shes"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
		return w
	case strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

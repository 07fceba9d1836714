package tokenizer

import (
	"slices"
	"strings"
)

// Pair is two adjacent BPE symbols.
type Pair struct {
	A string
	B string
}

type textPart struct {
	text      string
	isSpecial bool
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// mergeAt joins word[i] and word[i+1] in place.
func mergeAt(word []string, i int) []string {
	word[i] += word[i+1]
	return slices.Delete(word, i+1, i+2)
}

// mergePair joins every non-overlapping occurrence of p, left to right.
func mergePair(word []string, p Pair) []string {
	for i := 0; i < len(word)-1; i++ {
		if word[i] == p.A && word[i+1] == p.B {
			word = mergeAt(word, i)
		}
	}
	return word
}

// sortLongestFirst orders specials so the longest match wins.
func sortLongestFirst(specials []string) {
	slices.SortStableFunc(specials, func(a, b string) int {
		return len(b) - len(a)
	})
}

func looksSpecial(s string) bool {
	return len(s) >= 4 && strings.HasPrefix(s, "<|") && strings.HasSuffix(s, "|>")
}

func splitSpecials(text string, specials []string) []textPart {
	if len(specials) == 0 {
		return []textPart{{text: text}}
	}
	var parts []textPart
	start := 0
	for i := 0; i < len(text); {
		match := ""
		for _, sp := range specials {
			if sp != "" && strings.HasPrefix(text[i:], sp) {
				match = sp
				break
			}
		}
		if match == "" {
			i++
			continue
		}
		if start < i {
			parts = append(parts, textPart{text: text[start:i]})
		}
		parts = append(parts, textPart{text: match, isSpecial: true})
		i += len(match)
		start = i
	}
	if start < len(text) {
		parts = append(parts, textPart{text: text[start:]})
	}
	return parts
}

// bytesToUnicode maps bytes to printable runes so BPE symbols are reversible.
func bytesToUnicode() ([256]string, map[string]byte) {
	var enc [256]string
	dec := make(map[string]byte, 256)
	printable := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}
	n := 0
	for b := range 256 {
		r := rune(b)
		if !printable(b) {
			r = rune(256 + n)
			n++
		}
		enc[b] = string(r)
		dec[enc[b]] = byte(b)
	}
	return enc, dec
}

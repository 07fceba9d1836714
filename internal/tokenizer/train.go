package tokenizer

import (
	"regexp"
	"strings"
)

// TrainBPE learns up to numMerges byte-level merges from text. It returns
// the full token list (256 byte symbols in byte order, then one entry per
// merge) and the merges in rank order. Ties between equally frequent pairs
// go to the lexicographically smallest pair, so output depends only on the
// inputs.
func TrainBPE(text string, numMerges int, pre string) (tokens []string, merges []string) {
	enc, _ := bytesToUnicode()
	tokens = make([]string, 0, 256+numMerges)
	tokens = append(tokens, enc[:]...)

	type word struct {
		symbols []string
		count   int
	}
	var words []*word
	seen := make(map[string]*word)
	for _, piece := range regexp.MustCompile(patternFor(pre)).FindAllString(text, -1) {
		var b strings.Builder
		for i := 0; i < len(piece); i++ {
			b.WriteString(enc[piece[i]])
		}
		key := b.String()
		if w, ok := seen[key]; ok {
			w.count++
			continue
		}
		w := &word{symbols: splitRunes(key), count: 1}
		seen[key] = w
		words = append(words, w)
	}

	known := make(map[string]bool, cap(tokens))
	for _, t := range tokens {
		known[t] = true
	}

	for range numMerges {
		counts := make(map[Pair]int)
		for _, w := range words {
			for i := 0; i < len(w.symbols)-1; i++ {
				counts[Pair{A: w.symbols[i], B: w.symbols[i+1]}] += w.count
			}
		}
		best, bestCount := Pair{}, 0
		for p, c := range counts {
			if c > bestCount || (c == bestCount && pairLess(p, best)) {
				best, bestCount = p, c
			}
		}
		if bestCount == 0 {
			break
		}

		merges = append(merges, best.A+" "+best.B)
		if merged := best.A + best.B; !known[merged] {
			known[merged] = true
			tokens = append(tokens, merged)
		}
		for _, w := range words {
			w.symbols = mergePair(w.symbols, best)
		}
	}
	return tokens, merges
}

func pairLess(a, b Pair) bool {
	if a.A != b.A {
		return a.A < b.A
	}
	return a.B < b.B
}

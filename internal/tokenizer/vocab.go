package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

const (
	// gpt2Pattern is the GPT-2 pre-tokenizer with the trailing-whitespace
	// lookahead collapsed into \s+ (RE2 has no lookahead).
	gpt2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`
	// llama3Pattern is the Llama 3 pre-tokenizer, lookahead removed likewise.
	llama3Pattern = `(?:'[sS]|'[tT]|'[rR][eE]|'[vV][eE]|'[mM]|'[lL][lL]|'[dD])|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+`
)

// Config describes a vocabulary. Types may be empty, in which case tokens
// shaped like <|name|> are treated as control tokens.
type Config struct {
	Tokens []string
	Types  []TokenType
	Merges []string
	Pre    string
	BOS    int32
	EOS    int32
	UNK    int32
	AddBOS bool
	AddEOS bool
}

// Vocab is a byte-level BPE vocabulary. It is safe for concurrent use.
type Vocab struct {
	tokens   []string
	types    []TokenType
	encoder  map[string]int32
	ranks    map[Pair]int
	specials []string
	pattern  *regexp.Regexp
	byteEnc  [256]string
	byteDec  map[string]byte

	bos, eos, unk  int32
	addBOS, addEOS bool

	mu    sync.Mutex
	cache map[string][]int32
}

func NewVocab(cfg Config) (*Vocab, error) {
	if len(cfg.Tokens) == 0 {
		return nil, fmt.Errorf("empty token list")
	}
	if len(cfg.Types) != 0 && len(cfg.Types) != len(cfg.Tokens) {
		return nil, fmt.Errorf("token_type has %d entries for %d tokens", len(cfg.Types), len(cfg.Tokens))
	}
	n := int32(len(cfg.Tokens))
	inRange := func(id int32) bool { return id >= 0 && id < n }
	if cfg.AddBOS && !inRange(cfg.BOS) {
		return nil, fmt.Errorf("bos token %d out of range", cfg.BOS)
	}
	if cfg.AddEOS && !inRange(cfg.EOS) {
		return nil, fmt.Errorf("eos token %d out of range", cfg.EOS)
	}
	if cfg.UNK >= n {
		return nil, fmt.Errorf("unknown token %d out of range", cfg.UNK)
	}

	v := &Vocab{
		tokens:  append([]string(nil), cfg.Tokens...),
		types:   make([]TokenType, len(cfg.Tokens)),
		encoder: make(map[string]int32, len(cfg.Tokens)),
		ranks:   make(map[Pair]int, len(cfg.Merges)),
		bos:     cfg.BOS,
		eos:     cfg.EOS,
		unk:     cfg.UNK,
		addBOS:  cfg.AddBOS,
		addEOS:  cfg.AddEOS,
		cache:   make(map[string][]int32),
	}
	for i, tok := range cfg.Tokens {
		if _, dup := v.encoder[tok]; !dup {
			v.encoder[tok] = int32(i)
		}
		switch {
		case len(cfg.Types) != 0:
			v.types[i] = cfg.Types[i]
		case looksSpecial(tok):
			v.types[i] = TokenControl
		default:
			v.types[i] = TokenNormal
		}
		if v.types[i].Special() && tok != "" {
			v.specials = append(v.specials, tok)
		}
	}
	sortLongestFirst(v.specials)

	for _, line := range cfg.Merges {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		a, b, ok := strings.Cut(line, " ")
		if !ok || strings.Contains(b, " ") {
			continue
		}
		p := Pair{A: a, B: b}
		if _, seen := v.ranks[p]; !seen {
			v.ranks[p] = len(v.ranks)
		}
	}

	v.byteEnc, v.byteDec = bytesToUnicode()
	v.pattern = regexp.MustCompile(patternFor(cfg.Pre))
	return v, nil
}

func patternFor(pre string) string {
	switch pre {
	case "llama3", "llama-v3", "llama-bpe", "lfm2", "falcon3", "pixtral":
		return llama3Pattern
	default:
		return gpt2Pattern
	}
}

// Size is the number of vocabulary entries.
func (v *Vocab) Size() int { return len(v.tokens) }

func (v *Vocab) BOS() int32 { return v.bos }
func (v *Vocab) EOS() int32 { return v.eos }

// TokenText returns the raw vocabulary entry for id, or "" if out of range.
func (v *Vocab) TokenText(id int32) string {
	if id < 0 || int(id) >= len(v.tokens) {
		return ""
	}
	return v.tokens[id]
}

func (v *Vocab) TokenType(id int32) TokenType {
	if id < 0 || int(id) >= len(v.types) {
		return TokenUndefined
	}
	return v.types[id]
}

// Measure returns how many tokens Fill would produce for text.
func (v *Vocab) Measure(text string, addSpecial, parseSpecial bool) (int, error) {
	ids, err := v.Encode(text, addSpecial, parseSpecial)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Fill tokenizes text into dst and returns the token count. When dst is too
// short nothing is written and a *CapacityError is returned.
func (v *Vocab) Fill(text string, dst []int32, addSpecial, parseSpecial bool) (int, error) {
	ids, err := v.Encode(text, addSpecial, parseSpecial)
	if err != nil {
		return 0, err
	}
	if len(dst) < len(ids) {
		return 0, &CapacityError{Need: len(ids), Have: len(dst)}
	}
	return copy(dst, ids), nil
}

// Encode tokenizes text. addSpecial adds BOS/EOS as configured; parseSpecial
// lets control-token text in the input map to its id instead of being
// byte-encoded.
func (v *Vocab) Encode(text string, addSpecial, parseSpecial bool) ([]int32, error) {
	var ids []int32
	if addSpecial && v.addBOS {
		ids = append(ids, v.bos)
	}

	parts := []textPart{{text: text}}
	if parseSpecial {
		parts = splitSpecials(text, v.specials)
	}
	for _, part := range parts {
		if part.isSpecial {
			ids = append(ids, v.encoder[part.text])
			continue
		}
		for _, piece := range v.pattern.FindAllString(part.text, -1) {
			pieceIDs, err := v.encodePiece(piece)
			if err != nil {
				return nil, err
			}
			ids = append(ids, pieceIDs...)
		}
	}

	if addSpecial && v.addEOS {
		ids = append(ids, v.eos)
	}
	return ids, nil
}

func (v *Vocab) encodePiece(piece string) ([]int32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ids, ok := v.cache[piece]; ok {
		return ids, nil
	}

	var b strings.Builder
	for i := 0; i < len(piece); i++ {
		b.WriteString(v.byteEnc[piece[i]])
	}
	symbols := v.bpe(splitRunes(b.String()))

	ids := make([]int32, 0, len(symbols))
	for _, sym := range symbols {
		id, ok := v.encoder[sym]
		if !ok {
			if v.unk < 0 {
				return nil, fmt.Errorf("unknown token: %q", sym)
			}
			id = v.unk
		}
		ids = append(ids, id)
	}
	v.cache[piece] = ids
	return ids, nil
}

// bpe repeatedly merges the lowest-ranked adjacent pair.
func (v *Vocab) bpe(word []string) []string {
	for len(word) > 1 {
		best, bestRank := -1, int(^uint(0)>>1)
		for i := 0; i < len(word)-1; i++ {
			if r, ok := v.ranks[Pair{A: word[i], B: word[i+1]}]; ok && r < bestRank {
				best, bestRank = i, r
			}
		}
		if best < 0 {
			break
		}
		word = mergePair(word, Pair{A: word[best], B: word[best+1]})
	}
	return word
}

// Decode maps ids back to text. Control tokens decode to their literal text.
func (v *Vocab) Decode(ids []int32) (string, error) {
	var b []byte
	for _, id := range ids {
		if id < 0 || int(id) >= len(v.tokens) {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		tok := v.tokens[id]
		if v.types[id].Special() {
			b = append(b, tok...)
			continue
		}
		for _, r := range tok {
			if by, ok := v.byteDec[string(r)]; ok {
				b = append(b, by)
			} else {
				b = append(b, string(r)...)
			}
		}
	}
	return string(b), nil
}

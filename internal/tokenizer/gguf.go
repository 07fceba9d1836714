package tokenizer

import (
	"fmt"

	"github.com/samcharles93/tracebench/internal/gguf"
)

// GGUF metadata keys read by FromGGUF.
const (
	KeyModel     = "tokenizer.ggml.model"
	KeyPre       = "tokenizer.ggml.pre"
	KeyTokens    = "tokenizer.ggml.tokens"
	KeyTokenType = "tokenizer.ggml.token_type"
	KeyMerges    = "tokenizer.ggml.merges"
	KeyBOS       = "tokenizer.ggml.bos_token_id"
	KeyEOS       = "tokenizer.ggml.eos_token_id"
	KeyUNK       = "tokenizer.ggml.unknown_token_id"
	KeyAddBOS    = "tokenizer.ggml.add_bos_token"
	KeyAddEOS    = "tokenizer.ggml.add_eos_token"
)

// FromGGUF builds a Vocab from tokenizer metadata. Only the "gpt2"
// (byte-level BPE) model is supported.
func FromGGUF(kv map[string]gguf.Value) (*Vocab, error) {
	model, err := gguf.MustGetString(kv, KeyModel)
	if err != nil {
		return nil, err
	}
	if model != "gpt2" {
		return nil, fmt.Errorf("unsupported tokenizer model %q", model)
	}

	tokens, ok := gguf.GetArray[string](kv, KeyTokens)
	if !ok {
		return nil, fmt.Errorf("missing or invalid %s", KeyTokens)
	}

	cfg := Config{
		Tokens: tokens,
		BOS:    idOr(kv, KeyBOS, -1),
		EOS:    idOr(kv, KeyEOS, -1),
		UNK:    idOr(kv, KeyUNK, -1),
	}
	cfg.Pre, _ = gguf.GetString(kv, KeyPre)
	cfg.Merges, _ = gguf.GetArray[string](kv, KeyMerges)
	cfg.AddBOS, _ = gguf.GetBool(kv, KeyAddBOS)
	cfg.AddEOS, _ = gguf.GetBool(kv, KeyAddEOS)

	if _, present := kv[KeyTokenType]; present {
		raw, ok := gguf.GetArray[int32](kv, KeyTokenType)
		if !ok {
			return nil, fmt.Errorf("missing or invalid %s", KeyTokenType)
		}
		cfg.Types = make([]TokenType, len(raw))
		for i, t := range raw {
			cfg.Types[i] = TokenType(t)
		}
	}

	return NewVocab(cfg)
}

func idOr(kv map[string]gguf.Value, key string, def int32) int32 {
	v, ok := gguf.GetInt64(kv, key)
	if !ok || v < -1 || v > 1<<31-1 {
		return def
	}
	return int32(v)
}

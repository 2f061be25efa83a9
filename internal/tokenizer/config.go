package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// Config is the part of tokenizer_config.json that affects encoding and
// decoding.
type Config struct {
	ModelMaxLength int
	EOSToken       string
	PADToken       string
	UNKToken       string
	// CleanUpSpaces removes spaces before punctuation after decoding.
	CleanUpSpaces bool
}

type hfTokenizerConfig struct {
	ModelMaxLength     float64 `json:"model_max_length"`
	EOSToken           any     `json:"eos_token"`
	PADToken           any     `json:"pad_token"`
	UNKToken           any     `json:"unk_token"`
	CleanUpTokenSpaces *bool   `json:"clean_up_tokenization_spaces"`
}

// LoadConfig reads tokenizer_config.json from dir. A missing file yields
// the defaults.
func LoadConfig(dir string) (Config, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "tokenizer_config.json"))
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load tokenizer_config.json: %w", err)
	}
	return ParseConfigBytes(raw)
}

// ParseConfigBytes parses tokenizer_config.json. Empty input yields the
// defaults of the T5 slow tokenizer.
func ParseConfigBytes(raw []byte) (Config, error) {
	cfg := Config{
		EOSToken:      "</s>",
		PADToken:      "<pad>",
		UNKToken:      "<unk>",
		CleanUpSpaces: true,
	}
	if len(raw) == 0 {
		return cfg, nil
	}
	var hc hfTokenizerConfig
	if err := json.Unmarshal(raw, &hc); err != nil {
		return cfg, fmt.Errorf("parse tokenizer_config.json: %w", err)
	}
	// Unbounded tokenizers store int(1e30) here.
	if hc.ModelMaxLength > 0 && hc.ModelMaxLength < 1e9 {
		cfg.ModelMaxLength = int(hc.ModelMaxLength)
	}
	if s := tokenContent(hc.EOSToken); s != "" {
		cfg.EOSToken = s
	}
	if s := tokenContent(hc.PADToken); s != "" {
		cfg.PADToken = s
	}
	if s := tokenContent(hc.UNKToken); s != "" {
		cfg.UNKToken = s
	}
	if hc.CleanUpTokenSpaces != nil {
		cfg.CleanUpSpaces = *hc.CleanUpTokenSpaces
	}
	return cfg, nil
}

// tokenContent accepts both "</s>" and {"content": "</s>", ...}.
func tokenContent(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["content"].(string); ok {
			return s
		}
	}
	return ""
}

var cleanUpReplacer = strings.NewReplacer(
	" .", ".",
	" ?", "?",
	" !", "!",
	" ,", ",",
	" ' ", "'",
	" n't", "n't",
	" 'm", "'m",
	" 's", "'s",
	" 've", "'ve",
	" 're", "'re",
)

// CleanUp removes the spaces transformers strips before punctuation and
// contractions when clean_up_tokenization_spaces is set.
func CleanUp(s string) string {
	return cleanUpReplacer.Replace(s)
}

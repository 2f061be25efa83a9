package detector

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// GenerationConfig holds the token ids and limits the runtime needs for a
// greedy seq2seq generation.
type GenerationConfig struct {
	MaxLength      int
	DecoderStartID int
	EOSID          int
	PadID          int
}

type rawModelConfig struct {
	ModelType           string `json:"model_type"`
	IsEncoderDecoder    *bool  `json:"is_encoder_decoder"`
	EOSTokenID          any    `json:"eos_token_id"` // int or []int
	PadTokenID          any    `json:"pad_token_id"` // int or null
	DecoderStartTokenID *int   `json:"decoder_start_token_id"`
}

type rawGenerationConfig struct {
	EOSTokenID          any  `json:"eos_token_id"`
	PadTokenID          any  `json:"pad_token_id"`
	DecoderStartTokenID *int `json:"decoder_start_token_id"`
}

// parseModelConfig reads config.json and the optional
// generation_config.json. maxLength is the request's cap and is not taken
// from the files: the files describe training defaults, not this service.
func parseModelConfig(configJSON, generationJSON []byte, maxLength int) (GenerationConfig, string, error) {
	var cfg rawModelConfig
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return GenerationConfig{}, "", fmt.Errorf("parse config.json: %w", err)
	}
	if cfg.IsEncoderDecoder != nil && !*cfg.IsEncoderDecoder {
		return GenerationConfig{}, "", fmt.Errorf("config.json: %s is not an encoder-decoder model", cfg.ModelType)
	}

	eos, hasEOS := tokenID(cfg.EOSTokenID)
	pad, hasPad := tokenID(cfg.PadTokenID)
	start := -1
	if cfg.DecoderStartTokenID != nil {
		start = *cfg.DecoderStartTokenID
	}

	if len(generationJSON) > 0 {
		var gen rawGenerationConfig
		if err := json.Unmarshal(generationJSON, &gen); err != nil {
			return GenerationConfig{}, "", fmt.Errorf("parse generation_config.json: %w", err)
		}
		if id, ok := tokenID(gen.EOSTokenID); ok {
			eos, hasEOS = id, true
		}
		if id, ok := tokenID(gen.PadTokenID); ok {
			pad, hasPad = id, true
		}
		if gen.DecoderStartTokenID != nil {
			start = *gen.DecoderStartTokenID
		}
	}

	if !hasEOS {
		return GenerationConfig{}, "", fmt.Errorf("config.json: eos_token_id is missing")
	}
	if !hasPad {
		pad = eos
	}
	// T5 starts decoding from the pad token.
	if start < 0 {
		start = pad
	}
	return GenerationConfig{
		MaxLength:      maxLength,
		DecoderStartID: start,
		EOSID:          eos,
		PadID:          pad,
	}, cfg.ModelType, nil
}

func tokenID(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case []any:
		if len(t) > 0 {
			if f, ok := t[0].(float64); ok {
				return int(f), true
			}
		}
	}
	return 0, false
}

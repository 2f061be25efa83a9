// Package tokenizer defines what the detector needs from a Hugging Face
// tokenizer and parses the transformers-level settings in
// tokenizer_config.json. Subpackage hf provides the implementation.
package tokenizer

// Tokenizer is what the detector needs from a tokenizer: text to ids for
// the prompt, ids to text for the generated sequence.
type Tokenizer interface {
	// Encode applies the tokenizer's post-processor, so T5 prompts end in </s>.
	Encode(text string) ([]int, error)
	// Decode drops special tokens and applies the tokenizer's decoder.
	Decode(ids []int) (string, error)
}

// LoadFunc builds a Tokenizer from a model snapshot directory.
type LoadFunc func(dir string) (Tokenizer, error)

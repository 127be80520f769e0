package provider

import "strings"

// dimensionRule maps a model-name substring to its embedding width. Rules are
// matched in order; the first hit wins, so more specific names come first.
type dimensionRule struct {
	substr string
	dims   int
}

// dimensionRules covers the embedding models commonly configured in the wild.
// The match is a case-insensitive substring so provider-prefixed names like
// "openai/text-embedding-3-small" resolve correctly.
var dimensionRules = []dimensionRule{
	{"text-embedding-3-small", 1536},
	{"text-embedding-3-large", 3072},
	{"embed-english-v3", 1024},
	{"bge-m3", 1024},
	{"cohere", 4096},
	{"bge-large", 1024},
	{"bge", 768},
	{"bert", 768},
	{"bce-embedding-base", 768},
	{"all-minilm", 384},
}

// defaultDimensions is the width assumed for unrecognized models.
const defaultDimensions = 1536

// Dimensions infers the embedding width from the embedding model name.
// Unrecognized models get the OpenAI default of 1536.
func Dimensions(model string) int {
	name := strings.ToLower(model)
	for _, r := range dimensionRules {
		if strings.Contains(name, r.substr) {
			return r.dims
		}
	}
	return defaultDimensions
}

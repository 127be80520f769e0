// Package provider selects and constructs the AI backend implementations at
// runtime: the chat model, the embedder, the vector index, and the text
// splitters, bundled together so callers get a coherent set built from one
// configuration snapshot. Supported providers: OpenAI, Azure OpenAI, Ollama,
// DeepSeek, Anthropic.
package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/blinko-space/blinko-ai/internal/config"
	"github.com/blinko-space/blinko-ai/internal/embedder"
	"github.com/blinko-space/blinko-ai/internal/vector"
)

// Bundler yields the provider bundle for the current configuration.
// Factory is the production implementation; tests substitute a StaticBundler.
type Bundler interface {
	Bundle(ctx context.Context) (*Bundle, error)
}

// Bundle is a coherent set of AI components built from a single configuration
// snapshot. All fields are ready to use and safe for concurrent callers.
type Bundle struct {
	// Config is the snapshot the bundle was built from.
	Config *config.Config

	// ChatModel is the conversational model for agents and completions.
	ChatModel model.ToolCallingChatModel

	// Embedder converts text into vectors for the index.
	Embedder embedder.Embedder

	// Index is the vector store holding note and attachment embeddings.
	Index vector.Index

	// Dimensions is the embedding width inferred from the embedding model name.
	Dimensions int

	// MarkdownSplitter chunks note content along markdown structure.
	MarkdownSplitter textsplitter.TextSplitter

	// TokenSplitter chunks extracted attachment text by token count.
	TokenSplitter textsplitter.TextSplitter
}

const (
	// noteChunkSize is the markdown splitter chunk size in characters.
	noteChunkSize = 1024
	// noteChunkOverlap is the markdown splitter overlap in characters.
	noteChunkOverlap = 256
	// fileChunkSize is the token splitter chunk size in tokens.
	fileChunkSize = 512
	// fileChunkOverlap is the token splitter overlap in tokens.
	fileChunkOverlap = 128
)

// newSplitters builds the markdown and token splitters used by the pipeline.
func newSplitters() (textsplitter.TextSplitter, textsplitter.TextSplitter) {
	md := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithChunkSize(noteChunkSize),
		textsplitter.WithChunkOverlap(noteChunkOverlap),
	)
	tok := textsplitter.NewTokenSplitter(
		textsplitter.WithChunkSize(fileChunkSize),
		textsplitter.WithChunkOverlap(fileChunkOverlap),
	)
	return md, tok
}

// NewSplitters exposes the production splitters for callers assembling a
// Bundle by hand, such as tests.
func NewSplitters() (markdown, token textsplitter.TextSplitter) {
	return newSplitters()
}

// StaticBundler is a Bundler returning a fixed Bundle.
type StaticBundler struct {
	// B is returned verbatim from Bundle.
	B *Bundle
}

// Bundle returns the fixed bundle.
func (s *StaticBundler) Bundle(context.Context) (*Bundle, error) {
	return s.B, nil
}

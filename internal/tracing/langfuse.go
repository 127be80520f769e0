// Package tracing wires optional Langfuse observability into the eino model
// calls made by the agents, the embedding pipeline, and the ranker. Tracing
// is configured purely through the environment so deployments without a
// Langfuse instance pay nothing.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is used when LANGFUSE_HOST is unset; it matches a Langfuse
// instance run next to the app with the vendor's docker-compose.
const defaultHost = "http://localhost:3000"

// Setup builds the Langfuse callback handler from LANGFUSE_HOST,
// LANGFUSE_PUBLIC_KEY, and LANGFUSE_SECRET_KEY. The returned flush function
// must run before process exit so buffered traces are delivered. When either
// key is missing the handler is nil, ok is false, and no tracing occurs.
func Setup() (handler callbacks.Handler, flush func(), ok bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}

	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	h, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
	})
	return h, flusher, true
}

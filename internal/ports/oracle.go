package ports

import "context"

// Oracle returns the raw reply text for a prompt. Retries and transport
// details belong to the implementation.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type KnowledgeSource interface {
	Reference(ctx context.Context) (string, error)
}

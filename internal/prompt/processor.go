package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrUnavailable = errors.New("prompt: model server unavailable")
	ErrNoPrompt    = errors.New("prompt: no prompt files")
	ErrNoResponse  = errors.New("prompt: no response")
	ErrNoUserText  = errors.New("prompt: no user text")
)

// LLM is the model backend a Processor talks to.
type LLM interface {
	Available(ctx context.Context) bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service runs named prompts against user text.
type Service interface {
	Available(ctx context.Context) bool
	Names() ([]string, error)
	Process(ctx context.Context, name, userText string) (string, error)
}

// Processor implements Service over a Library and an LLM.
type Processor struct {
	lib    *Library
	llm    LLM
	logger *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(lib *Library, llm LLM, logger *slog.Logger) *Processor {
	return &Processor{lib: lib, llm: llm, logger: logger}
}

func (p *Processor) Available(ctx context.Context) bool { return p.llm.Available(ctx) }

func (p *Processor) Names() ([]string, error) { return p.lib.Names() }

// Process sends the composed prompt for name and returns the raw reply.
func (p *Processor) Process(ctx context.Context, name, userText string) (string, error) {
	if userText == "" {
		return "", ErrNoUserText
	}
	if !p.llm.Available(ctx) {
		return "", ErrUnavailable
	}
	files, err := p.lib.Files(name)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoPrompt, name)
	}
	resp, err := p.llm.Generate(ctx, Compose(files, userText))
	if err != nil {
		p.logger.Warn("prompt failed",
			slog.String("prompt", name),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %s: %w", ErrNoResponse, name, err)
	}
	return resp, nil
}

// Message renders a Process error as the inline text shown to the user.
func Message(name string, err error) string {
	switch {
	case errors.Is(err, ErrUnavailable):
		return "Error: Ollama is not available. Please ensure Ollama is running."
	case errors.Is(err, ErrNoPrompt):
		return fmt.Sprintf("Error: No prompt file found for '%s'", name)
	case errors.Is(err, ErrNoUserText):
		return fmt.Sprintf("Error: No user text found for prompt @#%s", name)
	default:
		return fmt.Sprintf("Error: Failed to get response from Ollama for prompt '%s'", name)
	}
}

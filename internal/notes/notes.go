// Package notes turns a processed dictation into a clinical note using any
// OpenAI-compatible chat completion endpoint.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/scribe-notes/scribe/internal/log"
)

// Config selects the endpoint and model.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Template string
	Timeout  time.Duration
}

// Request is one note to generate.
type Request struct {
	PatientName   string
	DentistName   string
	Transcription string
}

func (r Request) dentist() string {
	if r.DentistName == "" {
		return "Doctor"
	}
	return r.DentistName
}

// Note is a generated note. Fallback is set when the model was not used.
type Note struct {
	Text     string
	Model    string
	Fallback bool
}

// Generator produces notes. Without an API key it only produces basic notes.
type Generator struct {
	client   *openai.Client
	model    string
	template string
	timeout  time.Duration
	now      func() time.Time
}

func New(cfg Config) *Generator {
	g := &Generator{
		model:    cfg.Model,
		template: cfg.Template,
		timeout:  cfg.Timeout,
		now:      time.Now,
	}
	if g.template == "" {
		g.template = DefaultTemplate
	}
	if g.timeout <= 0 {
		g.timeout = 30 * time.Second
	}
	if cfg.APIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(1)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		client := openai.NewClient(opts...)
		g.client = &client
	}
	return g
}

// Generate writes a note for req. When the endpoint fails the basic note is
// returned along with the error.
func (g *Generator) Generate(ctx context.Context, req Request) (Note, error) {
	if strings.TrimSpace(req.Transcription) == "" {
		return Note{}, errors.New("nothing to generate a note from")
	}
	if g.client == nil {
		log.Info("no notes api key; using basic note")
		return Note{Text: BasicNote(req.Transcription), Fallback: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(req, g.template, g.now())),
		},
		MaxTokens:   openai.Int(1000),
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		log.Errorf("generate note: %v", err)
		return Note{Text: BasicNote(req.Transcription), Fallback: true}, fmt.Errorf("generate note: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Note{Text: BasicNote(req.Transcription), Fallback: true}, errors.New("generate note: empty response")
	}

	return Note{
		Text:  strings.ReplaceAll(resp.Choices[0].Message.Content, "**", ""),
		Model: resp.Model,
	}, nil
}

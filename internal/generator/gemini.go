package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/genai"

	"github.com/lewisedginton/gemini_relay/pkg/logger"
	"github.com/lewisedginton/gemini_relay/pkg/prefixed_uuid"
)

const (
	opGenerate       = "gemini.generate"
	generationPrefix = "gen"
)

// ModelsAPI is the subset of the genai SDK used by Gemini. *genai.Models satisfies it.
type ModelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures a Gemini generator.
type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	UseVertexAI bool
	Project     string
	Location    string
	// Timeout bounds each provider call. Zero means only the caller's context applies.
	Timeout time.Duration

	// Temperature is nil for the provider default.
	Temperature       *float32
	MaxOutputTokens   int32
	SystemInstruction string
}

// Gemini is a Generator backed by the Gemini API (or Vertex AI).
type Gemini struct {
	models    ModelsAPI
	model     string
	timeout   time.Duration
	genConfig *genai.GenerateContentConfig
	metrics   *generatorMetrics
	log       logger.Logger
}

// NewGemini builds the genai client once and wraps it.
// Collectors are registered on reg when it is non-nil.
func NewGemini(ctx context.Context, cfg GeminiConfig, log logger.Logger, reg prometheus.Registerer) (*Gemini, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.UseVertexAI {
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = cfg.Project
		clientConfig.Location = cfg.Location
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log.Info("Gemini client initialised",
		logger.ModelField(cfg.Model),
		logger.BoolField("vertex_ai", cfg.UseVertexAI),
		logger.BoolField("custom_base_url", cfg.BaseURL != ""),
	)
	return NewGeminiWithModels(client.Models, cfg, log, reg), nil
}

// NewGeminiWithModels wraps an existing ModelsAPI.
func NewGeminiWithModels(models ModelsAPI, cfg GeminiConfig, log logger.Logger, reg prometheus.Registerer) *Gemini {
	return &Gemini{
		models:    models,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		genConfig: buildGenerateConfig(cfg),
		metrics:   newGeneratorMetrics(reg),
		log:       log,
	}
}

// buildGenerateConfig returns nil when every setting is left at the provider default.
func buildGenerateConfig(cfg GeminiConfig) *genai.GenerateContentConfig {
	if cfg.Temperature == nil && cfg.MaxOutputTokens == 0 && cfg.SystemInstruction == "" {
		return nil
	}
	gc := &genai.GenerateContentConfig{
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
	if cfg.SystemInstruction != "" {
		gc.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	return gc
}

// Generate sends message to the model as a single user turn and returns the response text.
func (g *Gemini) Generate(ctx context.Context, message string) (string, error) {
	if message == "" {
		err := newErrorf(KindValidation, opGenerate, "message is required")
		g.metrics.outcomes.WithLabelValues(g.model, KindValidation.String()).Inc()
		return "", err
	}

	id := prefixed_uuid.New(generationPrefix)
	log := logger.GetLoggerFromContext(ctx, g.log).WithFields(
		logger.StringField("generation_id", id.String()),
		logger.ModelField(g.model),
	)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	log.Debug("Calling Gemini", logger.IntField("message_length", len(message)))
	started := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(message), g.genConfig)
	text, err := extractText(resp, err)
	g.metrics.observe(g.model, started, err)

	if err != nil {
		log.Error("Gemini generation failed",
			logger.StringField("kind", KindOf(err).String()),
			logger.ErrorField(err),
			logger.DurationField("duration", time.Since(started)),
		)
		return "", err
	}

	log.Info("Gemini generation completed",
		logger.IntField("response_length", len(text)),
		logger.DurationField("duration", time.Since(started)),
	)
	return text, nil
}

// extractText classifies a provider result into text or a tagged *Error.
func extractText(resp *genai.GenerateContentResponse, err error) (string, error) {
	if err != nil {
		return "", classify(err)
	}
	if resp == nil {
		return "", newErrorf(KindSerialization, opGenerate, "empty response from Gemini")
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", newErrorf(KindProvider, opGenerate, "prompt blocked by Gemini: %s", resp.PromptFeedback.BlockReason)
		}
		return "", newErrorf(KindSerialization, opGenerate, "Gemini response contained no candidates")
	}

	text := resp.Text()
	if text == "" {
		reason := resp.Candidates[0].FinishReason
		if reason == "" {
			reason = "unknown"
		}
		return "", newErrorf(KindProvider, opGenerate, "Gemini returned no text (finish reason: %s)", reason)
	}
	return text, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTransport, opGenerate, fmt.Errorf("request to Gemini timed out: %w", err))
	}
	if errors.Is(err, context.Canceled) {
		return newError(KindTransport, opGenerate, fmt.Errorf("request to Gemini was cancelled: %w", err))
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newError(KindProvider, opGenerate, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return newError(KindProvider, opGenerate, err)
	}

	return newError(KindTransport, opGenerate, err)
}

// Package summary condenses a transcript into a short prose summary.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/podtalk/backend/internal/cache"
	"github.com/zhouzirui/podtalk/backend/internal/observability"
)

// ErrMissingTranscript is returned before any model call when the input is blank.
var ErrMissingTranscript = errors.New("transcript is required")

// The ten-sentence length is requested, not verified.
const systemPrompt = "You are an expert at summarizing and you write elaborate and info-packed summaries " +
	"with all the key insights and including all the important concepts from text. " +
	"Write the summary in exactly 10 sentences."

const userPrompt = "This is the content:\n\"\"\"\n{transcript}\n\"\"\""

// Service runs the summarization chain.
type Service struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	cache   *cache.Cache
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewService compiles the prompt → chat model chain.
func NewService(ctx context.Context, chatModel model.BaseChatModel, c *cache.Cache, logger *zap.Logger, metrics *observability.Metrics) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summary chain: %w", err)
	}

	return &Service{
		chain:   runnable,
		cache:   c,
		logger:  logger.With(zap.String("component", "summary")),
		metrics: metrics,
	}, nil
}

// Summarize returns the first completion's text verbatim.
func (s *Service) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrMissingTranscript
	}

	key := cache.Key("summary", transcript)
	if cached, ok := cache.Load[string](ctx, s.cache, key); ok {
		return cached, nil
	}

	started := time.Now()
	response, err := s.chain.Invoke(ctx, map[string]any{"transcript": transcript})
	s.metrics.ObserveUpstream("summary", started, err)
	if err != nil {
		return "", fmt.Errorf("failed to run summary chain: %w", err)
	}

	s.logger.Info("generated summary",
		zap.Int("transcript_length", len(transcript)),
		zap.Int("summary_length", len(response.Content)),
	)
	cache.Store(ctx, s.cache, key, response.Content)
	return response.Content, nil
}

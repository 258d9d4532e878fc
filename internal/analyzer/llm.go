package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// LLM implements [Analyzer] over an OpenAI-compatible chat-completions
// endpoint using JSON-mode responses: a functional-options constructor
// wrapping an openai-go client, with a retry/backoff loop around each call.
type LLM struct {
	client        *openai.Client
	model         string
	temperature   float64
	maxTokens     int
	maxRetries    int
	callTimeout   time.Duration
	baseURL       string
	maxConcurrent int
}

var _ Analyzer = (*LLM)(nil)

// LLMOption configures an [LLM].
type LLMOption func(*LLM)

// WithBaseURL overrides the API base URL, e.g. for an OpenAI-compatible
// provider.
func WithBaseURL(url string) LLMOption {
	return func(l *LLM) { l.baseURL = url }
}

// WithMaxRetries overrides the bounded-retry count for transient failures.
func WithMaxRetries(n int) LLMOption {
	return func(l *LLM) { l.maxRetries = n }
}

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) LLMOption {
	return func(l *LLM) { l.callTimeout = d }
}

// WithMaxConcurrent overrides the number of turns AnalyzeBatch classifies
// concurrently. Values below 1 are treated as 1.
func WithMaxConcurrent(n int) LLMOption {
	return func(l *LLM) { l.maxConcurrent = n }
}

// NewLLM creates an LLM analyzer against an OpenAI-compatible endpoint.
func NewLLM(apiKey, model string, temperature float64, maxTokens int, opts ...LLMOption) *LLM {
	l := &LLM{
		model:         model,
		temperature:   temperature,
		maxTokens:     maxTokens,
		maxRetries:    3,
		callTimeout:   60 * time.Second,
		maxConcurrent: 10,
	}
	for _, o := range opts {
		o(l)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(http.DefaultClient),
	}
	if l.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(l.baseURL))
	}
	client := openai.NewClient(clientOpts...)
	l.client = &client
	return l
}

// withRetry runs fn with a per-call timeout, retrying any error fn returns
// (errors are not classified as transient or permanent) with exponential
// backoff (1s, 2s, 4s, ...) up to l.maxRetries times, respecting
// ctx.Done() between attempts.
func (l *LLM) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
		lastErr = fn(callCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("analyzer: exhausted %d retries: %w", l.maxRetries, lastErr)
}

func (l *LLM) chatJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	return l.withRetry(ctx, func(ctx context.Context) error {
		resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: l.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(userPrompt),
			},
			Temperature:    openai.Float(l.temperature),
			MaxTokens:      openai.Int(int64(l.maxTokens)),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &openai.ResponseFormatJSONObjectParam{}},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("analyzer: empty choices in response")
		}
		content := resp.Choices[0].Message.Content
		if err := json.Unmarshal([]byte(content), out); err != nil {
			return fmt.Errorf("analyzer: malformed JSON response: %w", err)
		}
		return nil
	})
}

// AnalyzeBatch classifies each turn independently, fanning out up to
// maxConcurrent turns at a time. Every failure, including a transport
// failure that outlasts the retries, is reported for its own turn as
// Analysis{Missing: true}; the returned error is always nil.
func (l *LLM) AnalyzeBatch(ctx context.Context, turns []Turn) ([]Analysis, error) {
	out := make([]Analysis, len(turns))

	limit := l.maxConcurrent
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, t := range turns {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = l.analyzeTurn(ctx, t)
		}()
	}
	wg.Wait()

	return out, nil
}

func (l *LLM) analyzeTurn(ctx context.Context, t Turn) Analysis {
	var parsed struct {
		EmotionalIntensity int      `json:"emotional_intensity"`
		EmotionalValence   string   `json:"emotional_valence"`
		EmotionalArousal   int      `json:"emotional_arousal"`
		EmotionalTags      []string `json:"emotional_tags"`
		Category           string   `json:"category"`
		Keywords           []string `json:"keywords"`
		Protected          bool     `json:"protected"`
	}
	prompt := fmt.Sprintf("user: %s\nassistant: %s", t.UserMessage, t.AssistantMessage)
	if err := l.chatJSON(ctx, analyzeBatchSystemPrompt, prompt, &parsed); err != nil {
		return Analysis{Missing: true}
	}
	return Analysis{
		EmotionalIntensity: parsed.EmotionalIntensity,
		EmotionalValence:   parsed.EmotionalValence,
		EmotionalArousal:   parsed.EmotionalArousal,
		EmotionalTags:      parsed.EmotionalTags,
		Category:           parsed.Category,
		Keywords:           parsed.Keywords,
		Protected:          parsed.Protected,
	}
}

// ClassifyPrompt classifies a retrieval prompt's category and live emotion.
func (l *LLM) ClassifyPrompt(ctx context.Context, prompt string) (Classification, error) {
	var parsed struct {
		Category   string   `json:"category"`
		HasEmotion bool     `json:"has_emotion"`
		Valence    string   `json:"valence"`
		Arousal    int      `json:"arousal"`
		Tags       []string `json:"tags"`
	}
	if err := l.chatJSON(ctx, classifyPromptSystemPrompt, prompt, &parsed); err != nil {
		return Classification{}, err
	}
	return Classification{
		Category:   parsed.Category,
		HasEmotion: parsed.HasEmotion,
		Valence:    parsed.Valence,
		Arousal:    parsed.Arousal,
		Tags:       parsed.Tags,
	}, nil
}

// CompressToLevel2 produces a summary-form trigger/content pair.
func (l *LLM) CompressToLevel2(ctx context.Context, trigger, content string) (Level2Result, error) {
	var parsed struct {
		Trigger string `json:"trigger"`
		Content string `json:"content"`
	}
	prompt := fmt.Sprintf("trigger: %s\ncontent: %s", trigger, content)
	if err := l.chatJSON(ctx, compressLevel2SystemPrompt, prompt, &parsed); err != nil {
		return Level2Result{}, err
	}
	return Level2Result{Trigger: parsed.Trigger, Content: parsed.Content}, nil
}

// CompressToLevel3 produces a keyword-form trigger/content pair.
func (l *LLM) CompressToLevel3(ctx context.Context, trigger, content string) (Level3Result, error) {
	var parsed struct {
		Trigger string `json:"trigger"`
		Content string `json:"content"`
	}
	prompt := fmt.Sprintf("trigger: %s\ncontent: %s", trigger, content)
	if err := l.chatJSON(ctx, compressLevel3SystemPrompt, prompt, &parsed); err != nil {
		return Level3Result{}, err
	}
	return Level3Result{Trigger: parsed.Trigger, Content: parsed.Content}, nil
}

const (
	analyzeBatchSystemPrompt = "You analyze one conversational turn and respond with a single JSON object: " +
		`{"emotional_intensity":0-100,"emotional_valence":"positive|negative|neutral","emotional_arousal":0-100,` +
		`"emotional_tags":[...],"category":"casual|work|decision|emotional","keywords":[...],"protected":bool}.`

	classifyPromptSystemPrompt = "You classify a retrieval query and respond with a single JSON object: " +
		`{"category":"casual|work|decision|emotional","has_emotion":bool,"valence":"positive|negative|neutral",` +
		`"arousal":0-100,"tags":[...]}.`

	compressLevel2SystemPrompt = "You compress a memory's trigger/content into a short summary, preserving the " +
		`gist. Respond with a single JSON object: {"trigger":"...","content":"..."}.`

	compressLevel3SystemPrompt = "You compress a memory's trigger/content into keyword form. Respond with a " +
		`single JSON object: {"trigger":"...","content":"..."}.`
)

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "openai/gpt-3.5-turbo"
const defaultOpenAIBaseURL = "https://openrouter.ai/api/v1"

// Classifier maps free text plus request metadata to a structured analysis.
// A call can fail (timeout, transport, rate limit); failures are per call.
type Classifier interface {
	Classify(ctx context.Context, text string, reqCtx RequestContext) (LLMAnalysis, error)
}

type LLMUsage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u LLMUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *LLMUsage) Add(other LLMUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// LLMClassifier calls an OpenAI-compatible endpoint (OpenRouter by default)
// or Anthropic, depending on configuration. Safe for concurrent use.
type LLMClassifier struct {
	provider string
	model    string
	apiKey   string
	baseURL  string

	mu    sync.Mutex
	usage LLMUsage
}

func NewLLMClassifier(cfg Config) *LLMClassifier {
	c := &LLMClassifier{
		provider: cfg.LLMProvider,
		model:    cfg.LLMModel,
		baseURL:  cfg.LLMBaseURL,
	}
	switch cfg.LLMProvider {
	case "anthropic":
		c.apiKey = cfg.AnthropicAPIKey
		if c.model == "" {
			c.model = defaultAnthropicModel
		}
	default:
		c.apiKey = cfg.OpenRouterAPIKey
		if c.model == "" {
			c.model = defaultOpenAIModel
		}
		if c.baseURL == "" {
			c.baseURL = defaultOpenAIBaseURL
		}
	}
	return c
}

func (c *LLMClassifier) Classify(ctx context.Context, text string, reqCtx RequestContext) (LLMAnalysis, error) {
	start := time.Now()
	systemPrompt, userPrompt := buildClassifyPrompts(text, reqCtx)

	var responseText string
	var usage LLMUsage
	var err error

	switch c.provider {
	case "anthropic":
		responseText, usage, err = callAnthropic(ctx, c.apiKey, c.model, systemPrompt, userPrompt)
	default:
		responseText, usage, err = callOpenAI(ctx, c.apiKey, c.baseURL, c.model, systemPrompt, userPrompt)
	}

	c.mu.Lock()
	c.usage.Add(usage)
	c.mu.Unlock()

	if err != nil {
		return LLMAnalysis{}, err
	}

	analysis := parseClassifyResponse(responseText)
	analysis.ProcessingTime = time.Since(start).Seconds()
	analysis.Model = c.model
	return analysis, nil
}

// Usage returns the accumulated token counts across all calls.
func (c *LLMClassifier) Usage() LLMUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func buildClassifyPrompts(text string, reqCtx RequestContext) (string, string) {
	systemPrompt := `You classify a single customer request.
Assign a priority from: high, medium, low.
Write a one-sentence summary and a short actionable recommendation.

Respond with JSON only (no markdown):
{"priority": "high", "summary": "...", "recommendation": "..."}`

	var b strings.Builder
	b.WriteString("Request context:\n")
	fmt.Fprintf(&b, "- id: %s\n", reqCtx.ID)
	fmt.Fprintf(&b, "- date: %s\n", reqCtx.Date)
	fmt.Fprintf(&b, "- category: %s\n", reqCtx.Category)
	b.WriteString("\nRequest text:\n")
	b.WriteString(strings.TrimSpace(text))
	return systemPrompt, b.String()
}

type classifiedResponse struct {
	Priority       string `json:"priority"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
}

// parseClassifyResponse never fails: a response the model mangled degrades
// to priority "unknown" instead of failing the record. Only transport-level
// errors surface as call failures.
func parseClassifyResponse(responseText string) LLMAnalysis {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var parsed classifiedResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		log.Printf("llm unparseable response err=%v size=%d", err, len(responseText))
		return LLMAnalysis{
			Priority:     PriorityUnknown,
			PriorityText: priorityLabels[PriorityUnknown],
		}
	}

	priority := normalizePriority(parsed.Priority)
	return LLMAnalysis{
		Priority:       priority,
		PriorityText:   priorityLabels[priority],
		Summary:        strings.TrimSpace(parsed.Summary),
		Recommendation: strings.TrimSpace(parsed.Recommendation),
	}
}

func normalizePriority(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case PriorityHigh, "urgent", "critical":
		return PriorityHigh
	case PriorityMedium, "normal":
		return PriorityMedium
	case PriorityLow, "minor":
		return PriorityLow
	default:
		return PriorityUnknown
	}
}

// --- Anthropic ---

func callAnthropic(ctx context.Context, apiKey, model, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", LLMUsage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := LLMUsage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), usage.InputTokens, usage.OutputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}

// --- OpenAI-compatible (OpenRouter) ---

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func callOpenAI(ctx context.Context, apiKey, baseURL, model, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	reqBody := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", LLMUsage{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimSuffix(baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", LLMUsage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return "", LLMUsage{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", LLMUsage{}, fmt.Errorf("reading response: %w", err)
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", LLMUsage{}, fmt.Errorf("parsing OpenAI response: %w", err)
	}

	if openAIResp.Error != nil {
		return "", LLMUsage{}, fmt.Errorf("OpenAI API error: %s", openAIResp.Error.Message)
	}

	if len(openAIResp.Choices) == 0 {
		return "", LLMUsage{}, fmt.Errorf("no choices in OpenAI response")
	}
	usage := LLMUsage{}
	if openAIResp.Usage != nil {
		usage.InputTokens = openAIResp.Usage.PromptTokens
		usage.OutputTokens = openAIResp.Usage.CompletionTokens
	}

	log.Printf("llm openai response size=%d tokens_in=%d tokens_out=%d", len(openAIResp.Choices[0].Message.Content), usage.InputTokens, usage.OutputTokens)
	return openAIResp.Choices[0].Message.Content, usage, nil
}

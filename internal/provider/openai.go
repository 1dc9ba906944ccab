package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lawyrs/internal/domain"
)

const (
	defaultOpenAIBase    = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-5-mini"
	defaultOpenAITimeout = 30 * time.Second
	maxErrorBody         = 512
)

// OpenAI implements domain.TextGenerator for OpenAI-compatible chat
// completion APIs (OpenAI, Novita and similar gateways).
type OpenAI struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type OpenAIConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultOpenAIBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOpenAITimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OpenAI{
		apiKey:  cfg.APIKey,
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		model:   cfg.Model,
		client:  SharedHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}
}

func (o *OpenAI) Name() string     { return "openai" }
func (o *OpenAI) Model() string    { return o.model }
func (o *OpenAI) Configured() bool { return o != nil && o.apiKey != "" }

// Healthy checks that the endpoint accepts the key.
func (o *OpenAI) Healthy(ctx context.Context) error {
	if !o.Configured() {
		return fmt.Errorf("openai: no API key configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("openai: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai returned %d", resp.StatusCode)
	}
	return nil
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	Stream      bool         `json:"stream"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Usage   oaiUsage    `json:"usage"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// buildMessages lays out the prompt: identity and role, then the matter,
// memory and grounding block, then the transcript and the new message.
func buildMessages(req domain.GenerateRequest) []oaiMessage {
	msgs := make([]oaiMessage, 0, len(req.History)+3)

	system := req.SystemIdentity
	if req.Specialty != "" {
		system += "\n\n" + req.Specialty
	}
	msgs = append(msgs, oaiMessage{Role: "system", Content: system})

	var ctxb strings.Builder
	writeBlock(&ctxb, "MATTER CONTEXT", req.MatterContext)
	writeBlock(&ctxb, "PRIOR MEMORY", req.PriorMemory)
	writeBlock(&ctxb, "GROUNDING", req.Grounding)
	if ctxb.Len() > 0 {
		msgs = append(msgs, oaiMessage{Role: "system", Content: strings.TrimRight(ctxb.String(), "\n")})
	}

	for _, t := range req.History {
		switch t.Role {
		case domain.RoleUser, domain.RoleAssistant:
			if strings.TrimSpace(t.Content) != "" {
				msgs = append(msgs, oaiMessage{Role: t.Role, Content: t.Content})
			}
		}
	}
	msgs = append(msgs, oaiMessage{Role: "user", Content: req.Message})
	return msgs
}

func writeBlock(b *strings.Builder, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Fprintf(b, "%s:\n%s\n\n", title, body)
}

// Generate makes a single chat completion call. No retries: the caller falls
// back to its own text on any error.
func (o *OpenAI) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResponse, error) {
	if !o.Configured() {
		return nil, fmt.Errorf("openai: no API key configured")
	}

	body := oaiRequest{
		Model:    o.model,
		Messages: buildMessages(req),
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	o.logger.Debug("openai request", "model", o.model, "messages", len(body.Messages))
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("openai %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(oaiResp.Choices) == 0 || strings.TrimSpace(oaiResp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("openai: empty completion")
	}

	tokens := oaiResp.Usage.TotalTokens
	if tokens == 0 {
		tokens = oaiResp.Usage.PromptTokens + oaiResp.Usage.CompletionTokens
	}
	return &domain.GenerateResponse{
		Content:    oaiResp.Choices[0].Message.Content,
		TokensUsed: tokens,
	}, nil
}

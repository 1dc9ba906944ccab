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

const defaultCrewTimeout = 45 * time.Second

// CrewClient calls the external multi-agent service. It implements
// domain.RemoteAgent; an empty URL disables it.
type CrewClient struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type CrewConfig struct {
	URL     string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewCrewClient(cfg CrewConfig) *CrewClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCrewTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CrewClient{
		url:    strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		client: SharedHTTPClient(cfg.Timeout),
		logger: cfg.Logger,
	}
}

func (c *CrewClient) Enabled() bool { return c != nil && c.url != "" }

// Run posts one request to /api/crew/chat. Any non-2xx status is an error
// carrying the status and body; the caller decides how to fall back.
func (c *CrewClient) Run(ctx context.Context, req domain.RemoteRequest) (*domain.RemoteResponse, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("crew agent: not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/crew/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("crew agent request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("crew agent %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out domain.RemoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode crew response: %w", err)
	}
	c.logger.Debug("crew agent answered",
		"agent", req.AgentType,
		"success", out.Success,
		"tokens", out.TokensUsed,
		"elapsed", time.Since(start))
	return &out, nil
}

// Health checks GET /health on the crew service.
func (c *CrewClient) Health(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("crew agent: not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("crew agent not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("crew agent health returned %d", resp.StatusCode)
	}
	return nil
}

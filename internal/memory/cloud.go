package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lawyrs/internal/domain"
	"lawyrs/internal/provider"
)

const defaultCloudTimeout = 5 * time.Second

// CloudClient talks to a Mem0-style semantic memory service. With no API key
// it is disabled and every call returns an empty result without touching the
// network.
type CloudClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

type CloudConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewCloudClient(cfg CloudConfig) *CloudClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mem0.ai"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCloudTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CloudClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  provider.SharedHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}
}

func (c *CloudClient) Enabled() bool { return c != nil && c.apiKey != "" }

type m0Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type m0AddRequest struct {
	Messages []m0Message `json:"messages"`
	UserID   string      `json:"user_id"`
	AgentID  string      `json:"agent_id,omitempty"`
	Metadata m0Metadata  `json:"metadata"`
}

type m0Metadata struct {
	Key        string  `json:"key,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	CaseID     *int64  `json:"case_id,omitempty"`
}

type m0SearchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

type m0Memory struct {
	ID        string     `json:"id"`
	Memory    string     `json:"memory"`
	Event     string     `json:"event,omitempty"`
	AgentID   string     `json:"agent_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	Score     float64    `json:"score,omitempty"`
	Metadata  m0Metadata `json:"metadata"`
	CreatedAt string     `json:"created_at,omitempty"`
}

// m0List accepts both the bare array and the {"results": [...]} envelope.
type m0List []m0Memory

func (l *m0List) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []m0Memory
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}
		*l = arr
		return nil
	}
	var env struct {
		Results []m0Memory `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	*l = env.Results
	return nil
}

// Add stores a fact. It returns the id the service assigned, or "" when
// the service accepted the write without echoing a memory.
func (c *CloudClient) Add(ctx context.Context, mem domain.MemoryEntry) (string, error) {
	if !c.Enabled() {
		return "", nil
	}
	content := mem.Value
	if mem.Key != "" {
		content = mem.Key + ": " + mem.Value
	}
	body := m0AddRequest{
		Messages: []m0Message{{Role: "user", Content: content}},
		UserID:   string(mem.Principal),
		AgentID:  string(mem.Specialist),
		Metadata: m0Metadata{Key: mem.Key, Confidence: mem.Confidence, CaseID: mem.CaseID},
	}

	var out m0List
	if err := c.do(ctx, http.MethodPost, "/v1/memories/", body, &out); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", nil
	}
	return out[0].ID, nil
}

func (c *CloudClient) Search(ctx context.Context, principal domain.Principal, query string, limit int) ([]domain.MemoryEntry, error) {
	if !c.Enabled() {
		return []domain.MemoryEntry{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var out m0List
	body := m0SearchRequest{Query: query, UserID: string(principal), Limit: limit}
	if err := c.do(ctx, http.MethodPost, "/v1/memories/search/", body, &out); err != nil {
		return nil, err
	}
	entries := toEntries(out, principal)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (c *CloudClient) List(ctx context.Context, principal domain.Principal) ([]domain.MemoryEntry, error) {
	if !c.Enabled() {
		return []domain.MemoryEntry{}, nil
	}
	var out m0List
	path := "/v1/memories/?user_id=" + url.QueryEscape(string(principal))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return toEntries(out, principal), nil
}

func (c *CloudClient) Delete(ctx context.Context, id string) error {
	if !c.Enabled() {
		return nil
	}
	if id == "" {
		return fmt.Errorf("cloud memory delete: empty id: %w", domain.ErrInvalidRequest)
	}
	return c.do(ctx, http.MethodDelete, "/v1/memories/"+url.PathEscape(id)+"/", nil, nil)
}

// Count is the size of List; the service has no count endpoint.
func (c *CloudClient) Count(ctx context.Context, principal domain.Principal) (int, error) {
	entries, err := c.List(ctx, principal)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (c *CloudClient) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	c.logger.Debug("cloud memory request", "method", method, "path", path)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloud memory %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodDelete {
		return fmt.Errorf("cloud memory delete: %w", domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("cloud memory %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode cloud memory response: %w", err)
	}
	return nil
}

func toEntries(list m0List, principal domain.Principal) []domain.MemoryEntry {
	entries := make([]domain.MemoryEntry, 0, len(list))
	for _, m := range list {
		e := domain.MemoryEntry{
			ID:         m.ID,
			Principal:  principal,
			Specialist: domain.Specialist(m.AgentID),
			Key:        m.Metadata.Key,
			Value:      m.Memory,
			Confidence: m.Metadata.Confidence,
			CaseID:     m.Metadata.CaseID,
			Source:     domain.SourceCloud,
			Score:      m.Score,
		}
		if m.CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
				e.CreatedAt = t
			}
		}
		entries = append(entries, e)
	}
	return entries
}

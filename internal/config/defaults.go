package config

import "time"

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8787,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 150 * time.Second, // allow time for remote agent + LLM tiers
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Path: "~/.lawyrs/lawyrs.db",
		},
		Assistant: AssistantConfig{
			Principal:           "default",
			HistoryLimit:        20,
			PromptHistory:       10,
			RequestBudget:       90 * time.Second,
			DefaultJurisdiction: "missouri",
		},
		Routing: RoutingConfig{
			DefaultSpecialist:      "strategist",
			ContinuationBonus:      2,
			CoRouteMargin:          3,
			ZeroScoreConfidence:    0.25,
			MaxConfidence:          0.98,
			SecondaryTokenFraction: 0.3,
		},
		Crew: CrewConfig{
			Timeout: 45 * time.Second,
		},
		LLM: LLMConfig{
			Model:              "gpt-5-mini",
			Timeout:            30 * time.Second,
			MaxTokens:          4096,
			Temperature:        0.1,
			RateLimitPerMinute: 30,
			Burst:              10,
		},
		Mem0: CloudMemoryConfig{
			BaseURL: "https://api.mem0.ai",
			Timeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

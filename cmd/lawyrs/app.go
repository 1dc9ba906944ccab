package main

import (
	"fmt"
	"log/slog"

	"lawyrs/internal/agent"
	"lawyrs/internal/config"
	"lawyrs/internal/domain"
	"lawyrs/internal/matter"
	"lawyrs/internal/memory"
	"lawyrs/internal/provider"
)

// app holds every wired component of one process.
type app struct {
	cfg        *config.Config
	store      *memory.SQLiteStore
	hybrid     *memory.Hybrid
	crew       *provider.CrewClient
	llm        *provider.OpenAI
	classifier *agent.Classifier
	pipeline   *agent.Pipeline
	orch       *agent.Orchestrator
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	classifier, err := newClassifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := memory.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	cloud := memory.NewCloudClient(memory.CloudConfig{
		APIKey:  cfg.Mem0.APIKey,
		BaseURL: cfg.Mem0.BaseURL,
		Timeout: cfg.Mem0.Timeout,
		Logger:  logger,
	})
	hybrid := memory.NewHybrid(store, cloud, logger)

	crew := provider.NewCrewClient(provider.CrewConfig{
		URL:     cfg.Crew.URL,
		Timeout: cfg.Crew.Timeout,
		Logger:  logger,
	})
	llm := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		APIBase: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
		Logger:  logger,
	})
	limiter := agent.NewRateLimiter(cfg.LLM.Burst, cfg.LLM.RateLimitPerMinute)

	pipeline := agent.NewPipeline([]agent.Stage{
		{Strategy: agent.NewRemoteStrategy(crew, logger), Timeout: cfg.Crew.Timeout},
		{Strategy: agent.NewLocalStrategy(llm, limiter, agent.LocalParams{
			MaxTokens:    cfg.LLM.MaxTokens,
			Temperature:  cfg.LLM.Temperature,
			HistoryTurns: cfg.Assistant.PromptHistory,
		}, logger), Timeout: cfg.LLM.Timeout},
	}, cfg.Assistant.RequestBudget, logger)

	assembler := matter.NewAssembler(matter.Config{
		Cases:        store,
		Memory:       store,
		History:      store,
		HistoryLimit: cfg.Assistant.HistoryLimit,
		Logger:       logger,
	})

	orch := agent.NewOrchestrator(agent.OrchestratorConfig{
		Classifier:    classifier,
		Assembler:     assembler,
		Memory:        hybrid,
		Chat:          store,
		Executor:      pipeline,
		Sessions:      agent.NewSessionTracker(store, logger),
		Principal:     domain.Principal(cfg.Assistant.Principal),
		Jurisdiction:  domain.NormalizeJurisdiction(cfg.Assistant.DefaultJurisdiction),
		HistoryLimit:  cfg.Assistant.HistoryLimit,
		TokenFraction: cfg.Routing.SecondaryTokenFraction,
		Logger:        logger,
	})

	logger.Debug("assistant wired",
		"db", cfg.Database.Path,
		"stages", pipeline.Names(),
		"remote_agent", crew.Enabled(),
		"llm", llm.Configured(),
		"cloud_memory", cloud.Enabled(),
	)

	return &app{
		cfg:        cfg,
		store:      store,
		hybrid:     hybrid,
		crew:       crew,
		llm:        llm,
		classifier: classifier,
		pipeline:   pipeline,
		orch:       orch,
	}, nil
}

// Close drains pending cloud mirrors before the store goes away.
func (a *app) Close() error {
	a.hybrid.Wait()
	return a.store.Close()
}

// newClassifier needs no database, so classify works before migrate.
func newClassifier(cfg *config.Config, logger *slog.Logger) (*agent.Classifier, error) {
	var (
		tables *agent.RoutingTables
		err    error
	)
	if cfg.Routing.File != "" {
		tables, err = agent.LoadRoutingTables(cfg.Routing.File)
	} else {
		tables, err = agent.DefaultRoutingTables()
	}
	if err != nil {
		return nil, fmt.Errorf("routing tables: %w", err)
	}
	return agent.NewClassifier(tables, agent.ClassifierParams{
		DefaultSpecialist:   domain.Specialist(cfg.Routing.DefaultSpecialist),
		ContinuationBonus:   cfg.Routing.ContinuationBonus,
		CoRouteMargin:       cfg.Routing.CoRouteMargin,
		ZeroScoreConfidence: cfg.Routing.ZeroScoreConfidence,
		MaxConfidence:       cfg.Routing.MaxConfidence,
	}, logger), nil
}

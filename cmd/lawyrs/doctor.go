package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"lawyrs/internal/config"
	"lawyrs/internal/memory"
	"lawyrs/internal/provider"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your Lawyrs installation",
		Long: `Verifies that the configuration, database, server port and the
generation backends are reachable. Reports pass/warn/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("Lawyrs Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			var passed, warned, failed int

			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s (using defaults)", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("config is invalid")
			}
			printPass("Config validation", "valid")
			passed++

			if schema, err := checkDatabase(cfg.Database.Path); err != nil {
				printFail("Database", err.Error())
				failed++
			} else if schema == 0 {
				printWarn("Database", "schema not created; run 'lawyrs migrate'")
				warned++
			} else {
				printPass("Database", fmt.Sprintf("%s (schema v%d)", cfg.Database.Path, schema))
				passed++
			}

			if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
				printWarn("Server port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
				warned++
			} else {
				printPass("Server port", fmt.Sprintf(":%d available", cfg.Server.Port))
				passed++
			}

			if cfg.Server.APIKey == "" {
				printWarn("API key", "server.apiKey is empty; the API is unauthenticated")
				warned++
			} else {
				printPass("API key", "set")
				passed++
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			crew := provider.NewCrewClient(provider.CrewConfig{URL: cfg.Crew.URL, Timeout: cfg.Crew.Timeout, Logger: logger})
			switch {
			case !crew.Enabled():
				printWarn("Crew agent", "crew.url not set (remote tier disabled)")
				warned++
			case crew.Health(ctx) != nil:
				printWarn("Crew agent", fmt.Sprintf("%s is not healthy", cfg.Crew.URL))
				warned++
			default:
				printPass("Crew agent", cfg.Crew.URL)
				passed++
			}

			llm := provider.NewOpenAI(provider.OpenAIConfig{
				APIKey: cfg.LLM.APIKey, APIBase: cfg.LLM.BaseURL, Model: cfg.LLM.Model,
				Timeout: cfg.LLM.Timeout, Logger: logger,
			})
			if !llm.Configured() {
				printWarn("LLM", "no API key (answers fall back to templates)")
				warned++
			} else if err := llm.Healthy(ctx); err != nil {
				printFail("LLM", err.Error())
				failed++
			} else {
				printPass("LLM", llm.Model())
				passed++
			}

			cloud := memory.NewCloudClient(memory.CloudConfig{APIKey: cfg.Mem0.APIKey, BaseURL: cfg.Mem0.BaseURL, Timeout: cfg.Mem0.Timeout, Logger: logger})
			if cloud.Enabled() {
				printPass("Cloud memory", "configured")
				passed++
			} else {
				printWarn("Cloud memory", "mem0.apiKey not set (local memory only)")
				warned++
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

// checkDatabase verifies the database is writable and returns its schema
// version.
func checkDatabase(dbPath string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return 0, fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return 0, fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("cannot ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return 0, fmt.Errorf("not writable: %w", err)
	}
	_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return memory.GetSchemaVersion(db)
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return err
	}
	return ln.Close()
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"lawyrs/internal/domain"
)

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect agent memory",
	}

	var limit int
	search := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memory (cloud first when configured, then local)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.hybrid.Search(cmd.Context(), domain.Principal(cfg.Assistant.Principal), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	search.Flags().IntVarP(&limit, "limit", "n", domain.MaxContextMemories, "maximum results")
	cmd.AddCommand(search)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show memory counts by specialist and store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.hybrid.Stats(cmd.Context(), domain.Principal(cfg.Assistant.Principal))
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List memories held by the cloud memory service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			mems, err := a.hybrid.List(cmd.Context(), domain.Principal(cfg.Assistant.Principal))
			if err != nil {
				return err
			}
			return printJSON(cmd, mems)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [id]...",
		Short: "Delete cloud memories by id (local memory is append-only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return deleteMemories(cmd.Context(), cmd.OutOrStdout(), a.hybrid, args)
		},
	})

	return cmd
}

type memoryDeleter interface {
	Delete(ctx context.Context, id string) error
}

// deleteMemories removes every id it can and reports the ones it could not.
func deleteMemories(ctx context.Context, out io.Writer, m memoryDeleter, ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := m.Delete(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "deleted %s\n", id)
	}
	return errors.Join(errs...)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"lawyrs/internal/agent"
	"lawyrs/internal/domain"
)

func askCmd() *cobra.Command {
	var (
		sessionID    string
		caseID       int64
		jurisdiction string
		agentType    string
		documentType string
		fullCrew     bool
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Run one assistant turn from the command line",
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

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			req := agent.TurnRequest{
				Message:      strings.Join(args, " "),
				SessionID:    sessionID,
				Jurisdiction: jurisdiction,
				AgentType:    agentType,
				DocumentType: documentType,
				FullCrew:     fullCrew,
			}
			if cmd.Flags().Changed("case") {
				req.CaseID = &caseID
			}

			res, err := a.orch.HandleTurn(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(out, res.Output.Content)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "-- %s | tier %s | %d tokens | session %s\n",
				agent.RouteLine(res.Route), res.Output.Tier, res.Output.TokensUsed, res.SessionID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to continue (default: new session)")
	cmd.Flags().Int64Var(&caseID, "case", 0, "case id to ground the answer in")
	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "kansas | missouri | federal | multistate")
	cmd.Flags().StringVarP(&agentType, "agent", "a", "", "force a specialist: "+specialistList())
	cmd.Flags().StringVarP(&documentType, "document", "d", "", "document to draft, e.g. motion_to_compel or demand_letter")
	cmd.Flags().BoolVar(&fullCrew, "full-crew", false, "run every relevant specialist and merge their answers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full turn result as JSON")
	return cmd
}

func specialistList() string {
	names := make([]string, len(domain.Specialists))
	for i, s := range domain.Specialists {
		names[i] = string(s)
	}
	return strings.Join(names, " | ")
}

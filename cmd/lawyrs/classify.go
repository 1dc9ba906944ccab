package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"lawyrs/internal/domain"
)

func classifyCmd() *cobra.Command {
	var after string
	cmd := &cobra.Command{
		Use:   "classify [message]",
		Short: "Show which specialist a message would be routed to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := newClassifier(cfg, logger)
			if err != nil {
				return err
			}

			var history []domain.ConversationTurn
			if after != "" {
				s, err := domain.ParseSpecialist(after)
				if err != nil {
					return err
				}
				history = []domain.ConversationTurn{{Role: domain.RoleAssistant, AgentType: s}}
			}

			route := c.Classify(strings.Join(args, " "), history)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(route)
		},
	}
	cmd.Flags().StringVar(&after, "after", "", "treat the previous answer as coming from this specialist")
	return cmd
}

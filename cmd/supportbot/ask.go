package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newAskCmd(cfgPath *string) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Look a question up in the FAQ index without starting a server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg).Level(zerolog.WarnLevel)
			idx, err := buildIndex(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") && cfg.FAQ.Threshold != nil {
				threshold = *cfg.FAQ.Threshold
			}
			query := strings.Join(args, " ")
			match, ok, err := idx.Search(query, threshold)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "no FAQ match at threshold %.2f\n", threshold)
				return nil
			}
			fmt.Fprintf(out, "Q: %s\nA: %s\nscore: %.3f\n", match.Entry.Question, match.Entry.Answer, match.Score)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0.3, "Minimum cosine similarity for a match")
	return cmd
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/generation"
	"github.com/abhisek/examiz/internal/session"
)

var generateCmd = &cobra.Command{
	Use:   "generate <topic> [topic...]",
	Short: "Generate questions on the server",
	Long: `Ask the server to generate questions for one or more topics.

With a single topic the generated questions become the new session and
'examiz play' picks them up. With several topics the questions are only
added to the question bank.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		count, _ := cmd.Flags().GetInt("count")
		if count <= 0 {
			count = cfg.Generation.Count
		}

		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()

		opts := []generation.Option{
			generation.WithStageInterval(cfg.Generation.StageInterval),
			generation.WithLogger(slog.Default()),
		}
		if len(args) == 1 {
			return generateOne(ctx, c, args[0], count, opts)
		}
		return generateBatch(ctx, c, args, count, opts)
	},
}

func init() {
	generateCmd.Flags().IntP("count", "n", 0, "Questions per topic (config generation.count when 0)")
}

func generateOne(ctx context.Context, c *client, topic string, count int, opts []generation.Option) error {
	var started *session.State
	opts = append(opts,
		generation.WithOnSuccess(func(ctx context.Context, topic string, qs []session.Question) error {
			st, err := c.rec.Start(ctx, topic, qs)
			started = st
			return err
		}),
		generation.WithNotify(printStage),
	)
	p := generation.NewPoller(c.api, opts...)
	if _, err := p.Start(context.WithoutCancel(ctx), topic, count); err != nil {
		return err
	}

	st, err := p.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		p.Cancel()
		fmt.Println("\nGeneration cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nGenerated %d questions on %q.", len(st.Questions), topic)
	if started != nil {
		fmt.Print(" Run `examiz play` to start.")
	}
	fmt.Println()
	return nil
}

// printStage writes the cosmetic progress line.
func printStage(st generation.Status) {
	switch st.Phase {
	case generation.Connecting:
		fmt.Printf("\r\033[K%s", generation.ConnectingMessage)
	case generation.InProgress:
		fmt.Printf("\r\033[K%s", st.Stage)
	}
}

func generateBatch(ctx context.Context, c *client, topics []string, count int, opts []generation.Option) error {
	p := generation.NewPoller(c.api, opts...)
	res := p.RunBatch(ctx, topics, count, func(bp generation.BatchProgress) {
		fmt.Printf("[%d/%d] %s\n", bp.Current, bp.Total, bp.Topic)
	})

	fmt.Printf("\n%d of %d topics generated.\n", res.Succeeded(), len(topics))
	failed := res.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, len(failed))
	for i, f := range failed {
		fmt.Printf("  %s: %v\n", f.Topic, f.Err)
		names[i] = f.Topic
	}
	return fmt.Errorf("generation failed for: %s", strings.Join(names, ", "))
}

package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/llm"
	"github.com/abhisek/examiz/internal/questiongen"
	"github.com/abhisek/examiz/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect question generation calls",
	Long: `Inspect the LLM calls made by the server to generate questions.

Every call is recorded in the question bank database, so run these on the
host that runs 'examiz serve'.`,
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent generation calls with their topic and yield",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		topic, _ := cmd.Flags().GetString("topic")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		opts := store.QueryOpts{Purpose: purpose}
		if topic == "" {
			opts.Limit = limit
		}
		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		rows := 0
		for _, e := range events {
			rec, _ := questiongen.ParseRecord(e.RequestBody, e.ResponseBody)
			if topic != "" && !strings.EqualFold(rec.Topic, topic) {
				continue
			}
			if rows == 0 {
				fmt.Printf("%-5s  %-16s  %-12s  %-24s  %-7s  %-11s  %-6s  %s\n",
					"ID", "TIME", "PURPOSE", "TOPIC", "YIELD", "TOKENS", "MS", "OK")
			}
			fmt.Printf("%-5d  %-16s  %-12s  %-24s  %-7s  %-11s  %-6d  %s\n",
				e.ID,
				e.Timestamp.Local().Format("2006-01-02 15:04"),
				e.Purpose,
				truncate(orDash(rec.Topic), 24),
				yield(rec, e.Success),
				fmt.Sprintf("%d/%d", e.InputTokens, e.OutputTokens),
				e.LatencyMs,
				okMark(e.Success))
			if rows++; topic != "" && limit > 0 && rows >= limit {
				break
			}
		}
		if rows == 0 {
			fmt.Println("No generation calls recorded.")
		}
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show one generation call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q", args[0])
		}
		raw, _ := cmd.Flags().GetBool("raw")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		fmt.Printf("Call #%d  %s  %s via %s (%s)\n", e.ID,
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Model, e.Provider, e.Purpose)
		fmt.Printf("%d input / %d output tokens in %dms\n", e.InputTokens, e.OutputTokens, e.LatencyMs)
		if !e.Success {
			fmt.Printf("Failed: %s\n", e.ErrorMessage)
		}

		rec, ok := questiongen.ParseRecord(e.RequestBody, e.ResponseBody)
		if ok {
			fmt.Printf("\nTopic:      %s\n", rec.Topic)
			fmt.Printf("Questions:  %d requested, %d returned, %d well-formed\n", rec.Requested, rec.Returned, rec.Valid)
			if len(rec.KnowledgePoints) > 0 {
				fmt.Printf("Points:     %s\n", strings.Join(rec.KnowledgePoints, ", "))
			}
			for _, verr := range rec.Invalid {
				fmt.Printf("  rejected: %s (%s)\n", verr.Message, truncate(verr.Question, 40))
			}
		}
		if !raw && ok {
			return nil
		}

		sep := strings.Repeat("─", 60)
		for _, part := range []struct{ title, body string }{
			{"REQUEST", e.RequestBody},
			{"RESPONSE", e.ResponseBody},
		} {
			fmt.Printf("\n%s\n%s\n%s\n", sep, part.title, sep)
			fmt.Println(orDefault(part.body, "(not captured)"))
		}
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage, cost and yield per topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		events := s.EventRepo()

		byPurpose, err := events.LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		if len(byPurpose) == 0 {
			fmt.Println("No generation calls recorded.")
			return nil
		}
		printPurposeUsage(byPurpose)

		byModel, err := events.LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		printModelCost(byModel)

		all, err := events.QueryLLMEvents(ctx, store.QueryOpts{})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		printTopicYield(topicYields(all))
		return nil
	},
}

func printPurposeUsage(stats []store.LLMUsageStat) {
	fmt.Printf("%-14s  %6s  %10s  %10s  %8s\n", "PURPOSE", "CALLS", "INPUT", "OUTPUT", "AVG MS")
	var calls, in, out int
	for _, st := range stats {
		fmt.Printf("%-14s  %6d  %10d  %10d  %8d\n", st.Purpose, st.Calls, st.InputTokens, st.OutputTokens, st.AvgLatencyMs)
		calls += st.Calls
		in += st.InputTokens
		out += st.OutputTokens
	}
	fmt.Printf("%-14s  %6d  %10d  %10d\n", "total", calls, in, out)
}

func printModelCost(stats []store.LLMUsageStat) {
	if len(stats) == 0 {
		return
	}
	fmt.Printf("\n%-32s  %6s  %10s\n", "MODEL", "CALLS", "COST (USD)")
	var total float64
	var unpriced []string
	for _, mu := range stats {
		cost := llm.LookupCost(mu.Model)
		if cost == nil {
			unpriced = append(unpriced, mu.Model)
			fmt.Printf("%-32s  %6d  %10s\n", truncate(mu.Model, 32), mu.Calls, "?")
			continue
		}
		c := cost.Cost(mu.InputTokens, mu.OutputTokens)
		total += c
		fmt.Printf("%-32s  %6d  %10s\n", truncate(mu.Model, 32), mu.Calls, formatCost(c))
	}
	fmt.Printf("%-32s  %6s  %10s\n", "total", "", formatCost(total))
	if len(unpriced) > 0 {
		fmt.Printf("No pricing for %s; the total leaves them out.\n", strings.Join(unpriced, ", "))
	}
}

// topicYield aggregates generation calls for one topic.
type topicYield struct {
	Topic     string
	Calls     int
	Failed    int
	Requested int
	Valid     int
}

// topicYields groups events by the topic they generated for, most calls
// first. Events that are not generation calls are ignored.
func topicYields(events []store.LLMRequestEventRecord) []topicYield {
	byTopic := map[string]*topicYield{}
	for _, e := range events {
		rec, ok := questiongen.ParseRecord(e.RequestBody, e.ResponseBody)
		if !ok {
			continue
		}
		y := byTopic[rec.Topic]
		if y == nil {
			y = &topicYield{Topic: rec.Topic}
			byTopic[rec.Topic] = y
		}
		y.Calls++
		y.Requested += rec.Requested
		y.Valid += rec.Valid
		if !e.Success {
			y.Failed++
		}
	}
	out := make([]topicYield, 0, len(byTopic))
	for _, y := range byTopic {
		out = append(out, *y)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

func printTopicYield(yields []topicYield) {
	if len(yields) == 0 {
		return
	}
	fmt.Printf("\n%-28s  %6s  %6s  %9s  %6s  %6s\n", "TOPIC", "CALLS", "FAILED", "REQUESTED", "VALID", "YIELD")
	for _, y := range yields {
		fmt.Printf("%-28s  %6d  %6d  %9d  %6d  %6s\n",
			truncate(y.Topic, 28), y.Calls, y.Failed, y.Requested, y.Valid, percent(y.Valid, y.Requested))
	}
}

func yield(rec questiongen.Record, success bool) string {
	switch {
	case !success:
		return "-"
	case rec.Requested == 0:
		return "?"
	}
	return fmt.Sprintf("%d/%d", rec.Valid, rec.Requested)
}

func okMark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func orDash(s string) string {
	return orDefault(s, "-")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// truncate cuts s to max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of calls to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Only calls for this purpose (question-gen, autogen)")
	llmListCmd.Flags().StringP("topic", "t", "", "Only calls for this topic")
	llmViewCmd.Flags().Bool("raw", false, "Also print the full request and response")

	llmCmd.AddCommand(llmListCmd, llmViewCmd, llmStatsCmd)
}

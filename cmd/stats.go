package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/remote"
	"github.com/abhisek/examiz/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recent sessions and the review queue",
	Long: `Show recent sessions and the review queue as reported by the server.

With --bank the question bank database is read directly instead, showing
per knowledge point accuracy and daily study totals. Use it on the host
that runs 'examiz serve'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if bank, _ := cmd.Flags().GetBool("bank"); bank {
			return bankStats(cmd, limit)
		}

		ctx := cmd.Context()
		api := remote.New(cfg.Client.ServerURL)

		logs, err := api.SessionLogs(ctx, limit)
		if err != nil {
			return fmt.Errorf("fetch sessions: %w", err)
		}
		fmt.Println("Recent sessions")
		if len(logs) == 0 {
			fmt.Println("  none yet")
		}
		for _, l := range logs {
			fmt.Printf("  %-16s  %-32s  %3d/%-3d  %s\n",
				l.FinishedAt.Local().Format("2006-01-02 15:04"),
				truncate(l.Topic, 32), l.Correct, l.Answered, percent(l.Correct, l.Answered))
		}

		items, err := api.WrongQuestions(ctx, limit)
		if err != nil {
			return fmt.Errorf("fetch review queue: %w", err)
		}
		fmt.Printf("\nReview queue (%d)\n", len(items))
		now := time.Now()
		for _, it := range items {
			due := "due now"
			if it.NextReviewAt.After(now) {
				due = "in " + humanDuration(it.NextReviewAt.Sub(now))
			}
			fmt.Printf("  #%-5d  %-40s  %-8s  reviews %-2d  %s\n",
				it.Question.ID, truncate(it.Question.Content, 40), it.Status, it.ReviewCount, due)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Int("limit", 20, "Maximum rows per section")
	statsCmd.Flags().Bool("bank", false, "Read the question bank database directly")
}

func bankStats(cmd *cobra.Command, limit int) error {
	ctx := cmd.Context()
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	total, err := st.Questions().Count(ctx)
	if err != nil {
		return err
	}
	points, err := st.Questions().KnowledgePointStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Question bank: %d questions in %d knowledge points\n\n", total, len(points))
	fmt.Printf("%-28s  %9s  %10s  %8s  %8s\n", "KNOWLEDGE POINT", "QUESTIONS", "UNANSWERED", "ATTEMPTS", "ACCURACY")
	for _, p := range points {
		fmt.Printf("%-28s  %9d  %10d  %8d  %8s\n",
			truncate(p.Name, 28), p.Questions, p.Unanswered, p.Attempts, percent(p.Correct, p.Attempts))
	}

	days, err := st.History().StudyRecords(ctx, limit)
	if err != nil {
		return err
	}
	if len(days) == 0 {
		return nil
	}
	fmt.Printf("\nStudy streak: %d days\n", studyStreak(days, time.Now()))
	fmt.Printf("\n%-10s  %8s  %8s  %8s\n", "DAY", "SESSIONS", "ANSWERED", "CORRECT")
	for _, d := range days {
		fmt.Printf("%-10s  %8d  %8d  %8d\n", d.Date, d.Sessions, d.QuestionsAnswered, d.CorrectAnswers)
	}
	return nil
}

// studyStreak counts consecutive study days ending today, or yesterday
// when nothing was studied yet today. days must be newest first and are
// keyed by UTC date.
func studyStreak(days []store.StudyRecord, now time.Time) int {
	now = now.UTC()
	want := now.Format(dateLayout)
	if len(days) > 0 && days[0].Date != want {
		want = now.AddDate(0, 0, -1).Format(dateLayout)
	}
	streak := 0
	for _, d := range days {
		if d.Date != want || d.QuestionsAnswered == 0 {
			break
		}
		streak++
		t, _ := time.Parse(dateLayout, want)
		want = t.AddDate(0, 0, -1).Format(dateLayout)
	}
	return streak
}

const dateLayout = "2006-01-02"

func percent(n, of int) string {
	if of == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", float64(n)*100/float64(of))
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dm", int(d.Minutes())+1)
}

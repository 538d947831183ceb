package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/session"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Resume the current session or start one from a study pull",
	Long: `Resume the session stored on this device or on the server, whichever is newer.

With --study, --gap or --wrong a new session is pulled from the server:
  --study  due review items followed by questions never answered correctly
  --gap    questions from the weakest knowledge points
  --wrong  every question in the review queue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		study, _ := cmd.Flags().GetBool("study")
		gap, _ := cmd.Flags().GetBool("gap")
		wrong, _ := cmd.Flags().GetBool("wrong")
		limit, _ := cmd.Flags().GetInt("limit")
		reviews, _ := cmd.Flags().GetInt("reviews")
		fresh, _ := cmd.Flags().GetInt("new")

		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()

		p := newPrompter(os.Stdin, os.Stdout)
		st, err := c.rec.Load(ctx)
		switch {
		case errors.Is(err, session.ErrNoActiveSession):
			st = nil
		case err != nil:
			return fmt.Errorf("load session: %w", err)
		}

		pull := study || gap || wrong
		if pull && st != nil {
			fmt.Printf("A session on %q is in progress (%d questions).\n", st.Topic, st.Len())
			if !p.confirm(ctx, "Discard it and start a new one?") {
				return nil
			}
			st = nil
		}
		if st == nil {
			if !pull {
				fmt.Println("No active session. Start one with `examiz play --study` or `examiz generate <topic>`.")
				return nil
			}
			topic, qs, err := pullQuestions(ctx, c, study, gap, pullLimits{limit, reviews, fresh})
			if err != nil {
				return err
			}
			if len(qs) == 0 {
				fmt.Println("Nothing to practise right now.")
				return nil
			}
			if st, err = c.rec.Start(ctx, topic, qs); err != nil {
				return fmt.Errorf("start session: %w", err)
			}
		}

		eng := session.NewEngine(c.rec, st, c.api, nil)
		return playLoop(ctx, eng, p, os.Stdout)
	},
}

func init() {
	playCmd.Flags().Bool("study", false, "Start a daily study session")
	playCmd.Flags().Bool("gap", false, "Start a gap test on the weakest knowledge points")
	playCmd.Flags().Bool("wrong", false, "Review every queued wrong question")
	playCmd.Flags().Int("limit", 0, "Maximum questions for --gap and --wrong (server default when 0)")
	playCmd.Flags().Int("reviews", 0, "Due review items for --study (server default when 0)")
	playCmd.Flags().Int("new", 0, "Unmastered questions for --study (server default when 0)")
	playCmd.MarkFlagsMutuallyExclusive("study", "gap", "wrong")
}

type pullLimits struct {
	limit, reviews, fresh int
}

func pullQuestions(ctx context.Context, c *client, study, gap bool, lim pullLimits) (string, []session.Question, error) {
	var (
		topic string
		qs    []session.Question
		err   error
	)
	switch {
	case study:
		topic = "Daily Study " + time.Now().Format("2006-01-02")
		qs, err = c.api.StudySet(ctx, lim.reviews, lim.fresh)
	case gap:
		topic = "Gap Test"
		qs, err = c.api.GapTest(ctx, lim.limit)
	default:
		topic = "Wrong Question Review"
		qs, err = c.api.WrongReview(ctx, lim.limit)
	}
	if err != nil {
		return "", nil, fmt.Errorf("pull questions: %w", err)
	}
	return topic, qs, nil
}

const playHelp = `Commands:
  <key>          answer with option <key>
  Enter          reveal / submit / next
  1 2 4 5        recall quality (forgot, hard, good, easy) for review items
  s, skip        skip this question
  j N, jump N    go to question N
  fav            toggle favorite
  del            delete this question from the bank
  x, finish      finish and record the session
  discard        end the session without recording it
  q, quit        leave; the session stays saved`

// playLoop drives eng from line input until the session ends or the user
// quits.
func playLoop(ctx context.Context, eng *session.Engine, p *prompter, out io.Writer) error {
	render := true
	for !eng.Closed() {
		if render {
			renderSlot(out, eng)
		}
		line, err := p.ask(ctx, slotPrompt(eng))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				quit(eng, nil, out)
				return nil
			}
			return err
		}

		outcome, err := handleInput(ctx, eng, line, out)
		switch {
		case errors.Is(err, errQuit):
			if quit(eng, p, out) {
				return nil
			}
		case err != nil:
			fmt.Fprintln(out, "Error:", err)
			switch {
			case errors.Is(err, session.ErrGradingFailed):
				fmt.Fprintln(out, "Press Enter to retry.")
			case errors.Is(err, session.ErrFinishFailed):
				fmt.Fprintln(out, "Your answers are kept. Press Enter or type x to retry finishing.")
			}
		}
		render = outcome != session.OutcomeNone
		if outcome.Ended() {
			renderEnd(out, eng, outcome)
		}
	}
	return nil
}

var errQuit = errors.New("quit")

// optionKey maps typed input to an option key, ignoring case. An exact
// match wins when keys differ only by case.
func optionKey(opts session.Options, line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if opts.Has(line) {
		return line, true
	}
	for _, opt := range opts {
		if strings.EqualFold(opt.Key, line) {
			return opt.Key, true
		}
	}
	return "", false
}

func handleInput(ctx context.Context, eng *session.Engine, line string, out io.Writer) (session.Outcome, error) {
	cur := eng.Current()
	if key, ok := optionKey(cur.Options, line); ok && eng.SlotState() != session.SlotHidden {
		if eng.SlotState() == session.SlotGraded {
			return session.OutcomeNone, fmt.Errorf("already answered; press Enter to continue")
		}
		if err := eng.Select(key); err != nil {
			return session.OutcomeNone, err
		}
		return eng.Submit(ctx)
	}

	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		switch eng.SlotState() {
		case session.SlotHidden:
			return eng.Reveal(ctx)
		case session.SlotRevealed, session.SlotAnswered:
			return eng.Submit(ctx)
		case session.SlotGraded:
			return eng.Next(ctx)
		}
		return session.OutcomeNone, nil
	}

	if q, err := session.ParseQuality(fields[0]); err == nil && cur.IsReview {
		if eng.SlotState() == session.SlotGraded {
			return eng.Rate(ctx, q)
		}
		if err := eng.ChooseQuality(q); err != nil {
			return session.OutcomeNone, err
		}
		fmt.Fprintf(out, "Recall quality set to %s.\n", q)
		return session.OutcomeNone, nil
	}

	switch fields[0] {
	case "h", "help", "?":
		fmt.Fprintln(out, playHelp)
		return session.OutcomeNone, nil
	case "q", "quit":
		return session.OutcomeNone, errQuit
	case "s", "skip":
		return eng.Skip(ctx)
	case "n", "next":
		return eng.Next(ctx)
	case "j", "jump":
		if len(fields) != 2 {
			return session.OutcomeNone, fmt.Errorf("usage: jump N")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return session.OutcomeNone, fmt.Errorf("invalid question number %q", fields[1])
		}
		return eng.Jump(ctx, n-1)
	case "fav":
		fav, err := eng.ToggleFavorite(ctx)
		if err != nil {
			return session.OutcomeNone, err
		}
		if fav {
			fmt.Fprintln(out, "Added to favorites.")
		} else {
			fmt.Fprintln(out, "Removed from favorites.")
		}
		return session.OutcomeNone, nil
	case "del":
		return eng.DeleteCurrent(ctx)
	case "x", "finish":
		return eng.Complete(ctx)
	case "discard":
		return eng.Discard(ctx)
	}
	return session.OutcomeNone, fmt.Errorf("unknown command %q (h for help)", line)
}

// quit reports whether the loop should stop. With a nil prompter the user
// cannot be asked, so it always leaves.
func quit(eng *session.Engine, p *prompter, out io.Writer) bool {
	ctx, cancel := context.WithTimeout(context.Background(), session.DefaultSyncTimeout)
	defer cancel()
	report := eng.Quit(ctx)
	if report.NeedsConfirmation {
		fmt.Fprintln(out, "Warning: some progress has not reached the server yet.")
		if report.SyncErr != nil {
			fmt.Fprintln(out, "Last sync error:", report.SyncErr)
		}
		if p != nil && !p.confirm(ctx, "Leave anyway?") {
			return false
		}
		fmt.Fprintln(out, "Progress is kept on this device; run `examiz play` to resume.")
		return true
	}
	fmt.Fprintln(out, "Session saved.")
	return true
}

func slotPrompt(eng *session.Engine) string {
	switch eng.SlotState() {
	case session.SlotHidden:
		return "Enter to reveal > "
	case session.SlotGraded:
		if eng.Current().IsReview && eng.CurrentResult().Quality == 0 {
			return "Rate recall 1/2/4/5 > "
		}
		return "Enter for next > "
	}
	return "Answer > "
}

func renderSlot(out io.Writer, eng *session.Engine) {
	st := eng.State()
	q := eng.Current()
	prog := eng.Progress()

	fmt.Fprintln(out)
	header := fmt.Sprintf("[%d/%d] %s", prog.Current, prog.Total, st.Topic)
	if q.KnowledgePoint != "" {
		header += " · " + q.KnowledgePoint
	}
	if q.IsFavorite {
		header += " ★"
	}
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, markStrip(eng.Marks(), st.CurrentIndex))
	fmt.Fprintln(out)
	fmt.Fprintln(out, q.Content)

	if eng.SlotState() == session.SlotHidden {
		fmt.Fprintf(out, "\nReview item (interval %d days). Recall the answer first.\n", q.SRSInterval)
		return
	}
	for _, o := range q.Options {
		marker := " "
		if o.Key == eng.Selected() {
			marker = ">"
		}
		fmt.Fprintf(out, " %s %s) %s\n", marker, o.Key, o.Text)
	}

	res := eng.CurrentResult()
	if eng.SlotState() != session.SlotGraded || res == nil {
		return
	}
	fmt.Fprintln(out)
	if res.Correct() {
		fmt.Fprintln(out, "\033[32m✓ Correct!\033[0m")
	} else if res.Details != nil {
		fmt.Fprintf(out, "\033[31m✗ Wrong.\033[0m Answer: %s\n", res.Details.CorrectAnswer)
	} else {
		fmt.Fprintln(out, "\033[31m✗ Wrong.\033[0m")
	}
	if res.Details != nil {
		if res.Details.Explanation != "" {
			fmt.Fprintf(out, "Explanation: %s\n", res.Details.Explanation)
		}
		if res.Details.MemorizationTip != "" {
			fmt.Fprintf(out, "Tip: %s\n", res.Details.MemorizationTip)
		}
	}
}

func markStrip(marks []session.SlotMark, current int) string {
	var b strings.Builder
	for i, m := range marks {
		c := "·"
		switch m {
		case session.MarkCorrect:
			c = "✓"
		case session.MarkIncorrect:
			c = "✗"
		case session.MarkSkipped:
			c = "-"
		case session.MarkPending:
			c = "?"
		}
		if i == current {
			c = "[" + c + "]"
		}
		b.WriteString(c)
	}
	return b.String()
}

func renderEnd(out io.Writer, eng *session.Engine, outcome session.Outcome) {
	switch outcome {
	case session.OutcomeDiscarded:
		fmt.Fprintln(out, "\nSession ended without a record.")
		return
	case session.OutcomeTerminated:
		fmt.Fprintln(out, "\nNo questions left; session ended.")
		return
	}

	sum := session.BuildSummary(eng.State())
	fmt.Fprintf(out, "\n── %s: %d/%d correct", sum.Topic, sum.Correct, sum.Answered)
	if sum.Answered > 0 {
		fmt.Fprintf(out, " (%.0f%%)", sum.Accuracy*100)
	}
	if sum.Skipped > 0 {
		fmt.Fprintf(out, ", %d skipped", sum.Skipped)
	}
	fmt.Fprintln(out, " ──")
	for _, kp := range sum.KnowledgePoints {
		fmt.Fprintf(out, "  %-24s %d/%d\n", kp.Name, kp.Correct, kp.Answered)
	}
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or discard the current session",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current session's progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()

		st, err := c.rec.Load(cmd.Context())
		if errors.Is(err, session.ErrNoActiveSession) {
			fmt.Println("No active session.")
			return nil
		}
		if err != nil {
			return err
		}
		p := session.ProgressOf(st)
		fmt.Printf("%s\n", st.Topic)
		fmt.Printf("Question %d of %d, %d answered, %d correct, %d skipped\n",
			p.Current, p.Total, p.Answered, p.Correct, p.Skipped)
		fmt.Println(markStrip(session.Marks(st), st.CurrentIndex))
		if !st.UpdatedAt.IsZero() {
			fmt.Printf("Last saved %s\n", st.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var sessionDiscardCmd = &cobra.Command{
	Use:   "discard",
	Short: "End the current session without recording it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()

		st, err := c.rec.Load(ctx)
		switch {
		case errors.Is(err, session.ErrNoActiveSession):
			fmt.Println("No active session.")
			return nil
		case err != nil:
			return err
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			p := newPrompter(os.Stdin, os.Stdout)
			if !p.confirm(ctx, fmt.Sprintf("Discard %q (%d questions)?", st.Topic, st.Len())) {
				return nil
			}
		}
		if _, err := session.NewEngine(c.rec, st, c.api, nil).Discard(ctx); err != nil {
			return err
		}
		fmt.Println("Session discarded.")
		return nil
	},
}

func init() {
	sessionDiscardCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	sessionCmd.AddCommand(sessionShowCmd, sessionDiscardCmd)
}

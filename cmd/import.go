package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import questions from JSON or YAML files into the question bank",
	Long: `Import questions from JSON or YAML files into the question bank.

Questions already in the bank (same content and options) are not added
again. Entries that cannot be used are listed and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		for _, path := range args {
			res, err := ingest.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			for _, s := range res.Skipped {
				fmt.Printf("%s: skipped entry %d: %s\n", path, s.Index+1, s.Reason)
			}
			if dryRun {
				fmt.Printf("%s: %d questions parsed\n", path, len(res.Questions))
				continue
			}
			added, err := ingest.Import(ctx, st.Questions(), res)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s: %d questions, %d new\n", path, len(res.Questions), added)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "Parse and report without writing")
}

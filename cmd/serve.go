package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/llm"
	"github.com/abhisek/examiz/internal/questiongen"
	"github.com/abhisek/examiz/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the question bank and session server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if cmd.Flags().Changed("autogen") {
			cfg.Server.AutoGen, _ = cmd.Flags().GetBool("autogen")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		logger := slog.Default()
		opts := []server.Option{server.WithLogger(logger)}

		// Generation is optional; the server runs without it.
		var autogen *server.AutoGen
		if cfg.LLM.Validate() != nil {
			if found, ok := llm.DiscoverConfig(); ok {
				slog.Info("using LLM provider from vendor API key", "provider", found.Provider)
				cfg.LLM = found
			}
		}
		if err := cfg.LLM.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, "LLM provider not configured:", err)
			fmt.Fprintln(os.Stderr, "Question generation will be unavailable.")
		} else {
			provider, err := llm.NewProvider(ctx, cfg.LLM, st.EventRepo(), logger)
			if err != nil {
				return fmt.Errorf("LLM provider: %w", err)
			}
			opts = append(opts, server.WithGenerator(questiongen.New(provider, questiongen.DefaultConfig())))

			if cfg.Server.AutoGen {
				genCfg := questiongen.DefaultConfig()
				genCfg.Purpose = llm.PurposeAutogen
				autogen = server.NewAutoGen(questiongen.New(provider, genCfg), st, logger)
				autogen.Interval = cfg.Server.AutoGenInterval
			}
		}

		if autogen != nil {
			go autogen.Run(ctx)
		}

		srv := server.New(st, opts...)
		fmt.Printf("Serving on http://%s\n", cfg.Server.Addr)
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().Bool("autogen", false, "Periodically top up knowledge points with generated questions")
}

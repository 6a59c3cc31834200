package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"deckflow/internal/audit"
	"deckflow/internal/layout"
	"deckflow/internal/server"
	"deckflow/internal/template"
	"deckflow/internal/types/deck"
)

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		req     deck.Request
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one deck and print the run result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := req.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := withTimeout(ctx, timeout)
			defer cancel()
			res := a.orch.Generate(ctx, req)
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if res.Status == deck.StatusError {
				return errors.New(res.Message)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Topic, "topic", "", "deck topic")
	f.StringVar(&req.Audience, "audience", "", "who the deck is for")
	f.IntVar(&req.DurationMinutes, "duration", 10, "talk length in minutes")
	f.StringVar(&req.Purpose, "purpose", "", "what the talk should achieve")
	f.StringVar(&req.TemplateRef, "template", "builtin:default", "template reference (builtin:<name>, .pptx or catalog file)")
	f.StringVar(&req.Language, "language", "", "output language (default English)")
	f.DurationVar(&timeout, "timeout", 0, "abort the run after this long")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newLayoutsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "layouts <template-ref>",
		Short: "List a template's layouts and how they are classified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadBase(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			cat, err := template.NewCatalog(cfg.Templates.CacheSize, log)
			if err != nil {
				return err
			}
			c, err := cat.LoadLayouts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "INDEX\tNAME\tCLASS\tPLACEHOLDERS\n")
			for _, l := range c.Layouts {
				var phs []string
				for _, p := range l.Placeholders {
					phs = append(phs, fmt.Sprintf("%d:%s %.0fx%.0f", p.Index, p.Type, p.WidthPt, p.HeightPt))
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", l.Index, l.Name, layout.Classify(l), phs)
			}
			return w.Flush()
		},
	}
}

func newDraftsCmd(configPath *string) *cobra.Command {
	var prompts bool
	cmd := &cobra.Command{
		Use:   "drafts <session-id>",
		Short: "Print the archived drafts of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadBase(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			if cfg.Audit.Dir == "" {
				return errors.New("audit.dir is empty: drafts were not persisted")
			}
			drafts, err := audit.NewLog(cfg.Audit.Dir, log).Read(args[0])
			if err != nil {
				return err
			}
			if len(drafts) == 0 {
				return fmt.Errorf("no drafts for session %s", args[0])
			}
			out := drafts[:0]
			for _, d := range drafts {
				if prompts || d.Stage != audit.StagePrompt {
					out = append(out, d)
				}
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&prompts, "prompts", false, "include prompt/response drafts")
	return cmd
}

func newServeCmd(configPath *string) *cobra.Command {
	var (
		addr       string
		runTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the deck API (connect JSON over HTTP/1.1 and h2c, drafts over websocket)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if addr == "" {
				addr = a.cfg.Port
			}
			srv := server.New(a.orch, a.sessions, a.audit, a.log)
			srv.RunTimeout = runTimeout
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config port)")
	cmd.Flags().DurationVar(&runTimeout, "run-timeout", 30*time.Minute, "bound on one generation")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

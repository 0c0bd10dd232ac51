package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scriptgen/internal/api"
	"scriptgen/internal/domain"
	"scriptgen/internal/infra"
	"scriptgen/internal/orchestrator"
	"scriptgen/internal/progress"
	"scriptgen/internal/session"
	"scriptgen/internal/storage"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired dependencies shared by the subcommands.
type app struct {
	cfg    *infra.Config
	logger infra.Logger
	client *api.Client
	store  *session.BoltStore
	orch   *orchestrator.Orchestrator
	events *consoleEvents
}

func newApp() (*app, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := infra.NewLogger(cfg.AppEnv)

	client, err := api.NewClient(api.Options{BaseURL: cfg.APIBaseURL, Logger: &logger})
	if err != nil {
		return nil, err
	}
	store, err := session.NewBoltStore(cfg.SessionDBPath, cfg.GenerationTimeout, &logger)
	if err != nil {
		return nil, err
	}
	fileStore, err := storage.NewFileStore(cfg.OutputDir)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	estimator := progress.NewEstimator(progress.Options{Timeout: cfg.GenerationTimeout})
	events := &consoleEvents{logger: &logger, files: fileStore, phases: estimator.Phases()}
	orch, err := orchestrator.New(orchestrator.Options{
		Poller:    client,
		Store:     store,
		Events:    events,
		Estimator: estimator,
		Interval:  cfg.PollInterval,
		Timeout:   cfg.GenerationTimeout,
		Logger:    &logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, client: client, store: store, orch: orch, events: events}, nil
}

func (a *app) close() {
	_ = a.store.Close()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "scriptgen",
		Short:         "Submit script-generation jobs and wait for them, surviving restarts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCommand())
	root.AddCommand(newResumeCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newDismissCommand())
	return root
}

func newGenerateCommand() *cobra.Command {
	var modeFlag string
	var payloadPath string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Start a new generation job and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := domain.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			payload, err := readPayload(payloadPath)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = a.orch.Start(ctx, mode, payload)
			return a.reportOutcome(cmd, err)
		},
	}
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "moderate", "generation quality: fast, moderate or detailed")
	cmd.Flags().StringVarP(&payloadPath, "payload", "f", "-", "path to the JSON form payload, or - for stdin")
	return cmd
}

func newResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Re-attach to an in-flight generation session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			found, err := a.orch.Resume(ctx)
			if !found && err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no generation session in flight")
				return nil
			}
			return a.reportOutcome(cmd, err)
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the stored session's job once, without waiting",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			sess, err := a.store.Load(ctx)
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no generation session in flight")
				return nil
			}
			status, err := a.client.CheckStatus(ctx, sess.JobID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s: %s (mode %s, running for %s)\n",
				sess.JobID, status.State, sess.Mode, sess.Elapsed(time.Now()).Round(time.Second))
			return nil
		},
	}
}

func newDismissCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss",
		Short: "Drop the stored session without waiting for the job",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			err = a.orch.Dismiss(context.Background())
			if errors.Is(err, domain.ErrNoSession) {
				fmt.Fprintln(cmd.OutOrStdout(), "no generation session in flight")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session dismissed; the remote job keeps running unobserved")
			return nil
		},
	}
}

// reportOutcome translates an orchestrator outcome into exit behaviour. The
// console events have already narrated the result, so this only adds
// recovery hints for the actionable cases.
func (a *app) reportOutcome(cmd *cobra.Command, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrSessionActive):
		fmt.Fprintln(cmd.OutOrStdout(), "a generation is already in flight: run `scriptgen resume` to re-attach or `scriptgen dismiss` to drop it")
		return err
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(cmd.OutOrStdout(), "stopped observing; the job keeps running, run `scriptgen resume` to re-attach")
		return nil
	default:
		return err
	}
}

func readPayload(path string) (json.RawMessage, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid JSON")
	}
	return raw, nil
}

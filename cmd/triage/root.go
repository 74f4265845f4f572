package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vsavkov/triage/internal/artifact"
	"github.com/vsavkov/triage/internal/audit"
	"github.com/vsavkov/triage/internal/config"
	"github.com/vsavkov/triage/internal/handlers"
	"github.com/vsavkov/triage/internal/llm"
	"github.com/vsavkov/triage/internal/logging"
	"github.com/vsavkov/triage/internal/pipeline"
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "triage",
		Short:         "Route requests to analysis handlers and gate their output",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (yaml or json)")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newRouteCmd(flags))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	if flags.configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	return cfg, nil
}

// buildRunner wires the full pipeline from configuration: handlers, artifact
// store, generation chain and audit sink.
func buildRunner(cfg *config.Config, handlerOverride string) *pipeline.Runner {
	logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, os.Stderr)

	reg := pipeline.NewRegistry()
	reg.Register(handlers.NewDataAnalyst())
	reg.Register(handlers.NewLogAnalyst())

	transport := llm.NewOpenRouter(cfg.APIKey(), cfg.LLM.BaseURL)
	transport.Title = "triage"
	invoker := llm.NewInvoker(llm.Config{
		Enabled:       cfg.LLMEnabled(),
		APIKey:        cfg.APIKey(),
		PrimaryModel:  cfg.LLM.PrimaryModel,
		FallbackModel: cfg.LLM.FallbackModel,
		MaxRetries:    *cfg.LLM.MaxRetries,
		Timeout:       time.Duration(*cfg.LLM.TimeoutMS) * time.Millisecond,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
	}, transport)

	sink := audit.NewBuilder(audit.Options{
		Enabled:        cfg.AuditEnabled(),
		Dir:            cfg.AuditDir(),
		StoreMessage:   cfg.Audit.StoreMessage,
		MessageMaxLen:  cfg.Audit.MessageMaxLen,
		StoreFilePaths: *cfg.Audit.StoreFilePaths,
	}, logging.New("audit"))

	active := cfg.ActiveHandler
	if handlerOverride != "" {
		active = handlerOverride
	}

	return pipeline.NewRunner(pipeline.RunnerOptions{
		Registry:       reg,
		Store:          artifact.NewStore(cfg.Workspace),
		LLM:            invoker,
		Audit:          sink,
		Policy:         artifact.Policy{ExcludeGlobs: cfg.Artifacts.ExcludeGlobs},
		ActiveHandler:  active,
		DefaultHandler: cfg.DefaultHandler,
		Log:            logging.New("pipeline"),
	})
}

// requestPayload shapes the CLI inputs into the raw request map.
func requestPayload(session string, files []string) map[string]any {
	raw := map[string]any{}
	if session != "" {
		raw["session_id"] = session
	}
	if len(files) > 0 {
		attached := make([]any, 0, len(files))
		for _, p := range files {
			attached = append(attached, map[string]any{"path": p})
		}
		raw["attached_files"] = attached
	}
	return raw
}

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rahul/shopcheck/internal/agent"
	"github.com/rahul/shopcheck/internal/artifacts"
	"github.com/rahul/shopcheck/internal/browser"
	"github.com/rahul/shopcheck/internal/flow"
	"github.com/rahul/shopcheck/internal/gateway"
	"github.com/rahul/shopcheck/internal/governance"
	"github.com/rahul/shopcheck/internal/metrics"
	"github.com/rahul/shopcheck/internal/observability"
	"github.com/rahul/shopcheck/internal/report"
	"github.com/rahul/shopcheck/internal/scheduler"
	"github.com/rahul/shopcheck/internal/store"
	"github.com/rahul/shopcheck/internal/tools"
	"github.com/rahul/shopcheck/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/urfave/cli/v2"
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run a flow once, or repeatedly with --every",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "flow",
			Aliases: []string{"f"},
			Usage:   "Flow YAML file or builtin flow name",
			Value:   flow.DefaultFlowName,
		},
		&cli.StringFlag{
			Name:  "reports",
			Usage: "Directory receiving run-<timestamp> folders (default from config)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Wall-clock limit for one run (default from config)",
		},
		&cli.DurationFlag{
			Name:  "every",
			Usage: "Repeat the run on this interval until interrupted",
		},
		&cli.BoolFlag{
			Name:  "headful",
			Usage: "Show the browser window",
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "Serve Prometheus metrics on this address (e.g. :9090)",
			EnvVars: []string{"SHOPCHECK_METRICS_ADDR"},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Print structured events to stdout",
		},
	},
	Action: runAction,
}

func runAction(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if v := c.String("reports"); v != "" {
		cfg.App.ReportsDir = v
	}
	if c.IsSet("timeout") {
		cfg.Runner.Timeout = config.Duration(c.Duration("timeout"))
	}
	if c.Bool("headful") {
		cfg.Browser.Headful = true
	}

	f, err := loadFlow(c.String("flow"))
	if err != nil {
		return err
	}

	model, modelName, err := newModel(cfg)
	if err != nil {
		return err
	}

	guard, err := newGuardrails(cfg.Guardrails)
	if err != nil {
		return err
	}

	var history *store.HistoryStore
	if cfg.Memory.Type == "sqlite" && cfg.Memory.Path != "" {
		history, err = store.NewHistoryStore(cfg.Memory.Path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer history.Close()
	}

	j := &job{
		cfg:       cfg,
		flow:      f,
		model:     model,
		modelName: modelName,
		guard:     guard,
		prompts:   agent.NewPromptManager(cfg.App.PromptsDir),
		history:   history,
		notifiers: newNotifiers(cfg),
		console:   observability.NewConsole(),
		verbose:   c.Bool("verbose"),
		command:   strings.Join(os.Args, " "),
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := c.String("metrics-addr"); addr != "" {
		j.recorder = metrics.NewRecorder()
		go func() {
			if err := j.recorder.Serve(ctx, addr); err != nil {
				log.Printf("Warning: metrics server stopped: %v", err)
			}
		}()
	}

	every := c.Duration("every")
	if every <= 0 {
		return j.run(ctx)
	}
	scheduler.NewScheduler(every, j.run).Start(ctx)
	return nil
}

func loadFlow(ref string) (*flow.Flow, error) {
	if ref == "" {
		ref = flow.DefaultFlowName
	}
	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") || strings.ContainsRune(ref, filepath.Separator) {
		return flow.ParseFile(ref)
	}
	if _, err := os.Stat(ref); err == nil {
		return flow.ParseFile(ref)
	}
	return flow.Builtin(ref)
}

func newModel(cfg *config.Config) (llms.Model, string, error) {
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		return nil, "", fmt.Errorf("no enabled provider found in config")
	}

	switch pName {
	case "ollama", "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create %s client: %w", pName, err)
		}
		return llm, pCfg.Model, nil
	default:
		return nil, "", fmt.Errorf("provider %s not supported", pName)
	}
}

func newGuardrails(g config.GuardrailsConfig) (*governance.DefaultPolicyEngine, error) {
	var patterns []string
	if !g.NoDefaults {
		patterns = append(patterns, governance.DefaultDenyPatterns...)
	}
	patterns = append(patterns, g.Deny...)
	return governance.NewGuardrails(patterns)
}

func newNotifiers(cfg *config.Config) []gateway.Notifier {
	var out []gateway.Notifier
	if tg, ok := cfg.GetGatewayConfig("telegram"); ok {
		n, err := gateway.NewTelegramNotifier(tg.Token, tg.ChatID)
		if err != nil {
			log.Printf("Warning: telegram notifier disabled: %v", err)
		} else {
			out = append(out, n)
		}
	}
	if dc, ok := cfg.GetGatewayConfig("discord"); ok {
		n, err := gateway.NewDiscordNotifier(dc.Token, dc.ChannelID)
		if err != nil {
			log.Printf("Warning: discord notifier disabled: %v", err)
		} else {
			out = append(out, n)
		}
	}
	return out
}

// job is one complete flow execution: fresh browser, run directory,
// report, history row and notifications.
type job struct {
	cfg       *config.Config
	flow      *flow.Flow
	model     llms.Model
	modelName string
	guard     governance.PolicyEngine
	prompts   *agent.PromptManager
	history   *store.HistoryStore
	notifiers []gateway.Notifier
	console   *observability.Console
	recorder  *metrics.Recorder
	verbose   bool
	command   string
}

func (j *job) run(ctx context.Context) error {
	dir, err := artifacts.NewRunDir(j.cfg.App.ReportsDir, time.Now())
	if err != nil {
		return err
	}

	events, err := os.Create(filepath.Join(dir.Root, "events.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to create event log: %w", err)
	}
	defer events.Close()
	var w io.Writer = events
	if j.verbose {
		w = io.MultiWriter(events, os.Stdout)
	}
	logger := observability.NewLoggerTo(w, j.cfg.App.LLMLog)

	sess, err := browser.NewSession(browser.Config{
		Headless:       !j.cfg.Browser.Headful,
		ViewportWidth:  j.cfg.Browser.ViewportWidth,
		ViewportHeight: j.cfg.Browser.ViewportHeight,
		ActionTimeout:  j.cfg.Browser.ActionTimeout.Std(),
		UserAgent:      j.cfg.Browser.UserAgent,
		TextLimit:      j.cfg.Browser.TextLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer sess.Close()

	registry := tools.NewRegistry()
	tools.RegisterPageTools(registry, sess)

	actor := agent.NewActor(j.model, sess, registry, j.prompts, j.guard, logger)
	actor.ModelName = j.modelName
	actor.MaxSteps = j.cfg.Runner.MaxActSteps
	extractor := agent.NewExtractor(j.model, sess, j.prompts, logger)
	extractor.ModelName = j.modelName

	runner := flow.NewRunner(logger)
	if d := j.cfg.Runner.RetryDelay.Std(); d > 0 {
		runner.RetryDelay = d
	}
	runner.Command = j.command
	runner.OnStepComplete = func(res flow.StepResult) {
		j.console.PrintStep(res.Index, res.Name, string(res.Status), string(res.Path), res.Duration)
	}

	j.console.PrintBanner(j.flow.Name, j.flow.URL)

	runCtx := ctx
	if t := j.cfg.Runner.Timeout.Std(); t > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	rep, runErr := runner.Run(runCtx, flow.Session{
		Page:      sess,
		Actor:     actor,
		Extractor: extractor,
		Artifacts: dir,
	}, *j.flow)
	if rep == nil {
		return runErr
	}
	rep.Dir = dir.Root

	reportPath, err := report.WriteFile(dir.Root, rep)
	if err != nil {
		return err
	}
	j.console.PrintSummary(rep.Successful(), rep.Aborted, reportPath)

	if j.recorder != nil {
		j.recorder.ObserveRun(rep)
	}

	if j.history != nil {
		if err := j.history.SaveRun(rep, reportPath); err != nil {
			log.Printf("Warning: failed to record run: %v", err)
		}
	}
	if len(j.notifiers) > 0 {
		_ = gateway.Broadcast(context.WithoutCancel(ctx), j.notifiers, report.Summary(rep, reportPath))
	}
	return runErr
}

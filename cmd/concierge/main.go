package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/barunaniket/concierge/agent"
	"github.com/barunaniket/concierge/agents"
	"github.com/barunaniket/concierge/internal/google"
	"github.com/barunaniket/concierge/orchestrator"
	"github.com/barunaniket/concierge/pkg/config"
	"github.com/barunaniket/concierge/pkg/observability"
	"github.com/barunaniket/concierge/pkg/session"
	"github.com/barunaniket/concierge/planner"
)

// Version information (set via ldflags)
var Version = "dev"

var (
	configFile string
	demoMode   bool
	sessionID  string
)

func main() {
	root := &cobra.Command{
		Use:   "concierge",
		Short: "Personal assistant over a team of specialist agents",
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONCIERGE_CONFIG"), "configuration file")

	chat := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE:  runChat,
	}
	chat.Flags().BoolVar(&demoMode, "demo", false, "use in-memory backends and the mock planner")
	chat.Flags().StringVar(&sessionID, "session", "default", "conversation session id")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("concierge %s\n", Version)
		},
	}

	root.AddCommand(chat, version)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(configFile)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if demoMode {
		cfg.Planner.Backend = "mock"
		cfg.Session.Backend = "memory"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Printf("Starting concierge v%s (planner: %s, session store: %s)",
		Version, cfg.Planner.Backend, cfg.Session.Backend)

	observability.InitMetrics()
	tracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:      cfg.Runtime.EnableTracing,
		ExporterType: observability.TracingConfigFromEnv().ExporterType,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	plan, err := planner.New(ctx, cfg.Planner.Backend, plannerKey(cfg), cfg.Planner.Model, planner.DefaultCatalog())
	if err != nil {
		return err
	}

	calendarBackend, mailBackend, err := buildBackends(ctx, cfg)
	if err != nil {
		return err
	}

	console := newConsole()
	defer console.Close()

	bus := agent.NewBus()
	reg := agent.NewRegistry(bus)

	emailOpts := []agents.EmailOption{}
	if cfg.Email.SubjectPrefix != "" {
		emailOpts = append(emailOpts, agents.WithSubjectPrefix(cfg.Email.SubjectPrefix))
	}
	if cfg.Email.Signature != "" {
		emailOpts = append(emailOpts, agents.WithSignature(cfg.Email.Signature))
	}
	if cfg.Email.NotifyAddress != "" {
		emailOpts = append(emailOpts, agents.WithReminderNotifications(cfg.Email.NotifyAddress))
	}

	capabilities := []agent.Capability{
		buildContacts(cfg, demoMode),
		agents.NewCalendarAgent(calendarBackend),
		agents.NewEmailAgent(mailBackend, emailOpts...),
		agents.NewReminderAgent(),
		orchestrator.New(plan, store, console,
			orchestrator.WithStepTimeout(cfg.Runtime.StepTimeout.Std())),
	}
	for _, c := range capabilities {
		if _, err := reg.Register(c); err != nil {
			return err
		}
	}
	consoleRT, err := reg.Register(console)
	if err != nil {
		return err
	}

	if err := reg.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := reg.StopAll(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	checker := observability.NewHealthChecker(Version)
	checker.RegisterCheck(&observability.HealthCheck{
		Name:     "agents",
		Critical: true,
		CheckFunc: func(context.Context) error {
			for _, st := range reg.Status() {
				if st.Status == agent.StatusError {
					return fmt.Errorf("agent %s is errored", st.Name)
				}
			}
			return nil
		},
	})
	obsServer := observability.NewServer(cfg.Runtime.ObservabilityPort, checker, func() any {
		return reg.Status()
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Observability server on :%d", cfg.Runtime.ObservabilityPort)
		return obsServer.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return obsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer stop()
		return console.Run(ctx, consoleRT, sessionID, cfg.Runtime.StepTimeout.Std())
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	log.Println("Concierge stopped")
	return nil
}

func plannerKey(cfg *config.Config) string {
	if cfg.Planner.Backend == "openai" {
		return cfg.Planner.OpenAIKey
	}
	return cfg.Planner.GeminiKey
}

func buildStore(cfg *config.Config) (session.Store, error) {
	if cfg.Session.Backend == "redis" {
		return session.NewRedisStore(session.RedisConfig{
			Addr:   cfg.Session.RedisAddr,
			DB:     cfg.Session.RedisDB,
			Prefix: cfg.Session.KeyPrefix,
			TTL:    cfg.Session.TTL.Std(),
		})
	}
	return session.NewMemoryStore(), nil
}

// buildContacts reads the configured address book, except in demo mode
// which runs from a seeded one so a fresh checkout needs no CSV.
func buildContacts(cfg *config.Config, demo bool) *agents.ContactsAgent {
	if demo {
		log.Println("Demo mode, using the built-in address book")
		return agents.NewContactsAgentFromList([]agents.Contact{
			{Name: "Jane Doe", Email: "jane@example.com", SRN: "SRN001"},
			{Name: "Bob Stone", Email: "bob@example.com", SRN: "SRN002"},
			{Name: "Alice Chen", Email: "alice@example.com", SRN: "SRN003"},
		})
	}
	return agents.NewContactsAgent(cfg.ContactsFile)
}

// buildBackends picks the Google services when credentials are
// configured and the in-memory pair otherwise.
func buildBackends(ctx context.Context, cfg *config.Config) (agents.CalendarBackend, agents.MailBackend, error) {
	if demoMode || cfg.Google.CredentialsFile == "" {
		log.Println("No Google credentials configured, using in-memory calendar and log mailer")
		return agents.NewMemoryCalendar(), agents.NewLogMailer(), nil
	}
	cal, err := google.NewCalendar(ctx, cfg.Google.CalendarID, cfg.Google.CredentialsFile)
	if err != nil {
		return nil, nil, err
	}
	mail, err := google.NewGmail(ctx, cfg.Google.GmailFrom, cfg.Google.CredentialsFile)
	if err != nil {
		return nil, nil, err
	}
	return cal, mail, nil
}

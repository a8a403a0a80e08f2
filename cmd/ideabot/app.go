package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alekspetrov/ideabot/internal/adapters/telegram"
	"github.com/alekspetrov/ideabot/internal/ai"
	"github.com/alekspetrov/ideabot/internal/config"
	"github.com/alekspetrov/ideabot/internal/conversation"
	"github.com/alekspetrov/ideabot/internal/gateway"
	"github.com/alekspetrov/ideabot/internal/insights"
	"github.com/alekspetrov/ideabot/internal/store"
)

// app holds every long-lived component of a running bot.
type app struct {
	cfg       *config.Config
	registry  *prometheus.Registry
	store     store.Store
	chain     *ai.Chain
	states    *conversation.Manager
	client    *telegram.Client
	handler   *telegram.Handler
	transport *telegram.Transport
	hub       *gateway.Hub
	generator *insights.Generator
	scheduler *insights.Scheduler
	gateway   *gateway.Server // nil when not required
}

// newApp wires the components. Nothing here touches the network; the
// caller decides when to start polling, the webhook or the gateway.
func newApp(cfg *config.Config, telegramBaseURL string) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	providers, err := ai.NewProviders(cfg.ActiveProviders())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to build AI providers: %w", err)
	}
	chain := ai.NewChain(providers, ai.NewMetrics(reg))

	client := telegram.NewClient(cfg.Telegram.BotToken)
	if telegramBaseURL != "" {
		client = telegram.NewClientWithBaseURL(cfg.Telegram.BotToken, telegramBaseURL)
	}

	insightsCfg := cfg.Insights
	if insightsCfg == nil {
		insightsCfg = insights.DefaultConfig()
	}
	generator := insights.NewGenerator(st, chain, insightsCfg.Window())

	a := &app{
		cfg:       cfg,
		registry:  reg,
		store:     st,
		chain:     chain,
		states:    conversation.NewManager(st, cfg.Conversation),
		client:    client,
		hub:       gateway.NewHub(),
		generator: generator,
		scheduler: insights.NewScheduler(generator, st, telegram.NewNotifier(client), insightsCfg),
	}

	a.handler = telegram.NewHandler(&telegram.HandlerConfig{
		Bot:              client,
		Store:            st,
		AI:               chain,
		States:           a.states,
		Insights:         generator,
		Listener:         a.hub,
		Metrics:          telegram.NewMetrics(reg),
		AllowedIDs:       cfg.Telegram.AllowedIDs,
		MaxVoiceDuration: cfg.Telegram.MaxVoiceDuration,
		StatsWindow:      insightsCfg.Window(),
		RateLimit:        cfg.Telegram.RateLimit,
	})
	a.transport = telegram.NewTransport(client, a.handler)

	if cfg.GatewayRequired() {
		opts := []gateway.ServerOption{
			gateway.WithStore(st),
			gateway.WithHub(a.hub),
			gateway.WithGatherer(reg),
		}
		if cfg.Telegram.Mode == telegram.ModeWebhook {
			opts = append(opts, gateway.WithTelegramWebhook(a.transport.WebhookHandler(cfg.Telegram.WebhookSecret)))
		}
		a.gateway = gateway.NewServer(cfg.Gateway, opts...)
	}

	return a, nil
}

func (a *app) close() {
	_ = a.store.Close()
}

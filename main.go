package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dkalashnik/survey-rewards-bot/pkg/availability"
	"github.com/dkalashnik/survey-rewards-bot/pkg/bot"
	"github.com/dkalashnik/survey-rewards-bot/pkg/bot/telegramadapter"
	"github.com/dkalashnik/survey-rewards-bot/pkg/completion"
	"github.com/dkalashnik/survey-rewards-bot/pkg/config"
	"github.com/dkalashnik/survey-rewards-bot/pkg/coordinator"
	"github.com/dkalashnik/survey-rewards-bot/pkg/database"
	"github.com/dkalashnik/survey-rewards-bot/pkg/equivalence"
	"github.com/dkalashnik/survey-rewards-bot/pkg/forms/httpadapter"
	"github.com/dkalashnik/survey-rewards-bot/pkg/fsm"
	"github.com/dkalashnik/survey-rewards-bot/pkg/httpapi"
	"github.com/dkalashnik/survey-rewards-bot/pkg/probe"
	"github.com/dkalashnik/survey-rewards-bot/pkg/state"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	appConfig := config.Load()
	if err := appConfig.Validate(); err != nil {
		log.Panicf("Invalid configuration: %v", err)
	}

	if err := config.LoadConfig(appConfig.CatalogPath); err != nil {
		log.Panicf("Failed to load catalog configuration: %v", err)
	}
	catalog := config.GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, closeStore, err := database.OpenCompletionBackend(ctx, appConfig)
	if err != nil {
		log.Panicf("Failed to open %s completion store: %v", appConfig.StoreDriver, err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Printf("Error closing completion store: %v", err)
		}
	}()
	log.Printf("Completion store: %s", appConfig.StoreDriver)

	completions := completion.NewStore(backend, log.Default())
	registry, err := equivalence.NewRegistry(catalog.EquivalenceGroups(), completions)
	if err != nil {
		log.Panicf("Failed to build equivalence groups: %v", err)
	}

	forms, err := httpadapter.New(appConfig.FormServiceURL, appConfig.FormServiceAPIKey, httpadapter.WithLogger(log.Default()))
	if err != nil {
		log.Panicf("Failed to create form service client: %v", err)
	}

	prober := probe.New(forms, appConfig.ProbeTimeout, log.Default())
	resolver := availability.New(forms, completions, registry, prober, availability.Options{
		CatalogTimeout:            appConfig.CatalogTimeout,
		MaxConcurrentProbes:       appConfig.MaxConcurrentProbes,
		DefaultLanguage:           appConfig.DefaultLanguage,
		Rewards:                   catalog.SurveyRewards(),
		BackfillRemoteCompletions: appConfig.BackfillRemote,
	}, log.Default())
	coord := coordinator.New(completions, registry, forms, resolver, coordinator.Options{
		RefreshDelay: appConfig.RefreshDelay,
	}, log.Default())
	defer coord.Close()

	api := httpapi.New(resolver, coord, completions, registry, httpapi.Options{
		DefaultLanguage: appConfig.DefaultLanguage,
		AdminToken:      appConfig.AdminToken,
		WebhookSecret:   appConfig.WebhookSecret,
	}, log.Default())
	server := &http.Server{
		Addr:              appConfig.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP API listening on %s", appConfig.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
			cancel()
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			log.Println("Shutdown signal received...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if appConfig.TelegramToken == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, running the HTTP API only")
		<-ctx.Done()
	} else {
		runBot(ctx, appConfig, resolver, coord)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("Stopped.")
}

// runBot serves Telegram updates until ctx is cancelled.
func runBot(ctx context.Context, appConfig *config.AppConfig, resolver fsm.Resolver, coord *coordinator.Coordinator) {
	botClient, err := bot.NewClient(appConfig.TelegramToken)
	if err != nil {
		log.Panicf("Failed to initialize bot client: %v", err)
	}
	log.Printf("Authorized on account %s", botClient.Self.UserName)

	botPort, err := telegramadapter.New(botClient, log.Default())
	if err != nil {
		log.Panicf("Failed to create telegram adapter: %v", err)
	}

	stateStore := state.NewStore(fsm.NewFSMCreator(), appConfig.DefaultLanguage)
	handler := fsm.NewHandler(botPort, stateStore, resolver, appConfig.FormLinkBase)
	coord.OnRefresh(handler.Refresh)

	updates := botClient.GetUpdatesChan(60)
	log.Println("Starting update processing...")

	for {
		select {
		case update := <-updates:
			if update.UpdateID == 0 {
				continue
			}
			go handler.HandleUpdate(ctx, update)
		case <-ctx.Done():
			log.Println("Stopping update processing loop...")
			botClient.StopReceivingUpdates()
			handler.Wait()
			return
		}
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-password/password"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"phimstream/api"
	"phimstream/config"
	"phimstream/handlers"
	"phimstream/services/accounts"
	"phimstream/services/catalog"
	"phimstream/services/history"
	"phimstream/services/home"
	"phimstream/services/images"
	"phimstream/services/library"
	"phimstream/services/profile"
	"phimstream/services/remote"
	"phimstream/services/sessions"
	"phimstream/services/stats"
	"phimstream/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] config: %v", err)
	}

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}))
	}

	if err := run(cfg); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	secret := cfg.SessionSecret
	if secret == "" {
		generated, err := password.Generate(48, 10, 0, false, true)
		if err != nil {
			return fmt.Errorf("generate session secret: %w", err)
		}
		secret = generated
		log.Printf("[main] SESSION_SECRET not set, using a generated secret; sessions will not survive restarts")
	}

	accountsSvc, err := accounts.NewService(filepath.Join(cfg.DataDir, "accounts"))
	if err != nil {
		return fmt.Errorf("accounts service: %w", err)
	}
	if pw := accountsSvc.InitialMasterPassword(); pw != "" {
		log.Printf("[main] created master account %q with initial password: %s", "admin", pw)
	}

	sessionsSvc, err := sessions.NewService(filepath.Join(cfg.DataDir, "sessions"), secret, time.Duration(cfg.SessionDurationHours)*time.Hour)
	if err != nil {
		return fmt.Errorf("sessions service: %w", err)
	}

	httpc := &http.Client{Timeout: 15 * time.Second}
	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, httpc, filepath.Join(cfg.DataDir, "cache", "catalog"), cfg.CacheTTLHours)

	builder := images.NewBuilder(cfg.ImageOriginURL, cfg.PlaceholderPath)
	proxy := images.NewProxy(httpc, filepath.Join(cfg.DataDir, "cache", "images"))
	// Prefetch hints warm the proxy cache itself, so a later display request
	// is served without touching the origin.
	images.Default.Bind(images.ProxyFetch(proxy))

	fs := afero.NewOsFs()
	libraryStore := library.NewStore(fs, filepath.Join(cfg.DataDir, "library"))
	historyStore := history.NewStore(fs, filepath.Join(cfg.DataDir, "history"))
	statsStore := stats.NewStore(fs, filepath.Join(cfg.DataDir, "stats"))

	var gateway remote.GatewayInterface
	if cfg.DatabaseURL != "" {
		gw, err := remote.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("remote gateway: %w", err)
		}
		defer gw.Close()
		gateway = gw
	} else {
		log.Printf("[main] DATABASE_URL not set, account library/history persistence disabled")
	}

	profiles := profile.NewSelector(libraryStore, historyStore, gateway)
	homeSvc := home.NewService(catalogClient, builder, images.Default)

	// Warm the taxonomy cache so the first filter UI render is instant.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := catalogClient.WarmTaxonomies(ctx); err != nil {
			log.Printf("[main] taxonomy warmup: %v", err)
		}
	}()

	router := utils.NewRouter()
	router.Use(api.SessionMiddleware(sessionsSvc))

	authHandler := handlers.NewAuthHandler(accountsSvc, sessionsSvc)
	accountsHandler := handlers.NewAccountsHandler(accountsSvc)
	catalogHandler := handlers.NewCatalogHandler(catalogClient, builder)
	imagesHandler := handlers.NewImagesHandler(proxy, images.Default)
	homeHandler := handlers.NewHomeHandler(homeSvc)
	libraryHandler := handlers.NewLibraryHandler(profiles)
	historyHandler := handlers.NewHistoryHandler(profiles)
	statsHandler := handlers.NewStatsHandler(statsStore)

	loginLimiter := api.NewLoginLimiter()

	router.HandleFunc("/api/auth/login", api.RateLimitHandlerFunc(loginLimiter, authHandler.Login)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/logout", authHandler.Logout).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/me", authHandler.Me).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/auth/refresh", authHandler.Refresh).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/password", authHandler.ChangePassword).Methods(http.MethodPut, http.MethodOptions)

	admin := router.PathPrefix("/api/accounts").Subrouter()
	admin.Use(api.RequireAccountMiddleware(), api.MasterOnlyMiddleware())
	admin.HandleFunc("", accountsHandler.List).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("", accountsHandler.Create).Methods(http.MethodPost)
	admin.HandleFunc("/{id}", accountsHandler.Rename).Methods(http.MethodPut, http.MethodOptions)
	admin.HandleFunc("/{id}", accountsHandler.Delete).Methods(http.MethodDelete)

	router.HandleFunc("/api/home", homeHandler.Page).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/catalog/latest", catalogHandler.Latest).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/catalog/search", catalogHandler.Search).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/catalog/categories", catalogHandler.Categories).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/catalog/countries", catalogHandler.Countries).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/catalog/type/{type}", catalogHandler.ByType).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/catalog/details/{slug}", catalogHandler.Details).Methods(http.MethodGet, http.MethodOptions)

	router.HandleFunc(images.ProxyPath, imagesHandler.Serve).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/images/prefetch", imagesHandler.Prefetch).Methods(http.MethodPost, http.MethodOptions)

	router.HandleFunc("/api/library", libraryHandler.List).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/library", libraryHandler.Save).Methods(http.MethodPost)
	router.HandleFunc("/api/library/{slug}", libraryHandler.Remove).Methods(http.MethodDelete, http.MethodOptions)
	router.HandleFunc("/api/library/{slug}/status", libraryHandler.Status).Methods(http.MethodGet, http.MethodOptions)

	router.HandleFunc("/api/history", historyHandler.List).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/history", historyHandler.Record).Methods(http.MethodPost)
	router.HandleFunc("/api/history/{slug}", historyHandler.Remove).Methods(http.MethodDelete, http.MethodOptions)
	router.HandleFunc("/api/history/{slug}/progress", historyHandler.Progress).Methods(http.MethodGet, http.MethodOptions)

	router.HandleFunc("/api/stats", statsHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/stats/watch", statsHandler.RecordWatch).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/stats/genres", statsHandler.TopGenres).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/stats/countries", statsHandler.TopCountries).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/stats/ratings/{slug}", statsHandler.Rating).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/stats/ratings/{slug}", statsHandler.Rate).Methods(http.MethodPut)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("[main] listening on :%d", cfg.Port)
	return server.ListenAndServe()
}

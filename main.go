package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"streampick/api"
	"streampick/config"
	"streampick/handlers"
	"streampick/models"
	"streampick/services/catalog"
	"streampick/services/prewarm"
	"streampick/services/probe"
	"streampick/services/proxy"
	"streampick/services/selector"
	"streampick/services/store"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	// Determine config path (env or default)
	configPath := os.Getenv("STREAMPICK_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Cache store: sqlite when configured, memory (with snapshot restore)
	// otherwise.
	osFs := afero.NewOsFs()
	var cacheStore store.Store
	var memStore *store.MemoryStore
	if settings.Cache.Backend == config.CacheBackendSQLite {
		if err := os.MkdirAll(filepath.Dir(settings.Cache.SQLitePath), 0755); err != nil {
			log.Fatalf("failed to create cache directory: %v", err)
		}
		sqliteStore, err := store.NewSQLiteStore(settings.Cache.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite cache: %v", err)
		}
		cacheStore = sqliteStore
		log.Printf("[main] sqlite cache at %s", settings.Cache.SQLitePath)
	} else {
		memStore = store.NewMemoryStoreWithInterval(time.Duration(settings.Cache.JanitorIntervalSeconds) * time.Second)
		cacheStore = memStore
		if settings.Cache.SnapshotFile != "" {
			restored, err := store.LoadSnapshot(osFs, settings.Cache.SnapshotFile, memStore)
			if err != nil {
				log.Printf("[main] snapshot restore failed: %v", err)
			} else if restored > 0 {
				log.Printf("[main] restored %d cache entries from snapshot", restored)
			}
		}
	}

	// Catalog client over the enabled providers
	providers := make([]catalog.Provider, 0, len(settings.Providers))
	for _, p := range settings.EnabledProviders() {
		providers = append(providers, catalog.Provider{Key: p.Key, Name: p.Name, API: p.API})
	}
	catalogClient := catalog.NewClient(providers, time.Duration(settings.Catalog.TimeoutSeconds)*time.Second)

	// Probe + selector
	prober := probe.New(
		nil,
		time.Duration(settings.Probe.TimeoutSeconds)*time.Second,
		int64(settings.Probe.SampleKB)*1024,
	)
	picker := selector.New(prober)

	// Playlist proxy
	proxySvc := proxy.NewService(nil, cacheStore, proxy.Options{
		TTL:       time.Duration(settings.Proxy.PlaylistTTLSeconds) * time.Second,
		MaxSize:   int64(settings.Proxy.MaxPlaylistSizeMB) << 20,
		UserAgent: settings.Proxy.UserAgent,
		Timeout:   time.Duration(settings.Proxy.FetchTimeoutSeconds) * time.Second,
	})

	// Prewarm scheduler
	prewarmSvc := prewarm.NewService(cacheStore, catalogClient, catalogClient, picker, prewarm.Callbacks{
		OnCacheHit: func(item models.PrewarmItem, cached models.BestSource) {
			log.Printf("[main] prewarm hit: %q already cached (%s/%s)", item.Title, cached.Source, cached.ID)
		},
		OnWarmed: func(item models.PrewarmItem, best models.BestSource) {
			log.Printf("[main] prewarm done: %q -> %s/%s", item.Title, best.Source, best.ID)
		},
	}, prewarm.Config{
		DrainInterval:  time.Duration(settings.Prewarm.DrainIntervalSeconds) * time.Second,
		IdleInterval:   time.Duration(settings.Prewarm.IdleIntervalSeconds) * time.Second,
		WorkerInterval: time.Duration(settings.Prewarm.WorkerIntervalSeconds) * time.Second,
		ItemDelay:      time.Duration(settings.Prewarm.ItemDelayMillis) * time.Millisecond,
	})

	if len(settings.Prewarm.Items) > 0 {
		items := make([]models.PrewarmItem, 0, len(settings.Prewarm.Items))
		for _, it := range settings.Prewarm.Items {
			items = append(items, models.PrewarmItem{Title: it.Title, Year: it.Year})
		}
		prewarmSvc.SetWatchlist(items)
	}

	if settings.Prewarm.Enabled {
		if err := prewarmSvc.Start(context.Background()); err != nil {
			log.Printf("failed to start prewarm scheduler: %v", err)
		}
	}

	// HTTP surface
	auth := handlers.NewAPIKeyChecker(func() string {
		s, err := cfgManager.Load()
		if err != nil {
			return ""
		}
		return s.Auth.APIKey
	})

	r := mux.NewRouter()
	api.Register(r,
		handlers.NewProxyHandler(proxySvc),
		handlers.NewCacheHandler(cacheStore, auth),
		handlers.NewPrewarmHandler(prewarmSvc, auth),
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if settings.Prewarm.Enabled {
		if err := prewarmSvc.Stop(shutdownCtx); err != nil {
			log.Printf("prewarm shutdown error: %v", err)
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Persist the memory cache so warmed titles survive a restart.
	if memStore != nil && settings.Cache.SnapshotFile != "" {
		if err := store.SaveSnapshot(osFs, settings.Cache.SnapshotFile, memStore); err != nil {
			log.Printf("snapshot save error: %v", err)
		}
	}

	if err := cacheStore.Close(); err != nil {
		log.Printf("cache close error: %v", err)
	}

	log.Println("Shutdown complete")
}

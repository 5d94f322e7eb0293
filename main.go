package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/moritzg809/eateateat/config"
	"github.com/moritzg809/eateateat/handlers"
	"github.com/moritzg809/eateateat/keys"
	"github.com/moritzg809/eateateat/pipeline"
	"github.com/moritzg809/eateateat/providers"
	"github.com/moritzg809/eateateat/recommend"
	"github.com/moritzg809/eateateat/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	var (
		configPath  = flag.String("config", "eateateat.yaml", "path to YAML config file")
		runPipeline = flag.Bool("pipeline", false, "run the scraping pipeline instead of serving")
		stagesFlag  = flag.String("stages", "", "comma-separated stages (default: all six; add 'embed' explicitly)")
		dryRun      = flag.Bool("dry-run", false, "preview without API calls or writes")
		forceSearch = flag.Bool("force-search", false, "bypass the search TTL")
		limit       = flag.Int("limit", 0, "max items per stage (for testing)")
		dailyLimit  = flag.Int("daily-limit", 0, "override the daily enrichment cap")
		verifyDays  = flag.Int("verify-days", 0, "re-verify restaurants older than N days")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	db, err := config.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("database connected and migrated")

	pipe := pipeline.New(db, cfg)
	if err := wireProviders(pipe, cfg); err != nil {
		if *runPipeline {
			log.Fatal(err) // missing credentials are fatal for a pipeline run
		}
		log.Printf("warning: %v — pipeline runs disabled, serving read API only", err)
	}

	rec := recommend.New(db, cfg.CandidateTTL())

	if *runPipeline {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := pipeline.Options{
			DryRun:      *dryRun,
			ForceSearch: *forceSearch,
			Limit:       *limit,
			DailyLimit:  *dailyLimit,
			VerifyDays:  *verifyDays,
		}
		if *stagesFlag != "" {
			for _, s := range strings.Split(*stagesFlag, ",") {
				opts.Stages = append(opts.Stages, strings.ToLower(strings.TrimSpace(s)))
			}
		}
		if _, err := pipe.Run(ctx, opts); err != nil {
			log.Fatal("pipeline run failed: ", err)
		}
		return
	}

	// Set Gin mode
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.DebugMode)
	}

	if err := handlers.SeedAdmin(db); err != nil {
		log.Fatal("failed to seed admin account: ", err)
	}

	r := gin.Default()

	// CORS middleware for the dashboard frontends
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "eateateat restaurant pipeline API",
			"version": "1.0.0",
		})
	})

	api := handlers.NewAPI(db, rec, pipe, cfg)
	routes.SetupRoutes(r, api)

	log.Printf("server running on http://localhost:%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("failed to start server: ", err)
	}
}

// wireProviders attaches the HTTP capability clients, one key pool each.
func wireProviders(pipe *pipeline.Pipeline, cfg *config.Config) error {
	serperKeys, err := keys.FromEnv("SERPER_API_KEYS", "SERPER_API_KEY")
	if err != nil {
		return err
	}
	serpapiKeys, err := keys.FromEnv("SERPAPI_API_KEYS", "SERPAPI_API_KEY")
	if err != nil {
		return err
	}
	geminiKeys, err := keys.FromEnv("GEMINI_API_KEYS", "GEMINI_API_KEY")
	if err != nil {
		return err
	}

	pipe.Search = providers.NewSerperClient(serperKeys, cfg.SearchLanguage, cfg.SearchCountry, cfg.ResultsPerCall)
	pipe.Details = providers.NewSerpAPIClient(serpapiKeys)
	gemini := providers.NewGeminiClient(geminiKeys)
	pipe.Enricher = gemini
	pipe.Embedder = gemini
	return nil
}

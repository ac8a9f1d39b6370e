package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/xiaomo-123/gemini-api-service/config"
	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/repository"
	"github.com/xiaomo-123/gemini-api-service/server"
	"github.com/xiaomo-123/gemini-api-service/services"
)

func usage() {
	fmt.Println("Usage: gemini-api-service <command>")
	fmt.Println("Commands:")
	fmt.Println("  server       Start the application server")
	fmt.Println("  refresh      Run one full token refresh and exit")
	fmt.Println("  pool-update  Re-sync all accounts to the remote pool and exit")
	fmt.Println("  pool-clean   Remove invalid entries from the remote pool and exit")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}
	if cfg == nil {
		log.Fatalf("config is empty")
	}

	switch os.Args[1] {
	case "server":

		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		log.Println("Gemini API service starting up...")

		srv, err := server.NewServer(cfg)
		if err != nil {
			log.Fatalf("Server setup failed: %v", err)
		}

		if err := srv.Run(); err != nil {
			log.Fatalf("Server startup failed: %v", err)
		}

		log.Println("Shutdown complete")

	case "refresh":

		svcs, repos := initStandalone(cfg)
		ctx := context.Background()

		creds, err := repos.MailStore.Load(ctx)
		if err != nil {
			log.Fatalf("Failed to load mail credentials: %v", err)
		}
		loginEmail := creds.Email
		if creds.Parent != nil && creds.Parent.Email != "" {
			loginEmail = creds.Parent.Email
		}

		token, err := svcs.MailService.Login(ctx)
		if err != nil {
			log.Fatalf("Mail provider login failed: %v", err)
		}

		result, err := svcs.RefreshService.RefreshAll(ctx, loginEmail, token)
		if err != nil {
			log.Fatalf("Token refresh failed: %v", err)
		}
		log.Printf("Token refresh completed: %d ok, %d failed", result.SuccessCount, result.FailureCount)

	case "pool-update":

		svcs, _ := initStandalone(cfg)
		result, err := svcs.PoolService.UpdatePool(context.Background())
		if err != nil {
			log.Fatalf("Pool update failed: %v", err)
		}
		log.Printf("Pool update completed: %d added, %d skipped, %d total", result.AddedCount, result.SkippedCount, result.TotalCount)

	case "pool-clean":

		svcs, _ := initStandalone(cfg)
		result, err := svcs.PoolService.CleanInvalid(context.Background())
		if err != nil {
			log.Fatalf("Pool clean failed: %v", err)
		}
		log.Printf("Pool clean completed: %d valid, %d invalid", result.ValidCount, result.InvalidCount)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

// initStandalone wires repositories and services for the one-shot commands,
// skipping the HTTP server and the cron manager.
func initStandalone(cfg *config.Config) (*services.Services, *repository.Repositories) {
	appLogger := logger.NewAppLogger(cfg.AppConfig.Logger)
	appLogger.InitLogger()

	repos, err := repository.InitRepositories(cfg.AppConfig.DataDir)
	if err != nil {
		log.Fatalf("Repository initialization failed: %v", err)
	}

	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		log.Fatalf("Service initialization failed: %v", err)
	}
	return svcs, repos
}

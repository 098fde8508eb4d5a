package main

import (
	"context"
	"flag"
	"log"

	"weeklydigest/internal/app"
	"weeklydigest/internal/config"
	"weeklydigest/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	logger.Init()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := app.RunScrape(context.Background(), cfg); err != nil {
		log.Fatalf("scrape: %v", err)
	}
}

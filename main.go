package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/secmon-lab/mmpost/pkg/cli"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := cli.Run(context.Background(), os.Args); err != nil {
		slog.Error("mmpost failed", "error", err)
		os.Exit(1)
	}
}

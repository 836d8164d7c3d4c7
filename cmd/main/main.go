package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BartekS5/sql2mongo/internal/cli"
	"github.com/BartekS5/sql2mongo/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debugf("No .env file found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Criticalf("%v", err)
		logger.Close()
		stop()
		os.Exit(1)
	}
}

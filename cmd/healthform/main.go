package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/terraincognita07/healthintake/internal/cli"
	"github.com/terraincognita07/healthintake/internal/collector"
	"github.com/terraincognita07/healthintake/internal/config"
	"github.com/terraincognita07/healthintake/internal/models"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetOutput(os.Stderr)

	if err := config.LoadDotEnv(); err != nil {
		logger.WithError(err).Fatal("load .env")
	}

	serverURL := flag.String("server", defaultServerURL(), "base URL of the intake service")
	reportPath := flag.String("report", "", "path of a medical report to attach")
	timeout := flag.Duration("timeout", collector.DefaultTimeout, "request timeout")
	flag.Parse()

	catalog, err := models.DefaultFieldCatalog()
	if err != nil {
		logger.WithError(err).Fatal("load field catalog")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	formCollector := collector.New(*serverURL, catalog).WithTimeout(*timeout)
	runner := cli.NewFormRunner(os.Stdin, os.Stdout, catalog, formCollector)
	if err := runner.Run(ctx, *reportPath); err != nil {
		stop()
		logger.WithError(err).Fatal("submission failed")
	}
}

func defaultServerURL() string {
	if value := os.Getenv("HEALTH_INTAKE_URL"); value != "" {
		return value
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}
	return "http://localhost:" + port
}

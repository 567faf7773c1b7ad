// Command faersload loads openFDA drug adverse-event JSON dumps into a
// relational store. It reads a pipeline config, applies CLI overrides,
// optionally wires a metrics backend, and executes the load.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"faersload/internal/config"
	"faersload/internal/metrics"
	"faersload/internal/metrics/datadog"
	"faersload/internal/metrics/prompush"
	"faersload/internal/pipeline"

	// register all backends with the storage factory.
	// config specifies which to use but we build in support for all of them.
	_ "faersload/internal/storage/all"
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	var (
		cfgPath           string
		inputPath         string
		dsn               string
		storageKind       string
		limit             int64
		validate          bool
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/faers.json", "pipeline config JSON path")
	flag.StringVar(&inputPath, "input", "", "input file or directory (overrides source.file.path)")
	flag.StringVar(&dsn, "dsn", "", "storage DSN (overrides storage.db.dsn)")
	flag.StringVar(&storageKind, "storage", "", "storage backend kind (overrides storage.kind)")
	flag.Int64Var(&limit, "limit", 0, "stop after this many records (overrides runtime.limit)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides env DOGSTATSD_ADDR)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	// CLI overrides, 12-factor style: flag → config file.
	if inputPath != "" {
		p.Source.Kind = "file"
		p.Source.File.Path = inputPath
	}
	if dsn != "" {
		p.Storage.DB.DSN = dsn
	}
	if storageKind != "" {
		p.Storage.Kind = storageKind
	}
	if limit > 0 {
		p.Runtime.Limit = limit
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	setupMetrics(p.Job, metricsBackendFlg, pushGatewayURLFlg, datadogAddrFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	// SIGINT/SIGTERM cancel the run cooperatively; committed batches stay.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if *verbose {
		log.Printf("pipeline: job=%s source=%s storage=%s policy=%s",
			p.Job, p.Source.File.Path, p.Storage.Kind, p.Storage.Policy)
	}

	if _, err := pipeline.Run(ctx, p); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// setupMetrics decides the metrics backend: flag → env → disabled.
func setupMetrics(job, backendName, gatewayURL, datadogAddr string, verbose bool) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if job == "" {
		job = "faersload"
	}

	switch backendName {
	case "pushgateway":
		if gatewayURL == "" {
			gatewayURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gatewayURL == "" {
			gatewayURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=%v url=%v job=%v", backendName, gatewayURL, job)
		metrics.SetBackend(b)

	case "datadog":
		if datadogAddr == "" {
			datadogAddr = os.Getenv("DOGSTATSD_ADDR")
		}
		if datadogAddr == "" {
			datadogAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       datadogAddr,
			Namespace:  "faersload.",
			GlobalTags: []string{"job:" + job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=%v addr=%v job=%v", backendName, datadogAddr, job)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghsales/discount-engine/internal/config"
	"github.com/ghsales/discount-engine/internal/installment"
	"github.com/ghsales/discount-engine/internal/postgres"
	"github.com/ghsales/discount-engine/internal/telemetry"
	"github.com/ghsales/discount-engine/pkg/constants"
	"github.com/ghsales/discount-engine/pkg/output"
	"github.com/ghsales/discount-engine/pkg/validation"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load .env\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}

	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	// The default file is optional; an explicit one is not.
	path := *configLocation
	if path == constants.DefaultConfigFile {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	conf, err := config.LoadConfiguration(path)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := "serve", flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = serve(ctx, conf, logger)
	case "migrate":
		err = migrate(ctx, conf, logger)
	case "quote":
		err = quote(ctx, conf, logger, args)
	default:
		usage()
		err = fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		logger.Error("command failed",
			zap.String("op", "main"),
			zap.String("command", command),
			zap.Error(err),
		)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [serve|migrate|quote [quote flags]]\n", os.Args[0])
	flag.PrintDefaults()
}

func serve(ctx context.Context, conf *config.Configuration, logger *zap.Logger) error {
	a, err := newApp(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	h, err := a.handler(conf, logger, telemetry.NewMetrics(""))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              conf.Server.Address,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("op", "main.serve"),
			zap.String("address", conf.Server.Address),
			zap.String("version", version),
			zap.Bool("persistent", a.pool != nil),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.String("op", "main.serve"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrate(ctx context.Context, conf *config.Configuration, logger *zap.Logger) error {
	if conf.Database.URL == "" {
		return errors.New("migrate requires database.url")
	}
	pool, err := postgres.Open(ctx, conf.Database.URL, conf.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, logger); err != nil {
		return err
	}
	current, err := postgres.MigrationVersion(ctx, pool)
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d\n", current)
	return nil
}

// quote prices one unit against the active version and prints the plan.
func quote(ctx context.Context, conf *config.Configuration, logger *zap.Logger, args []string) error {
	fset := flag.NewFlagSet("quote", flag.ContinueOnError)
	unitID := fset.Int64("unit", 0, "unit id to price")
	term := fset.Int("term", 12, "term in months")
	product := fset.String("product", "standard", "installment product: standard, down-payment")
	upfront := fset.Float64("upfront", 0, "upfront payment in local currency (standard)")
	downPayment := fset.Float64("down-payment", 0, "down payment amount (down-payment)")
	amountUnit := fset.String("amount-unit", string(installment.AmountPercent), "down payment unit: percent, local, usd")
	startDate := fset.String("start-date", "", "schedule start date, YYYY-MM-DD (default today)")
	outputFormat := fset.String("output-format", constants.OutputFormatPretty, "type of output: pretty, csv")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if err := validation.ValidateOutputFormat(*outputFormat); err != nil {
		return err
	}

	a, err := newApp(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var q output.Quote
	switch *product {
	case "standard":
		plan, err := a.installment.Standard(ctx, installment.StandardRequest{
			UnitID:     *unitID,
			TermMonths: *term,
			Upfront:    *upfront,
			StartDate:  *startDate,
		})
		if err != nil {
			return err
		}
		q = output.FromStandard(plan)
	case "down-payment":
		plan, err := a.installment.DownPayment(ctx, installment.DownPaymentRequest{
			UnitID:      *unitID,
			TermMonths:  *term,
			DownPayment: *downPayment,
			Unit:        *amountUnit,
			StartDate:   *startDate,
		})
		if err != nil {
			return err
		}
		q = output.FromDownPayment(plan)
	default:
		return fmt.Errorf("unknown product %q", *product)
	}

	switch *outputFormat {
	case constants.OutputFormatCSV:
		return output.CsvFormat(os.Stdout, q)
	default:
		return output.PrettyFormat(os.Stdout, q)
	}
}

// Command settle prints the payments that settle one period of a group
// ledger.
//
//	settle [-week N] [-json] [-publish]
//	settle periods
//	settle import -week N -file ledger.csv [-handles handles.csv]
//	settle sync
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"settle/internal/amqp"
	"settle/internal/backend"
	"settle/internal/cli"
	"settle/internal/config"
	"settle/internal/core"
	"settle/internal/log"
	"settle/internal/report"
	"settle/internal/services"
	"settle/internal/settlement"
	"settle/internal/sheets"
	"settle/internal/sheets/google"
	"settle/internal/sheets/memory"
	"settle/internal/storage"
)

// Exit codes
const (
	exitOK         = 0
	exitError      = 1
	exitUsage      = 2
	exitImbalanced = 3
	exitNotFound   = 4
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	logger := cli.SetupLogger(cfg, stderr)

	if len(args) > 0 {
		switch args[0] {
		case "periods":
			return runPeriods(ctx, cfg, logger, stdout, stderr)
		case "import":
			return runImport(ctx, cfg, logger, args[1:], stdout, stderr)
		case "sync":
			return runSync(ctx, cfg, logger, stdout, stderr)
		}
	}
	return runSettle(ctx, cfg, logger, args, stdout, stderr)
}

func openBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bc)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, settlement.ErrImbalancedLedger):
		return exitImbalanced
	case errors.Is(err, sheets.ErrPeriodNotFound), errors.Is(err, core.ErrInvalidPeriod):
		return exitNotFound
	default:
		return exitError
	}
}

func runSettle(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("settle", flag.ContinueOnError)
	fs.SetOutput(stderr)
	week := fs.Int("week", 0, "period to settle (default: latest)")
	asJSON := fs.Bool("json", false, "print the full report as JSON")
	publish := fs.Bool("publish", false, "publish payment requests to AMQP_URL")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *publish && cfg.AMQPURL == "" {
		fmt.Fprintln(stderr, "-publish requires AMQP_URL")
		return exitUsage
	}

	res, err := openBackend(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer res.Close()

	var publisher services.Publisher
	if *publish {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		defer client.Close()
		publisher = client
	}

	svc := services.NewSettleService(res.Backend, report.NewFormatter(cfg.CurrencySymbol), publisher, nil, logger)
	rep, err := svc.Run(ctx, core.Period(*week))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(rep)
	} else {
		err = rep.WriteLines(stdout)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	if *publish {
		n, err := svc.Publish(ctx, rep)
		if err != nil {
			fmt.Fprintf(stderr, "published %d of %d payment requests: %v\n", n, len(rep.Payments), err)
			return exitError
		}
		logger.Info("Payment requests published", log.FieldRunID, rep.RunID, log.FieldTransactions, n)
	}
	return exitOK
}

func runPeriods(ctx context.Context, cfg *config.Config, logger *log.Logger, stdout, stderr io.Writer) int {
	res, err := openBackend(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer res.Close()

	periods, err := res.Backend.ListPeriods(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	for _, p := range periods {
		fmt.Fprintln(stdout, int(p))
	}
	return exitOK
}

func runImport(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	week := fs.Int("week", 0, "period to import into (required)")
	file := fs.String("file", "", "name,amount CSV to import (required)")
	handlesFile := fs.String("handles", "", "optional name,handle CSV")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *week < 1 || *file == "" {
		fmt.Fprintln(stderr, "import needs -week N (N >= 1) and -file")
		return exitUsage
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	ledger, err := memory.ParseLedgerCSV(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", *file, err)
		return exitError
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer repo.Close()

	if err := repo.ImportLedger(ctx, core.Period(*week), ledger); err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	handles := 0
	if *handlesFile != "" {
		// LoadHandles treats a missing file as empty; a named one must exist.
		if _, err := os.Stat(*handlesFile); err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		store := memory.New()
		if err := store.LoadHandles(*handlesFile); err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		hs, err := store.ReadHandles(ctx)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		for name, handle := range hs {
			if err := repo.UpsertHandle(ctx, name, handle); err != nil {
				fmt.Fprintln(stderr, err)
				return exitError
			}
			handles++
		}
	}

	logger.Info("Ledger imported",
		log.NewFields().WithLedger(core.Period(*week), ledger).WithOperation(log.OpImport).ToSlice()...)
	fmt.Fprintf(stdout, "imported %d participants into week %d (%d handles)\n", len(ledger), *week, handles)
	return exitOK
}

func runSync(ctx context.Context, cfg *config.Config, logger *log.Logger, stdout, stderr io.Writer) int {
	if cfg.GoogleSpreadsheetID == "" {
		fmt.Fprintln(stderr, "sync needs GOOGLE_SPREADSHEET_ID")
		return exitUsage
	}
	src, err := google.NewFromOptions(ctx, backend.GoogleOptions(cfg))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer repo.Close()

	n, err := services.NewSyncProcessor(repo, src, services.DefaultSyncProcessorConfig(), logger, nil).RunOnce(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	fmt.Fprintf(stdout, "synced %d periods into %s\n", n, cfg.SQLiteDBPath)
	return exitOK
}

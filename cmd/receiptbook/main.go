package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"receiptbook/internal"
	"receiptbook/internal/api"
	"receiptbook/internal/app"
	"receiptbook/internal/config"
	"receiptbook/internal/document"
	"receiptbook/internal/listener"
	"receiptbook/internal/logger"
	"receiptbook/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		usage()
		return
	}

	a, err := app.New(ctx, cfg, log)
	must(err)
	defer a.Close()
	svc := a.Processor

	switch cmd {
	case "extract":
		fs := ff.NewFlagSet(cmd)
		file := fs.StringLong("file", "", "receipt file (pdf, image or html)")
		appendRec := fs.BoolLong("append", "append the extracted record to the ledger")
		category := fs.StringLong("category", "", "category override")
		parse(fs, args)
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		content, err := os.ReadFile(*file)
		must(err)
		rec, err := svc.Extract(ctx, internal.Document{
			Name:    filepath.Base(*file),
			Ext:     document.NormalizeExt(filepath.Ext(*file)),
			Content: content,
		})
		must(err)
		if *category != "" {
			c, known := pipeline.ParseCategory(*category)
			if !known {
				must(fmt.Errorf("unknown category: %s", *category))
			}
			rec.Category = c
		}
		printJSON(rec)
		if *appendRec {
			result, err := svc.Append(ctx, *rec, "")
			must(err)
			printJSON(result)
		}
	case "append":
		fs := ff.NewFlagSet(cmd)
		input := fs.StringLong("json", "", "record JSON file, - for stdin")
		messageID := fs.StringLong("message-id", "", "mark this mail message read on success")
		parse(fs, args)
		var rec internal.Record
		must(readJSON(*input, &rec))
		result, err := svc.Append(ctx, rec, *messageID)
		must(err)
		printJSON(result)
		if result.Status == internal.AppendError {
			os.Exit(1)
		}
	case "ledger:header":
		must(svc.EnsureHeader(ctx))
		fmt.Println("ledger header ok")
	case "ledger:check":
		fs := ff.NewFlagSet(cmd)
		receipt := fs.StringLong("receipt", "", "receipt number")
		parse(fs, args)
		if strings.TrimSpace(*receipt) == "" {
			must(fmt.Errorf("--receipt is required"))
		}
		dup, err := svc.CheckDuplicate(ctx, *receipt)
		must(err)
		printJSON(map[string]any{"receipt_number": *receipt, "exists": dup})
	case "mail:unread":
		msgs, err := svc.ListUnread(ctx)
		must(err)
		printJSON(msgs)
	case "mail:read":
		fs := ff.NewFlagSet(cmd)
		id := fs.StringLong("id", "", "provider message id")
		parse(fs, args)
		done, err := svc.MarkRead(ctx, *id)
		must(err)
		if !done {
			must(fmt.Errorf("could not mark message %s read", *id))
		}
		fmt.Printf("message %s marked read\n", *id)
	case "mail:process":
		summary, err := svc.ProcessMail(ctx)
		must(err)
		printJSON(summary)
	case "mail:listen":
		must(listener.NewService(svc, cfg, log).Run(ctx))
	case "export:xlsx":
		fs := ff.NewFlagSet(cmd)
		out := fs.StringLong("out", filepath.Join(cfg.OutputDir, "ledger.xlsx"), "output xlsx path")
		parse(fs, args)
		rows, err := svc.Snapshot(ctx)
		must(err)
		must(pipeline.ExportLedgerToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "journal":
		fs := ff.NewFlagSet(cmd)
		limit := fs.IntLong("limit", 20, "number of rows")
		status := fs.StringLong("status", "", "list mail messages with this status instead of runs")
		parse(fs, args)
		if *status != "" {
			msgs, err := a.DB.ListMessagesByStatus(*status, *limit)
			must(err)
			printJSON(msgs)
			return
		}
		runs, err := a.DB.ListRuns(*limit)
		must(err)
		printJSON(runs)
		if checked, err := svc.HeaderCheckedAt(); err == nil && checked != nil {
			fmt.Fprintf(os.Stderr, "ledger header last checked %s\n", checked.Format(time.RFC3339))
		}
	case "serve":
		fs := ff.NewFlagSet(cmd)
		addr := fs.StringLong("addr", cfg.HTTPAddr, "listen address")
		parse(fs, args)
		serve(ctx, *addr, api.SetupRouter(svc, log))
	default:
		usage()
		os.Exit(1)
	}
}

func serve(ctx context.Context, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Printf("listening on %s\n", addr)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			must(err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		must(srv.Shutdown(shutdownCtx))
	}
}

func parse(fs *ff.FlagSet, args []string) {
	if err := ff.Parse(fs, args); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		must(err)
	}
}

func readJSON(path string, v any) error {
	var (
		blob []byte
		err  error
	)
	switch strings.TrimSpace(path) {
	case "":
		return fmt.Errorf("--json is required")
	case "-":
		blob, err = io.ReadAll(os.Stdin)
	default:
		blob, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(blob, v)
}

func printJSON(v any) {
	blob, err := json.MarshalIndent(v, "", "  ")
	must(err)
	fmt.Println(string(blob))
}

func usage() {
	fmt.Println("usage: receiptbook <command>")
	fmt.Println("commands:")
	fmt.Println("  extract --file=receipt.pdf [--category=Equipment] [--append]")
	fmt.Println("  append --json=record.json|- [--message-id=...]")
	fmt.Println("  ledger:header")
	fmt.Println("  ledger:check --receipt=98-123")
	fmt.Println("  mail:unread")
	fmt.Println("  mail:read --id=...")
	fmt.Println("  mail:process")
	fmt.Println("  mail:listen")
	fmt.Println("  export:xlsx [--out=./out/ledger.xlsx]")
	fmt.Println("  journal [--limit=20] [--status=committed]")
	fmt.Println("  serve [--addr=:8080]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

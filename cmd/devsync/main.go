package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"devsync/internal/cleaner"
	"devsync/internal/config"
	"devsync/internal/importer"
	"devsync/internal/listener"
	"devsync/internal/logging"
	"devsync/internal/source"
	"devsync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := os.Args[1]

	// The clean commands only read a file and never touch the database.
	switch cmd {
	case "clean:devices", "clean:content":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "export file (.csv, .txt or .xlsx)")
		delimiter := fs.String("delimiter", cfg.ImportDelimiter, "field delimiter")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		raw, err := os.ReadFile(*input)
		must(err)
		text, err := source.DecodeFile(filepath.Base(*input), raw, *delimiter)
		must(err)

		sink := cleaner.LogSink(logger)
		if cmd == "clean:devices" {
			res, err := cleaner.CleanDeviceRows(text, *delimiter, sink)
			must(err)
			printJSON(map[string]any{"records": res.Records, "summary": res.Summary})
		} else {
			res, err := cleaner.CleanContentRows(text, *delimiter, sink)
			must(err)
			printJSON(map[string]any{"records": res.Records, "summary": res.Summary})
		}
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	switch cmd {
	case "import:run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dir := fs.String("dir", "", "import directory (overrides settings)")
		delimiter := fs.String("delimiter", "", "field delimiter (overrides settings)")
		report := fs.String("report", "", "optional xlsx report path")
		_ = fs.Parse(os.Args[2:])

		svc := importer.NewService(db, cfg, logger)
		res, err := svc.Run(ctx, importer.Options{Dir: *dir, Delimiter: *delimiter})
		must(err)
		for _, run := range res.Runs {
			fmt.Printf("run=%s family=%s status=%s total=%d accepted=%d discarded=%d truncated=%d stored=%d skipped=%d\n",
				run.RunID, run.Family, run.Status, run.Total, run.Accepted, run.Discarded, run.Truncated, run.Stored, run.Skipped)
		}
		if len(res.Runs) == 0 {
			fmt.Printf("no exports found in %s\n", res.Dir)
		}
		if strings.TrimSpace(*report) != "" && len(res.Runs) > 0 {
			must(svc.ExportResult(ctx, res, *report))
			fmt.Printf("report written to %s\n", *report)
		}
	case "import:listen":
		s := listener.NewService(db, cfg, logger)
		must(s.Run(ctx))
	case "runs:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs")
		_ = fs.Parse(os.Args[2:])
		runs, err := db.ListRuns(ctx, *limit)
		must(err)
		for _, run := range runs {
			fmt.Printf("%s %s %-7s %-6s accepted=%d discarded=%d stored=%d skipped=%d %s\n",
				run.CreatedAt, run.RunID, run.Family, run.Status, run.Accepted, run.Discarded, run.Stored, run.Skipped, run.Error)
		}
	case "devices:list":
		devices, err := db.ListDevices(ctx)
		must(err)
		printJSON(devices)
	case "content:list":
		contents, err := db.ListContents(ctx)
		must(err)
		printJSON(contents)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		runID := fs.String("runId", "", "run id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*runID) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--runId and --out are required"))
		}
		svc := importer.NewService(db, cfg, logger)
		_, discards, err := svc.ExportRun(ctx, *runID, *out)
		must(err)
		fmt.Printf("exported run %s with %d discards to %s\n", *runID, discards, *out)
	case "settings:set":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		key := fs.String("key", "", importer.SettingImportPath+"|"+importer.SettingImportDelimiter)
		value := fs.String("value", "", "setting value")
		_ = fs.Parse(os.Args[2:])
		if !importer.ValidSettingKey(*key) {
			must(fmt.Errorf("unknown setting key %q", *key))
		}
		if *key == importer.SettingImportDelimiter {
			must(config.ValidateDelimiter(*value))
		}
		must(db.SetSetting(ctx, *key, *value))
		fmt.Printf("%s=%s\n", *key, *value)
	case "settings:get":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		key := fs.String("key", "", importer.SettingImportPath+"|"+importer.SettingImportDelimiter)
		_ = fs.Parse(os.Args[2:])
		value, err := db.GetSetting(ctx, *key)
		must(err)
		if value == nil {
			must(fmt.Errorf("setting %q is not set", *key))
		}
		fmt.Printf("%s=%s\n", *key, *value)
	default:
		usage()
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	must(enc.Encode(v))
}

func usage() {
	fmt.Println("usage: devsync <command>")
	fmt.Println("commands:")
	fmt.Println("  clean:devices --input=devices.csv [--delimiter=,]")
	fmt.Println("  clean:content --input=content.csv [--delimiter=,]")
	fmt.Println("  import:run [--dir=./data/import] [--delimiter=,] [--report=./out/report.xlsx]")
	fmt.Println("  import:listen")
	fmt.Println("  runs:list [--limit=20]")
	fmt.Println("  devices:list")
	fmt.Println("  content:list")
	fmt.Println("  export:xlsx --runId=... --out=./out/run.xlsx")
	fmt.Println("  settings:set --key=import.path|import.delimiter --value=...")
	fmt.Println("  settings:get --key=import.path|import.delimiter")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

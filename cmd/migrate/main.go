// Command migrate applies or reverts the embedded schema migrations.
//
//	migrate up      apply every pending migration
//	migrate down    revert the most recently applied migration
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/itemdesk/itemdesk/internal/migrate"
	"github.com/itemdesk/itemdesk/migrations"
)

type output struct {
	Command string `json:"command"`
	Applied int    `json:"applied,omitempty"`
	Version int64  `json:"version,omitempty"`
	Name    string `json:"name,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		databaseURL = fs.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		format      = fs.String("format", "plain", "Output format: plain or json")
		timeout     = fs.Duration("timeout", time.Minute, "Overall timeout")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if *format != "plain" && *format != "json" {
		return fmt.Errorf("unknown format %q", *format)
	}
	if fs.NArg() != 1 {
		return errors.New("usage: migrate [flags] up|down")
	}
	command := fs.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := migrate.Open(ctx, *databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(stderr, nil))
	m, err := migrate.New(db, migrations.FS, logger)
	if err != nil {
		return err
	}

	out := output{Command: command}
	switch command {
	case "up":
		out.Applied, err = m.Up(ctx)
		if err != nil {
			return err
		}
	case "down":
		mig, err := m.Down(ctx)
		if err != nil {
			return err
		}
		out.Version, out.Name = mig.Version, mig.Name
	default:
		return fmt.Errorf("unknown command %q (want up or down)", command)
	}

	return writeOutput(stdout, *format, out)
}

func writeOutput(w io.Writer, format string, out output) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	switch out.Command {
	case "up":
		_, err := fmt.Fprintf(w, "applied %d migration(s)\n", out.Applied)
		return err
	default:
		_, err := fmt.Fprintf(w, "reverted %06d_%s\n", out.Version, out.Name)
		return err
	}
}

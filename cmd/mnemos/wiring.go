package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/config"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/journal"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var outputFormats = []string{formatText, formatJSON, formatYAML}

// resolveStore locates the store for the working directory and loads its
// configuration.
func resolveStore() (config.Location, *config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return config.Location{}, nil, fmt.Errorf("get working directory: %w", err)
	}
	return config.Resolve(dir)
}

// openJournal resolves the store, installs the slog handler and opens the
// log. With --verbose the store location is printed to stderr.
func openJournal(cmd *cobra.Command) (*journal.Journal, error) {
	loc, cfg, err := resolveStore()
	if err != nil {
		return nil, err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(cmd.ErrOrStderr(), cfg, verbose)

	j := journal.Open(loc, cfg)
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "store: %s (%s)\n", j.Path(), loc.Scope)
	}
	return j, nil
}

// setupLogging sends slog records to w at the configured level, or debug
// when verbose.
func setupLogging(w io.Writer, cfg *config.Config, verbose bool) {
	level := cfg.Log.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// emit writes v in the --output format. text is only called for text output.
func emit(cmd *cobra.Command, v any, text func() string) error {
	format, _ := cmd.Flags().GetString("output")
	return write(cmd.OutOrStdout(), format, v, text)
}

func write(w io.Writer, format string, v any, text func() string) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, text())
		return err
	}
}

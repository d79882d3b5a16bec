package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/dgallion1/fieldmap/internal/engine"
	"github.com/dgallion1/fieldmap/internal/loader"
	"github.com/dgallion1/fieldmap/internal/proptree"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	keyMode       string
	noIndex       bool
	maxDepth      int
	nameFallback  bool
	preserveTypes bool
	verbose       bool
}

func (o *rootOptions) engine(cmd *cobra.Command) (*engine.Engine, error) {
	mode, err := proptree.ParseKeyMode(o.keyMode)
	if err != nil {
		return nil, err
	}
	if o.maxDepth <= 0 {
		return nil, fmt.Errorf("--max-depth must be positive, got %d", o.maxDepth)
	}

	opts := engine.DefaultOptions()
	opts.Flatten.IndexArrays = !o.noIndex
	opts.Flatten.MaxDepth = o.maxDepth
	opts.Resolve.Mode = mode
	opts.Resolve.NameFallback = o.nameFallback
	opts.Resolve.PreserveTypes = o.preserveTypes
	opts.Resolve.MaxDepth = o.maxDepth

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return engine.New(opts, log, nil), nil
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "fieldmap",
		Short: "Flatten JSON documents and map their fields onto a target shape",
		Long: `fieldmap flattens JSON, YAML and CSV documents into property trees and
rebuilds them under new names using a mapping file.

Typical use:
  fieldmap targets target-schema.json            # list target keys
  fieldmap seed source-schema.json > map.yaml    # write an empty mapping
  fieldmap apply --data data.json --mapping map.yaml

Documents may be local paths, "-" for stdin, or storage URLs such as
file:// and mem://.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.keyMode, "key-mode", "path", "mapping key mode: path or name")
	pf.BoolVar(&opts.noIndex, "no-index", false, "omit array indices from property paths")
	pf.IntVar(&opts.maxDepth, "max-depth", proptree.DefaultMaxDepth, "maximum nesting depth")
	pf.BoolVar(&opts.nameFallback, "name-fallback", true, "in path mode, fall back to name keys")
	pf.BoolVar(&opts.preserveTypes, "preserve-types", false, "emit decoded JSON types instead of strings")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log resolution details to stderr")

	root.AddCommand(
		newFlattenCmd(opts),
		newTargetsCmd(opts),
		newSeedCmd(opts),
		newApplyCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// readLocation fetches a document's bytes. "-" reads stdin.
func readLocation(ctx context.Context, cmd *cobra.Command, location string) ([]byte, error) {
	if location == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	if !strings.Contains(location, "://") {
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, err
		}
		location = abs
	}
	data, err := afs.New().DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return data, nil
}

// loadDocument reads and decodes a document. The loader is picked by
// extension; stdin is read as JSON.
func loadDocument(ctx context.Context, cmd *cobra.Command, location string) (any, error) {
	data, err := readLocation(ctx, cmd, location)
	if err != nil {
		return nil, err
	}
	name := location
	if location == "-" {
		name = "stdin.json"
	}
	return loader.LoadBytes(data, name)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgallion1/fieldmap/internal/mapping"
	"github.com/dgallion1/fieldmap/internal/proptree"
	"github.com/dgallion1/fieldmap/internal/tree"
)

var (
	// Set via ldflags at build time
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func newFlattenCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "flatten <document>",
		Short: "Print the property tree of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			doc, err := loadDocument(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			nodes, err := eng.Flatten(doc)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), nodes)
			}
			return printTree(cmd.OutOrStdout(), nodes)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print nodes as JSON")
	return cmd
}

// printTree writes one row per node, indented by depth.
func printTree(w io.Writer, nodes []*proptree.Node) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tKIND\tTYPE\tVALUE")
	err := proptree.Walker(0).Walk(nodes, tree.Funcs[*proptree.Node]{
		EnterFunc: func(n *proptree.Node, depth int) (bool, error) {
			_, err := fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n",
				strings.Repeat("  ", depth), n.PropertyPath, n.Kind, n.DeclaredType, n.Value)
			return true, err
		},
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

func newTargetsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "targets <schema>",
		Short: "List the target keys a schema offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			doc, err := loadDocument(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			keys, err := eng.Targets(doc)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "seed <source-schema>",
		Short: "Print an empty mapping file for a source schema",
		Long: `Print a YAML mapping file with one empty entry per source key.

With --target, entries are prefilled with the closest target key where the
names are similar enough.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			doc, err := loadDocument(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			store, err := eng.Seed(doc)
			if err != nil {
				return err
			}
			if target != "" {
				schema, err := loadDocument(cmd.Context(), cmd, target)
				if err != nil {
					return err
				}
				keys, err := eng.Targets(schema)
				if err != nil {
					return err
				}
				mapping.Suggest(store, keys, mapping.DefaultSuggestThreshold)
			}
			data, err := mapping.NewFile(store, eng.KeyMode()).Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "target schema used to suggest entries")
	return cmd
}

func newApplyCmd(opts *rootOptions) *cobra.Command {
	var dataLoc, mappingLoc string
	var showStats bool
	cmd := &cobra.Command{
		Use:   "apply --data <document> --mapping <mapping.yaml>",
		Short: "Build the output document for data using a mapping file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readLocation(cmd.Context(), cmd, mappingLoc)
			if err != nil {
				return err
			}
			file, err := mapping.ParseFile(raw)
			if err != nil {
				return err
			}
			// The mapping file's key mode wins unless --key-mode was given.
			if !cmd.Flags().Changed("key-mode") {
				opts.keyMode = file.Mode
			}

			eng, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			doc, err := loadDocument(cmd.Context(), cmd, dataLoc)
			if err != nil {
				return err
			}
			out, stats, err := eng.Apply(doc, file.Mappings)
			if err != nil {
				return err
			}
			if showStats {
				fmt.Fprintf(cmd.ErrOrStderr(), "applied=%d carried=%d dropped=%d collided=%d unmatched=%d\n",
					stats.Applied, stats.Carried, stats.Dropped, stats.Collided, stats.Unmatched)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&dataLoc, "data", "", "data document")
	cmd.Flags().StringVar(&mappingLoc, "mapping", "", "mapping file (YAML or JSON)")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print resolution counts to stderr")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("mapping")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fieldmap %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", buildDate)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

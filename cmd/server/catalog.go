package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vyuha/vyuha-scene/internal/api"
	"github.com/vyuha/vyuha-scene/internal/graph"
	"github.com/vyuha/vyuha-scene/internal/layout"
	"github.com/vyuha/vyuha-scene/internal/source"
)

// ---------------------------------------------------------------------------
// layout
// ---------------------------------------------------------------------------

var layoutAlgorithm string

var layoutCmd = withConfigFlags(&cobra.Command{
	Use:     "layout [snapshot-id]",
	Short:   "Compute a layout for a stored snapshot and print the positions",
	GroupID: "catalog",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		alg, err := layout.ParseAlgorithm(layoutAlgorithm)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		var snap *graph.Snapshot
		if len(args) == 1 {
			snap, err = store.GetSnapshot(ctx, args[0])
		} else {
			snap, err = store.LatestSnapshot(ctx)
		}
		if err != nil {
			return err
		}

		runCtx, cancel := context.WithTimeout(ctx, cfg.Scene.LayoutBudget)
		defer cancel()
		res, err := api.RunLayout(runCtx, snap, alg, cfg.Layout)
		if err != nil {
			return err
		}

		return printJSON(res)
	},
})

// ---------------------------------------------------------------------------
// import / export
// ---------------------------------------------------------------------------

var (
	importFromS3 bool
	importKey    string
)

var importCmd = withConfigFlags(&cobra.Command{
	Use:   "import [file]",
	Short: "Load a snapshot from a file or the configured S3 bucket into the catalogue",
	Long: `Load a snapshot into the catalogue.

With a file argument the snapshot is decoded by extension (.json, .yaml,
.yml). With --from-s3 it is read from the configured bucket: --key picks an
object, otherwise the newest key under the prefix is used.`,
	GroupID: "catalog",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var src source.Source
		switch {
		case importFromS3:
			s3src, err := source.NewS3Source(ctx, cfg.S3)
			if err != nil {
				return err
			}
			src = s3src.WithKey(importKey)
		case len(args) == 1:
			src = source.NewFileSource(args[0])
		default:
			return fmt.Errorf("import needs a file argument or --from-s3")
		}

		snap, err := src.Fetch(ctx)
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveSnapshot(ctx, snap); err != nil {
			return err
		}
		return printJSON(map[string]any{"source": src.Name(), "snapshot": snap.Summary()})
	},
})

var exportCmd = withConfigFlags(&cobra.Command{
	Use:     "export <snapshot-id>",
	Short:   "Write a stored snapshot to the configured S3 bucket",
	GroupID: "catalog",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		snap, err := store.GetSnapshot(ctx, args[0])
		if err != nil {
			return err
		}

		dst, err := source.NewS3Source(ctx, cfg.S3)
		if err != nil {
			return err
		}
		key, err := dst.Export(ctx, snap)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"bucket": cfg.S3.Bucket, "key": key})
	},
})

var listCmd = withConfigFlags(&cobra.Command{
	Use:     "list",
	Short:   "List stored snapshots, newest first",
	GroupID: "catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		sums, err := store.ListSnapshots(cmd.Context(), 0)
		if err != nil {
			return err
		}
		for _, s := range sums {
			fmt.Printf("%-28s %-24s %6d nodes %6d edges  %s\n",
				s.ID, s.Label, s.NodeCount, s.EdgeCount, s.CreatedAt.Format(time.RFC3339))
		}
		return nil
	},
})

func init() {
	layoutCmd.Flags().StringVar(&layoutAlgorithm, "algorithm", string(layout.AlgorithmForce), "Layout algorithm (circular|force|reset)")
	layoutCmd.Flags().Int64("seed", 0, "Random seed for force layout scattering (0 = clock)")
	layoutCmd.Flags().Int("iterations", 0, "Force layout iterations (0 = configured)")

	importCmd.Flags().BoolVar(&importFromS3, "from-s3", false, "Read the snapshot from the configured S3 bucket")
	importCmd.Flags().StringVar(&importKey, "key", "", "Object key to import (default: newest under the prefix)")

	rootCmd.AddCommand(layoutCmd, importCmd, exportCmd, listCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

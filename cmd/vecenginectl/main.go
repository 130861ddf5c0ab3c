// Command vecenginectl is a local operator CLI for the vecengine core:
// collection lifecycle, vector insert/search, and snapshot management
// over a single data root, without a wire-protocol server (spec.md §6
// scopes the server boundary out of core).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vantari/vecengine/pkg/config"
	"github.com/vantari/vecengine/pkg/embedport"
	"github.com/vantari/vecengine/pkg/logging"
	"github.com/vantari/vecengine/pkg/snapshot"
	"github.com/vantari/vecengine/pkg/vecengine"
	"github.com/vantari/vecengine/pkg/vecmodel"
	"github.com/vantari/vecengine/pkg/vmath"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "vecenginectl",
		Short: "vecengine - embeddable vector similarity search core",
		Long: `vecenginectl operates a vecengine data root from the command line:
create and inspect collections, insert and search vectors, and manage
point-in-time snapshots.`,
	}
	rootCmd.PersistentFlags().String("data-dir", "./data", "Data root directory")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vecenginectl v%s\n", version)
		},
	})
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(collectionCmd())
	rootCmd.AddCommand(insertCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(aliasCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) *config.Config {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadFromEnvOrFile(path)
}

func newLogger() *zap.Logger {
	logger, err := logging.New(logging.DefaultConfig())
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openEngine opens (or creates) the snapshot store under dataDir and
// constructs an Engine with a deterministic embedder, the stand-in
// spec.md §1 names for every real provider (out of scope for core).
func openEngine(dataDir string) (*vecengine.Engine, *snapshot.Store, error) {
	snapDir := filepath.Join(dataDir, "snapshots")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return nil, nil, err
	}
	store, serr := snapshot.Open(snapDir)
	if serr != nil {
		return nil, nil, serr
	}
	eng := vecengine.New(newLogger(), embedport.NewDeterministic(256), store)
	return eng, store, nil
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new vecengine data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			if err := os.MkdirAll(filepath.Join(dataDir, "collections"), 0o755); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(dataDir, "snapshots"), 0o755); err != nil {
				return err
			}
			configPath := filepath.Join(dataDir, "vecengine.yaml")
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0o644); err != nil {
					return err
				}
			}
			fmt.Printf("initialized vecengine data directory at %s\n", dataDir)
			fmt.Printf("  config: %s\n", configPath)
			return nil
		},
	}
	return cmd
}

const defaultConfigYAML = `storage:
  type: mmap
  root_path: ./data
  compression:
    enabled: false
    threshold_bytes: 4096
    algorithm: zstd

cluster:
  enabled: false

file_watcher:
  enabled: false
  debounce_ms: 300

gpu:
  enabled: false
  backend: auto

batch:
  max_workers: 4
  batch_size: 64
  max_retries: 2
  operation_timeout_seconds: 10

quantization:
  mode: none
`

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (file + VECENGINE_* env overrides)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(loadConfig(cmd))
		},
	}
	return cmd
}

func collectionCmd() *cobra.Command {
	parent := &cobra.Command{Use: "collection", Short: "Manage collections"}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			dim, _ := cmd.Flags().GetInt("dimension")
			metric, _ := cmd.Flags().GetString("metric")
			quant, _ := cmd.Flags().GetString("quantization")

			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			cfg := vecmodel.CollectionConfig{
				Dimension:    dim,
				Metric:       vmath.Metric(metric),
				HNSW:         vecmodel.DefaultHNSWConfig(),
				Quantization: vecmodel.QuantizationMode(quant),
				Storage:      vecmodel.StorageMmap,
			}
			if cerr := eng.CreateCollection(args[0], cfg); cerr != nil {
				return cerr
			}
			if serr := eng.SaveCollection(args[0], dataDir); serr != nil {
				return serr
			}
			fmt.Printf("collection %q created (dimension=%d, metric=%s)\n", args[0], dim, metric)
			return nil
		},
	}
	create.Flags().Int("dimension", 384, "Vector dimension")
	create.Flags().String("metric", "cosine", "Distance metric: cosine|euclidean|dot")
	create.Flags().String("quantization", "none", "Quantization mode: none|sq8")
	parent.AddCommand(create)

	list := &cobra.Command{
		Use:   "list",
		Short: "List known collection directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			entries, err := os.ReadDir(filepath.Join(dataDir, "collections"))
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("(no collections)")
					return nil
				}
				return err
			}
			for _, e := range entries {
				if e.IsDir() {
					fmt.Println(e.Name())
				}
			}
			return nil
		},
	}
	parent.AddCommand(list)

	info := &cobra.Command{
		Use:   "info [name]",
		Short: "Show a collection's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			if lerr := eng.LoadCollection(args[0], dataDir); lerr != nil {
				return lerr
			}
			meta, merr := eng.GetCollectionMetadata(args[0])
			if merr != nil {
				return merr
			}
			return printJSON(meta)
		},
	}
	parent.AddCommand(info)

	return parent
}

func insertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert [collection] [vectors.json]",
		Short: "Insert vectors from a JSON file ([]vecmodel.Vector) into a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			collection, path := args[0], args[1]

			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var vectors []vecmodel.Vector
			if err := json.Unmarshal(data, &vectors); err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}

			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			if lerr := eng.LoadCollection(collection, dataDir); lerr != nil {
				return lerr
			}
			outcomes, uerr := eng.Upsert(collection, vectors)
			if uerr != nil {
				return uerr
			}
			if serr := eng.SaveCollection(collection, dataDir); serr != nil {
				return serr
			}
			inserted := 0
			for _, o := range outcomes {
				if o.Success {
					inserted++
				}
			}
			fmt.Printf("inserted %d vectors into %q\n", inserted, collection)
			return nil
		},
	}
	return cmd
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [collection]",
		Short: "Run a dense search using a query embedded from --text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			text, _ := cmd.Flags().GetString("text")
			k, _ := cmd.Flags().GetInt("k")
			collection := args[0]

			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			if lerr := eng.LoadCollection(collection, dataDir); lerr != nil {
				return lerr
			}

			ctx := context.Background()
			query, eerr := eng.Embed(ctx, text)
			if eerr != nil {
				return eerr
			}
			results, serr := eng.SearchDense(ctx, collection, query, k, 0)
			if serr != nil {
				return serr
			}
			return printJSON(results)
		},
	}
	cmd.Flags().String("text", "", "Query text to embed and search with")
	cmd.Flags().Int("k", 10, "Number of results")
	return cmd
}

func snapshotCmd() *cobra.Command {
	parent := &cobra.Command{Use: "snapshot", Short: "Manage point-in-time snapshots"}

	create := &cobra.Command{
		Use:   "create",
		Short: "Snapshot every collection currently saved under the data root",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, rerr := os.ReadDir(filepath.Join(dataDir, "collections"))
			if rerr != nil && !os.IsNotExist(rerr) {
				return rerr
			}
			for _, e := range entries {
				if e.IsDir() {
					if lerr := eng.LoadCollection(e.Name(), dataDir); lerr != nil {
						return lerr
					}
				}
			}
			summary, serr := eng.CreateSnapshot(nil)
			if serr != nil {
				return serr
			}
			return printJSON(summary)
		},
	}
	parent.AddCommand(create)

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			summaries, serr := eng.ListSnapshots()
			if serr != nil {
				return serr
			}
			return printJSON(summaries)
		},
	}
	parent.AddCommand(list)

	restore := &cobra.Command{
		Use:   "restore [id]",
		Short: "Restore a snapshot's collections into memory and re-save them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			if rerr := eng.RestoreSnapshot(args[0]); rerr != nil {
				return rerr
			}
			for _, name := range eng.ListCollections() {
				if serr := eng.SaveCollection(name, dataDir); serr != nil {
					return serr
				}
			}
			fmt.Printf("restored snapshot %s\n", args[0])
			return nil
		},
	}
	parent.AddCommand(restore)

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			if derr := eng.DeleteSnapshot(args[0]); derr != nil {
				return derr
			}
			fmt.Printf("deleted snapshot %s\n", args[0])
			return nil
		},
	}
	parent.AddCommand(del)

	return parent
}

func aliasCmd() *cobra.Command {
	parent := &cobra.Command{Use: "alias", Short: "Manage collection aliases"}

	create := &cobra.Command{
		Use:   "create [alias] [collection]",
		Short: "Point alias at collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			if lerr := eng.LoadAliases(dataDir); lerr != nil {
				return lerr
			}
			if lerr := eng.LoadCollection(args[1], dataDir); lerr != nil {
				return lerr
			}
			if aerr := eng.CreateAlias(args[0], args[1]); aerr != nil {
				return aerr
			}
			if aerr := eng.SaveAliases(dataDir); aerr != nil {
				return aerr
			}
			fmt.Printf("alias %q -> %q\n", args[0], args[1])
			return nil
		},
	}
	parent.AddCommand(create)

	del := &cobra.Command{
		Use:   "delete [alias]",
		Short: "Remove an alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			if lerr := eng.LoadAliases(dataDir); lerr != nil {
				return lerr
			}
			eng.DeleteAlias(args[0])
			if aerr := eng.SaveAliases(dataDir); aerr != nil {
				return aerr
			}
			fmt.Printf("deleted alias %q\n", args[0])
			return nil
		},
	}
	parent.AddCommand(del)

	list := &cobra.Command{
		Use:   "list",
		Short: "List aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			eng, store, err := openEngine(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			if lerr := eng.LoadAliases(dataDir); lerr != nil {
				return lerr
			}
			for _, a := range eng.ListAliases() {
				fmt.Println(a)
			}
			return nil
		},
	}
	parent.AddCommand(list)

	return parent
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

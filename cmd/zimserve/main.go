// Command zimserve serves a ZIM archive as a small offline wiki.
//
// The archive may be a local file (memory-mapped), a directory containing a
// single *.zim file, or an http(s) URL read via range requests.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meridel/zim"
	zimhttp "github.com/meridel/zim/http"
	"github.com/meridel/zim/internal/logging"
	"github.com/meridel/zim/internal/search"
	"github.com/meridel/zim/internal/server"
)

type config struct {
	Addr             string `mapstructure:"addr"`
	IndexDB          string `mapstructure:"index_db"`
	NoSearch         bool   `mapstructure:"no_search"`
	ClusterCacheSize int    `mapstructure:"cluster_cache"`
	LogLevel         string `mapstructure:"log_level"`
	LogOutputDir     string `mapstructure:"log_output_dir"`
}

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "zimserve [archive]",
	Short: "Serve a ZIM archive as a small wiki",
	Long: `Serve a ZIM archive as a small wiki.

The archive argument is a .zim file, a directory holding exactly one .zim
file, or an http(s) URL of a remote archive. With no argument the current
directory is scanned.`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")

	rootCmd.Flags().StringP("addr", "a", ":4321", "listen address")
	rootCmd.Flags().String("index-db", "wiki.db", "path of the search index database")
	rootCmd.Flags().Bool("no-search", false, "disable the search index and /search route")
	rootCmd.Flags().Int("cluster-cache", 0, "decompressed clusters to retain (0 = default)")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-output-dir", "", "directory to write JSON log files to")

	viper.BindPFlag("addr", rootCmd.Flags().Lookup("addr"))
	viper.BindPFlag("index_db", rootCmd.Flags().Lookup("index-db"))
	viper.BindPFlag("no_search", rootCmd.Flags().Lookup("no-search"))
	viper.BindPFlag("cluster_cache", rootCmd.Flags().Lookup("cluster-cache"))
	viper.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("log_output_dir", rootCmd.Flags().Lookup("log-output-dir"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("zimserve")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("ZIMSERVE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := &config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogOutputDir); err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}

	location := "."
	if len(args) == 1 {
		location = args[0]
	}

	archive, err := openArchive(location, cfg)
	if err != nil {
		return err
	}
	defer archive.Close()

	h := archive.Header()
	slog.Info("archive opened", "location", location, "uuid", h.UUID,
		"version", fmt.Sprintf("%d.%d", h.MajorVersion, h.MinorVersion),
		"entries", h.EntryCount, "clusters", h.ClusterCount)

	var index *search.Index
	if !cfg.NoSearch {
		index, err = search.Open(cfg.IndexDB, slog.Default())
		if err != nil {
			return err
		}
		defer index.Close()
		if err := index.Build(archive); err != nil {
			return err
		}
	}

	srv := server.New(archive, index, slog.Default())
	slog.Info("listening", "addr", cfg.Addr)
	return http.ListenAndServe(cfg.Addr, srv.Handler())
}

// openArchive resolves a location argument into an open archive.
func openArchive(location string, cfg *config) (*zim.Archive, error) {
	var opts []zim.Option
	if cfg.ClusterCacheSize > 0 {
		opts = append(opts, zim.WithClusterCacheSize(cfg.ClusterCacheSize))
	}

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		src, err := zimhttp.NewSource(location)
		if err != nil {
			return nil, err
		}
		return zim.New(src, opts...)
	}

	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", location, err)
	}
	if info.IsDir() {
		location, err = findArchive(location)
		if err != nil {
			return nil, err
		}
	}
	return zim.Open(location, opts...)
}

// findArchive expects exactly one *.zim file in dir; several candidates need
// an explicit choice from the user.
func findArchive(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.zim"))
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no .zim files in %s", dir)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = filepath.Base(m)
		}
		return "", fmt.Errorf("multiple .zim files in %s, pick one: %s", dir, strings.Join(names, ", "))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

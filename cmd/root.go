package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/gradeproxy/internal/config"
	"github.com/abhisek/gradeproxy/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "gradeproxy",
	Short:         "LLM grading and question-generation API",
	Long:          "gradeproxy serves grading and question-generation endpoints backed by an LLM, checking every model reply against the JSON shape its endpoint expects.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite event log (overrides GRADEPROXY_DB env var)")
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file loaded before reading the environment (default "+config.DefaultEnvFile+" when present)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(subjectsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the env file named by --env-file and the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	return config.Load(envFile)
}

// openStore opens the event log named by --db, then GRADEPROXY_DB, then
// the default XDG path.
func openStore(cmd *cobra.Command, cfg config.Config) (*store.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = cfg.DBPath
	}
	var err error
	if path == "" {
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	} else if err = store.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

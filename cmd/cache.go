package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the shared result cache",
	Long:  "Only meaningful with the redis backend; the memory backend lives inside the serving process.",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		env := &engineEnv{}
		defer env.Close()

		stats, err := initCache(cmd.Context(), env).Stats(cmd.Context())
		if err != nil {
			return err
		}
		return emitJSON("", stats)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop cached computations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		prefix, _ := cmd.Flags().GetString("prefix")
		env := &engineEnv{}
		defer env.Close()

		n, err := initCache(cmd.Context(), env).Clear(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entries\n", n)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().String("prefix", "", "only clear keys starting with this prefix (zones, heatmap, clusters)")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/zone-router/internal/route"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List preference profiles and their weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		scorer, err := initScorer()
		if err != nil {
			return err
		}
		return printProfiles(os.Stdout, scorer.Profiles(), cfg.Engine.DefaultProfile)
	},
}

func printProfiles(out io.Writer, profiles []route.Profile, defaultProfile string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDURATION\tAQI\tWEATHER\tACCIDENT\tTRAFFIC\tDESCRIPTION")
	for _, p := range profiles {
		name := p.Name
		if name == defaultProfile {
			name += "*"
		}
		wt := p.Weights
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			name, wt.Duration, wt.AQI, wt.Weather, wt.Accident, wt.Traffic, p.Description)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zone-router/internal/engine"
	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Rank alternative routes by a preference profile",
	Long: `Scores route candidates against the current zones on air quality,
weather, accident and traffic risk, then ranks them by the weighted composite
of those scores and travel time (lower is better).

Candidates come from the routing engine (--from/--to) or from a JSON file of
{id, polyline, distance_meters, duration_seconds} objects (--candidates).

Examples:
  score --from 10.80,106.69 --to 10.81,106.71 --profile healthiest
  score --candidates routes.json --profile safest --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req, format, output, err := scoreRequestFromFlags(cmd)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Service.ScoreRoutes(ctx, req)
		if err != nil {
			return err
		}
		if format == "json" {
			return emitJSON(output, resp)
		}
		w, closeFn, err := openOutput(output)
		if err != nil {
			return err
		}
		if err := printScores(w, resp); err != nil {
			_ = closeFn()
			return err
		}
		return closeFn()
	},
}

func scoreRequestFromFlags(cmd *cobra.Command) (engine.ScoreRequest, string, string, error) {
	f := cmd.Flags()
	profile, _ := f.GetString("profile")
	from, _ := f.GetString("from")
	to, _ := f.GetString("to")
	candidatesPath, _ := f.GetString("candidates")
	format, _ := f.GetString("format")
	output, _ := f.GetString("output")

	req := engine.ScoreRequest{Profile: profile}
	if err := checkFormat(format, "table", "json"); err != nil {
		return req, "", "", err
	}

	switch {
	case candidatesPath != "":
		candidates, err := readCandidates(candidatesPath)
		if err != nil {
			return req, "", "", err
		}
		req.Candidates = candidates
	case from != "" && to != "":
		origin, err := parseLatLng(from)
		if err != nil {
			return req, "", "", err
		}
		dest, err := parseLatLng(to)
		if err != nil {
			return req, "", "", err
		}
		req.Origin, req.Destination = &origin, &dest
	default:
		return req, "", "", geoerr.Validationf("either --candidates or both --from and --to are required")
	}
	return req, format, output, nil
}

func readCandidates(path string) ([]model.RouteCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read candidates %s", path)
	}
	var candidates []model.RouteCandidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, geoerr.Validationf("parse candidates %s: %v", path, err)
	}
	return candidates, nil
}

func printScores(out io.Writer, resp *engine.ScoreResponse) error {
	fmt.Fprintf(out, "profile %s: %d of %d routes\n\n", resp.Profile, len(resp.Routes), resp.Evaluated)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tROUTE\tCOMPOSITE\tAQI\tWEATHER\tACCIDENT\tTRAFFIC\tDURATION\tDISTANCE_KM")
	for _, r := range resp.Routes {
		c := r.CriterionScores
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.0fs\t%.1f\n",
			r.Rank, r.CandidateID, r.CompositeScore, c.AQI, c.Weather, c.Accident, c.Traffic,
			r.DurationSeconds, r.DistanceMeters/1000)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, r := range resp.Routes {
		if len(r.Warnings) > 0 {
			fmt.Fprintf(out, "\n%s:\n  - %s\n", r.CandidateID, strings.Join(r.Warnings, "\n  - "))
		}
	}
	return nil
}

func init() {
	f := scoreCmd.Flags()
	f.String("profile", "", "preference profile (default from config)")
	f.String("from", "", "origin as lat,lng")
	f.String("to", "", "destination as lat,lng")
	f.String("candidates", "", "JSON file of route candidates")
	f.String("format", "table", "output format: table or json")
	f.String("output", "", "output file path (default: stdout)")
	rootCmd.AddCommand(scoreCmd)
}

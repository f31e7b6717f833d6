package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zone-router/internal/engine"
	geo "github.com/sells-group/zone-router/internal/geojson"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Build the sensor zones and print their profiles",
	Long: `Fetches every sensor stream, partitions the area into Voronoi zones
around the air-quality sensors and aggregates weather, accident and traffic
data per zone. Streams that fail are replaced by synthetic fallbacks.

Examples:
  zones --format table
  zones --format geojson --output zones.geojson`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		if err := checkFormat(format, "table", "json", "geojson"); err != nil {
			return err
		}

		env, err := initEngine(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		zs, err := env.Service.Zones(ctx)
		if err != nil {
			return err
		}
		for _, w := range zs.Warnings {
			zap.L().Warn("zones: "+w.Kind, zap.String("source", w.Source), zap.String("message", w.Message))
		}

		switch format {
		case "geojson":
			fc, err := geo.ZoneFeatures(zs.Zones)
			if err != nil {
				return err
			}
			return emitJSON(output, fc)
		case "json":
			return emitJSON(output, zs)
		default:
			return printZones(output, zs)
		}
	},
}

func printZones(path string, zs *engine.ZoneSet) error {
	out, closeFn, err := openOutput(path)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ZONE\tANCHOR\tAQI\tRAIN\tVISIBILITY\tACCIDENTS\tCONGESTION\tFALLBACK")
	for _, z := range zs.Zones {
		p := z.Profile
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%.1f\t%.0f\t%d\t%s\t%s\n",
			z.Polygon.ID, z.Polygon.AnchorSensorID, p.AQI, p.Weather.Rainfall, p.Weather.Visibility,
			p.AccidentCount, p.CongestionLevel, strings.Join(p.Fallback, ","))
	}
	if err := w.Flush(); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}

func init() {
	f := zonesCmd.Flags()
	f.String("format", "table", "output format: table, json or geojson")
	f.String("output", "", "output file path (default: stdout)")
	rootCmd.AddCommand(zonesCmd)
}

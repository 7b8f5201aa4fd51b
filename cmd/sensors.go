package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/camcore/internal/sim"
)

// CreateSensorsCmd creates the sensors command.
func CreateSensorsCmd() *cobra.Command {
	var sensorsFile string

	cmd := &cobra.Command{
		Use:   "sensors",
		Short: "List the simulated sensor catalog",
		Long:  `Loads the sensor catalog (built-in when the file is missing) and prints each sensor's role, zoom range, mounting orientation and sizes.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := sim.LoadCatalog(sensorsFile)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSENSOR\tMAX ZOOM\tORIENTATION\tSIZES")
			for _, id := range catalog.Identities() {
				chars, err := catalog.Characteristics(id)
				if err != nil {
					return err
				}
				sizes := make([]string, len(chars.Sizes))
				for i, size := range chars.Sizes {
					sizes[i] = size.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%s\n", id.ID, id.Sensor, chars.MaxZoom, chars.Orientation, strings.Join(sizes, ","))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&sensorsFile, "sensors", "sensors.toml", "Path to sensor catalog file")

	return cmd
}

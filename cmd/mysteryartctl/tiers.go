package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/smallbiznis/mysteryart/internal/fulfillment/service"
	tierservice "github.com/smallbiznis/mysteryart/internal/tier/service"
	"github.com/spf13/cobra"
)

func tiersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "List the tier catalog the service would load",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := tierservice.Provide(config.Load())
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				return printJSON(cmd.OutOrStdout(), catalog.List())
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRICE\tTITLE\tFEATURES")
			for _, tier := range catalog.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					tier.ID,
					service.FormatCents(tier.PriceCents),
					tier.Title,
					strings.Join(tier.Features, ", "),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
)

func newPlansCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Validate the plan catalog and print its caps and features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				cfg, err := loadAppConfig()
				if err != nil {
					return err
				}
				file = cfg.PlansFile
			}
			catalog, err := entitlement.NewCatalog(cmd.Context(), entitlement.NewYAMLSource(file))
			if err != nil {
				return err
			}
			return printPlans(cmd.OutOrStdout(), catalog.Plans())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "plan catalog file (defaults to PLANS_FILE)")
	return cmd
}

func printPlans(out io.Writer, plans []entitlement.Plan) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := []string{"LIMIT"}
	for _, p := range plans {
		header = append(header, strings.ToUpper(string(p.Tier)))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, l := range entitlement.Limits {
		row := []string{string(l)}
		for _, p := range plans {
			row = append(row, formatCap(p.Limits, l))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	for _, f := range entitlement.Features {
		row := []string{string(f)}
		for _, p := range plans {
			mark := "-"
			if p.Limits.Enabled(f) {
				mark = "yes"
			}
			row = append(row, mark)
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func formatCap(ls entitlement.LimitSet, l entitlement.Limit) string {
	c, ok := ls.Cap(l)
	switch {
	case !ok:
		return "?"
	case c == entitlement.Unlimited:
		return "unlimited"
	default:
		return strconv.FormatInt(c, 10)
	}
}

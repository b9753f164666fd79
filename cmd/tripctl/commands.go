package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xco2/tripspot/internal/container"
	"github.com/xco2/tripspot/internal/types"
)

type app struct {
	ephemeral bool
	open      func(ctx context.Context, ephemeral bool) (*container.Container, error)
	c         *container.Container
}

func (a *app) close() {
	if a.c != nil {
		a.c.Close()
		a.c = nil
	}
}

func rootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tripctl",
		Short: "Extract places from trip notes and plan a visiting order",
		Long: `tripctl extracts the places mentioned in free-form trip notes, geocodes them
with AMap and orders them by estimated driving time.

Map and text service keys come from the stored settings, seeded by the
defaults section of config.yml or TRIPSPOT_DEFAULTS_* variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.c != nil {
				return nil
			}
			c, err := a.open(cmd.Context(), a.ephemeral)
			if err != nil {
				return err
			}
			a.c = c
			return nil
		},
	}
	cmd.PersistentFlags().BoolVar(&a.ephemeral, "ephemeral", false, "Keep places and route in memory instead of Postgres")

	cmd.AddCommand(parseCmd(a), planCmd(a), placesCmd(a), exportCmd(a), importCmd(a))
	return cmd
}

func parseCmd(a *app) *cobra.Command {
	var plan bool
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Extract and geocode the places in trip notes, replacing the stored ones",
		Long:  `Reads the notes from file, or from stdin when file is omitted or "-".`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			resp, err := a.c.Pipeline.ParseText(cmd.Context(), text)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d located, %d without a map match\n", resp.Stats.Matched, resp.Stats.Dropped)
			if err := printPlaces(out, resp.Places); err != nil {
				return err
			}
			if !plan {
				return nil
			}
			planned, err := a.c.Pipeline.Plan(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return printPlan(out, planned)
		},
	}
	cmd.Flags().BoolVar(&plan, "plan", false, "Plan a route over the parsed places")
	return cmd
}

func planCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [place-id...]",
		Short: "Order the selected places, or every located place, by driving time",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.c.Pipeline.Plan(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), resp)
		},
	}
}

func placesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "places",
		Short: "List the stored places",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			places, err := a.c.Store.ListPlaces(cmd.Context())
			if err != nil {
				return err
			}
			if len(places) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no places stored")
				return nil
			}
			return printPlaces(cmd.OutOrStdout(), places)
		},
	}
}

func exportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write places and route as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := a.c.Store.Export(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, stdout when empty")
	return cmd
}

func importCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Replace places and route with an exported document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			var doc types.ExportDocument
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return fmt.Errorf("decode export document: %w", err)
			}
			if err := a.c.Store.Import(cmd.Context(), doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d places\n", len(doc.Locations))
			return nil
		},
	}
}

func readInput(stdin io.Reader, args []string) (string, error) {
	var (
		raw []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(raw), nil
}

func printPlaces(w io.Writer, places []types.Place) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tCITY\tTYPE\tLOCATION")
	for i, p := range places {
		loc := "-"
		if p.Located() {
			loc = fmt.Sprintf("%.6f,%.6f", p.Longitude, p.Latitude)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, p.ID, p.Name, p.City, p.Category, loc)
	}
	return tw.Flush()
}

func printPlan(w io.Writer, resp *types.PlanResponse) error {
	names := make([]string, 0, len(resp.Places))
	for _, p := range resp.Places {
		names = append(names, p.Name)
	}
	if len(names) > 0 {
		fmt.Fprintf(w, "route: %s\n", strings.Join(names, " -> "))
	}
	fmt.Fprintf(w, "total: %d min\n", resp.Route.TotalDurationMinutes)
	if !resp.Saved {
		fmt.Fprintln(w, "route not stored")
	}
	_, err := fmt.Fprintf(w, "advice: %s\n", resp.Route.Advice)
	return err
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/config"
	"forecast_workbench/pkg/core/forecast"
	"forecast_workbench/pkg/core/form"
	"forecast_workbench/pkg/core/logging"
	"forecast_workbench/pkg/core/report"
	"forecast_workbench/pkg/core/utils"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// env holds what every subcommand needs after flags are parsed.
type env struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	e := &env{}

	root := &cobra.Command{
		Use:          "forecast",
		Short:        "Build forecast payloads from assumption files and run them",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return err
			}
			if url := v.GetString("api_url"); url != "" {
				cfg.Backend.URL = url
			}
			if d := v.GetDuration("timeout"); d > 0 {
				cfg.Backend.Timeout = d
			}
			e.cfg = cfg
			e.log = logging.New(logging.Config{
				Level:  v.GetString("log_level"),
				Pretty: true,
				Out:    cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", config.DefaultPath, "YAML config file")
	pf.String("api-url", "", "Calculation API base URL (env FORECAST_API_URL)")
	pf.Duration("timeout", 0, "Backend request timeout")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	v.BindPFlag("config", pf.Lookup("config"))
	v.BindPFlag("api_url", pf.Lookup("api-url"))
	v.BindPFlag("timeout", pf.Lookup("timeout"))
	v.BindPFlag("log_level", pf.Lookup("log-level"))
	v.BindEnv("api_url", "FORECAST_API_URL")
	v.BindEnv("log_level", "LOG_LEVEL")

	root.AddCommand(
		newPayloadCmd(e),
		newRunCmd(e),
		newExportCmd(e),
		newTotalsCmd(e),
		newLabelsCmd(),
	)
	return root
}

// loadWorkbench reads an Hjson (or JSON) assumption file.
func (e *env) loadWorkbench(path string) (*assumption.Workbench, error) {
	if path == "" {
		return nil, fmt.Errorf("an assumption file is required (-f)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f := form.Form{Horizon: e.cfg.Workbench.DefaultHorizon, Mode: e.cfg.Workbench.DefaultMode}
	if err := utils.ParseHJSONToStruct(string(data), &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Build(e.cfg.Workbench.Defaults, e.cfg.Workbench.Scalars)
}

func (e *env) payload(path string) (*assumption.Payload, *assumption.Workbench, error) {
	wb, err := e.loadWorkbench(path)
	if err != nil {
		return nil, nil, err
	}
	p, err := wb.Payload()
	if err != nil {
		return nil, nil, err
	}
	return p, wb, nil
}

func (e *env) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), e.cfg.Backend.Timeout+5*time.Second)
}

func newPayloadCmd(e *env) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Print the request payload an assumption file produces",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := e.payload(file)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Assumption file (Hjson or JSON)")
	return cmd
}

func newRunCmd(e *env) *cobra.Command {
	var (
		file   string
		color  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit an assumption file and print the three statements",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, wb, err := e.payload(file)
			if err != nil {
				return err
			}
			ctx, cancel := e.requestContext(cmd)
			defer cancel()

			res, err := forecast.NewClient(e.cfg.Backend, e.log).Forecast(ctx, p)
			if err != nil {
				return err
			}
			statements := report.Build(report.WithInputs(res, p), wb.Periods().Labels())

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statements)
			}
			report.WriteText(cmd.OutOrStdout(), statements, report.TextOptions{
				Currency: wb.Scalars.CurrencySymbol,
				Color:    color,
			})
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Assumption file (Hjson or JSON)")
	cmd.Flags().BoolVar(&color, "color", false, "Colored tables")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statements as JSON")
	return cmd
}

func newExportCmd(e *env) *cobra.Command {
	var file, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the spreadsheet for an assumption file",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := e.payload(file)
			if err != nil {
				return err
			}
			ctx, cancel := e.requestContext(cmd)
			defer cancel()

			xlsx, err := forecast.NewClient(e.cfg.Backend, e.log).Export(ctx, p)
			if err != nil {
				return err
			}
			dest := output
			if dest == "" {
				dest = xlsx.Filename
			}
			if dir := filepath.Dir(dest); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(dest, xlsx.Data, 0644); err != nil {
				return fmt.Errorf("write %s: %w", dest, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", dest, len(xlsx.Data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Assumption file (Hjson or JSON)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: name sent by the server)")
	return cmd
}

func newTotalsCmd(e *env) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Print per-year totals of the named streams in an assumption file",
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := e.loadWorkbench(file)
			if err != nil {
				return err
			}
			writeTotals(cmd, wb)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Assumption file (Hjson or JSON)")
	return cmd
}

func writeTotals(cmd *cobra.Command, wb *assumption.Workbench) {
	out := cmd.OutOrStdout()
	for _, b := range assumption.Builders() {
		mgr, _ := wb.Streams(b)
		if mgr.Len() == 0 {
			continue
		}
		totals := mgr.AnnualTotals()

		tw := table.NewWriter()
		tw.SetOutputMirror(out)
		tw.SetStyle(table.StyleLight)
		tw.SetTitle(fmt.Sprintf("%s streams", b))

		hdr := table.Row{"Stream", "Class"}
		cfgs := make([]table.ColumnConfig, 0, totals.Years)
		for y := 0; y < totals.Years; y++ {
			hdr = append(hdr, fmt.Sprintf("Year %d", y+1))
			cfgs = append(cfgs, table.ColumnConfig{Number: y + 3, Align: text.AlignRight, AlignHeader: text.AlignRight})
		}
		tw.AppendHeader(hdr)
		tw.SetColumnConfigs(cfgs)

		for _, s := range totals.Streams {
			tw.AppendRow(totalsRow(s.Name, string(s.Classification), s.Totals))
		}
		tw.AppendFooter(totalsRow("Total", "", totals.Aggregate))
		tw.Render()
	}
}

func totalsRow(name, class string, totals []float64) table.Row {
	row := table.Row{name, class}
	for _, v := range totals {
		row = append(row, report.FormatAmount(forecast.Number(v)))
	}
	return row
}

func newLabelsCmd() *cobra.Command {
	var (
		horizon int
		mode    string
	)
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Print the period labels a forecast response carries for a horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := assumption.ParsePeriodMode(mode)
			if err != nil {
				return err
			}
			periods, err := assumption.ResolvePeriods(horizon, m)
			if err != nil {
				return err
			}
			for _, l := range periods.Labels() {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&horizon, "horizon", 3, "Horizon (years, or months in monthly mode)")
	cmd.Flags().StringVar(&mode, "mode", "annual", "annual or monthly")
	return cmd
}

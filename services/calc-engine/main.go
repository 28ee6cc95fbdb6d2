// calc-engine checks forecast payloads against the calculation API contract
// before they are sent, and prints the period labels a response should carry.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/utils"
)

func main() {
	mode := flag.String("mode", "check", "Mode: check or labels")
	dataStr := flag.String("data", "", "Payload as JSON or Hjson ('-' reads stdin)")
	flag.Parse()

	if err := run(*mode, *dataStr, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(mode, data string, stdin io.Reader, out io.Writer) error {
	if data == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		data = string(raw)
	}
	if strings.TrimSpace(data) == "" {
		return fmt.Errorf("no data provided")
	}

	var p assumption.Payload
	if err := utils.ParseHJSONToStruct(data, &p); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	switch mode {
	case "check":
		return runChecks(&p, out)
	case "labels":
		return printLabels(&p, out)
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

func runChecks(p *assumption.Payload, out io.Writer) error {
	if err := assumption.ValidatePayload(p); err != nil {
		return err
	}
	periods, err := assumption.CheckShape(p)
	if err != nil {
		return err
	}
	streams := 0
	for _, s := range p.Streams {
		streams += len(s)
	}
	fmt.Fprintf(out, "Success: %d %s periods, %d input buckets, %d series, %d streams\n",
		periods.ReportPeriods, periods.Mode, periods.InputBuckets, len(p.Series), streams)
	return nil
}

func printLabels(p *assumption.Payload, out io.Writer) error {
	periods, err := assumption.ResolvePeriods(p.Years, p.PeriodMode)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, strings.Join(periods.Labels(), ","))
	return nil
}

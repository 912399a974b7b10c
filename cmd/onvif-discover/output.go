package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/onvif-discover/internal/discovery"
	"github.com/muurk/onvif-discover/internal/server"
	"github.com/muurk/onvif-discover/internal/ui"
)

// Output formats accepted by --format
const (
	formatTable   = "table"
	formatCompact = "compact"
	formatJSON    = "json"
	formatYAML    = "yaml"
)

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unknown output format %q (valid: %v)", format, allowed)
}

// encode writes v as JSON or YAML
func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// writeResult prints a completed run in the requested format
func writeResult(w io.Writer, format string, r *discovery.Result) error {
	switch format {
	case formatJSON, formatYAML:
		return encode(w, format, server.NewResultView(r))

	case formatCompact:
		for _, d := range r.Devices {
			if _, err := fmt.Fprintln(w, d.String()); err != nil {
				return err
			}
		}
		return nil

	default:
		p := ui.NewPrinter(w)
		if len(r.Devices) > 0 {
			if err := p.PrintDevices(r.Devices); err != nil {
				return err
			}
			p.Newline()
		}
		p.PrintResult(summarize(r))
		return nil
	}
}

// summarize builds the result box shown after the device table
func summarize(r *discovery.Result) *ui.Result {
	details := []ui.Param{
		{Key: "Mode", Value: r.Mode.String()},
		{Key: "Hosts", Value: strconv.Itoa(len(r.Hosts))},
		{Key: "Duration", Value: r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()},
	}
	if r.Rejected > 0 {
		details = append(details, ui.Param{Key: "Rejected", Value: strconv.Itoa(r.Rejected)})
	}
	if len(r.Errors) > 0 {
		details = append(details, ui.Param{Key: "Errors", Value: strconv.Itoa(len(r.Errors))})
	}

	if r.Count == 0 {
		res := ui.NewWarningResult("No devices found", details...)
		for _, err := range r.Errors {
			if discovery.IsTransmissionError(err) {
				res.AddTip("Some probes were not sent: " + err.Error())
				break
			}
		}
		for _, tip := range ui.NoDevicesTips {
			res.AddTip(tip)
		}
		return res
	}

	title := "1 device found"
	if r.Count != 1 {
		title = fmt.Sprintf("%d devices found", r.Count)
	}
	return ui.NewSuccessResult(title, details...)
}

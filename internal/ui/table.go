package ui

import (
	"io"
	"strconv"

	"github.com/muurk/onvif-discover/internal/addrs"
	"github.com/muurk/onvif-discover/internal/discovery"
	"github.com/olekukonko/tablewriter"
)

// RenderDevices writes one row per device in discovery order
func RenderDevices(w io.Writer, devices []discovery.Device) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Mode", "Host", "Label", "Key", "Endpoint")

	for i, d := range devices {
		if err := table.Append([]string{
			strconv.Itoa(i + 1),
			d.Mode().String(),
			d.Host(),
			orDash(d.Label()),
			orDash(d.Key()),
			orDash(d.Endpoint()),
		}); err != nil {
			return err
		}
	}

	return table.Render()
}

// RenderTargets writes the local interfaces discovery would send from
func RenderTargets(w io.Writer, targets []addrs.Target) error {
	table := tablewriter.NewWriter(w)
	table.Header("Interface", "Index", "Address", "Broadcast")

	for _, t := range targets {
		local := "-"
		if t.Local != nil {
			ones, _ := t.Mask.Size()
			local = t.Local.String() + "/" + strconv.Itoa(ones)
		}
		bcast := "-"
		if t.Broadcast != nil {
			bcast = t.Broadcast.String()
		}
		if err := table.Append([]string{
			t.Interface,
			strconv.Itoa(t.Index),
			local,
			bcast,
		}); err != nil {
			return err
		}
	}

	return table.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

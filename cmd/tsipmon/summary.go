package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"tsipmon/internal/monitor"
	"tsipmon/internal/packet"
)

type summaryRow struct {
	ID    byte
	Name  string
	Count uint64
}

// summaryRows orders per-packet counts by ID.
func summaryRows(snap monitor.Snapshot, reg *packet.Registry) []summaryRow {
	rows := make([]summaryRow, 0, len(snap.PerPacket))
	for key, n := range snap.PerPacket {
		id, err := strconv.ParseUint(key, 0, 8)
		if err != nil {
			continue
		}
		rows = append(rows, summaryRow{ID: byte(id), Name: reg.Name(byte(id)), Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func writeSummary(w io.Writer, snap monitor.Snapshot, reg *packet.Registry) {
	fmt.Fprintf(w, "source=%s bytes=%d frames=%d reports=%d unknown=%d decode_errors=%d framing_errors=%d incomplete=%d\n",
		snap.Source, snap.BytesRead, snap.Frames, snap.Reports, snap.Unknown, snap.DecodeErrors, snap.FramingErrors, snap.IncompleteFrames)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOUNT")
	for _, r := range summaryRows(snap, reg) {
		fmt.Fprintf(tw, "0x%02X\t%s\t%d\n", r.ID, r.Name, r.Count)
	}
	_ = tw.Flush()

	if snap.Time != nil {
		fmt.Fprintf(w, "last time: week %d gps %s utc %s\n", snap.Time.Week,
			snap.Time.GPS.Format("2006-01-02T15:04:05.000Z"), snap.Time.UTC.Format("2006-01-02T15:04:05.000Z"))
	}
}

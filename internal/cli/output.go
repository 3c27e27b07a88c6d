package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"hygienix/backend/internal/feed"
	"hygienix/backend/internal/model"
)

type snapshotWriter struct {
	w      io.Writer
	format string
}

func newSnapshotWriter(w io.Writer, format string) snapshotWriter {
	return snapshotWriter{w: w, format: format}
}

type snapshotJSON struct {
	FetchedAt time.Time                 `json:"fetched_at"`
	Total     int                       `json:"total"`
	Counts    map[model.OrderStatus]int `json:"counts"`
	New       []orderLine               `json:"new"`
	Changed   []orderLine               `json:"changed"`
}

type orderLine struct {
	ID       int64   `json:"id"`
	Customer string  `json:"customer"`
	Phone    string  `json:"phone"`
	Total    float64 `json:"total"`
	Status   string  `json:"status"`
}

func toLines(orders []model.Order) []orderLine {
	lines := make([]orderLine, 0, len(orders))
	for _, o := range orders {
		lines = append(lines, orderLine{ID: o.ID, Customer: o.CustomerName, Phone: o.CustomerPhone, Total: o.Total, Status: string(o.Status)})
	}
	return lines
}

func (s snapshotWriter) write(snap feed.Snapshot) error {
	if s.format == "json" {
		return json.NewEncoder(s.w).Encode(snapshotJSON{
			FetchedAt: snap.FetchedAt.UTC(),
			Total:     len(snap.Orders),
			Counts:    snap.Counts,
			New:       toLines(snap.New),
			Changed:   toLines(snap.Changed),
		})
	}

	if _, err := fmt.Fprintf(s.w, "[%s] orders=%d", snap.FetchedAt.Format("15:04:05"), len(snap.Orders)); err != nil {
		return err
	}
	for _, status := range model.OrderStatuses() {
		fmt.Fprintf(s.w, " %s=%d", status, snap.Counts[status])
	}
	fmt.Fprintln(s.w)

	for _, line := range toLines(snap.New) {
		fmt.Fprintf(s.w, "  new     #%d %s (%s) %s %s\n", line.ID, line.Customer, line.Phone, formatTotal(line.Total), line.Status)
	}
	for _, line := range toLines(snap.Changed) {
		fmt.Fprintf(s.w, "  changed #%d %s -> %s\n", line.ID, line.Customer, line.Status)
	}
	return nil
}

func formatTotal(total float64) string {
	return "₹" + strconv.FormatFloat(total, 'f', -1, 64)
}

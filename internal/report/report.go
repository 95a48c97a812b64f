// Package report shapes ledger visits into the customer activity report.
//
// Times are rounded to two decimals here and nowhere else, using
// round-half-to-even on the float64 value of the seconds.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"countertime/internal/models"
	"countertime/internal/occupancy"
)

// Columns is the report header, in order.
var Columns = []string{"CustomerID", "Counter", "EntryTime(s)", "ExitTime(s)", "Duration(s)"}

// Filename is the name offered for CSV downloads.
const Filename = "customer_activity_report.csv"

// EmptyMessage is shown when a run produced no visits.
const EmptyMessage = "No significant customer activity was logged."

// Row is one report line.
type Row struct {
	CustomerID int     `json:"CustomerID"`
	Counter    string  `json:"Counter"`
	EntryTime  float64 `json:"EntryTime(s)"`
	ExitTime   float64 `json:"ExitTime(s)"`
	Duration   float64 `json:"Duration(s)"`
}

// Round2 rounds seconds to two decimals, half to even.
func Round2(seconds float64) float64 {
	return math.RoundToEven(seconds*100) / 100
}

// Seconds converts a duration to rounded report seconds.
func Seconds(d time.Duration) float64 {
	return Round2(d.Seconds())
}

// NewRow converts a closed visit. Duration is rounded from the exact value.
func NewRow(v occupancy.ClosedVisit) Row {
	return Row{
		CustomerID: v.TrackID,
		Counter:    v.Zone,
		EntryTime:  Seconds(v.EntryTime),
		ExitTime:   Seconds(v.ExitTime),
		Duration:   Seconds(v.Duration),
	}
}

// Rows converts visits and orders them by customer, then entry time.
func Rows(visits []occupancy.ClosedVisit) []Row {
	sorted := make([]occupancy.ClosedVisit, len(visits))
	copy(sorted, visits)
	occupancy.SortVisits(sorted)

	rows := make([]Row, 0, len(sorted))
	for _, v := range sorted {
		rows = append(rows, NewRow(v))
	}
	return rows
}

// FromStored converts persisted visits, keeping their order.
func FromStored(visits []models.Visit) []Row {
	rows := make([]Row, 0, len(visits))
	for _, v := range visits {
		rows = append(rows, Row{
			CustomerID: v.CustomerID,
			Counter:    v.Counter,
			EntryTime:  Round2(v.EntryTime),
			ExitTime:   Round2(v.ExitTime),
			Duration:   Round2(v.Duration),
		})
	}
	return rows
}

// FromLedger builds the report for everything in the ledger so far.
func FromLedger(l *occupancy.Ledger) []Row {
	return Rows(l.Snapshot())
}

func (r Row) record() []string {
	return []string{
		strconv.Itoa(r.CustomerID),
		r.Counter,
		formatSeconds(r.EntryTime),
		formatSeconds(r.ExitTime),
		formatSeconds(r.Duration),
	}
}

// formatSeconds writes the shortest form with at least one decimal, so whole
// seconds read 10.0 as pandas wrote them.
func formatSeconds(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// WriteCSV writes the header and rows as CSV.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return fmt.Errorf("failed to write row for customer %d: %w", r.CustomerID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable prints rows as an aligned text table with a row index.
func WriteTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "\t")
	for _, c := range Columns {
		fmt.Fprintf(tw, "%s\t", c)
	}
	fmt.Fprintln(tw)
	for i, r := range rows {
		fmt.Fprintf(tw, "%d\t", i)
		for _, f := range r.record() {
			fmt.Fprintf(tw, "%s\t", f)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

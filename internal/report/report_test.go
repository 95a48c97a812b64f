package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"countertime/internal/models"
	"countertime/internal/occupancy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2_HalfEven(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{10.0, 10},
		{12.6, 12.6},
		{2.125, 2.12},
		{2.375, 2.38},
		{0.5, 0.5},
		{7.3049, 7.3},
		{1.999, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func visit(id int, zone string, entry, exit time.Duration) occupancy.ClosedVisit {
	return occupancy.ClosedVisit{TrackID: id, Zone: zone, EntryTime: entry, ExitTime: exit, Duration: exit - entry}
}

func TestRows_SortedAndRounded(t *testing.T) {
	visits := []occupancy.ClosedVisit{
		visit(5, "Counter 1", 20*time.Second, 25*time.Second),
		visit(3, "Counter 2", 5*time.Second, 7300*time.Millisecond),
		visit(5, "Counter 1", 10*time.Second, 12600*time.Millisecond),
	}

	rows := Rows(visits)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{CustomerID: 3, Counter: "Counter 2", EntryTime: 5, ExitTime: 7.3, Duration: 2.3}, rows[0])
	assert.Equal(t, Row{CustomerID: 5, Counter: "Counter 1", EntryTime: 10, ExitTime: 12.6, Duration: 2.6}, rows[1])
	assert.Equal(t, 20.0, rows[2].EntryTime)

	// Input order is left alone.
	assert.Equal(t, 20*time.Second, visits[0].EntryTime)
}

func TestNewRow_DurationFromExactValue(t *testing.T) {
	v := visit(1, "A", 1004*time.Millisecond, 3009*time.Millisecond)
	r := NewRow(v)
	assert.Equal(t, 1.0, r.EntryTime)
	assert.Equal(t, 3.01, r.ExitTime)
	assert.Equal(t, 2.0, r.Duration, "2.005 rounds to even")
}

func TestWriteCSV(t *testing.T) {
	rows := []Row{
		{CustomerID: 5, Counter: "Counter 1", EntryTime: 10, ExitTime: 12.6, Duration: 2.6},
		{CustomerID: 9, Counter: "Counter, East", EntryTime: 1.25, ExitTime: 4, Duration: 2.75},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	want := "CustomerID,Counter,EntryTime(s),ExitTime(s),Duration(s)\n" +
		"5,Counter 1,10.0,12.6,2.6\n" +
		"9,\"Counter, East\",1.25,4.0,2.75\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatSeconds(t *testing.T) {
	cases := map[float64]string{0: "0.0", 10: "10.0", 2.6: "2.6", 2.25: "2.25", 123.45: "123.45"}
	for v, want := range cases {
		assert.Equal(t, want, formatSeconds(v))
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "CustomerID,Counter,EntryTime(s),ExitTime(s),Duration(s)\n", buf.String())
}

func TestRowJSON(t *testing.T) {
	data, err := json.Marshal(Row{CustomerID: 5, Counter: "Counter 1", EntryTime: 10, ExitTime: 12.6, Duration: 2.6})
	require.NoError(t, err)
	assert.JSONEq(t, `{"CustomerID":5,"Counter":"Counter 1","EntryTime(s)":10,"ExitTime(s)":12.6,"Duration(s)":2.6}`, string(data))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, []Row{{CustomerID: 5, Counter: "Counter 1", EntryTime: 10, ExitTime: 12.6, Duration: 2.6}}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "CustomerID")
	assert.Contains(t, lines[0], "Duration(s)")
	assert.Contains(t, lines[1], "Counter 1")
	assert.Contains(t, lines[1], "12.6")
}

func TestFromLedger(t *testing.T) {
	l := occupancy.NewLedger()
	l.Append(visit(2, "B", 3*time.Second, 9*time.Second))
	l.Append(visit(1, "A", 4*time.Second, 6*time.Second))

	rows := FromLedger(l)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].CustomerID)
}

func TestSummarize(t *testing.T) {
	rows := []Row{
		{CustomerID: 1, Counter: "Counter 1", Duration: 2},
		{CustomerID: 2, Counter: "Counter 1", Duration: 3},
		{CustomerID: 3, Counter: "Elsewhere", Duration: 1.5},
	}

	got := Summarize(rows, []string{"Counter 1", "Counter 2"})
	require.Len(t, got, 3)
	assert.Equal(t, CounterSummary{Counter: "Counter 1", Visits: 2, TotalSeconds: 5, AverageSecond: 2.5}, got[0])
	assert.Equal(t, CounterSummary{Counter: "Counter 2"}, got[1])
	assert.Equal(t, "Elsewhere", got[2].Counter)
}

func TestRenderChart(t *testing.T) {
	var buf bytes.Buffer
	err := RenderChart(&buf, "run abc", []CounterSummary{{Counter: "Counter 1", Visits: 2, AverageSecond: 2.5}})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Counter dwell time")
	assert.Contains(t, html, "Counter 1")
}

func TestFromStored(t *testing.T) {
	rows := FromStored([]models.Visit{
		{CustomerID: 2, Counter: "Counter 3", EntryTime: 4.004, ExitTime: 9.126, Duration: 5.122},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, Row{CustomerID: 2, Counter: "Counter 3", EntryTime: 4, ExitTime: 9.13, Duration: 5.12}, rows[0])
	assert.Empty(t, FromStored(nil))
}

package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	ordersPath := filepath.Join(dir, "orders.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, ordersPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, [][]string{tradeHeader}, readCSV(t, tradesPath))
	assert.Equal(t, [][]string{orderHeader}, readCSV(t, ordersPath))
	assert.Equal(t, [][]string{equityHeader}, readCSV(t, equityPath))
}

func TestCSVJournalRecordTrade(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")

	j, err := NewCSV(tradesPath, "", "")
	require.NoError(t, err)

	open := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	closeT := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordTrade(TradeRecord{
		RunID:      "run-1",
		TradeID:    1,
		Instrument: "ORCL",
		Side:       "long",
		Size:       10,
		EntryPrice: 50,
		ExitPrice:  55.5,
		OpenBar:    3,
		CloseBar:   8,
		OpenTime:   open,
		CloseTime:  closeT,
		GrossPL:    55,
		Commission: 1.055,
		NetPL:      53.945,
	}))
	// skipped tables accept rows without error
	require.NoError(t, j.RecordOrder(OrderRecord{OrderID: 1}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Bar: 1}))
	require.NoError(t, j.Close())

	rows := readCSV(t, tradesPath)
	require.Len(t, rows, 2)
	row := rows[1]
	assert.Equal(t, []string{
		"run-1", "1", "ORCL", "long", "10.000000", "50.000000", "55.500000",
		"3", "8", "2024-01-02T00:00:00Z", "2024-01-09T00:00:00Z",
		"55.000000", "1.055000", "53.945000",
	}, row)
}

func TestCSVJournalRecordOrderAndEquity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ordersPath := filepath.Join(dir, "orders.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV("", ordersPath, equityPath)
	require.NoError(t, err)

	ts := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordOrder(OrderRecord{
		RunID: "r", OrderID: 7, Instrument: "ORCL", Side: "buy", Status: "Margin",
		Size: 10, CreatedBar: 2, Bar: 3, Time: ts, Reason: "insufficient cash",
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		RunID: "r", Bar: 3, Time: ts, Cash: 100, Value: 100,
	}))
	require.NoError(t, j.Close())

	orders := readCSV(t, ordersPath)
	require.Len(t, orders, 2)
	assert.Equal(t, "7", orders[1][1])
	assert.Equal(t, "Margin", orders[1][4])
	assert.Equal(t, "insufficient cash", orders[1][12])

	equity := readCSV(t, equityPath)
	require.Len(t, equity, 2)
	assert.Equal(t, []string{"r", "3", "2024-02-03T00:00:00Z", "100.000000", "100.000000", "0.000000"}, equity[1])
}

func TestCSVJournalBadPath(t *testing.T) {
	t.Parallel()

	_, err := NewCSV(filepath.Join(t.TempDir(), "missing", "trades.csv"), "", "")
	assert.Error(t, err)
}

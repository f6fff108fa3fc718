package backtest

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVUnixSeconds(t *testing.T) {
	data := strings.Join([]string{
		"timestamp,symbol,open,high,low,close,volume",
		"1767225600,btcusdt,100,105,99,104,12.5",
		"1767229200,btcusdt,104,108,103,107,9.1",
	}, "\n")

	snaps, err := parseCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, "BTCUSDT", snaps[0].Symbol)
	assert.Equal(t, 104.0, snaps[0].Price)
	assert.True(t, snaps[1].At.After(snaps[0].At))
	assert.Len(t, snaps[0].Candles, 1)
	assert.Len(t, snaps[1].Candles, 2, "each snapshot sees the bars up to itself")
	assert.Contains(t, snaps[1].Features, "close")
}

func TestParseCSVRFC3339(t *testing.T) {
	data := strings.Join([]string{
		"timestamp,symbol,open,high,low,close,volume",
		"2026-01-01T00:00:00Z,ETHUSDT,200,210,195,205,3",
	}, "\n")

	snaps, err := parseCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2026, snaps[0].At.Year())
}

func TestParseCSVHeaderReordered(t *testing.T) {
	data := strings.Join([]string{
		"symbol,close,low,high,open,timestamp,volume",
		"BTCUSDT,104,99,105,100,1767225600,1",
	}, "\n")

	snaps, err := parseCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 104.0, snaps[0].Price)
}

func TestParseCSVErrors(t *testing.T) {
	_, err := parseCSV(strings.NewReader("timestamp,open,high,low,close\n"))
	assert.Error(t, err, "missing symbol column")

	_, err = parseCSV(strings.NewReader("timestamp,symbol,open,high,low,close,volume\n"))
	assert.Error(t, err, "no data rows")

	_, err = parseCSV(strings.NewReader(
		"timestamp,symbol,open,high,low,close,volume\nnot-a-time,BTCUSDT,1,1,1,1,1\n"))
	assert.Error(t, err, "bad timestamp")
}

func TestParseCSVWindowBound(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("timestamp,symbol,open,high,low,close,volume\n")
	base := int64(1767225600)
	for i := 0; i < historyWindow+10; i++ {
		sb.WriteString(strings.Join([]string{
			strconv.FormatInt(base+int64(i)*60, 10), "BTCUSDT", "100", "101", "99", "100", "1",
		}, ","))
		sb.WriteString("\n")
	}

	snaps, err := parseCSV(strings.NewReader(sb.String()))
	require.NoError(t, err)
	last := snaps[len(snaps)-1]
	assert.Len(t, last.Candles, historyWindow)
}

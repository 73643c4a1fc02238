package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

func TestRenderStatus(t *testing.T) {
	pools := []domain.Pool{
		{ID: "0xb", Metadata: domain.PoolMetadata{Name: "Bravo"}},
		{ID: "0xa", Metadata: domain.PoolMetadata{Name: "Alpha"}},
	}
	states := map[string]domain.PoolState{
		"0xa": {
			PoolID:     "0xa",
			Reserve:    math.NewIntWithDecimal(250, domain.AmountDecimals),
			MaxReserve: math.NewIntWithDecimal(1000, domain.AmountDecimals),
			Epoch:      domain.EpochSignals{CurrentEpoch: 12},
			Capacity: domain.Capacity{
				MaxPoolSize: math.NewIntWithDecimal(3500, domain.AmountDecimals),
				Total:       math.NewIntWithDecimal(100, domain.AmountDecimals),
			},
		},
	}
	failed := map[string]error{"0xb": errors.New("missing field")}

	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, pools, states, failed, time.Unix(0, 0)))

	out := buf.String()
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "250")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "missing field")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Alpha")), bytes.Index(buf.Bytes(), []byte("Bravo")))

	cells := rowCells(out, "Alpha")
	require.Len(t, cells, 8)
	assert.Equal(t, "12", cells[1])
	assert.Equal(t, "250", cells[3])
	assert.Equal(t, "1000", cells[4])
	assert.Equal(t, "100", cells[7])
	assert.NotContains(t, out, "3500")
}

func TestRenderStatusWithoutCapacity(t *testing.T) {
	pools := []domain.Pool{{ID: "0xa", Metadata: domain.PoolMetadata{Name: "Alpha"}}}
	states := map[string]domain.PoolState{"0xa": {PoolID: "0xa"}}

	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, pools, states, nil, time.Unix(0, 0)))

	cells := rowCells(buf.String(), "Alpha")
	require.Len(t, cells, 8)
	assert.Equal(t, "-", cells[7])
}

// rowCells returns the trimmed cells of the first table row containing name.
func rowCells(out, name string) []string {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, name) {
			continue
		}
		line = strings.ReplaceAll(line, "│", "|")
		var cells []string
		for _, c := range strings.Split(strings.Trim(strings.TrimSpace(line), "|"), "|") {
			cells = append(cells, strings.TrimSpace(c))
		}
		return cells
	}
	return nil
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger := newLogger("verbose")
	assert.False(t, logger.Enabled(t.Context(), -4))
	assert.True(t, newLogger("debug").Enabled(t.Context(), -4))
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "status", "encrypt-key"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

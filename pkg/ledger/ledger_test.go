package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLedger(t *testing.T) *Ledger {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "cost.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	l, err := New(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return l
}

func TestRecordReturnsCost(t *testing.T) {
	l := createTestLedger(t)

	// 1000 input + 1000 output tokens of gpt-4o: 0.005 + 0.015
	cost, err := l.Record("orchestrator", "gpt-4o", 1000, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.020, cost, 1e-9)
}

func TestRecordUnknownModelUsesDefaultPrice(t *testing.T) {
	l := createTestLedger(t)

	cost, err := l.Record("orchestrator", "some-future-model", 1000, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.001+0.002, cost, 1e-9)
}

func TestDailyTotalAdditivity(t *testing.T) {
	l := createTestLedger(t)

	var sum float64
	for i := 0; i < 5; i++ {
		cost, err := l.Record("orchestrator", "gpt-4o-mini", 500, 200)
		require.NoError(t, err)
		sum += cost
	}

	total, err := l.DailyTotal()
	require.NoError(t, err)
	assert.InDelta(t, sum, total, 1e-9)
}

func TestMonthlyTotalIncludesToday(t *testing.T) {
	l := createTestLedger(t)

	cost, err := l.Record("orchestrator", "gpt-4o", 2000, 1000)
	require.NoError(t, err)

	monthly, err := l.MonthlyTotal()
	require.NoError(t, err)
	assert.InDelta(t, cost, monthly, 1e-9)
}

func TestTotalsEmptyLedger(t *testing.T) {
	l := createTestLedger(t)

	daily, err := l.DailyTotal()
	require.NoError(t, err)
	assert.Zero(t, daily)

	monthly, err := l.MonthlyTotal()
	require.NoError(t, err)
	assert.Zero(t, monthly)
}

func TestPriceFor(t *testing.T) {
	assert.Equal(t, 0.005, PriceFor("gpt-4o").Input)
	assert.Equal(t, defaultPrice, PriceFor("unknown-model"))
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 1},
		{"ab", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{"aaaaaaaaaaaaaaaaaaaa", 5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.text), "text %q", tt.text)
	}
}

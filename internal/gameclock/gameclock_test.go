package gameclock

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chukwukap/waffles/internal/models"
)

var testStart = time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)

func testConfig(durations []int, rounds []int, breakSec int) *models.GameConfig {
	cfg := &models.GameConfig{
		ID:            uuid.New(),
		RoundBreakSec: breakSec,
		StartsAt:      testStart,
	}
	for i, d := range durations {
		round := 0
		if rounds != nil {
			round = rounds[i]
		}
		cfg.Questions = append(cfg.Questions, models.Question{
			ID:            uuid.New(),
			GameID:        cfg.ID,
			Index:         i,
			RoundIndex:    round,
			DurationSec:   d,
			CorrectOption: 0,
			BasePoints:    1000,
		})
	}
	return cfg
}

func TestPhaseAt_ThreeQuestionsNoBreaks(t *testing.T) {
	cfg := testConfig([]int{10, 10, 10}, nil, 0)

	assert.Equal(t, Phase{Kind: PhaseScheduled}, PhaseAt(cfg, testStart.Add(-time.Second)))
	assert.Equal(t, Phase{Kind: PhaseQuestion, Index: 0}, PhaseAt(cfg, testStart))
	assert.Equal(t, Phase{Kind: PhaseQuestion, Index: 0}, PhaseAt(cfg, testStart.Add(5*time.Second)))
	assert.Equal(t, 5, SecondsRemaining(cfg, testStart.Add(5*time.Second)))
	assert.Equal(t, Phase{Kind: PhaseQuestion, Index: 1}, PhaseAt(cfg, testStart.Add(10*time.Second)))
	assert.Equal(t, Phase{Kind: PhaseQuestion, Index: 2}, PhaseAt(cfg, testStart.Add(20*time.Second)))
	assert.Equal(t, Phase{Kind: PhaseEnded}, PhaseAt(cfg, testStart.Add(30*time.Second)))
}

func TestPhaseAt_RoundBreaks(t *testing.T) {
	// Two rounds of two questions with a 15s break between rounds.
	cfg := testConfig([]int{10, 10, 10, 10}, []int{0, 0, 1, 1}, 15)

	assert.Equal(t, Phase{Kind: PhaseQuestion, Index: 1}, PhaseAt(cfg, testStart.Add(15*time.Second)))
	assert.Equal(t, Phase{Kind: PhaseBreak, Index: 1}, PhaseAt(cfg, testStart.Add(20*time.Second)))
	assert.Equal(t, Phase{Kind: PhaseBreak, Index: 1}, PhaseAt(cfg, testStart.Add(34*time.Second)))
	assert.Equal(t, Phase{Kind: PhaseQuestion, Index: 2}, PhaseAt(cfg, testStart.Add(35*time.Second)))
	assert.Equal(t, Phase{Kind: PhaseEnded}, PhaseAt(cfg, testStart.Add(55*time.Second)))

	start, end := QuestionWindow(cfg, 2)
	assert.Equal(t, testStart.Add(35*time.Second), start)
	assert.Equal(t, testStart.Add(45*time.Second), end)
}

func TestPhaseAt_ZeroQuestionsIsEnded(t *testing.T) {
	cfg := testConfig(nil, nil, 0)
	assert.Equal(t, Phase{Kind: PhaseEnded}, PhaseAt(cfg, testStart.Add(-time.Hour)))
	assert.Equal(t, Phase{Kind: PhaseEnded}, PhaseAt(cfg, testStart.Add(time.Hour)))
}

func TestPhaseAt_EndsAtCutsTimelineShort(t *testing.T) {
	cfg := testConfig([]int{10, 10}, nil, 0)
	cfg.EndsAt = testStart.Add(20 * time.Second)
	assert.Equal(t, Phase{Kind: PhaseQuestion, Index: 1}, PhaseAt(cfg, testStart.Add(19*time.Second)))
	assert.Equal(t, Phase{Kind: PhaseEnded}, PhaseAt(cfg, testStart.Add(20*time.Second)))
}

func TestSecondsRemaining_CeilsPartialSeconds(t *testing.T) {
	cfg := testConfig([]int{10}, nil, 0)

	// 100ms into the window: 9900ms remain, display must read 10.
	assert.Equal(t, 10, SecondsRemaining(cfg, testStart.Add(100*time.Millisecond)))
	// 9.5s in: 500ms remain, display reads 1 while the window is still open.
	assert.Equal(t, 1, SecondsRemaining(cfg, testStart.Add(9500*time.Millisecond)))
	assert.Equal(t, 0, SecondsRemaining(cfg, testStart.Add(10*time.Second)))
}

// phaseOrdinal maps a phase to its position in the game sequence so
// monotonicity can be compared.
func phaseOrdinal(cfg *models.GameConfig, p Phase) int {
	switch p.Kind {
	case PhaseScheduled:
		return 0
	case PhaseQuestion:
		return 1 + 2*p.Index
	case PhaseBreak:
		return 2 + 2*p.Index
	default:
		return 1 + 2*len(cfg.Questions)
	}
}

func TestPhaseAt_MonotonicOverTimeline(t *testing.T) {
	cfg := testConfig([]int{7, 13, 5, 11}, []int{0, 0, 1, 2}, 9)

	last := -1
	for ms := int64(-2000); ms < 90_000; ms += 137 {
		now := testStart.Add(time.Duration(ms) * time.Millisecond)
		ord := phaseOrdinal(cfg, PhaseAt(cfg, now))
		require.GreaterOrEqual(t, ord, last, "phase regressed at offset %dms", ms)
		last = ord
	}
}

func TestNextBoundary(t *testing.T) {
	cfg := testConfig([]int{10, 10}, []int{0, 1}, 5)

	b, ok := NextBoundary(cfg, testStart.Add(-3*time.Second))
	require.True(t, ok)
	assert.Equal(t, testStart, b)

	b, ok = NextBoundary(cfg, testStart.Add(4*time.Second))
	require.True(t, ok)
	assert.Equal(t, testStart.Add(10*time.Second), b)

	b, ok = NextBoundary(cfg, testStart.Add(12*time.Second))
	require.True(t, ok)
	assert.Equal(t, testStart.Add(15*time.Second), b)

	_, ok = NextBoundary(cfg, testStart.Add(time.Hour))
	assert.False(t, ok)
}

func TestValidateConfig(t *testing.T) {
	valid := testConfig([]int{10, 10}, nil, 0)
	require.NoError(t, ValidateConfig(valid))

	var cfgErr *ConfigurationError

	negative := testConfig([]int{10, -5}, nil, 0)
	err := ValidateConfig(negative)
	require.ErrorAs(t, err, &cfgErr)

	badIndex := testConfig([]int{10, 10}, nil, 0)
	badIndex.Questions[1].Index = 5
	require.ErrorAs(t, ValidateConfig(badIndex), &cfgErr)

	regressingRound := testConfig([]int{10, 10}, []int{1, 0}, 5)
	require.ErrorAs(t, ValidateConfig(regressingRound), &cfgErr)

	shortEnd := testConfig([]int{10, 10}, nil, 0)
	shortEnd.EndsAt = testStart.Add(5 * time.Second)
	require.ErrorAs(t, ValidateConfig(shortEnd), &cfgErr)
}

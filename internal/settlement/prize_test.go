package settlement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrizeSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prizes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  - rank: 1
    percent: 60
  - rank: 2
    percent: 25
  - rank: 3
    percent: 15
`), 0o644))

	schedule, err := LoadPrizeSchedule(path)
	require.NoError(t, err)
	require.Len(t, schedule.Tiers, 3)
	assert.Equal(t, int64(600), schedule.PrizeFor(1, 1_000).IntPart())
	assert.Equal(t, int64(250), schedule.PrizeFor(2, 1_000).IntPart())
	assert.Equal(t, int64(150), schedule.PrizeFor(3, 1_000).IntPart())
	assert.True(t, schedule.PrizeFor(4, 1_000).IsZero())
}

func TestPrizeForRoundsDown(t *testing.T) {
	schedule := &PrizeSchedule{Tiers: []PrizeTier{{Rank: 1, Percent: 33.33}}}
	require.NoError(t, schedule.Validate())

	// 33.33% of 1000 is 333.3; the fraction stays in the pot.
	assert.Equal(t, int64(333), schedule.PrizeFor(1, 1_000).IntPart())
}

func TestValidateRejectsBadSchedules(t *testing.T) {
	cases := map[string]*PrizeSchedule{
		"empty":               {},
		"rank gap":            {Tiers: []PrizeTier{{Rank: 1, Percent: 50}, {Rank: 3, Percent: 50}}},
		"zero percent":        {Tiers: []PrizeTier{{Rank: 1, Percent: 0}}},
		"over one hundred":    {Tiers: []PrizeTier{{Rank: 1, Percent: 70}, {Rank: 2, Percent: 40}}},
		"does not start at 1": {Tiers: []PrizeTier{{Rank: 2, Percent: 50}}},
	}
	for name, schedule := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, schedule.Validate())
		})
	}
}

func TestDefaultPrizeScheduleIsValid(t *testing.T) {
	require.NoError(t, DefaultPrizeSchedule().Validate())
}

package settlement

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PrizeTier maps a final rank to its share of the pot. Percent is parsed as
// a float for YAML's sake and converted to decimal before any pot math.
type PrizeTier struct {
	Rank    int     `yaml:"rank"`
	Percent float64 `yaml:"percent"`
}

// PrizeSchedule describes how the pot splits across the top ranks. Ranks
// beyond the last tier win nothing.
type PrizeSchedule struct {
	Tiers []PrizeTier `yaml:"tiers"`
}

// LoadPrizeSchedule reads and validates a schedule from a YAML file.
func LoadPrizeSchedule(path string) (*PrizeSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prize schedule: %w", err)
	}
	var schedule PrizeSchedule
	if err := yaml.Unmarshal(data, &schedule); err != nil {
		return nil, fmt.Errorf("parse prize schedule: %w", err)
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// DefaultPrizeSchedule is a 50/30/20 split across the top three ranks.
func DefaultPrizeSchedule() *PrizeSchedule {
	return &PrizeSchedule{Tiers: []PrizeTier{
		{Rank: 1, Percent: 50},
		{Rank: 2, Percent: 30},
		{Rank: 3, Percent: 20},
	}}
}

// Validate checks the schedule is payable: positive shares, unique
// consecutive ranks from 1, and a total of at most 100 percent.
func (s *PrizeSchedule) Validate() error {
	if len(s.Tiers) == 0 {
		return errors.New("prize schedule has no tiers")
	}
	tiers := make([]PrizeTier, len(s.Tiers))
	copy(tiers, s.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Rank < tiers[j].Rank })

	total := decimal.Zero
	for i, tier := range tiers {
		if tier.Rank != i+1 {
			return fmt.Errorf("prize schedule ranks must run 1..%d without gaps, got rank %d", len(tiers), tier.Rank)
		}
		if tier.Percent <= 0 {
			return fmt.Errorf("prize tier for rank %d has non-positive percent", tier.Rank)
		}
		total = total.Add(decimal.NewFromFloat(tier.Percent))
	}
	if total.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("prize schedule allocates %s%% of the pot", total)
	}
	return nil
}

// PrizeFor returns the payout for a rank in token minor units, rounded down
// so the schedule can never over-allocate the pot.
func (s *PrizeSchedule) PrizeFor(rank int, potMinorUnits int64) decimal.Decimal {
	for _, tier := range s.Tiers {
		if tier.Rank == rank {
			return decimal.NewFromInt(potMinorUnits).
				Mul(decimal.NewFromFloat(tier.Percent)).
				Div(decimal.NewFromInt(100)).
				Floor()
		}
	}
	return decimal.Zero
}

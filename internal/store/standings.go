package store

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/DoyleJ11/derby-console/internal/models"
)

// rankStandings totals the recorded times of every non-bye racer. Racers
// with no recorded heats rank on a zero total.
func rankStandings(racers []models.Racer, results []models.RaceResult) []models.Standing {
	byCar := make(map[int]*models.Standing, len(racers))
	out := make([]models.Standing, 0, len(racers))
	for _, r := range racers {
		if r.IsBye() {
			continue
		}
		out = append(out, models.Standing{CarNumber: r.CarNumber, RacingClassID: r.RacingClassID, Total: decimal.Zero})
	}
	for i := range out {
		byCar[out[i].CarNumber] = &out[i]
	}
	for _, rr := range results {
		s, ok := byCar[rr.CarNumber]
		if !ok || !rr.Time.Valid {
			continue
		}
		s.Heats++
		s.Total = s.Total.Add(rr.Time.Decimal)
	}

	slices.SortStableFunc(out, func(a, b models.Standing) int {
		if c := cmp.Compare(a.RacingClassID, b.RacingClassID); c != 0 {
			return c
		}
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.CarNumber, b.CarNumber)
	})
	return out
}

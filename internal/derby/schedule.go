package derby

import (
	"fmt"

	"github.com/DoyleJ11/derby-console/internal/models"
)

// RoundPlan is everything needed to lay out one round.
type RoundPlan struct {
	Round         int
	FirstRace     int
	LanesEnabled  int
	HeatsPerRound int
	Byes          []models.Racer
	// Standings are non-bye racers, best standing first.
	Standings []models.Racer
}

// BuildLineup assigns every lane of every heat in the round. Byes stay on
// their pinned slots; real racers are drawn from one standings pointer that
// runs across the whole round, rotated within each heat so the same rank
// does not keep the same lane from round to round.
func BuildLineup(p RoundPlan) ([]models.RaceResult, error) {
	if p.LanesEnabled < 1 || p.HeatsPerRound < 1 {
		return nil, fmt.Errorf("%w: %d lanes, %d heats per round", ErrScheduling, p.LanesEnabled, p.HeatsPerRound)
	}

	type slot struct{ heat, lane int }
	byeAt := make(map[slot]models.Racer, len(p.Byes))
	byesInHeat := make(map[int]int, p.HeatsPerRound)
	for _, b := range p.Byes {
		if b.Bye == nil {
			return nil, fmt.Errorf("%w: car %d has no bye slot", ErrScheduling, b.CarNumber)
		}
		byeAt[slot{b.Bye.Heat, b.Bye.Lane}] = b
		byesInHeat[b.Bye.Heat]++
	}

	lineup := make([]models.RaceResult, 0, p.HeatsPerRound*p.LanesEnabled)
	race := p.FirstRace
	racerIdx, byeIdx := 0, 0

	for heat := 1; heat <= p.HeatsPerRound; heat++ {
		usedLanes := p.LanesEnabled - byesInHeat[heat]
		if usedLanes < 1 {
			return nil, fmt.Errorf("%w: heat %d holds only byes", ErrScheduling, heat)
		}
		startingLane := ((p.Round - 1) % usedLanes) + 1

		for lane := 1; lane <= p.LanesEnabled; lane++ {
			if b, ok := byeAt[slot{heat, lane}]; ok {
				lineup = append(lineup, newResult(race, p.Round, heat, lane, b))
				byeIdx++
				continue
			}
			if racerIdx >= len(p.Standings) {
				return nil, fmt.Errorf("%w: ran out of racers at heat %d lane %d", ErrScheduling, heat, lane)
			}
			offsetLane := (((lane + startingLane) - 1) % usedLanes) + 1
			lineup = append(lineup, newResult(race, p.Round, heat, offsetLane, p.Standings[racerIdx]))
			racerIdx++
		}
		race++
	}

	if racerIdx != len(p.Standings) || byeIdx != len(p.Byes) || len(lineup) != p.HeatsPerRound*p.LanesEnabled {
		return nil, fmt.Errorf("%w: placed %d of %d racers and %d of %d byes; check heats per round and enabled lanes",
			ErrScheduling, racerIdx, len(p.Standings), byeIdx, len(p.Byes))
	}
	return lineup, nil
}

func newResult(race, round, heat, lane int, r models.Racer) models.RaceResult {
	return models.RaceResult{
		Race:      race,
		Round:     round,
		Heat:      heat,
		Lane:      lane,
		CarNumber: r.CarNumber,
		Racer:     r,
	}
}

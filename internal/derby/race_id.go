package derby

import "fmt"

// RaceID locates a race number within the round/heat grid.
type RaceID struct {
	Race  int `json:"race"`
	Round int `json:"round"`
	Heat  int `json:"heat"`
}

// Identify maps a 1-based race counter onto (round, heat). heatsPerRound must be >= 1.
func Identify(race, heatsPerRound int) RaceID {
	return RaceID{
		Race:  race,
		Round: floorDiv(race-1, heatsPerRound) + 1,
		Heat:  floorMod(race-1, heatsPerRound) + 1,
	}
}

// RaceNumber is the inverse of Identify.
func RaceNumber(round, heat, heatsPerRound int) int {
	return (round-1)*heatsPerRound + heat
}

func (id RaceID) String() string {
	return fmt.Sprintf("Race #%d: Round %d, Heat %d", id.Race, id.Round, id.Heat)
}

// floor semantics keep race 0 (just prepared, nothing run) in round 0, heat h.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhasePrepared      Phase = "prepared"
	PhaseRacing        Phase = "racing"
)

// DerivePhase reports the progression state for a race cursor.
func DerivePhase(prepared bool, race int) Phase {
	switch {
	case !prepared:
		return PhaseUninitialized
	case race < 1:
		return PhasePrepared
	default:
		return PhaseRacing
	}
}

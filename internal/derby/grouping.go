package derby

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/DoyleJ11/derby-console/internal/models"
)

// ByeCarNumberBase offsets bye racer car numbers from real ones.
const ByeCarNumberBase = 5550

// ClassGroup is one racing class laid out over a contiguous run of heats.
type ClassGroup struct {
	Class        models.RacingClass
	Racers       []models.Racer
	NumByes      int
	StartingHeat int
	GroupHeats   int
}

// GroupByClass partitions racers (byes excluded) by racing class in class id
// order and pads each class up to a whole number of heats.
func GroupByClass(racers []models.Racer, lanesEnabled int) ([]ClassGroup, error) {
	if lanesEnabled < 1 {
		return nil, fmt.Errorf("%w: lanes enabled must be at least 1, got %d", ErrConfiguration, lanesEnabled)
	}

	sorted := make([]models.Racer, 0, len(racers))
	for _, r := range racers {
		if !r.IsBye() {
			sorted = append(sorted, r)
		}
	}
	slices.SortStableFunc(sorted, compareForGrouping)

	var groups []ClassGroup
	for _, r := range sorted {
		if n := len(groups); n > 0 && groups[n-1].Class.ID == r.RacingClassID {
			groups[n-1].Racers = append(groups[n-1].Racers, r)
			continue
		}
		class := r.RacingClass
		class.ID = r.RacingClassID
		groups = append(groups, ClassGroup{Class: class, Racers: []models.Racer{r}})
	}

	startingHeat := 1
	for i := range groups {
		n := len(groups[i].Racers)
		groups[i].NumByes = ceilDiv(n, lanesEnabled)*lanesEnabled - n
		groups[i].GroupHeats = (n + groups[i].NumByes) / lanesEnabled
		groups[i].StartingHeat = startingHeat
		startingHeat += groups[i].GroupHeats
	}
	return groups, nil
}

// class id, then grade id with ungraded racers last, then car number
func compareForGrouping(a, b models.Racer) int {
	if c := cmp.Compare(a.RacingClassID, b.RacingClassID); c != 0 {
		return c
	}
	switch {
	case a.GradeID == nil && b.GradeID != nil:
		return 1
	case a.GradeID != nil && b.GradeID == nil:
		return -1
	case a.GradeID != nil && b.GradeID != nil:
		if c := cmp.Compare(*a.GradeID, *b.GradeID); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.CarNumber, b.CarNumber)
}

// TotalHeats is the derby-wide heats per round implied by the groups.
func TotalHeats(groups []ClassGroup) int {
	total := 0
	for _, g := range groups {
		total += g.GroupHeats
	}
	return total
}

// PlaceByes pins every group's byes to fixed (heat, lane) slots, filling the
// last lane of each heat in the group before moving one lane inward. Byes
// are numbered from 1 across all groups and wrapped in placeholder racers.
func PlaceByes(groups []ClassGroup, lanesEnabled int) ([]models.Racer, error) {
	var out []models.Racer
	want := 0
	byeNumber := 0
	for _, g := range groups {
		want += g.NumByes
		for i := 0; i < g.NumByes; i++ {
			byeNumber++
			bye := &models.Bye{
				Number: byeNumber,
				Heat:   (i % g.GroupHeats) + g.StartingHeat,
				Lane:   lanesEnabled - (i / g.GroupHeats),
			}
			n := byeNumber
			out = append(out, models.Racer{
				CarNumber:     ByeCarNumberBase + byeNumber,
				Name:          fmt.Sprintf("[BYE] %s #%d", g.Class.Name, byeNumber),
				RacingClassID: g.Class.ID,
				RacingClass:   g.Class,
				ByeNumber:     &n,
				Bye:           bye,
			})
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: placed %d, want %d", ErrConsistency, len(out), want)
	}
	return out, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

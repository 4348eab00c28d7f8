package derby

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/DoyleJ11/derby-console/internal/models"
	"github.com/DoyleJ11/derby-console/internal/store"
)

// Status is the derby metadata and cursor position.
type Status struct {
	Phase         Phase  `json:"phase"`
	Name          string `json:"name"`
	Date          string `json:"date,omitempty"`
	Notes         string `json:"notes,omitempty"`
	LanesEnabled  int    `json:"lanes_enabled"`
	HeatsPerRound int    `json:"heats_per_round"`
	Current       RaceID `json:"current"`
}

// Board is what the display shows: the last finished heat, the heat on the
// track and the heat after it.
type Board struct {
	Status     Status              `json:"status"`
	LastResult []models.RaceResult `json:"last_result"`
	Current    []models.RaceResult `json:"current"`
	OnDeck     []models.RaceResult `json:"on_deck"`
}

// StandingRow is a ranked racer with display fields filled in.
type StandingRow struct {
	Place     int             `json:"place"`
	CarNumber int             `json:"car_number"`
	Name      string          `json:"name"`
	Class     string          `json:"class"`
	Heats     int             `json:"heats"`
	Total     decimal.Decimal `json:"total"`
}

func (d *Derby) Status(ctx context.Context) (Status, error) {
	var st Status
	err := d.store.Transaction(ctx, func(uow store.UnitOfWork) error {
		detail, err := uow.DerbyDetail(ctx)
		if errors.Is(err, store.ErrNotFound) {
			st = Status{Phase: PhaseUninitialized}
			return nil
		}
		if err != nil {
			return err
		}
		st = statusOf(detail)
		return nil
	})
	return st, err
}

func statusOf(detail models.DerbyDetail) Status {
	st := Status{
		Phase:         DerivePhase(true, detail.RaceNumber),
		Name:          detail.Name,
		Notes:         detail.Notes,
		LanesEnabled:  detail.LanesEnabled,
		HeatsPerRound: detail.HeatsPerRound,
		Current:       RaceID{Race: detail.RaceNumber},
	}
	if detail.HeatsPerRound > 0 {
		st.Current = Identify(detail.RaceNumber, detail.HeatsPerRound)
	}
	if detail.Date != nil {
		st.Date = detail.Date.Format("2006-01-02")
	}
	return st
}

// LastResult is the previous race ordered by finish place.
func (d *Derby) LastResult(ctx context.Context) ([]models.RaceResult, error) {
	return d.lineupAt(ctx, -1)
}

func (d *Derby) CurrentHeat(ctx context.Context) ([]models.RaceResult, error) {
	return d.lineupAt(ctx, 0)
}

func (d *Derby) OnDeck(ctx context.Context) ([]models.RaceResult, error) {
	return d.lineupAt(ctx, 1)
}

func (d *Derby) lineupAt(ctx context.Context, offset int) ([]models.RaceResult, error) {
	var out []models.RaceResult
	err := d.store.Transaction(ctx, func(uow store.UnitOfWork) error {
		detail, err := d.detail(ctx, uow)
		if err != nil {
			return err
		}
		out, err = uow.RaceResults(ctx, detail.RaceNumber+offset)
		return err
	})
	if offset < 0 {
		sortByPlace(out)
	}
	return out, err
}

func sortByPlace(results []models.RaceResult) {
	slices.SortStableFunc(results, func(a, b models.RaceResult) int {
		switch {
		case a.Place == nil && b.Place == nil:
			return cmp.Compare(a.Lane, b.Lane)
		case a.Place == nil:
			return 1
		case b.Place == nil:
			return -1
		}
		return cmp.Compare(*a.Place, *b.Place)
	})
}

// Board reads the status and the three display lineups in one snapshot.
// Races without rows are padded with empty lanes.
func (d *Derby) Board(ctx context.Context) (Board, error) {
	var b Board
	err := d.store.Transaction(ctx, func(uow store.UnitOfWork) error {
		detail, err := uow.DerbyDetail(ctx)
		if errors.Is(err, store.ErrNotFound) {
			b = Board{Status: Status{Phase: PhaseUninitialized}}
			return nil
		}
		if err != nil {
			return err
		}
		b.Status = statusOf(detail)
		for i, dst := range []*[]models.RaceResult{&b.LastResult, &b.Current, &b.OnDeck} {
			race := detail.RaceNumber + i - 1
			rows, err := uow.RaceResults(ctx, race)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				rows = emptyLanes(race, detail.LanesEnabled)
			}
			*dst = rows
		}
		sortByPlace(b.LastResult)
		return nil
	})
	return b, err
}

func emptyLanes(race, lanes int) []models.RaceResult {
	out := make([]models.RaceResult, lanes)
	for i := range out {
		out[i] = models.RaceResult{Race: race, Lane: i + 1}
	}
	return out
}

// Standings ranks non-bye racers within their class.
func (d *Derby) Standings(ctx context.Context) ([]StandingRow, error) {
	var rows []StandingRow
	err := d.store.Transaction(ctx, func(uow store.UnitOfWork) error {
		racers, err := uow.Racers(ctx)
		if err != nil {
			return err
		}
		standings, err := uow.Standings(ctx)
		if err != nil {
			return err
		}
		lookup := make(map[int]models.Racer, len(racers))
		for _, r := range racers {
			lookup[r.CarNumber] = r
		}
		place, class := 0, -1
		for _, s := range standings {
			if s.RacingClassID != class {
				place, class = 0, s.RacingClassID
			}
			place++
			r := lookup[s.CarNumber]
			rows = append(rows, StandingRow{
				Place:     place,
				CarNumber: s.CarNumber,
				Name:      r.Name,
				Class:     r.RacingClass.Name,
				Heats:     s.Heats,
				Total:     s.Total,
			})
		}
		return nil
	})
	return rows, err
}

// Package store is the persistence boundary for the derby: a transactional
// unit of work over racers, byes, race results, timer readings and the
// derby detail record.
package store

import (
	"context"
	"errors"

	"github.com/DoyleJ11/derby-console/internal/models"
)

var ErrNotFound = errors.New("record not found")

// Store runs fn inside one all-or-nothing transaction. Changes made through
// the UnitOfWork are visible to other callers only if fn returns nil.
type Store interface {
	Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type UnitOfWork interface {
	// DerbyDetail returns the singleton record, or ErrNotFound before the first prepare.
	DerbyDetail(ctx context.Context) (models.DerbyDetail, error)
	SaveDerbyDetail(ctx context.Context, d models.DerbyDetail) error

	// ClearRaceData deletes all timer readings, race results and byes.
	ClearRaceData(ctx context.Context) error
	// ReplaceRoster swaps racing classes, grades and racers for the given set.
	ReplaceRoster(ctx context.Context, classes []models.RacingClass, grades []models.Grade, racers []models.Racer) error
	// AddByeRacers stores placeholder racers together with their byes.
	AddByeRacers(ctx context.Context, racers []models.Racer) error

	// Racers returns non-bye racers ordered by car number, with class and grade loaded.
	Racers(ctx context.Context) ([]models.Racer, error)
	// ByeRacers returns bye racers ordered by heat then lane.
	ByeRacers(ctx context.Context) ([]models.Racer, error)
	// Standings ranks non-bye racers by class, total recorded time, then car number.
	Standings(ctx context.Context) ([]models.Standing, error)

	RoundScheduled(ctx context.Context, round int) (bool, error)
	AddRaceResults(ctx context.Context, results []models.RaceResult) error
	// RaceResults returns the rows of one race ordered by lane, racers loaded.
	RaceResults(ctx context.Context, race int) ([]models.RaceResult, error)
	SaveRaceResults(ctx context.Context, results []models.RaceResult) error
	DeleteRound(ctx context.Context, round int) error

	AddTimerReading(ctx context.Context, r models.TimerReading) error
}

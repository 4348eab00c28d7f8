package derby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/DoyleJ11/derby-console/internal/models"
	"github.com/DoyleJ11/derby-console/internal/store"
	"github.com/DoyleJ11/derby-console/internal/timer"
)

// DefaultDNFTime is recorded for a lane the timer did not report.
var DefaultDNFTime = decimal.RequireFromString("6.0000")

// Roster is the reference data and racers loaded by Prepare.
type Roster struct {
	Name    string
	Date    *time.Time
	Notes   string
	Classes []models.RacingClass
	Grades  []models.Grade
	Racers  []models.Racer
}

// Derby is the race progression state machine. The race cursor lives on the
// stored DerbyDetail and every operation runs in a single store transaction.
type Derby struct {
	store   store.Store
	log     *zap.Logger
	dnfTime decimal.Decimal
	now     func() time.Time
}

type Option func(*Derby)

func WithDNFTime(t decimal.Decimal) Option { return func(d *Derby) { d.dnfTime = t } }

func WithClock(now func() time.Time) Option { return func(d *Derby) { d.now = now } }

func New(s store.Store, log *zap.Logger, opts ...Option) *Derby {
	d := &Derby{store: s, log: log, dnfTime: DefaultDNFTime, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Prepare wipes all race data, loads the roster, pins the byes and advances
// to race 1, generating the round 1 lineup. heatsPerRound of 0 means derive
// it from the roster.
func (d *Derby) Prepare(ctx context.Context, roster Roster, lanesEnabled, heatsPerRound int) error {
	if lanesEnabled < 1 || lanesEnabled > models.MaxPlaces {
		return fmt.Errorf("%w: lanes enabled must be 1..%d, got %d", ErrConfiguration, models.MaxPlaces, lanesEnabled)
	}
	if err := checkRoster(roster); err != nil {
		return err
	}

	classes := make(map[int]models.RacingClass, len(roster.Classes))
	for _, c := range roster.Classes {
		classes[c.ID] = c
	}
	racers := make([]models.Racer, len(roster.Racers))
	for i, r := range roster.Racers {
		r.RacingClass = classes[r.RacingClassID]
		racers[i] = r
	}

	groups, err := GroupByClass(racers, lanesEnabled)
	if err != nil {
		return err
	}
	derived := TotalHeats(groups)
	if derived == 0 {
		return fmt.Errorf("%w: roster has no racers", ErrConfiguration)
	}
	if heatsPerRound == 0 {
		heatsPerRound = derived
	}
	if heatsPerRound != derived {
		return fmt.Errorf("%w: roster needs %d heats per round at %d lanes, got %d",
			ErrConfiguration, derived, lanesEnabled, heatsPerRound)
	}
	byes, err := PlaceByes(groups, lanesEnabled)
	if err != nil {
		return err
	}

	err = d.store.Transaction(ctx, func(uow store.UnitOfWork) error {
		if err := uow.ClearRaceData(ctx); err != nil {
			return err
		}
		detail := models.DerbyDetail{
			ID:            models.DerbyDetailID,
			Name:          roster.Name,
			Date:          roster.Date,
			Notes:         roster.Notes,
			LanesEnabled:  lanesEnabled,
			HeatsPerRound: heatsPerRound,
			RaceNumber:    0,
		}
		if err := uow.ReplaceRoster(ctx, roster.Classes, roster.Grades, roster.Racers); err != nil {
			return err
		}
		if err := uow.AddByeRacers(ctx, byes); err != nil {
			return err
		}
		_, err := d.advance(ctx, uow, detail)
		return err
	})
	if err != nil {
		return err
	}

	d.log.Info("derby prepared",
		zap.Int("racers", len(roster.Racers)),
		zap.Int("byes", len(byes)),
		zap.Int("lanes", lanesEnabled),
		zap.Int("heats_per_round", heatsPerRound))
	return nil
}

func checkRoster(roster Roster) error {
	classes := make(map[int]bool, len(roster.Classes))
	for _, c := range roster.Classes {
		classes[c.ID] = true
	}
	seen := make(map[int]bool, len(roster.Racers))
	for _, r := range roster.Racers {
		switch {
		case seen[r.CarNumber]:
			return fmt.Errorf("%w: duplicate car number %d", ErrConfiguration, r.CarNumber)
		case r.CarNumber > ByeCarNumberBase:
			return fmt.Errorf("%w: car number %d is reserved for byes", ErrConfiguration, r.CarNumber)
		case !classes[r.RacingClassID]:
			return fmt.Errorf("%w: car %d has unknown racing class %d", ErrConfiguration, r.CarNumber, r.RacingClassID)
		case r.IsBye():
			return fmt.Errorf("%w: car %d is a bye", ErrConfiguration, r.CarNumber)
		}
		seen[r.CarNumber] = true
	}
	return nil
}

// PostTimerReading records one raw timer line against the current race and
// advances to the next race. Lanes the timer did not report are DNF.
func (d *Derby) PostTimerReading(ctx context.Context, raw string) ([]models.RaceResult, error) {
	captured := d.now()
	id, err := ksuid.NewRandomWithTime(captured)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reading id: %w", err)
	}
	reading := models.TimerReading{
		ID:         id.String(),
		CapturedAt: captured,
		Raw:        raw,
		Slots:      timer.Slots(timer.Parse(raw)),
	}

	var timed []models.RaceResult
	var next RaceID
	err = d.store.Transaction(ctx, func(uow store.UnitOfWork) error {
		detail, err := d.detail(ctx, uow)
		if err != nil {
			return err
		}
		if detail.RaceNumber < 1 {
			return ErrNotPrepared
		}
		results, err := uow.RaceResults(ctx, detail.RaceNumber)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("%w: race %d", ErrNoLineup, detail.RaceNumber)
		}
		if err := uow.AddTimerReading(ctx, reading); err != nil {
			return err
		}

		for i := range results {
			results[i].TimerReadingID = &reading.ID
			place, lt, ok := reading.Lane(results[i].Lane)
			if !ok {
				place = len(results)
				lt.Time = d.dnfTime
			}
			results[i].Time = decimal.NewNullDecimal(lt.Time)
			results[i].Place = &place
		}
		if err := uow.SaveRaceResults(ctx, results); err != nil {
			return err
		}
		timed = results

		next, err = d.advance(ctx, uow, detail)
		return err
	})
	if err != nil {
		return nil, err
	}

	d.log.Info("timer reading posted",
		zap.String("reading_id", reading.ID),
		zap.Int("race", next.Race-1),
		zap.Stringer("next", next))
	return timed, nil
}

// ScheduleRound generates the lineup for the round the cursor is in. The
// cursor must be on heat 1 and the round must not have a lineup yet.
func (d *Derby) ScheduleRound(ctx context.Context) error {
	return d.store.Transaction(ctx, func(uow store.UnitOfWork) error {
		detail, err := d.detail(ctx, uow)
		if err != nil {
			return err
		}
		if detail.RaceNumber < 1 {
			return ErrNotPrepared
		}
		return d.scheduleRound(ctx, uow, detail)
	})
}

// RewindOneRace moves the cursor back one race so it can be re-run. Crossing
// back over a round boundary discards the lineup of the round being left.
func (d *Derby) RewindOneRace(ctx context.Context) error {
	var to RaceID
	err := d.store.Transaction(ctx, func(uow store.UnitOfWork) error {
		detail, err := d.detail(ctx, uow)
		if err != nil {
			return err
		}
		if detail.RaceNumber <= 1 {
			return ErrNoPriorRace
		}
		from := Identify(detail.RaceNumber, detail.HeatsPerRound)
		to = Identify(detail.RaceNumber-1, detail.HeatsPerRound)
		detail.RaceNumber = to.Race

		if from.Round != to.Round {
			if err := uow.DeleteRound(ctx, from.Round); err != nil {
				return err
			}
		}

		results, err := uow.RaceResults(ctx, to.Race)
		if err != nil {
			return err
		}
		for i := range results {
			results[i].Reset()
		}
		if err := uow.SaveRaceResults(ctx, results); err != nil {
			return err
		}
		return uow.SaveDerbyDetail(ctx, detail)
	})
	if err != nil {
		return err
	}

	d.log.Info("rewound one race", zap.Stringer("race", to))
	return nil
}

// advance moves the cursor forward one race, generating the next round's
// lineup when the new race opens a round.
func (d *Derby) advance(ctx context.Context, uow store.UnitOfWork, detail models.DerbyDetail) (RaceID, error) {
	detail.RaceNumber++
	if err := uow.SaveDerbyDetail(ctx, detail); err != nil {
		return RaceID{}, err
	}
	id := Identify(detail.RaceNumber, detail.HeatsPerRound)
	if id.Heat == 1 {
		if err := d.scheduleRound(ctx, uow, detail); err != nil {
			return RaceID{}, err
		}
	}
	return id, nil
}

func (d *Derby) scheduleRound(ctx context.Context, uow store.UnitOfWork, detail models.DerbyDetail) error {
	id := Identify(detail.RaceNumber, detail.HeatsPerRound)
	if id.Heat != 1 {
		return fmt.Errorf("%w: rounds are scheduled from heat 1, cursor is at %s", ErrAlreadyScheduled, id)
	}
	scheduled, err := uow.RoundScheduled(ctx, id.Round)
	if err != nil {
		return err
	}
	if scheduled {
		return fmt.Errorf("%w: round %d", ErrAlreadyScheduled, id.Round)
	}

	byes, err := uow.ByeRacers(ctx)
	if err != nil {
		return err
	}
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
	ordered := make([]models.Racer, 0, len(standings))
	for _, s := range standings {
		r, ok := lookup[s.CarNumber]
		if !ok {
			return fmt.Errorf("%w: standings list unknown car %d", ErrScheduling, s.CarNumber)
		}
		ordered = append(ordered, r)
	}
	if len(ordered) != len(racers) {
		return fmt.Errorf("%w: standings rank %d of %d racers", ErrScheduling, len(ordered), len(racers))
	}

	lineup, err := BuildLineup(RoundPlan{
		Round:         id.Round,
		FirstRace:     detail.RaceNumber,
		LanesEnabled:  detail.LanesEnabled,
		HeatsPerRound: detail.HeatsPerRound,
		Byes:          byes,
		Standings:     ordered,
	})
	if err != nil {
		return err
	}
	if err := uow.AddRaceResults(ctx, lineup); err != nil {
		return err
	}

	d.log.Debug("round scheduled", zap.Int("round", id.Round), zap.Int("rows", len(lineup)))
	return nil
}

func (d *Derby) detail(ctx context.Context, uow store.UnitOfWork) (models.DerbyDetail, error) {
	detail, err := uow.DerbyDetail(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return models.DerbyDetail{}, ErrNotPrepared
	}
	if err != nil {
		return models.DerbyDetail{}, err
	}
	if detail.HeatsPerRound < 1 || detail.LanesEnabled < 1 {
		return models.DerbyDetail{}, fmt.Errorf("%w: %d lanes, %d heats per round", ErrConfiguration, detail.LanesEnabled, detail.HeatsPerRound)
	}
	return detail, nil
}

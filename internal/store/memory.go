package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/DoyleJ11/derby-console/internal/models"
)

type memoryState struct {
	detail       *models.DerbyDetail
	classes      map[int]models.RacingClass
	grades       map[int]models.Grade
	racers       map[int]models.Racer
	byes         map[int]models.Bye
	results      []models.RaceResult
	readings     map[string]models.TimerReading
	nextResultID uint
}

func newMemoryState() memoryState {
	return memoryState{
		classes:  map[int]models.RacingClass{},
		grades:   map[int]models.Grade{},
		racers:   map[int]models.Racer{},
		byes:     map[int]models.Bye{},
		readings: map[string]models.TimerReading{},
	}
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		classes:      make(map[int]models.RacingClass, len(s.classes)),
		grades:       make(map[int]models.Grade, len(s.grades)),
		racers:       make(map[int]models.Racer, len(s.racers)),
		byes:         make(map[int]models.Bye, len(s.byes)),
		results:      make([]models.RaceResult, len(s.results)),
		readings:     make(map[string]models.TimerReading, len(s.readings)),
		nextResultID: s.nextResultID,
	}
	if s.detail != nil {
		d := *s.detail
		c.detail = &d
	}
	for k, v := range s.classes {
		c.classes[k] = v
	}
	for k, v := range s.grades {
		c.grades[k] = v
	}
	for k, v := range s.racers {
		c.racers[k] = stripRacer(v)
	}
	for k, v := range s.byes {
		c.byes[k] = v
	}
	for i, v := range s.results {
		c.results[i] = stripResult(v)
	}
	for k, v := range s.readings {
		c.readings[k] = v
	}
	return c
}

// MemoryStore is an in-process Store. Each transaction works on a copy of
// the state that replaces the committed state only on success.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (m *MemoryStore) Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memoryUnit{s: &work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

type memoryUnit struct {
	s *memoryState
}

// stored values never hold association pointers; they are rebuilt on read.
func stripRacer(r models.Racer) models.Racer {
	r.RacingClass = models.RacingClass{}
	r.Grade = nil
	r.Bye = nil
	if r.GradeID != nil {
		id := *r.GradeID
		r.GradeID = &id
	}
	if r.ByeNumber != nil {
		n := *r.ByeNumber
		r.ByeNumber = &n
	}
	return r
}

func stripResult(rr models.RaceResult) models.RaceResult {
	rr.Racer = models.Racer{}
	if rr.Place != nil {
		p := *rr.Place
		rr.Place = &p
	}
	if rr.TimerReadingID != nil {
		id := *rr.TimerReadingID
		rr.TimerReadingID = &id
	}
	return rr
}

func (u *memoryUnit) hydrate(r models.Racer) models.Racer {
	r = stripRacer(r)
	r.RacingClass = u.s.classes[r.RacingClassID]
	if r.GradeID != nil {
		if g, ok := u.s.grades[*r.GradeID]; ok {
			r.Grade = &g
		}
	}
	if r.ByeNumber != nil {
		if b, ok := u.s.byes[*r.ByeNumber]; ok {
			r.Bye = &b
		}
	}
	return r
}

func (u *memoryUnit) DerbyDetail(ctx context.Context) (models.DerbyDetail, error) {
	if u.s.detail == nil {
		return models.DerbyDetail{}, ErrNotFound
	}
	return *u.s.detail, nil
}

func (u *memoryUnit) SaveDerbyDetail(ctx context.Context, d models.DerbyDetail) error {
	d.ID = models.DerbyDetailID
	u.s.detail = &d
	return nil
}

func (u *memoryUnit) ClearRaceData(ctx context.Context) error {
	u.s.readings = map[string]models.TimerReading{}
	u.s.results = nil
	for car, r := range u.s.racers {
		if r.IsBye() {
			delete(u.s.racers, car)
		}
	}
	u.s.byes = map[int]models.Bye{}
	return nil
}

func (u *memoryUnit) ReplaceRoster(ctx context.Context, classes []models.RacingClass, grades []models.Grade, racers []models.Racer) error {
	u.s.classes = make(map[int]models.RacingClass, len(classes))
	for _, c := range classes {
		u.s.classes[c.ID] = c
	}
	u.s.grades = make(map[int]models.Grade, len(grades))
	for _, g := range grades {
		u.s.grades[g.ID] = g
	}
	u.s.racers = make(map[int]models.Racer, len(racers))
	for _, r := range racers {
		u.s.racers[r.CarNumber] = stripRacer(r)
	}
	return nil
}

func (u *memoryUnit) AddByeRacers(ctx context.Context, racers []models.Racer) error {
	for _, r := range racers {
		if r.Bye != nil {
			u.s.byes[r.Bye.Number] = *r.Bye
			n := r.Bye.Number
			r.ByeNumber = &n
		}
		u.s.racers[r.CarNumber] = stripRacer(r)
	}
	return nil
}

func (u *memoryUnit) Racers(ctx context.Context) ([]models.Racer, error) {
	out := make([]models.Racer, 0, len(u.s.racers))
	for _, r := range u.s.racers {
		if !r.IsBye() {
			out = append(out, u.hydrate(r))
		}
	}
	slices.SortFunc(out, func(a, b models.Racer) int { return cmp.Compare(a.CarNumber, b.CarNumber) })
	return out, nil
}

func (u *memoryUnit) ByeRacers(ctx context.Context) ([]models.Racer, error) {
	var out []models.Racer
	for _, r := range u.s.racers {
		if r.IsBye() {
			out = append(out, u.hydrate(r))
		}
	}
	sortByeRacers(out)
	return out, nil
}

func sortByeRacers(racers []models.Racer) {
	slices.SortFunc(racers, func(a, b models.Racer) int {
		if c := cmp.Compare(a.Bye.Heat, b.Bye.Heat); c != 0 {
			return c
		}
		return cmp.Compare(a.Bye.Lane, b.Bye.Lane)
	})
}

func (u *memoryUnit) Standings(ctx context.Context) ([]models.Standing, error) {
	racers, err := u.Racers(ctx)
	if err != nil {
		return nil, err
	}
	return rankStandings(racers, u.s.results), nil
}

func (u *memoryUnit) RoundScheduled(ctx context.Context, round int) (bool, error) {
	for _, rr := range u.s.results {
		if rr.Round == round {
			return true, nil
		}
	}
	return false, nil
}

func (u *memoryUnit) AddRaceResults(ctx context.Context, results []models.RaceResult) error {
	for _, rr := range results {
		u.s.nextResultID++
		rr.ID = u.s.nextResultID
		u.s.results = append(u.s.results, stripResult(rr))
	}
	return nil
}

func (u *memoryUnit) RaceResults(ctx context.Context, race int) ([]models.RaceResult, error) {
	var out []models.RaceResult
	for _, rr := range u.s.results {
		if rr.Race != race {
			continue
		}
		rr = stripResult(rr)
		rr.Racer = u.hydrate(u.s.racers[rr.CarNumber])
		out = append(out, rr)
	}
	slices.SortFunc(out, func(a, b models.RaceResult) int { return cmp.Compare(a.Lane, b.Lane) })
	return out, nil
}

func (u *memoryUnit) SaveRaceResults(ctx context.Context, results []models.RaceResult) error {
	for _, rr := range results {
		i := slices.IndexFunc(u.s.results, func(x models.RaceResult) bool { return x.ID == rr.ID })
		if i < 0 {
			return ErrNotFound
		}
		u.s.results[i] = stripResult(rr)
	}
	return nil
}

func (u *memoryUnit) DeleteRound(ctx context.Context, round int) error {
	u.s.results = slices.DeleteFunc(u.s.results, func(rr models.RaceResult) bool { return rr.Round == round })
	return nil
}

func (u *memoryUnit) AddTimerReading(ctx context.Context, r models.TimerReading) error {
	u.s.readings[r.ID] = r
	return nil
}

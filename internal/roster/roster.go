// Package roster loads a derby bootstrap: a YAML event file naming the
// derby, its lanes, racing classes and grades, plus a CSV file of racers.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/derby-console/internal/derby"
	"github.com/DoyleJ11/derby-console/internal/models"
)

var ErrInvalid = errors.New("invalid roster")

const dateLayout = "2006-01-02"

// Event is the YAML event definition.
type Event struct {
	Name          string               `yaml:"name"`
	Date          string               `yaml:"date"`
	Notes         string               `yaml:"notes"`
	Lanes         int                  `yaml:"lanes"`
	HeatsPerRound int                  `yaml:"heats_per_round"`
	Classes       []models.RacingClass `yaml:"racing_classes"`
	Grades        []models.Grade       `yaml:"grades"`
}

func LoadEvent(r io.Reader) (Event, error) {
	var ev Event
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ev); err != nil {
		return Event{}, fmt.Errorf("%w: event file: %v", ErrInvalid, err)
	}
	if len(ev.Classes) == 0 {
		return Event{}, fmt.Errorf("%w: event declares no racing classes", ErrInvalid)
	}
	if ev.Date != "" {
		if _, err := time.Parse(dateLayout, ev.Date); err != nil {
			return Event{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalid, ev.Date)
		}
	}
	return ev, nil
}

// LoadRacers reads car_number,driver_name,racing_class,grade[,weight] rows.
// Class and grade may be given by id or by name. A leading header row is
// skipped.
func LoadRacers(r io.Reader, ev Event) ([]models.Racer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var racers []models.Racer
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "car_number") {
			continue
		}
		racer, err := parseRacer(rec, ev)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalid, line, err)
		}
		racers = append(racers, racer)
	}
	return racers, nil
}

func parseRacer(rec []string, ev Event) (models.Racer, error) {
	if len(rec) < 3 || len(rec) > 5 {
		return models.Racer{}, fmt.Errorf("want 3 to 5 fields, got %d", len(rec))
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}

	car, err := strconv.Atoi(rec[0])
	if err != nil || car < 1 {
		return models.Racer{}, fmt.Errorf("bad car number %q", rec[0])
	}
	class, ok := lookup(ev.Classes, rec[2], func(c models.RacingClass) (int, string) { return c.ID, c.Name })
	if !ok {
		return models.Racer{}, fmt.Errorf("unknown racing class %q", rec[2])
	}
	racer := models.Racer{CarNumber: car, Name: rec[1], RacingClassID: class.ID}

	if len(rec) > 3 && rec[3] != "" {
		grade, ok := lookup(ev.Grades, rec[3], func(g models.Grade) (int, string) { return g.ID, g.Name })
		if !ok {
			return models.Racer{}, fmt.Errorf("unknown grade %q", rec[3])
		}
		racer.GradeID = &grade.ID
	}
	if len(rec) > 4 && rec[4] != "" {
		w, err := decimal.NewFromString(rec[4])
		if err != nil {
			return models.Racer{}, fmt.Errorf("bad weight %q", rec[4])
		}
		racer.Weight = decimal.NewNullDecimal(w)
	}
	return racer, nil
}

func lookup[T any](items []T, key string, idName func(T) (int, string)) (T, bool) {
	id, idErr := strconv.Atoi(key)
	for _, it := range items {
		itemID, name := idName(it)
		if (idErr == nil && itemID == id) || strings.EqualFold(name, key) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Roster combines the event metadata with its racers.
func (ev Event) Roster(racers []models.Racer) derby.Roster {
	r := derby.Roster{
		Name:    ev.Name,
		Notes:   ev.Notes,
		Classes: ev.Classes,
		Grades:  ev.Grades,
		Racers:  racers,
	}
	if d, err := time.Parse(dateLayout, ev.Date); err == nil {
		r.Date = &d
	}
	return r
}

// Load reads the event file and the racer CSV from disk.
func Load(eventPath, racersPath string) (Event, derby.Roster, error) {
	ef, err := os.Open(eventPath)
	if err != nil {
		return Event{}, derby.Roster{}, err
	}
	defer ef.Close()
	ev, err := LoadEvent(ef)
	if err != nil {
		return Event{}, derby.Roster{}, err
	}

	rf, err := os.Open(racersPath)
	if err != nil {
		return Event{}, derby.Roster{}, err
	}
	defer rf.Close()
	racers, err := LoadRacers(rf, ev)
	if err != nil {
		return Event{}, derby.Roster{}, err
	}
	return ev, ev.Roster(racers), nil
}

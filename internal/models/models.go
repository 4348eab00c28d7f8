package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxPlaces is the number of finish places the timer hardware reports.
const MaxPlaces = 8

// DerbyDetailID is the primary key of the only DerbyDetail row.
const DerbyDetailID = 1

// RacingClass partitions racers into competition pools.
type RacingClass struct {
	ID   int    `gorm:"primaryKey;autoIncrement:false" json:"id" yaml:"id"`
	Name string `gorm:"size:255;not null" json:"name" yaml:"name"`
}

type Grade struct {
	ID   int    `gorm:"primaryKey;autoIncrement:false" json:"id" yaml:"id"`
	Name string `gorm:"size:255;not null" json:"name" yaml:"name"`
}

// Bye is an empty lane pinned to one heat for the whole derby.
type Bye struct {
	Number int `gorm:"primaryKey;autoIncrement:false" json:"number"`
	Heat   int `gorm:"column:heat_number;not null;uniqueIndex:idx_bye_slot" json:"heat"`
	Lane   int `gorm:"column:lane_number;not null;uniqueIndex:idx_bye_slot" json:"lane"`
}

type Racer struct {
	CarNumber     int                 `gorm:"primaryKey;autoIncrement:false" json:"car_number"`
	Name          string              `gorm:"size:255" json:"name"`
	RacingClassID int                 `gorm:"not null;index" json:"racing_class_id"`
	RacingClass   RacingClass         `gorm:"foreignKey:RacingClassID" json:"racing_class"`
	GradeID       *int                `json:"grade_id,omitempty"`
	Grade         *Grade              `gorm:"foreignKey:GradeID" json:"grade,omitempty"`
	Weight        decimal.NullDecimal `gorm:"type:decimal(4,2)" json:"weight"`
	ByeNumber     *int                `gorm:"uniqueIndex" json:"bye_number,omitempty"`
	Bye           *Bye                `gorm:"foreignKey:ByeNumber;references:Number" json:"bye,omitempty"`
}

// IsBye reports whether the racer is a placeholder holding a bye slot.
func (r Racer) IsBye() bool { return r.ByeNumber != nil }

// CarID is the display label used on boards and reports.
func (r Racer) CarID() string {
	return fmt.Sprintf("%02d - %s", r.CarNumber, r.Name)
}

// RaceResult is one lane of one heat. Round and Heat are derived from Race.
type RaceResult struct {
	ID             uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	Race           int                 `gorm:"column:race_number;not null;index" json:"race"`
	Round          int                 `gorm:"column:round_number;not null;index" json:"round"`
	Heat           int                 `gorm:"column:heat_number;not null" json:"heat"`
	Lane           int                 `gorm:"column:lane_number;not null" json:"lane"`
	CarNumber      int                 `gorm:"not null;index" json:"car_number"`
	Racer          Racer               `gorm:"foreignKey:CarNumber;references:CarNumber" json:"racer"`
	Time           decimal.NullDecimal `gorm:"column:race_time;type:decimal(6,4)" json:"time"`
	Place          *int                `json:"place,omitempty"`
	TimerReadingID *string             `gorm:"size:27" json:"timer_reading_id,omitempty"`
}

// Raced reports whether a timing result has been recorded for the row.
func (r RaceResult) Raced() bool { return r.Time.Valid }

// Reset puts the row back in its unraced state.
func (r *RaceResult) Reset() {
	r.Time = decimal.NullDecimal{}
	r.Place = nil
	r.TimerReadingID = nil
}

// LaneTime is the lane and elapsed time reported for one finish place.
type LaneTime struct {
	Lane int             `json:"lane"`
	Time decimal.Decimal `json:"time"`
}

// TimerReading is one raw timing event. Slots is indexed by place-1.
type TimerReading struct {
	ID         string               `gorm:"primaryKey;size:27" json:"id"`
	CapturedAt time.Time            `gorm:"not null" json:"captured_at"`
	Raw        string               `gorm:"type:text" json:"raw"`
	Slots      [MaxPlaces]*LaneTime `gorm:"type:text;serializer:json" json:"slots"`
}

// Lane returns the place and time recorded for a lane. A lane reported
// twice takes its last placing.
func (t TimerReading) Lane(lane int) (place int, lt LaneTime, ok bool) {
	for i := len(t.Slots) - 1; i >= 0; i-- {
		if s := t.Slots[i]; s != nil && s.Lane == lane {
			return i + 1, *s, true
		}
	}
	return 0, LaneTime{}, false
}

// DerbyDetail is the singleton derby record. RaceNumber is the progression cursor.
type DerbyDetail struct {
	ID            int        `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Name          string     `gorm:"size:255" json:"name"`
	Date          *time.Time `json:"date,omitempty"`
	Notes         string     `gorm:"type:text" json:"notes"`
	LanesEnabled  int        `json:"lanes_enabled"`
	HeatsPerRound int        `json:"heats_per_round"`
	RaceNumber    int        `json:"race_number"`
}

// Standing is one ranked non-bye racer.
type Standing struct {
	CarNumber     int             `json:"car_number"`
	RacingClassID int             `json:"racing_class_id"`
	Heats         int             `json:"heats"`
	Total         decimal.Decimal `json:"total"`
}

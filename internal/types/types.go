package types

import (
	"time"

	"github.com/DoyleJ11/derby-console/internal/derby"
	"github.com/DoyleJ11/derby-console/internal/models"
)

// ClientMessage is an operator command sent over the websocket.
type ClientMessage struct {
	Type string `json:"type"` // "TimerReading" | "Rewind" | "ScheduleRound"
	Raw  string `json:"raw,omitempty"`
}

type ServerMessage struct {
	Type    string       `json:"type"` // "BoardSnapshot" | "Error"
	Version int          `json:"version,omitempty"`
	Board   *derby.Board `json:"board,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// TimerRequest is the body of POST /api/timer.
type TimerRequest struct {
	Raw string `json:"raw"`
}

type BoardResponse struct {
	Version int         `json:"version"`
	Board   derby.Board `json:"board"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// PrepareRequest is the body of POST /api/prepare. HeatsPerRound of 0
// derives it from the roster.
type PrepareRequest struct {
	Name          string               `json:"name"`
	Date          *time.Time           `json:"date,omitempty"`
	Notes         string               `json:"notes,omitempty"`
	Classes       []models.RacingClass `json:"classes"`
	Grades        []models.Grade       `json:"grades,omitempty"`
	Racers        []models.Racer       `json:"racers"`
	LanesEnabled  int                  `json:"lanes_enabled"`
	HeatsPerRound int                  `json:"heats_per_round"`
}

func NewPrepareRequest(r derby.Roster, lanesEnabled, heatsPerRound int) PrepareRequest {
	return PrepareRequest{
		Name:          r.Name,
		Date:          r.Date,
		Notes:         r.Notes,
		Classes:       r.Classes,
		Grades:        r.Grades,
		Racers:        r.Racers,
		LanesEnabled:  lanesEnabled,
		HeatsPerRound: heatsPerRound,
	}
}

func (p PrepareRequest) Roster() derby.Roster {
	return derby.Roster{
		Name:    p.Name,
		Date:    p.Date,
		Notes:   p.Notes,
		Classes: p.Classes,
		Grades:  p.Grades,
		Racers:  p.Racers,
	}
}

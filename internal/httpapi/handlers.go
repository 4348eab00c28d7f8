package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/derby-console/internal/console"
	"github.com/DoyleJ11/derby-console/internal/derby"
	"github.com/DoyleJ11/derby-console/internal/report"
	"github.com/DoyleJ11/derby-console/internal/timer"
	"github.com/DoyleJ11/derby-console/internal/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func Board(c *console.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := c.View(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.BoardResponse{Version: view.Version, Board: view.Board})
	}
}

func Standings(d *derby.Derby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := d.Standings(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if rows == nil {
			rows = []derby.StandingRow{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func StandingsXLSX(d *derby.Derby, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := d.Standings(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		var buf bytes.Buffer
		if err := report.WriteStandings(&buf, rows); err != nil {
			log.Error("failed to build standings workbook", zap.Error(err))
			http.Error(w, "failed to build workbook", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="standings.xlsx"`)
		_, _ = w.Write(buf.Bytes())
	}
}

// PostTimer records a timer line against the current race. Lines with no
// lane/time pairs are rejected before they reach the console.
func PostTimer(c *console.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TimerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "bad json"})
			return
		}
		if _, err := timer.ParseStrict(req.Raw); err != nil {
			writeError(w, err)
			return
		}
		timed, err := c.PostReading(r.Context(), req.Raw)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, timed)
	}
}

// TimerLines lists every raw timer line captured so far, oldest first.
func TimerLines(archive *timer.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines := []timer.Line{}
		if archive != nil {
			got, err := archive.Lines()
			if err != nil {
				writeError(w, err)
				return
			}
			lines = append(lines, got...)
		}
		writeJSON(w, http.StatusOK, lines)
	}
}

func Rewind(c *console.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.Rewind(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Prepare resets the derby through the console so every display sees the
// new round 1 board.
func Prepare(c *console.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PrepareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "bad json"})
			return
		}
		if err := c.Prepare(r.Context(), req.Roster(), req.LanesEnabled, req.HeatsPerRound); err != nil {
			writeError(w, err)
			return
		}
		view, err := c.View(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.BoardResponse{Version: view.Version, Board: view.Board})
	}
}

func ScheduleRound(c *console.Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.ScheduleRound(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, timer.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, derby.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, derby.ErrNoPriorRace),
		errors.Is(err, derby.ErrAlreadyScheduled),
		errors.Is(err, derby.ErrNotPrepared),
		errors.Is(err, derby.ErrNoLineup):
		return http.StatusConflict
	case errors.Is(err, console.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), types.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package timer

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/DoyleJ11/derby-console/internal/models"
)

var ErrParse = errors.New("unparseable timer line")

// Placing is one finisher reported by the timer.
type Placing struct {
	Place int
	Lane  int
	Time  decimal.Decimal
}

var pairPattern = regexp.MustCompile(`(\d)\s+(\d+\.\d+)`)

// StripComment drops everything from the first '#' on.
func StripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// Parse reads "<lane> <time>" pairs in finish order. Malformed tokens are
// skipped and at most MaxPlaces pairs are returned. Times are rounded half
// away from zero to the 4 places a race_time column holds.
func Parse(line string) []Placing {
	matches := pairPattern.FindAllStringSubmatch(StripComment(line), -1)
	out := make([]Placing, 0, min(len(matches), models.MaxPlaces))
	for _, m := range matches {
		if len(out) == models.MaxPlaces {
			break
		}
		lane, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		t, err := decimal.NewFromString(m[2])
		if err != nil {
			continue
		}
		out = append(out, Placing{Place: len(out) + 1, Lane: lane, Time: t.Round(4)})
	}
	return out
}

// ParseStrict is Parse for callers that require at least one finisher.
func ParseStrict(line string) ([]Placing, error) {
	p := Parse(line)
	if len(p) == 0 {
		return nil, ErrParse
	}
	return p, nil
}

// Slots lays placings out by place for storage on a TimerReading.
func Slots(placings []Placing) [models.MaxPlaces]*models.LaneTime {
	var slots [models.MaxPlaces]*models.LaneTime
	for _, p := range placings {
		if p.Place < 1 || p.Place > models.MaxPlaces {
			continue
		}
		slots[p.Place-1] = &models.LaneTime{Lane: p.Lane, Time: p.Time}
	}
	return slots
}

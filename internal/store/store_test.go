package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/derby-console/internal/models"
)

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := Open("sqlite", ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func inTx(t *testing.T, s Store, fn func(ctx context.Context, uow UnitOfWork)) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Transaction(ctx, func(uow UnitOfWork) error {
		fn(ctx, uow)
		return nil
	}))
}

func intPtr(v int) *int { return &v }

var (
	cubs  = models.RacingClass{ID: 1, Name: "Cubs"}
	open  = models.RacingClass{ID: 2, Name: "Open"}
	first = models.Grade{ID: 1, Name: "1st"}
)

func seedRoster(t *testing.T, s Store) {
	t.Helper()
	inTx(t, s, func(ctx context.Context, uow UnitOfWork) {
		require.NoError(t, uow.ReplaceRoster(ctx,
			[]models.RacingClass{cubs, open},
			[]models.Grade{first},
			[]models.Racer{
				{CarNumber: 12, Name: "Ada", RacingClassID: 1, GradeID: intPtr(1)},
				{CarNumber: 3, Name: "Bo", RacingClassID: 1, Weight: decimal.NewNullDecimal(decimal.RequireFromString("4.95"))},
				{CarNumber: 40, Name: "Cy", RacingClassID: 2},
			}))
		require.NoError(t, uow.AddByeRacers(ctx, []models.Racer{
			{CarNumber: 5552, Name: "[BYE] Open #2", RacingClassID: 2, Bye: &models.Bye{Number: 2, Heat: 2, Lane: 4}},
			{CarNumber: 5551, Name: "[BYE] Open #1", RacingClassID: 2, Bye: &models.Bye{Number: 1, Heat: 2, Lane: 3}},
		}))
	})
}

func result(race, round, heat, lane, car int) models.RaceResult {
	return models.RaceResult{Race: race, Round: round, Heat: heat, Lane: lane, CarNumber: car}
}

func timed(rr models.RaceResult, place int, t string) models.RaceResult {
	rr.Place = &place
	rr.Time = decimal.NewNullDecimal(decimal.RequireFromString(t))
	return rr
}

func TestDerbyDetail(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		inTx(t, s, func(ctx context.Context, uow UnitOfWork) {
			_, err := uow.DerbyDetail(ctx)
			require.ErrorIs(t, err, ErrNotFound)

			date := time.Date(2024, 5, 18, 0, 0, 0, 0, time.UTC)
			require.NoError(t, uow.SaveDerbyDetail(ctx, models.DerbyDetail{
				Name: "Spring Derby", Date: &date, LanesEnabled: 6, HeatsPerRound: 4, RaceNumber: 1,
			}))
			d := models.DerbyDetail{Name: "Spring Derby", Date: &date, LanesEnabled: 6, HeatsPerRound: 4, RaceNumber: 2}
			require.NoError(t, uow.SaveDerbyDetail(ctx, d))

			got, err := uow.DerbyDetail(ctx)
			require.NoError(t, err)
			assert.Equal(t, models.DerbyDetailID, got.ID)
			assert.Equal(t, "Spring Derby", got.Name)
			assert.Equal(t, 2, got.RaceNumber)
			assert.Equal(t, 4, got.HeatsPerRound)
			require.NotNil(t, got.Date)
			assert.True(t, got.Date.Equal(date))
		})
	})
}

func TestRacers(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		seedRoster(t, s)
		inTx(t, s, func(ctx context.Context, uow UnitOfWork) {
			racers, err := uow.Racers(ctx)
			require.NoError(t, err)
			require.Len(t, racers, 3)

			assert.Equal(t, []int{3, 12, 40}, []int{racers[0].CarNumber, racers[1].CarNumber, racers[2].CarNumber})
			assert.Equal(t, "Cubs", racers[0].RacingClass.Name)
			assert.Equal(t, "Open", racers[2].RacingClass.Name)
			require.NotNil(t, racers[1].Grade)
			assert.Equal(t, "1st", racers[1].Grade.Name)
			assert.Nil(t, racers[0].Grade)
			require.True(t, racers[0].Weight.Valid)
			assert.True(t, racers[0].Weight.Decimal.Equal(decimal.RequireFromString("4.95")))

			byes, err := uow.ByeRacers(ctx)
			require.NoError(t, err)
			require.Len(t, byes, 2)
			assert.Equal(t, 5551, byes[0].CarNumber)
			assert.Equal(t, 5552, byes[1].CarNumber)
			for _, b := range byes {
				assert.True(t, b.IsBye())
				require.NotNil(t, b.Bye)
				assert.Equal(t, 2, b.Bye.Heat)
			}
			assert.Equal(t, 3, byes[0].Bye.Lane)
		})
	})
}

func TestRaceResults(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		seedRoster(t, s)
		inTx(t, s, func(ctx context.Context, uow UnitOfWork) {
			scheduled, err := uow.RoundScheduled(ctx, 1)
			require.NoError(t, err)
			assert.False(t, scheduled)

			require.NoError(t, uow.AddRaceResults(ctx, []models.RaceResult{
				result(1, 1, 1, 2, 12),
				result(1, 1, 1, 1, 3),
				result(2, 1, 2, 1, 40),
				result(2, 1, 2, 2, 5551),
			}))
			scheduled, err = uow.RoundScheduled(ctx, 1)
			require.NoError(t, err)
			assert.True(t, scheduled)

			rows, err := uow.RaceResults(ctx, 1)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, 1, rows[0].Lane)
			assert.Equal(t, "Bo", rows[0].Racer.Name)
			assert.Equal(t, "Cubs", rows[0].Racer.RacingClass.Name)
			assert.False(t, rows[0].Raced())

			rows[0] = timed(rows[0], 1, "2.5000")
			rows[1] = timed(rows[1], 2, "2.7500")
			require.NoError(t, uow.SaveRaceResults(ctx, rows))

			rows, err = uow.RaceResults(ctx, 1)
			require.NoError(t, err)
			require.True(t, rows[1].Raced())
			assert.Equal(t, 2, *rows[1].Place)
			assert.True(t, rows[1].Time.Decimal.Equal(decimal.RequireFromString("2.75")))

			rows[1].Reset()
			require.NoError(t, uow.SaveRaceResults(ctx, rows[1:]))
			rows, err = uow.RaceResults(ctx, 1)
			require.NoError(t, err)
			assert.True(t, rows[0].Raced())
			assert.False(t, rows[1].Raced())
			assert.Nil(t, rows[1].Place)

			bye, err := uow.RaceResults(ctx, 2)
			require.NoError(t, err)
			require.Len(t, bye, 2)
			require.NotNil(t, bye[1].Racer.Bye)
			assert.Equal(t, 3, bye[1].Racer.Bye.Lane)

			require.NoError(t, uow.DeleteRound(ctx, 1))
			rows, err = uow.RaceResults(ctx, 1)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	})
}

func TestStandings(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		seedRoster(t, s)
		inTx(t, s, func(ctx context.Context, uow UnitOfWork) {
			require.NoError(t, uow.AddRaceResults(ctx, []models.RaceResult{
				result(1, 1, 1, 1, 3),
				result(1, 1, 1, 2, 12),
				result(2, 1, 2, 1, 40),
				result(2, 1, 2, 2, 5551),
				result(3, 2, 1, 1, 12),
			}))
			for _, race := range []int{1, 2} {
				rows, err := uow.RaceResults(ctx, race)
				require.NoError(t, err)
				rows[0] = timed(rows[0], 2, "3.0000")
				rows[1] = timed(rows[1], 1, "2.0000")
				require.NoError(t, uow.SaveRaceResults(ctx, rows))
			}

			standings, err := uow.Standings(ctx)
			require.NoError(t, err)
			require.Len(t, standings, 3)

			assert.Equal(t, 12, standings[0].CarNumber)
			assert.Equal(t, 1, standings[0].Heats)
			assert.True(t, standings[0].Total.Equal(decimal.RequireFromString("2")))
			assert.Equal(t, 3, standings[1].CarNumber)
			assert.Equal(t, 40, standings[2].CarNumber)
			assert.Equal(t, 2, standings[2].RacingClassID)
		})
	})
}

func TestClearRaceData(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		seedRoster(t, s)
		inTx(t, s, func(ctx context.Context, uow UnitOfWork) {
			require.NoError(t, uow.AddTimerReading(ctx, models.TimerReading{
				ID: "2gZ0mTXrcJcrYB0tvoFdhM6iTUN", CapturedAt: time.Now().UTC(), Raw: "1 2.5000",
			}))
			require.NoError(t, uow.AddRaceResults(ctx, []models.RaceResult{result(1, 1, 1, 1, 3)}))
			require.NoError(t, uow.ClearRaceData(ctx))

			rows, err := uow.RaceResults(ctx, 1)
			require.NoError(t, err)
			assert.Empty(t, rows)
			byes, err := uow.ByeRacers(ctx)
			require.NoError(t, err)
			assert.Empty(t, byes)
			racers, err := uow.Racers(ctx)
			require.NoError(t, err)
			assert.Len(t, racers, 3)
		})
	})
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		errAbort := errors.New("abort")
		err := s.Transaction(ctx, func(uow UnitOfWork) error {
			require.NoError(t, uow.SaveDerbyDetail(ctx, models.DerbyDetail{Name: "discarded", LanesEnabled: 4, HeatsPerRound: 2}))
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		inTx(t, s, func(ctx context.Context, uow UnitOfWork) {
			_, err := uow.DerbyDetail(ctx)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	})
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	require.ErrorIs(t, err, ErrUnknownDriver)
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/derby-console/internal/models"
)

var ErrUnknownDriver = errors.New("unknown database driver")

// GormStore persists the derby through gorm. Each Transaction maps to one
// database transaction.
type GormStore struct {
	db *gorm.DB
}

// Open connects with driver "postgres" or "sqlite" and creates missing tables.
func Open(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// one connection keeps ":memory:" databases shared and serializes writers
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	err := db.AutoMigrate(
		&models.DerbyDetail{},
		&models.RacingClass{},
		&models.Grade{},
		&models.Bye{},
		&models.Racer{},
		&models.TimerReading{},
		&models.RaceResult{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormUnit{tx: tx})
	})
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormUnit struct {
	tx *gorm.DB
}

func (u *gormUnit) db(ctx context.Context) *gorm.DB {
	return u.tx.WithContext(ctx)
}

func (u *gormUnit) DerbyDetail(ctx context.Context) (models.DerbyDetail, error) {
	var d models.DerbyDetail
	err := u.db(ctx).First(&d, models.DerbyDetailID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DerbyDetail{}, ErrNotFound
	}
	if err != nil {
		return models.DerbyDetail{}, fmt.Errorf("load derby detail: %w", err)
	}
	return d, nil
}

func (u *gormUnit) SaveDerbyDetail(ctx context.Context, d models.DerbyDetail) error {
	d.ID = models.DerbyDetailID
	if err := u.db(ctx).Save(&d).Error; err != nil {
		return fmt.Errorf("save derby detail: %w", err)
	}
	return nil
}

func (u *gormUnit) ClearRaceData(ctx context.Context) error {
	db := u.db(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := db.Delete(&models.RaceResult{}).Error; err != nil {
		return fmt.Errorf("clear race results: %w", err)
	}
	if err := db.Delete(&models.TimerReading{}).Error; err != nil {
		return fmt.Errorf("clear timer readings: %w", err)
	}
	if err := db.Where("bye_number IS NOT NULL").Delete(&models.Racer{}).Error; err != nil {
		return fmt.Errorf("clear bye racers: %w", err)
	}
	if err := db.Delete(&models.Bye{}).Error; err != nil {
		return fmt.Errorf("clear byes: %w", err)
	}
	return nil
}

func (u *gormUnit) ReplaceRoster(ctx context.Context, classes []models.RacingClass, grades []models.Grade, racers []models.Racer) error {
	db := u.db(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []any{&models.Racer{}, &models.RacingClass{}, &models.Grade{}} {
		if err := db.Delete(m).Error; err != nil {
			return fmt.Errorf("clear roster: %w", err)
		}
	}
	if len(classes) > 0 {
		if err := u.db(ctx).Create(&classes).Error; err != nil {
			return fmt.Errorf("add racing classes: %w", err)
		}
	}
	if len(grades) > 0 {
		if err := u.db(ctx).Create(&grades).Error; err != nil {
			return fmt.Errorf("add grades: %w", err)
		}
	}
	if len(racers) > 0 {
		if err := u.db(ctx).Omit(clause.Associations).Create(&racers).Error; err != nil {
			return fmt.Errorf("add racers: %w", err)
		}
	}
	return nil
}

func (u *gormUnit) AddByeRacers(ctx context.Context, racers []models.Racer) error {
	for _, r := range racers {
		if r.Bye != nil {
			if err := u.db(ctx).Create(r.Bye).Error; err != nil {
				return fmt.Errorf("add bye %d: %w", r.Bye.Number, err)
			}
			n := r.Bye.Number
			r.ByeNumber = &n
		}
		if err := u.db(ctx).Omit(clause.Associations).Create(&r).Error; err != nil {
			return fmt.Errorf("add bye racer %d: %w", r.CarNumber, err)
		}
	}
	return nil
}

func (u *gormUnit) Racers(ctx context.Context) ([]models.Racer, error) {
	var racers []models.Racer
	err := u.db(ctx).
		Preload("RacingClass").
		Preload("Grade").
		Where("bye_number IS NULL").
		Order("car_number").
		Find(&racers).Error
	if err != nil {
		return nil, fmt.Errorf("load racers: %w", err)
	}
	return racers, nil
}

func (u *gormUnit) ByeRacers(ctx context.Context) ([]models.Racer, error) {
	var racers []models.Racer
	err := u.db(ctx).
		Preload("RacingClass").
		Preload("Bye").
		Where("bye_number IS NOT NULL").
		Find(&racers).Error
	if err != nil {
		return nil, fmt.Errorf("load bye racers: %w", err)
	}
	sortByeRacers(racers)
	return racers, nil
}

func (u *gormUnit) Standings(ctx context.Context) ([]models.Standing, error) {
	racers, err := u.Racers(ctx)
	if err != nil {
		return nil, err
	}
	var results []models.RaceResult
	if err := u.db(ctx).Where("race_time IS NOT NULL").Find(&results).Error; err != nil {
		return nil, fmt.Errorf("load recorded results: %w", err)
	}
	return rankStandings(racers, results), nil
}

func (u *gormUnit) RoundScheduled(ctx context.Context, round int) (bool, error) {
	var n int64
	if err := u.db(ctx).Model(&models.RaceResult{}).Where("round_number = ?", round).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check round %d: %w", round, err)
	}
	return n > 0, nil
}

func (u *gormUnit) AddRaceResults(ctx context.Context, results []models.RaceResult) error {
	if len(results) == 0 {
		return nil
	}
	if err := u.db(ctx).Omit(clause.Associations).Create(&results).Error; err != nil {
		return fmt.Errorf("add race results: %w", err)
	}
	return nil
}

func (u *gormUnit) RaceResults(ctx context.Context, race int) ([]models.RaceResult, error) {
	var results []models.RaceResult
	err := u.db(ctx).
		Preload("Racer").
		Preload("Racer.RacingClass").
		Preload("Racer.Bye").
		Where("race_number = ?", race).
		Order("lane_number").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("load race %d: %w", race, err)
	}
	return results, nil
}

func (u *gormUnit) SaveRaceResults(ctx context.Context, results []models.RaceResult) error {
	for _, rr := range results {
		err := u.db(ctx).Model(&models.RaceResult{}).
			Where("id = ?", rr.ID).
			Select("race_time", "place", "timer_reading_id").
			Updates(map[string]any{
				"race_time":        rr.Time,
				"place":            rr.Place,
				"timer_reading_id": rr.TimerReadingID,
			}).Error
		if err != nil {
			return fmt.Errorf("save race result %d: %w", rr.ID, err)
		}
	}
	return nil
}

func (u *gormUnit) DeleteRound(ctx context.Context, round int) error {
	if err := u.db(ctx).Where("round_number = ?", round).Delete(&models.RaceResult{}).Error; err != nil {
		return fmt.Errorf("delete round %d: %w", round, err)
	}
	return nil
}

func (u *gormUnit) AddTimerReading(ctx context.Context, r models.TimerReading) error {
	if err := u.db(ctx).Create(&r).Error; err != nil {
		return fmt.Errorf("add timer reading: %w", err)
	}
	return nil
}

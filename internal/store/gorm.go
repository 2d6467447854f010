package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

type userRow struct {
	Email        string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	Guest        bool
	Wins         int `gorm:"not null;default:0;index"`
	Loses        int `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) user() User {
	return User{
		Email:        r.Email,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Guest:        r.Guest,
		Wins:         r.Wins,
		Loses:        r.Loses,
	}
}

// Gorm is the Postgres-backed UserStore.
type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects with dsn and migrates the users table.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGorm(db)
}

func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&userRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Create(ctx context.Context, u User) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&userRow{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailTaken
		}
		if err := tx.Model(&userRow{}).Where("LOWER(username) = ?", strings.ToLower(u.Username)).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrUsernameTaken
		}
		row := userRow{
			Email:        u.Email,
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Guest:        u.Guest,
		}
		return tx.Create(&row).Error
	})
}

func (g *Gorm) ByEmail(ctx context.Context, email string) (User, error) {
	var row userRow
	err := g.db.WithContext(ctx).Where("email = ?", email).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return row.user(), nil
}

func (g *Gorm) RecordResult(ctx context.Context, winner, loser string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&userRow{}).Where("email = ?", winner).
			UpdateColumn("wins", gorm.Expr("wins + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&userRow{}).Where("email = ?", loser).
			UpdateColumn("loses", gorm.Expr("loses + 1")).Error
	})
}

func (g *Gorm) Leaderboard(ctx context.Context, limit int) ([]types.UserStats, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	var rows []userRow
	err := g.db.WithContext(ctx).
		Where("wins > loses").
		Order("wins DESC").Order("username ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.UserStats, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.user().Stats())
	}
	return out, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

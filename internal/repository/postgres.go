package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
)

// Schema creates the snapshot table and its lookup indexes. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS weather_snapshots (
	id          TEXT PRIMARY KEY,
	city        TEXT NOT NULL,
	country     TEXT NOT NULL DEFAULT '',
	temperature DOUBLE PRECISION NOT NULL,
	feels_like  DOUBLE PRECISION NOT NULL,
	humidity    INTEGER NOT NULL,
	wind_speed  DOUBLE PRECISION NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	icon        TEXT NOT NULL DEFAULT '',
	captured_at TIMESTAMPTZ NOT NULL,
	source      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS weather_snapshots_city_captured_idx
	ON weather_snapshots (lower(city), captured_at DESC);
CREATE INDEX IF NOT EXISTS weather_snapshots_captured_idx
	ON weather_snapshots (captured_at DESC);
`

const snapshotColumns = `id, city, country, temperature, feels_like, humidity, wind_speed, description, icon, captured_at, source`

// PostgresConfig configures the connection pool. Zero values keep database/sql defaults.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenPostgres opens a pooled connection and verifies it with a ping.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PostgresRepository implements Repository on the weather_snapshots table.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (snap models.WeatherSnapshot, found bool, err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendPostgres, "get_by_id", start, err) }(time.Now())

	query := `SELECT ` + snapshotColumns + ` FROM weather_snapshots WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByCity(ctx context.Context, city string) (snap models.WeatherSnapshot, found bool, err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendPostgres, "get_by_city", start, err) }(time.Now())

	query := `SELECT ` + snapshotColumns + ` FROM weather_snapshots
		WHERE lower(city) = $1 ORDER BY captured_at DESC LIMIT 1`
	return r.getOne(ctx, query, cityKey(city))
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (models.WeatherSnapshot, bool, error) {
	var snap models.WeatherSnapshot
	err := r.db.GetContext(ctx, &snap, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WeatherSnapshot{}, false, nil
	}
	if err != nil {
		return models.WeatherSnapshot{}, false, err
	}
	snap.CapturedAt = snap.CapturedAt.UTC()
	return snap, true, nil
}

// GetRecent returns up to count snapshots, most recently captured first.
func (r *PostgresRepository) GetRecent(ctx context.Context, count int) (out []models.WeatherSnapshot, err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendPostgres, "get_recent", start, err) }(time.Now())
	if count <= 0 {
		return []models.WeatherSnapshot{}, nil
	}

	out = make([]models.WeatherSnapshot, 0, count)
	query := `SELECT ` + snapshotColumns + ` FROM weather_snapshots ORDER BY captured_at DESC LIMIT $1`
	if err = r.db.SelectContext(ctx, &out, query, count); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CapturedAt = out[i].CapturedAt.UTC()
	}
	return out, nil
}

func (r *PostgresRepository) Save(ctx context.Context, snapshot models.WeatherSnapshot) (err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendPostgres, "save", start, err) }(time.Now())

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO weather_snapshots (`+snapshotColumns+`)
		VALUES (:id, :city, :country, :temperature, :feels_like, :humidity, :wind_speed, :description, :icon, :captured_at, :source)
		ON CONFLICT (id) DO UPDATE SET
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			temperature = EXCLUDED.temperature,
			feels_like = EXCLUDED.feels_like,
			humidity = EXCLUDED.humidity,
			wind_speed = EXCLUDED.wind_speed,
			description = EXCLUDED.description,
			icon = EXCLUDED.icon,
			captured_at = EXCLUDED.captured_at,
			source = EXCLUDED.source`, snapshot)
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendPostgres, "delete", start, err) }(time.Now())

	_, err = r.db.ExecContext(ctx, `DELETE FROM weather_snapshots WHERE id = $1`, id)
	return err
}

// Ping checks the database with a short timeout. Used for health checks.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(pingCtx)
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

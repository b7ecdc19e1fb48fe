package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var ErrNotConfigured = errors.New("readings storage not configured")

// Reading is one stored farm analysis.
type Reading struct {
	ID            int64     `json:"id"`
	FarmID        string    `json:"farm_id"`
	Date          time.Time `json:"date"`
	NDVI          float64   `json:"ndvi"`
	NDWI          float64   `json:"ndwi"`
	NDRE          float64   `json:"ndre"`
	RVI           float64   `json:"rvi"`
	OTCI          float64   `json:"otci"`
	Temperature   float64   `json:"temperature"`
	RegionalNDVI  float64   `json:"regional_ndvi"`
	CarbonStock   float64   `json:"carbon_stock"`
	CO2Equivalent float64   `json:"co2_equivalent"`
	Alerts        []string  `json:"alerts"`
	CreatedAt     time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id             BIGSERIAL PRIMARY KEY,
	farm_id        TEXT NOT NULL,
	date           DATE NOT NULL,
	ndvi           DOUBLE PRECISION NOT NULL,
	ndwi           DOUBLE PRECISION NOT NULL,
	ndre           DOUBLE PRECISION NOT NULL,
	rvi            DOUBLE PRECISION NOT NULL,
	otci           DOUBLE PRECISION NOT NULL,
	temperature    DOUBLE PRECISION NOT NULL,
	regional_ndvi  DOUBLE PRECISION NOT NULL,
	carbon_stock   DOUBLE PRECISION NOT NULL,
	co2_equivalent DOUBLE PRECISION NOT NULL,
	alerts         TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (farm_id, date)
)`

const upsertReading = `
INSERT INTO readings (farm_id, date, ndvi, ndwi, ndre, rvi, otci, temperature,
	regional_ndvi, carbon_stock, co2_equivalent, alerts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (farm_id, date) DO UPDATE SET
	ndvi = EXCLUDED.ndvi, ndwi = EXCLUDED.ndwi, ndre = EXCLUDED.ndre,
	rvi = EXCLUDED.rvi, otci = EXCLUDED.otci, temperature = EXCLUDED.temperature,
	regional_ndvi = EXCLUDED.regional_ndvi, carbon_stock = EXCLUDED.carbon_stock,
	co2_equivalent = EXCLUDED.co2_equivalent, alerts = EXCLUDED.alerts
RETURNING id, created_at`

const selectReadings = `
SELECT id, farm_id, date, ndvi, ndwi, ndre, rvi, otci, temperature,
	regional_ndvi, carbon_stock, co2_equivalent, alerts, created_at
FROM readings
WHERE farm_id = $1
ORDER BY date DESC
LIMIT $2`

// ReadingRepository stores readings in Postgres.
type ReadingRepository struct {
	db *sql.DB
}

func Open(ctx context.Context, dsn string) (*ReadingRepository, error) {
	if dsn == "" {
		return nil, ErrNotConfigured
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return NewReadingRepository(db), nil
}

func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

func (r *ReadingRepository) Close() error {
	return r.db.Close()
}

func (r *ReadingRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create readings table: %w", err)
	}
	return nil
}

// SaveReading inserts the reading, replacing any earlier reading of the same
// farm and date, and fills in ID and CreatedAt.
func (r *ReadingRepository) SaveReading(ctx context.Context, reading *Reading) error {
	alerts := reading.Alerts
	if alerts == nil {
		alerts = []string{}
	}
	err := r.db.QueryRowContext(ctx, upsertReading,
		reading.FarmID, reading.Date, reading.NDVI, reading.NDWI, reading.NDRE,
		reading.RVI, reading.OTCI, reading.Temperature, reading.RegionalNDVI,
		reading.CarbonStock, reading.CO2Equivalent, pq.Array(alerts),
	).Scan(&reading.ID, &reading.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save reading for farm %s: %w", reading.FarmID, err)
	}
	return nil
}

// ListReadings returns the most recent readings of a farm, newest first.
func (r *ReadingRepository) ListReadings(ctx context.Context, farmID string, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = 52
	}
	rows, err := r.db.QueryContext(ctx, selectReadings, farmID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []Reading{}
	for rows.Next() {
		var rd Reading
		if err := rows.Scan(&rd.ID, &rd.FarmID, &rd.Date, &rd.NDVI, &rd.NDWI, &rd.NDRE,
			&rd.RVI, &rd.OTCI, &rd.Temperature, &rd.RegionalNDVI, &rd.CarbonStock,
			&rd.CO2Equivalent, pq.Array(&rd.Alerts), &rd.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}

// Package postgres implements the railway store on a pgx connection pool.
// Wagon lists live in train_wagons with 1-based positions; every write that
// touches more than one row runs inside a single transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/railcore/railcore/internal/codes"
	"github.com/railcore/railcore/internal/db"
	"github.com/railcore/railcore/internal/models"
	"github.com/railcore/railcore/internal/store"
)

const uniqueViolation = "23505"

// Store runs every query on a shared pool. Connections are borrowed per
// statement or per transaction and always released.
type Store struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewStore wraps an open pool. queryTimeout bounds each statement or transaction.
func NewStore(pool *pgxpool.Pool, queryTimeout time.Duration) *Store {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &Store{pool: pool, queryTimeout: queryTimeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// Ping checks the pool can reach the database and the schema is in place
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return db.HealthCheck(ctx, s.pool)
}

// Close releases the pool
func (s *Store) Close() {
	s.pool.Close()
}

// InsertStation creates a station row
func (s *Store) InsertStation(ctx context.Context, name string, code codes.StationCode) (*models.Station, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var st models.Station
	var rawCode int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO stations (name, code)
		VALUES ($1, $2)
		RETURNING id, name, code, created_at
	`, name, int(code)).Scan(&st.ID, &st.Name, &rawCode, &st.CreatedAt)
	if err != nil {
		return nil, translate(err, "insert station")
	}
	st.Code = codes.StationCode(rawCode)
	return &st, nil
}

// FindAllStations returns every station ordered by id
func (s *Store) FindAllStations(ctx context.Context) ([]models.Station, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT id, name, code, created_at FROM stations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	stations := []models.Station{}
	for rows.Next() {
		var st models.Station
		var rawCode int
		if err := rows.Scan(&st.ID, &st.Name, &rawCode, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		st.Code = codes.StationCode(rawCode)
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stations: %w", err)
	}

	return stations, nil
}

// FindStationByCode returns store.ErrNotFound for unknown codes
func (s *Store) FindStationByCode(ctx context.Context, code codes.StationCode) (*models.Station, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var st models.Station
	var rawCode int
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, code, created_at FROM stations WHERE code = $1
	`, int(code)).Scan(&st.ID, &st.Name, &rawCode, &st.CreatedAt)
	if err != nil {
		return nil, translate(err, "find station")
	}
	st.Code = codes.StationCode(rawCode)
	return &st, nil
}

// FindTrainByNumber loads a train with its wagons ordered by position
func (s *Store) FindTrainByNumber(ctx context.Context, number codes.TrainNumber) (*models.Train, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var t models.Train
	var stored string
	var wagonNumbers []string
	err := s.pool.QueryRow(ctx, `
		SELECT
			t.id,
			t.train_number,
			COALESCE(
				array_agg(w.wagon_number ORDER BY w.position) FILTER (WHERE w.wagon_number IS NOT NULL),
				'{}'
			) AS wagons,
			t.created_at,
			t.updated_at
		FROM trains t
		LEFT JOIN train_wagons w ON w.train_id = t.id
		WHERE t.train_number = $1
		GROUP BY t.id
	`, string(number)).Scan(&t.ID, &stored, &wagonNumbers, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, translate(err, "find train")
	}

	t.TrainNumber = codes.TrainNumber(stored)
	t.Wagons = make([]codes.WagonCode, len(wagonNumbers))
	for i, w := range wagonNumbers {
		t.Wagons[i] = codes.WagonCode(w)
	}
	return &t, nil
}

// InsertTrain creates the train row and its wagon rows in one transaction
func (s *Store) InsertTrain(ctx context.Context, number codes.TrainNumber, wagons []codes.WagonCode) (*models.Train, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t := models.Train{TrainNumber: number}
	err = tx.QueryRow(ctx, `
		INSERT INTO trains (train_number)
		VALUES ($1)
		RETURNING id, created_at, updated_at
	`, string(number)).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, translate(err, "insert train")
	}

	if err := insertWagons(ctx, tx, t.ID, wagons); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	t.Wagons = append([]codes.WagonCode(nil), wagons...)
	return &t, nil
}

// ReplaceTrainWagons swaps the full wagon list of a train in one transaction:
// the old rows are deleted and the new list is written with fresh positions.
func (s *Store) ReplaceTrainWagons(ctx context.Context, number codes.TrainNumber, wagons []codes.WagonCode) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var trainID int64
	err = tx.QueryRow(ctx, `
		UPDATE trains SET updated_at = NOW()
		WHERE train_number = $1
		RETURNING id
	`, string(number)).Scan(&trainID)
	if err != nil {
		return translate(err, "touch train")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM train_wagons WHERE train_id = $1`, trainID); err != nil {
		return fmt.Errorf("failed to delete wagons: %w", err)
	}

	if err := insertWagons(ctx, tx, trainID, wagons); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertWagons(ctx context.Context, tx pgx.Tx, trainID int64, wagons []codes.WagonCode) error {
	batch := &pgx.Batch{}

	for i, w := range wagons {
		batch.Queue(`
			INSERT INTO train_wagons (train_id, wagon_number, position)
			VALUES ($1, $2, $3)
		`, trainID, string(w), i+1)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return translate(err, fmt.Sprintf("insert wagon %d", i))
		}
	}

	return nil
}

// ImportStations inserts stations in one transaction. Rows whose name or
// code is already taken are skipped. Returns how many rows were inserted.
func (s *Store) ImportStations(ctx context.Context, rows []models.StationImport) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO stations (name, code)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, r.Name, int(r.Code))
	}

	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("failed to insert station %s: %w", rows[i].Code, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// TripExists reports whether a trip with the same uniqueness tuple is stored
func (s *Store) TripExists(ctx context.Context, key models.TripKey) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trips
			WHERE train_number = $1
			  AND departure_station_code = $2
			  AND arrival_station_code = $3
			  AND departure_time = $4
		)
	`, string(key.TrainNumber), int(key.DepartureStationCode), int(key.ArrivalStationCode), key.DepartureTime).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check trip: %w", err)
	}
	return exists, nil
}

// InsertTrip creates a trip row
func (s *Store) InsertTrip(ctx context.Context, trip models.NewTrip) (*models.Trip, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO trips (
			train_number,
			departure_station_code,
			arrival_station_code,
			departure_time,
			arrival_time
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING `+tripColumns,
		string(trip.TrainNumber),
		int(trip.DepartureStationCode),
		int(trip.ArrivalStationCode),
		trip.DepartureTime,
		trip.ArrivalTime,
	)

	t, err := scanTrip(row)
	if err != nil {
		return nil, translate(err, "insert trip")
	}
	return t, nil
}

// SearchTrips returns trips on the route departing in [from, to), by departure time
func (s *Store) SearchTrips(ctx context.Context, departure, arrival codes.StationCode, from, to time.Time) ([]models.Trip, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE departure_station_code = $1
		  AND arrival_station_code = $2
		  AND departure_time >= $3
		  AND departure_time < $4
		ORDER BY departure_time, id
	`, int(departure), int(arrival), from, to)
	if err != nil {
		return nil, fmt.Errorf("search trips: %w", err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trips: %w", err)
	}

	return trips, nil
}

const tripColumns = `
	id,
	train_number,
	departure_station_code,
	arrival_station_code,
	departure_time,
	arrival_time,
	created_at,
	updated_at`

func scanTrip(row pgx.Row) (*models.Trip, error) {
	var t models.Trip
	var number string
	var dep, arr int
	if err := row.Scan(&t.ID, &number, &dep, &arr, &t.DepartureTime, &t.ArrivalTime, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.TrainNumber = codes.TrainNumber(number)
	t.DepartureStationCode = codes.StationCode(dep)
	t.ArrivalStationCode = codes.StationCode(arr)
	t.DepartureTime = t.DepartureTime.UTC()
	t.ArrivalTime = t.ArrivalTime.UTC()
	return &t, nil
}

// translate maps driver errors onto the store sentinels
func translate(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, store.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Package sqlite implements the railway store on a single SQLite file.
// The tables mirror the Postgres schema and are created on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/railcore/railcore/internal/codes"
	"github.com/railcore/railcore/internal/models"
	"github.com/railcore/railcore/internal/store"
	driver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Timestamps are stored as fixed-width UTC text so lexical order is time order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS stations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT    NOT NULL UNIQUE,
	code       INTEGER NOT NULL UNIQUE,
	created_at TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS trains (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	train_number TEXT    NOT NULL UNIQUE,
	created_at   TEXT    NOT NULL,
	updated_at   TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS train_wagons (
	train_id     INTEGER NOT NULL REFERENCES trains (id) ON DELETE CASCADE,
	wagon_number TEXT    NOT NULL,
	position     INTEGER NOT NULL,
	UNIQUE (train_id, wagon_number),
	UNIQUE (train_id, position)
);
CREATE TABLE IF NOT EXISTS trips (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	train_number           TEXT    NOT NULL,
	departure_station_code INTEGER NOT NULL,
	arrival_station_code   INTEGER NOT NULL,
	departure_time         TEXT    NOT NULL,
	arrival_time           TEXT    NOT NULL,
	created_at             TEXT    NOT NULL,
	updated_at             TEXT    NOT NULL,
	UNIQUE (train_number, departure_station_code, arrival_station_code, departure_time)
);
CREATE INDEX IF NOT EXISTS trips_route_departure_idx
	ON trips (departure_station_code, arrival_station_code, departure_time);
`

// Store wraps a database/sql handle on the modernc driver
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database file at path and ensures the schema exists
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "railcore.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; also keeps :memory: databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Ping checks the database handle
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle
func (s *Store) Close() {
	_ = s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(timeLayout, raw)
}

func (s *Store) InsertStation(ctx context.Context, name string, code codes.StationCode) (*models.Station, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stations (name, code, created_at) VALUES (?, ?, ?)`,
		name, int(code), formatTime(now))
	if err != nil {
		return nil, translate(err, "insert station")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("station id: %w", err)
	}
	return &models.Station{ID: id, Name: name, Code: code, CreatedAt: now}, nil
}

func (s *Store) FindAllStations(ctx context.Context) ([]models.Station, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, code, created_at FROM stations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stations := []models.Station{}
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stations: %w", err)
	}
	return stations, nil
}

func (s *Store) FindStationByCode(ctx context.Context, code codes.StationCode) (*models.Station, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, code, created_at FROM stations WHERE code = ?`, int(code))
	st, err := scanStation(row)
	if err != nil {
		return nil, translate(err, "find station")
	}
	return st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStation(row scanner) (*models.Station, error) {
	var st models.Station
	var code int
	var created string
	if err := row.Scan(&st.ID, &st.Name, &code, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	st.Code = codes.StationCode(code)
	st.CreatedAt = t
	return &st, nil
}

func (s *Store) FindTrainByNumber(ctx context.Context, number codes.TrainNumber) (*models.Train, error) {
	var t models.Train
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM trains WHERE train_number = ?`,
		string(number)).Scan(&t.ID, &created, &updated)
	if err != nil {
		return nil, translate(err, "find train")
	}
	t.TrainNumber = number
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT wagon_number FROM train_wagons WHERE train_id = ? ORDER BY position`, t.ID)
	if err != nil {
		return nil, fmt.Errorf("query wagons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	t.Wagons = []codes.WagonCode{}
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("scan wagon: %w", err)
		}
		t.Wagons = append(t.Wagons, codes.WagonCode(w))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wagons: %w", err)
	}
	return &t, nil
}

func (s *Store) InsertTrain(ctx context.Context, number codes.TrainNumber, wagons []codes.WagonCode) (_ *models.Train, retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO trains (train_number, created_at, updated_at) VALUES (?, ?, ?)`,
		string(number), formatTime(now), formatTime(now))
	if err != nil {
		return nil, translate(err, "insert train")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("train id: %w", err)
	}

	if err := insertWagons(ctx, tx, id, wagons); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &models.Train{
		ID:          id,
		TrainNumber: number,
		Wagons:      append([]codes.WagonCode(nil), wagons...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *Store) ReplaceTrainWagons(ctx context.Context, number codes.TrainNumber, wagons []codes.WagonCode) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	err = tx.QueryRowContext(ctx,
		`UPDATE trains SET updated_at = ? WHERE train_number = ? RETURNING id`,
		formatTime(s.now()), string(number)).Scan(&id)
	if err != nil {
		return translate(err, "touch train")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM train_wagons WHERE train_id = ?`, id); err != nil {
		return fmt.Errorf("delete wagons: %w", err)
	}
	if err := insertWagons(ctx, tx, id, wagons); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertWagons(ctx context.Context, tx *sql.Tx, trainID int64, wagons []codes.WagonCode) error {
	if len(wagons) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO train_wagons (train_id, wagon_number, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare wagon insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, w := range wagons {
		if _, err := stmt.ExecContext(ctx, trainID, string(w), i+1); err != nil {
			return translate(err, fmt.Sprintf("insert wagon %d", i))
		}
	}
	return nil
}

// ImportStations inserts stations in one transaction, skipping rows whose
// name or code is taken, and returns how many were inserted.
func (s *Store) ImportStations(ctx context.Context, rows []models.StationImport) (_ int, retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO stations (name, code, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare station insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := formatTime(s.now())
	inserted := 0
	for _, r := range rows {
		res, err := stmt.ExecContext(ctx, r.Name, int(r.Code), now)
		if err != nil {
			return 0, fmt.Errorf("insert station %s: %w", r.Code, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *Store) TripExists(ctx context.Context, key models.TripKey) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trips
			WHERE train_number = ?
			  AND departure_station_code = ?
			  AND arrival_station_code = ?
			  AND departure_time = ?
		)`,
		string(key.TrainNumber), int(key.DepartureStationCode), int(key.ArrivalStationCode), formatTime(key.DepartureTime),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check trip: %w", err)
	}
	return exists, nil
}

func (s *Store) InsertTrip(ctx context.Context, trip models.NewTrip) (*models.Trip, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trips (
			train_number, departure_station_code, arrival_station_code,
			departure_time, arrival_time, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(trip.TrainNumber),
		int(trip.DepartureStationCode),
		int(trip.ArrivalStationCode),
		formatTime(trip.DepartureTime),
		formatTime(trip.ArrivalTime),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, translate(err, "insert trip")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("trip id: %w", err)
	}

	return &models.Trip{
		ID:                   id,
		TrainNumber:          trip.TrainNumber,
		DepartureStationCode: trip.DepartureStationCode,
		ArrivalStationCode:   trip.ArrivalStationCode,
		DepartureTime:        trip.DepartureTime.UTC(),
		ArrivalTime:          trip.ArrivalTime.UTC(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func (s *Store) SearchTrips(ctx context.Context, departure, arrival codes.StationCode, from, to time.Time) ([]models.Trip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, train_number, departure_station_code, arrival_station_code,
		       departure_time, arrival_time, created_at, updated_at
		FROM trips
		WHERE departure_station_code = ?
		  AND arrival_station_code = ?
		  AND departure_time >= ?
		  AND departure_time < ?
		ORDER BY departure_time, id`,
		int(departure), int(arrival), formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("search trips: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var trips []models.Trip
	for rows.Next() {
		var t models.Trip
		var number string
		var dep, arr int
		var times [4]string
		if err := rows.Scan(&t.ID, &number, &dep, &arr, &times[0], &times[1], &times[2], &times[3]); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		parsed := [4]*time.Time{&t.DepartureTime, &t.ArrivalTime, &t.CreatedAt, &t.UpdatedAt}
		for i, raw := range times {
			v, err := parseTime(raw)
			if err != nil {
				return nil, fmt.Errorf("parse trip time: %w", err)
			}
			*parsed[i] = v
		}
		t.TrainNumber = codes.TrainNumber(number)
		t.DepartureStationCode = codes.StationCode(dep)
		t.ArrivalStationCode = codes.StationCode(arr)
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trips: %w", err)
	}
	return trips, nil
}

// translate maps driver errors onto the store sentinels
func translate(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var sqlErr *driver.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w", op, store.ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

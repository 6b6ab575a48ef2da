package orders

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"

	"telegram-shop-bot/cart"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = "2006-01-02T15:04:05.999999999Z"

// SQLiteRepository stores orders in a single SQLite file. The pool is capped
// at one connection so inserts are serialized.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("orders: create dir %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := otelsql.Open("sqlite", dsn,
		otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
	)
	if err != nil {
		return nil, fmt.Errorf("orders: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("orders: ping %q: %w", path, err)
	}

	if err := otelsql.RegisterDBStatsMetrics(db,
		otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("orders: register db stats: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("orders: migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("orders: migration driver: %w", err)
	}

	// m.Close would close db as well, so the migrator is left to the GC.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("orders: migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("orders: run migrations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Save(ctx context.Context, d Draft) (*Order, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	lines := d.Lines
	if lines == nil {
		lines = []cart.Line{}
	}
	cartJSON, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("orders: encode cart: %w", err)
	}

	source := d.Source
	if source == "" {
		source = SourceClassic
	}
	createdAt := r.now().UTC()

	const q = `
		INSERT INTO orders
			(user_id, user_handle, user_name, phone, address, cart_json, total, created_at, lat, lon, source)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, q,
		d.UserID,
		d.UserHandle,
		d.UserName,
		d.Phone,
		d.Address,
		string(cartJSON),
		d.Total,
		createdAt.Format(timeLayout),
		nullableFloat(d.Lat),
		nullableFloat(d.Lon),
		string(source),
	)
	if err != nil {
		return nil, fmt.Errorf("orders: insert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("orders: last insert id: %w", err)
	}

	return &Order{
		ID:         id,
		UserID:     d.UserID,
		UserHandle: d.UserHandle,
		UserName:   d.UserName,
		Phone:      d.Phone,
		Address:    d.Address,
		Lines:      lines,
		Total:      d.Total,
		CreatedAt:  createdAt,
		Lat:        d.Lat,
		Lon:        d.Lon,
		Source:     source,
	}, nil
}

const selectColumns = `id, user_id, user_handle, user_name, phone, address, cart_json, total, created_at, lat, lon, source`

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders: get %d: %w", id, err)
	}
	return o, nil
}

// Recent returns up to limit orders, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("orders: query recent: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orders: scan: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: row iteration: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*Order, error) {
	var (
		o         Order
		cartJSON  string
		createdAt string
		source    string
		lat, lon  sql.NullFloat64
	)
	err := s.Scan(
		&o.ID,
		&o.UserID,
		&o.UserHandle,
		&o.UserName,
		&o.Phone,
		&o.Address,
		&cartJSON,
		&o.Total,
		&createdAt,
		&lat,
		&lon,
		&source,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(cartJSON), &o.Lines); err != nil {
		return nil, fmt.Errorf("decode cart of order %d: %w", o.ID, err)
	}
	if o.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at of order %d: %w", o.ID, err)
	}
	if lat.Valid {
		o.Lat = &lat.Float64
	}
	if lon.Valid {
		o.Lon = &lon.Float64
	}
	o.Source = Source(source)
	return &o, nil
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// Package history provides HistoryStorage implementations (§2): an
// append-only sink for history orders and deals, backed by SQLite or
// Postgres. Grounded on the teacher's AsyncSQLiteDB/PostgresDB
// (src/storage/sqlite.go, postgres.go), generalized from bulk stock-price
// inserts to per-instance order/deal upserts.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"mtclient/src/logger"
	"mtclient/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

// SQLiteStorage persists history orders and deals to a local SQLite file.
type SQLiteStorage struct {
	Path   string
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteStorage(path string, log *logger.Logger) *SQLiteStorage {
	return &SQLiteStorage{Path: path, Logger: log}
}

// -----------------------------------------------------------------------------

func (s *SQLiteStorage) Initialize() error {
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return err
	}
	s.DB = db

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		s.Logger.Warning("failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		s.Logger.Warning("failed to set synchronous mode: %v", err)
	}

	return s.createTables()
}

// -----------------------------------------------------------------------------

func (s *SQLiteStorage) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS history_orders (
			instance_index TEXT,
			id TEXT,
			type TEXT,
			state TEXT,
			symbol TEXT,
			open_price REAL,
			volume REAL,
			position_id TEXT,
			time INTEGER,
			done_time INTEGER,
			platform TEXT,
			comment TEXT,
			client_id TEXT,
			PRIMARY KEY (instance_index, id)
		);`,
		`CREATE TABLE IF NOT EXISTS deals (
			instance_index TEXT,
			id TEXT,
			order_id TEXT,
			position_id TEXT,
			symbol TEXT,
			type TEXT,
			volume REAL,
			price REAL,
			commission REAL,
			swap REAL,
			profit REAL,
			time INTEGER,
			platform TEXT,
			PRIMARY KEY (instance_index, id)
		);`,
	}
	for _, q := range queries {
		if _, err := s.DB.Exec(q); err != nil {
			return fmt.Errorf("failed to create history table: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *SQLiteStorage) SaveHistoryOrders(instanceIndex string, orders []*models.HistoryOrder) error {
	if len(orders) == 0 {
		return nil
	}
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO history_orders
		(instance_index, id, type, state, symbol, open_price, volume, position_id, time, done_time, platform, comment, client_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range orders {
		var doneTime interface{}
		if !o.DoneTime.IsZero() {
			doneTime = o.DoneTime.Unix()
		}
		if _, err := stmt.Exec(instanceIndex, o.ID, string(o.Type), o.State, o.Symbol, o.OpenPrice, o.Volume,
			o.PositionID, o.Time.Unix(), doneTime, string(o.Platform), o.Comment, o.ClientID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (s *SQLiteStorage) SaveDeals(instanceIndex string, deals []*models.Deal) error {
	if len(deals) == 0 {
		return nil
	}
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO deals
		(instance_index, id, order_id, position_id, symbol, type, volume, price, commission, swap, profit, time, platform)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, d := range deals {
		if _, err := stmt.Exec(instanceIndex, d.ID, d.OrderID, d.PositionID, d.Symbol, d.Type, d.Volume, d.Price,
			d.Commission, d.Swap, d.Profit, d.Time.Unix(), string(d.Platform)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (s *SQLiteStorage) LastHistoryOrderTime(instanceIndex string) (models.OptionalTime, error) {
	return queryLastTime(s.DB, "SELECT MAX(done_time) FROM history_orders WHERE instance_index = ?", instanceIndex)
}

func (s *SQLiteStorage) LastDealTime(instanceIndex string) (models.OptionalTime, error) {
	return queryLastTime(s.DB, "SELECT MAX(time) FROM deals WHERE instance_index = ?", instanceIndex)
}

// -----------------------------------------------------------------------------

func queryLastTime(db *sql.DB, query, instanceIndex string) (models.OptionalTime, error) {
	var ts sql.NullInt64
	if err := db.QueryRow(query, instanceIndex).Scan(&ts); err != nil {
		return models.OptionalTime{}, err
	}
	if !ts.Valid {
		return models.OptionalTime{}, nil
	}
	return models.OptionalTime{Time: time.Unix(ts.Int64, 0).UTC(), Valid: true}, nil
}

// -----------------------------------------------------------------------------

func (s *SQLiteStorage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

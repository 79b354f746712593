package history

import (
	"database/sql"
	"fmt"

	"mtclient/src/logger"
	"mtclient/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

// PostgresStorage persists history orders and deals to a shared Postgres
// database under a fixed schema.
type PostgresStorage struct {
	ConnectionString string
	Schema           string
	DB               *sql.DB
	Logger           *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresStorage(connectionString, schema string, log *logger.Logger) *PostgresStorage {
	if schema == "" {
		schema = "mtclient"
	}
	return &PostgresStorage{ConnectionString: connectionString, Schema: schema, Logger: log}
}

// -----------------------------------------------------------------------------

func (p *PostgresStorage) Initialize() error {
	db, err := sql.Open("postgres", p.ConnectionString)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return err
	}
	p.DB = db

	if _, err := p.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, p.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", p.Schema, err)
	}

	return p.createTables()
}

// -----------------------------------------------------------------------------

func (p *PostgresStorage) createTables() error {
	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s"."history_orders" (
			instance_index TEXT,
			id TEXT,
			type TEXT,
			state TEXT,
			symbol TEXT,
			open_price DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			position_id TEXT,
			time TIMESTAMPTZ,
			done_time TIMESTAMPTZ,
			platform TEXT,
			comment TEXT,
			client_id TEXT,
			PRIMARY KEY (instance_index, id)
		);`, p.Schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s"."deals" (
			instance_index TEXT,
			id TEXT,
			order_id TEXT,
			position_id TEXT,
			symbol TEXT,
			type TEXT,
			volume DOUBLE PRECISION,
			price DOUBLE PRECISION,
			commission DOUBLE PRECISION,
			swap DOUBLE PRECISION,
			profit DOUBLE PRECISION,
			time TIMESTAMPTZ,
			platform TEXT,
			PRIMARY KEY (instance_index, id)
		);`, p.Schema),
	}
	for _, q := range queries {
		if _, err := p.DB.Exec(q); err != nil {
			return fmt.Errorf("failed to create history table: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (p *PostgresStorage) SaveHistoryOrders(instanceIndex string, orders []*models.HistoryOrder) error {
	if len(orders) == 0 {
		return nil
	}
	tx, err := p.DB.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO "%s"."history_orders"
		(instance_index, id, type, state, symbol, open_price, volume, position_id, time, done_time, platform, comment, client_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (instance_index, id) DO UPDATE SET state = EXCLUDED.state, done_time = EXCLUDED.done_time`, p.Schema))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range orders {
		if _, err := stmt.Exec(instanceIndex, o.ID, string(o.Type), o.State, o.Symbol, o.OpenPrice, o.Volume,
			o.PositionID, o.Time, o.DoneTime, string(o.Platform), o.Comment, o.ClientID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (p *PostgresStorage) SaveDeals(instanceIndex string, deals []*models.Deal) error {
	if len(deals) == 0 {
		return nil
	}
	tx, err := p.DB.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO "%s"."deals"
		(instance_index, id, order_id, position_id, symbol, type, volume, price, commission, swap, profit, time, platform)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (instance_index, id) DO NOTHING`, p.Schema))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, d := range deals {
		if _, err := stmt.Exec(instanceIndex, d.ID, d.OrderID, d.PositionID, d.Symbol, d.Type, d.Volume, d.Price,
			d.Commission, d.Swap, d.Profit, d.Time, string(d.Platform)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (p *PostgresStorage) LastHistoryOrderTime(instanceIndex string) (models.OptionalTime, error) {
	return p.queryLastTime(fmt.Sprintf(`SELECT MAX(done_time) FROM "%s"."history_orders" WHERE instance_index = $1`, p.Schema), instanceIndex)
}

func (p *PostgresStorage) LastDealTime(instanceIndex string) (models.OptionalTime, error) {
	return p.queryLastTime(fmt.Sprintf(`SELECT MAX(time) FROM "%s"."deals" WHERE instance_index = $1`, p.Schema), instanceIndex)
}

// -----------------------------------------------------------------------------

func (p *PostgresStorage) queryLastTime(query, instanceIndex string) (models.OptionalTime, error) {
	var ts sql.NullTime
	if err := p.DB.QueryRow(query, instanceIndex).Scan(&ts); err != nil {
		return models.OptionalTime{}, err
	}
	if !ts.Valid {
		return models.OptionalTime{}, nil
	}
	return models.OptionalTime{Time: ts.Time, Valid: true}, nil
}

// -----------------------------------------------------------------------------

func (p *PostgresStorage) Close() error {
	if p.DB == nil {
		return nil
	}
	return p.DB.Close()
}

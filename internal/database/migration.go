package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cardledger/pkg/logger"
)

type Migration struct {
	Name  string
	Apply func(ctx context.Context, tx *sql.Tx, d Dialect) error
}

type MigrationService struct {
	db      *sql.DB
	dialect Dialect
	logger  logger.Logger
}

func NewMigrationService(db *sql.DB, dialect Dialect, logger logger.Logger) *MigrationService {
	return &MigrationService{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

func (d Dialect) serialPrimaryKey() string {
	if d == Postgres {
		return "SERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d Dialect) amountType() string {
	if d == Postgres {
		return "NUMERIC(10,2)"
	}
	// TEXT keeps the exact decimal representation; sqlite NUMERIC would coerce to REAL.
	return "TEXT"
}

func (m *MigrationService) initMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS schema_migrations (
        id %s,
        name TEXT NOT NULL UNIQUE,
        applied_at TIMESTAMP NOT NULL
    )`, m.dialect.serialPrimaryKey())

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		m.logger.Error("Failed to create migrations table", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func (m *MigrationService) isApplied(ctx context.Context, name string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE name = $1", name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (m *MigrationService) apply(ctx context.Context, mig Migration) (err error) {
	applied, err := m.isApplied(ctx, mig.Name)
	if err != nil {
		return err
	}
	if applied {
		m.logger.Debug("Migration already applied", map[string]interface{}{"name": mig.Name})
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			m.logger.Error("Migration rolled back", map[string]interface{}{"name": mig.Name, "error": err.Error()})
		}
	}()

	if err = mig.Apply(ctx, tx, m.dialect); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2)",
		mig.Name, time.Now().UTC()); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	m.logger.Info("Migration applied", map[string]interface{}{"name": mig.Name})
	return nil
}

// Run applies the given migrations in order, skipping the ones already
// recorded in schema_migrations.
func (m *MigrationService) Run(ctx context.Context, migrations []Migration) error {
	if err := m.initMigrationTable(ctx); err != nil {
		return fmt.Errorf("init migrations table: %w", err)
	}

	for _, mig := range migrations {
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("apply migration %s: %w", mig.Name, err)
		}
	}
	return nil
}

// UserMigrations builds the User Directory schema.
var UserMigrations = []Migration{
	{Name: "create_users_table", Apply: createUsersTable},
}

// TransactionMigrations builds the ledger schema.
var TransactionMigrations = []Migration{
	{Name: "create_lancamentos_table", Apply: createTransactionsTable},
	{Name: "create_lancamentos_usuario_idx", Apply: createTransactionsUserIndex},
}

func createUsersTable(ctx context.Context, tx *sql.Tx, d Dialect) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS users (
        id %s,
        nome TEXT NOT NULL,
        email TEXT NOT NULL UNIQUE,
        created_at TIMESTAMP NOT NULL
    )`, d.serialPrimaryKey())

	_, err := tx.ExecContext(ctx, query)
	return err
}

func createTransactionsTable(ctx context.Context, tx *sql.Tx, d Dialect) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS lancamentos (
        id %s,
        usuario_id INTEGER NOT NULL,
        descricao TEXT NOT NULL,
        valor %s NOT NULL,
        cartao_tipo TEXT NOT NULL,
        cartao_final TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL
    )`, d.serialPrimaryKey(), d.amountType())

	_, err := tx.ExecContext(ctx, query)
	return err
}

func createTransactionsUserIndex(ctx context.Context, tx *sql.Tx, _ Dialect) error {
	_, err := tx.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS lancamentos_usuario_id_idx ON lancamentos (usuario_id)")
	return err
}

package infra

import (
	"fmt"

	"blendcaja/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx. When autoMigrate is
// set it creates / updates the caja tables and applies the idempotent SQL
// patches that GORM cannot express.
func NewDatabase(dsn string, autoMigrate bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if autoMigrate {
		if err := RunMigrations(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// GormConfig is shared by the server and the repository tests.
// TranslateError turns unique violations into gorm.ErrDuplicatedKey, which the
// repository maps to conflicts.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

// RunMigrations creates the caja schema. Also used by integration tests.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.SesionCaja{},
		&model.MovimientoCaja{},
		&model.PagoMovimiento{},
		&model.SesionArchivada{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement is guarded so re-running on a patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Outflows are stored negative, everything else positive.
		{"check movimientos_caja monto sign", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_movimientos_caja_signo') THEN
    ALTER TABLE movimientos_caja ADD CONSTRAINT chk_movimientos_caja_signo CHECK (
      (tipo IN ('withdrawal', 'expense', 'cancellation') AND monto <= 0)
      OR (tipo NOT IN ('withdrawal', 'expense', 'cancellation') AND monto >= 0)
    );
  END IF;
END $$`},
		// AR collections are looked up by reference on every append.
		{"partial index on AR references", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_movimientos_caja_cobro_ref') THEN
    CREATE INDEX idx_movimientos_caja_cobro_ref
        ON movimientos_caja (referencia)
        WHERE es_cobro_cuenta_corriente AND referencia IS NOT NULL;
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

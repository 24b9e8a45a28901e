// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vortexart/marketplace-backend/internal/config"
	"github.com/vortexart/marketplace-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// gen_random_uuid for primary keys
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"pgcrypto\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Artwork{},
		&models.ContractRecord{},
		&models.RoyaltyRecipient{},
		&models.ProvenanceEvent{},
		&models.SwapTransaction{},
		&models.Sale{},
		&models.AuditLog{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Server-side id defaults so raw SQL inserts get keys too; the model hook
	// covers ORM writes.
	tables := []string{
		"users", "artworks", "contract_records", "royalty_recipients",
		"provenance_events", "swap_transactions", "sales", "audit_logs",
	}
	for _, table := range tables {
		stmt := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN id SET DEFAULT gen_random_uuid()", table)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to set id default on %s: %w", table, err)
		}
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)",
		"CREATE INDEX IF NOT EXISTS idx_users_wallet ON users(wallet_address)",

		// Artwork indexes
		"CREATE INDEX IF NOT EXISTS idx_artworks_owner ON artworks(owner_id)",
		"CREATE INDEX IF NOT EXISTS idx_artworks_creator ON artworks(creator_id)",
		"CREATE INDEX IF NOT EXISTS idx_artworks_lock_state ON artworks(lock_state)",
		"CREATE INDEX IF NOT EXISTS idx_artworks_created_at ON artworks(created_at DESC)",

		// Contract indexes: at most one live (non-superseded) record per artwork
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_contracts_live ON contract_records(artwork_id) WHERE superseded_by_id IS NULL AND deleted_at IS NULL",
		"CREATE INDEX IF NOT EXISTS idx_royalty_recipients_contract ON royalty_recipients(contract_record_id)",

		// Provenance indexes (the unique (artwork_id, sequence_number) pair is
		// created by AutoMigrate from the model tags)
		"CREATE INDEX IF NOT EXISTS idx_provenance_tx ON provenance_events(tx_id)",
		"CREATE INDEX IF NOT EXISTS idx_provenance_occurred ON provenance_events(artwork_id, occurred_at)",

		// Swap indexes
		"CREATE INDEX IF NOT EXISTS idx_swaps_status ON swap_transactions(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_swaps_initiator ON swap_transactions(initiator_id)",
		"CREATE INDEX IF NOT EXISTS idx_swaps_counterparty ON swap_transactions(counterparty_id)",

		// Sale indexes
		"CREATE INDEX IF NOT EXISTS idx_sales_artwork ON sales(artwork_id)",
		"CREATE INDEX IF NOT EXISTS idx_sales_status ON sales(status, created_at DESC)",

		// Audit indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

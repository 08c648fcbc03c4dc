package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Statements are kept to the subset of SQL shared by PostgreSQL and SQLite
// so tests run the production schema. Ids are generated by the service.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS budgets (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		name VARCHAR(255) NOT NULL,
		type VARCHAR(128) NOT NULL DEFAULT '',
		year INTEGER NOT NULL,
		date DATE NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		total_amount NUMERIC(18,2) NOT NULL CHECK (total_amount >= 0),
		used_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CONSTRAINT chk_budget_used CHECK (used_amount >= 0 AND used_amount <= total_amount)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_budgets_owner_id ON budgets (owner_id);`,
	`CREATE TABLE IF NOT EXISTS kekv (
		id UUID PRIMARY KEY,
		budget_id UUID NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
		code VARCHAR(16) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		planned_amount NUMERIC(18,2) NOT NULL CHECK (planned_amount >= 0),
		used_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CONSTRAINT chk_kekv_used CHECK (used_amount >= 0 AND used_amount <= planned_amount)
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_kekv_budget_code ON kekv (budget_id, code);`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		budget_id UUID NOT NULL REFERENCES budgets(id),
		kekv_id UUID NOT NULL REFERENCES kekv(id),
		number VARCHAR(64) NOT NULL,
		name VARCHAR(512) NOT NULL DEFAULT '',
		dk_code VARCHAR(64) NOT NULL DEFAULT '',
		dk_name VARCHAR(512) NOT NULL DEFAULT '',
		contractor VARCHAR(512) NOT NULL,
		amount NUMERIC(18,2) NOT NULL CHECK (amount > 0),
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'ACTIVE'
			CHECK (status IN ('ACTIVE', 'COMPLETED', 'DRAFT', 'CANCELLED')),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_owner_id ON contracts (owner_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_budget_id ON contracts (budget_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_kekv_id ON contracts (kekv_id);`,
	`CREATE TABLE IF NOT EXISTS specifications (
		id UUID PRIMARY KEY,
		contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		name VARCHAR(512) NOT NULL,
		code VARCHAR(128) NOT NULL DEFAULT '',
		unit VARCHAR(64) NOT NULL,
		quantity NUMERIC(18,3) NOT NULL CHECK (quantity > 0),
		price NUMERIC(18,4) NOT NULL CHECK (price > 0),
		amount NUMERIC(18,4) NOT NULL CHECK (amount >= 0),
		remaining NUMERIC(18,3) NOT NULL,
		section VARCHAR(16) NOT NULL DEFAULT '',
		service_count INTEGER CHECK (service_count IS NULL OR service_count >= 1),
		position INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CONSTRAINT chk_specification_remaining CHECK (remaining >= 0 AND remaining <= quantity)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_specifications_contract_id ON specifications (contract_id, position);`,
	`CREATE TABLE IF NOT EXISTS usage_records (
		id UUID PRIMARY KEY,
		specification_id UUID NOT NULL REFERENCES specifications(id) ON DELETE CASCADE,
		quantity_used NUMERIC(18,3) NOT NULL CHECK (quantity_used > 0),
		description TEXT NOT NULL DEFAULT '',
		document_number VARCHAR(255) NOT NULL DEFAULT '',
		date TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_usage_records_specification_id ON usage_records (specification_id);`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		model VARCHAR(255) NOT NULL DEFAULT '',
		military_number VARCHAR(64) NOT NULL DEFAULT '',
		vin VARCHAR(128) NOT NULL,
		location VARCHAR(255) NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 2000,
		status VARCHAR(64) NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_vehicles_vin ON vehicles (vin);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_owner_id ON vehicles (owner_id);`,
	`CREATE TABLE IF NOT EXISTS vehicle_contracts (
		vehicle_id UUID NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
		contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		PRIMARY KEY (vehicle_id, contract_id)
	);`,
}

// Migrate applies every statement in order. Statements are idempotent.
func Migrate(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

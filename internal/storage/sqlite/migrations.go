package sqlite

import "database/sql"

// schema sets up the database. It runs on startup and is idempotent.
// Dates are YYYY-MM-DD text, timestamps are Unix seconds, money is decimal text.
const schema = `
CREATE TABLE IF NOT EXISTS buildings (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    default_monthly_fee TEXT NOT NULL DEFAULT '0',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS flats (
    id TEXT PRIMARY KEY,
    building_id TEXT NOT NULL,
    number TEXT NOT NULL,
    tenant_name TEXT NOT NULL DEFAULT '',
    tenant_email TEXT NOT NULL DEFAULT '',
    monthly_rent TEXT NOT NULL DEFAULT '0',
    active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (building_id) REFERENCES buildings(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS contracts (
    id TEXT PRIMARY KEY,
    flat_id TEXT NOT NULL,
    tenant_name TEXT NOT NULL,
    tenant_contact TEXT NOT NULL DEFAULT '',
    tenant_email TEXT NOT NULL DEFAULT '',
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    monthly_rent TEXT NOT NULL,
    security_deposit TEXT NOT NULL DEFAULT '0',
    day_of_month INTEGER NOT NULL CHECK (day_of_month BETWEEN 1 AND 31),
    status TEXT NOT NULL,
    dues_generated INTEGER NOT NULL DEFAULT 0,
    previous_contract_id TEXT,
    notes TEXT NOT NULL DEFAULT '',
    cancellation_reason TEXT NOT NULL DEFAULT '',
    cancellation_date TEXT,
    cancelled_by TEXT NOT NULL DEFAULT '',
    deposit_refunded INTEGER NOT NULL DEFAULT 0,
    status_changed_at INTEGER NOT NULL DEFAULT 0,
    status_changed_by TEXT NOT NULL DEFAULT '',
    status_change_reason TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (flat_id) REFERENCES flats(id),
    FOREIGN KEY (previous_contract_id) REFERENCES contracts(id)
);

CREATE TABLE IF NOT EXISTS monthly_dues (
    id TEXT PRIMARY KEY,
    flat_id TEXT NOT NULL,
    contract_id TEXT,
    due_date TEXT NOT NULL,
    due_amount TEXT NOT NULL,
    base_rent TEXT NOT NULL,
    additional_charges TEXT NOT NULL DEFAULT '0',
    additional_charges_description TEXT NOT NULL DEFAULT '',
    paid_amount TEXT NOT NULL DEFAULT '0',
    payment_date TEXT,
    status TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (flat_id) REFERENCES flats(id),
    FOREIGN KEY (contract_id) REFERENCES contracts(id)
);

CREATE TABLE IF NOT EXISTS payments (
    id TEXT PRIMARY KEY,
    flat_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    payment_date INTEGER NOT NULL,
    method TEXT NOT NULL,
    reference_number TEXT NOT NULL DEFAULT '',
    receipt_number TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    recorded_by TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (flat_id) REFERENCES flats(id)
);

CREATE TABLE IF NOT EXISTS payment_allocations (
    id TEXT PRIMARY KEY,
    payment_id TEXT NOT NULL,
    due_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (payment_id) REFERENCES payments(id) ON DELETE CASCADE,
    FOREIGN KEY (due_id) REFERENCES monthly_dues(id)
);

CREATE INDEX IF NOT EXISTS idx_flats_building_id ON flats(building_id);
CREATE INDEX IF NOT EXISTS idx_contracts_flat_id ON contracts(flat_id, status);
CREATE INDEX IF NOT EXISTS idx_contracts_end_date ON contracts(status, end_date);
CREATE INDEX IF NOT EXISTS idx_dues_flat_id ON monthly_dues(flat_id, status, due_date);
CREATE INDEX IF NOT EXISTS idx_dues_status_date ON monthly_dues(status, due_date);
CREATE INDEX IF NOT EXISTS idx_payments_flat_id ON payments(flat_id);
CREATE INDEX IF NOT EXISTS idx_allocations_payment_id ON payment_allocations(payment_id);
CREATE INDEX IF NOT EXISTS idx_allocations_due_id ON payment_allocations(due_id);

-- Building-wide generation is idempotent per flat and date.
CREATE UNIQUE INDEX IF NOT EXISTS ux_dues_building_flat_date
    ON monthly_dues(flat_id, due_date) WHERE source = 'building';

CREATE UNIQUE INDEX IF NOT EXISTS ux_dues_contract_date
    ON monthly_dues(contract_id, due_date) WHERE contract_id IS NOT NULL;
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

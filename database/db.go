package database

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/batchfile/exportd/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ConnectDB establishes a database connection with pooling and bootstraps
// the processing tables.
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = db.Ping()
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, err
	}
	err = createMasterRecordsTable(db)
	if err != nil {
		return nil, err
	}
	err = createDetailRecordsTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createMasterRecordsTable creates the master work-queue table. The partial
// index backs the claim query's (priority DESC, created_at ASC) ordering.
func createMasterRecordsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS master_records (
			master_id BIGSERIAL PRIMARY KEY,
			business_center_code VARCHAR(10) NOT NULL,
			priority INT NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			locked_by VARCHAR(255),
			locked_at TIMESTAMP,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP
		)
	`)
	if err != nil {
		log.Printf("Error creating master_records table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_master_records_claim
		ON master_records (priority DESC, created_at ASC)
		WHERE status IN ('PENDING', 'PROCESSING')
	`)
	if err != nil {
		log.Printf("Error creating master_records claim index: %v", err)
	}
	return err
}

// createDetailRecordsTable creates the detail table with the embedded JSONB
// transaction document.
func createDetailRecordsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS detail_records (
			detail_id BIGSERIAL,
			master_id BIGINT NOT NULL,
			record_type VARCHAR(20),
			account_number VARCHAR(50),
			customer_name VARCHAR(255),
			amount DECIMAL(18,2),
			currency CHAR(3),
			description TEXT,
			transaction_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			transaction_data JSONB,
			processing_status VARCHAR(20),
			error_message TEXT,
			PRIMARY KEY (master_id, detail_id)
		)
	`)
	if err != nil {
		log.Printf("Error creating detail_records table: %v", err)
	}
	return err
}

// isTransientPgError reports whether a database error is worth a local
// retry: serialization failures, deadlocks and connection-class errors.
func isTransientPgError(err error) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return pqErr.Code.Class() == "08"
}

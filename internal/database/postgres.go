package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL database
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Set connection pool settings
	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	// Initialize tables
	if err = InitPostgresTables(); err != nil {
		return err
	}

	return nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables() error {
	queries := []string{
		// Operators table (internal users; master operators bypass permissions)
		`CREATE TABLE IF NOT EXISTS operators (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			is_master BOOLEAN NOT NULL DEFAULT FALSE,
			is_disabled BOOLEAN NOT NULL DEFAULT FALSE,
			token_version INTEGER NOT NULL DEFAULT 1,
			allowed_sections TEXT,
			last_login TIMESTAMP
		)`,

		// Subjects table (dossier profiles, one owner each)
		`CREATE TABLE IF NOT EXISTS subjects (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			owner_id UUID NOT NULL REFERENCES operators(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			name VARCHAR(255) NOT NULL,
			occupation VARCHAR(255),
			avatar_url TEXT,
			threat_level INTEGER NOT NULL DEFAULT 0,
			date_of_birth VARCHAR(50),
			nationality VARCHAR(100),
			aliases TEXT,
			last_known_address TEXT,
			biography TEXT
		)`,

		// Intel notes table
		`CREATE TABLE IF NOT EXISTS subject_notes (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			title VARCHAR(255) NOT NULL,
			body TEXT NOT NULL,
			classification VARCHAR(50)
		)`,

		// Timeline events table
		`CREATE TABLE IF NOT EXISTS subject_events (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			occurred_at TIMESTAMP NOT NULL DEFAULT NOW(),
			title VARCHAR(255) NOT NULL,
			description TEXT
		)`,

		// Location sightings table (operator entries + share viewer disclosures)
		`CREATE TABLE IF NOT EXISTS subject_locations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			label VARCHAR(255),
			source VARCHAR(50) NOT NULL DEFAULT 'operator',
			share_token VARCHAR(64)
		)`,

		// Relationships table (network tab)
		`CREATE TABLE IF NOT EXISTS subject_relationships (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			related_name VARCHAR(255) NOT NULL,
			relation VARCHAR(100) NOT NULL,
			related_subject_id UUID REFERENCES subjects(id) ON DELETE SET NULL
		)`,

		// Media files table (bytes live in Cloudinary)
		`CREATE TABLE IF NOT EXISTS subject_files (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			file_name VARCHAR(255) NOT NULL,
			url TEXT NOT NULL,
			kind VARCHAR(50)
		)`,

		// Share links table. started_at is NULL until first successful
		// access; duration_seconds never changes after insert.
		`CREATE TABLE IF NOT EXISTS share_links (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			token VARCHAR(64) NOT NULL UNIQUE,
			duration_seconds INTEGER NOT NULL,
			started_at TIMESTAMP,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			views INTEGER NOT NULL DEFAULT 0,
			require_location BOOLEAN NOT NULL DEFAULT FALSE,
			allowed_tabs TEXT
		)`,

		// Create indexes for better performance
		`CREATE INDEX IF NOT EXISTS idx_operators_email ON operators(email)`,
		`CREATE INDEX IF NOT EXISTS idx_subjects_owner_id ON subjects(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_subjects_created_at ON subjects(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_subject_notes_subject_id ON subject_notes(subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_subject_events_subject_id ON subject_events(subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_subject_events_occurred_at ON subject_events(occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_subject_locations_subject_id ON subject_locations(subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_subject_locations_created_at ON subject_locations(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_subject_relationships_subject_id ON subject_relationships(subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_subject_files_subject_id ON subject_files(subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_share_links_token ON share_links(token)`,
		`CREATE INDEX IF NOT EXISTS idx_share_links_subject_id ON share_links(subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_share_links_is_active ON share_links(is_active)`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}

package store

import "context"

// runMigrations executes all database migrations.
// The DDL is written to run unchanged on SQLite and MySQL.
func (s *Store) runMigrations(ctx context.Context) error {
	migrations := []string{
		// Subjects table - the enrolled people who can be recognized
		`CREATE TABLE IF NOT EXISTS subjects (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			department VARCHAR(128) NOT NULL DEFAULT '',
			year VARCHAR(16) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			contact VARCHAR(64) NOT NULL DEFAULT '',
			photo_path VARCHAR(512) NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,

		// Face samples table - cropped grayscale faces used for training
		`CREATE TABLE IF NOT EXISTS face_samples (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			subject_id VARCHAR(64) NOT NULL,
			object_key VARCHAR(512) NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
		)`,

		// Attendance table - at most one row per subject per day
		`CREATE TABLE IF NOT EXISTS attendance (
			subject_id VARCHAR(64) NOT NULL,
			day VARCHAR(10) NOT NULL,
			name VARCHAR(255) NOT NULL,
			arrival_at DATETIME NULL,
			departure_at DATETIME NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'Present',
			PRIMARY KEY (subject_id, day),
			FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
		)`,
	}

	if s.driver == DriverSQLite {
		migrations = append(migrations,
			`CREATE INDEX IF NOT EXISTS idx_face_samples_subject_id ON face_samples(subject_id)`,
			`CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance(day)`,
		)
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}

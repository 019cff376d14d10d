// Package database provides SQLite connectivity for the upsdash audit trail.
//
// This package manages:
//   - The connection, with WAL mode so audit queries do not block writes
//   - Versioned schema migrations read from an fs.FS
//   - Connection pool sizing for SQLite's single writer
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be NULLABLE or have a DEFAULT,
// and each .up.sql should have a matching .down.sql.
package database

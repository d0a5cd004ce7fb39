// Package database provides the SQLite store behind Taskdesk.
//
// It owns the connection (WAL mode, busy timeout, foreign keys on) and the
// versioned migration runner. Repositories in the auth, task and audit
// packages take the embedded *sql.DB and issue parameterised queries only.
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql.
package database

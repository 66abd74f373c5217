// Package database owns the daemon's SQLite file: opening it with WAL
// mode and a busy timeout, applying embedded schema migrations, and
// answering health checks.
//
// The entity store queries the embedded *sql.DB directly; this package
// does not wrap the query API.
//
//	db, err := database.Open(database.Config{Path: "data/rakobridge.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database

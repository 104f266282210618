// Package migration applies versioned SQL schema files to a SQLite database.
//
// Migration files are named {version}_{description}.sql (for example
// "001_initial_schema.sql") and are read from any fs.FS, typically an
// embedded directory. Applied versions are tracked in schema_migrations so
// every file runs once, in version order, inside its own transaction.
//
//	manager := migration.NewManager(
//		migration.NewScanner(files, "migrations"),
//		migration.NewSQLiteExecutor(db),
//		logger,
//	)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration

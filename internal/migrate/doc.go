// Package migrate applies versioned SQL scripts to a database.
//
// Migrations are files named NNNN_name.sql. The applied version is kept in
// PRAGMA user_version, so a database carries its own schema version and
// needs no bookkeeping table.
//
// Each pending migration runs in its own transaction together with the
// user_version update: a migration either lands completely or not at all.
// Scripts must therefore not issue BEGIN, COMMIT or ROLLBACK themselves.
//
// Applying is idempotent - running the same set again is a no-op.
package migrate

// Package database is the media catalog: categories and the filename to
// category associations for videos and images.
//
// It runs on SQLite (default) or PostgreSQL through sqlx. The schema is kept
// in embedded goose migrations and applied by [Open]. Statements are logged at
// debug level through sqldb-logger.
//
// Category 0 is the built-in "All" category. It is seeded by the first
// migration and can be neither created nor deleted.
package database

// Package database opens the PostgreSQL pool used to archive sync frames.
package database

// Package recorder archives inbound sync frames to PostgreSQL.
//
// Frames are batched and written append-only to the sync_frames table,
// keyed by a random frame ID and tagged with the session that saw them.
package recorder

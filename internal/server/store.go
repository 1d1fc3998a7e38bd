package server

import "context"

// Store is the durable append/query capability behind the ingest pipeline.
// The core treats it as opaque; failures are reported, never fatal.
type Store interface {
	// Append persists one reading and returns its store-assigned id.
	Append(ctx context.Context, reading Reading) (int64, error)
	// RecentN returns up to n of the most recent rows, newest first.
	RecentN(ctx context.Context, n int) ([]ReadingRow, error)
	Ping(ctx context.Context) error
	Close()
}

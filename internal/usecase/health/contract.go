package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EncoderChecker checks encoder provider availability.
type EncoderChecker interface {
	HealthCheck(ctx context.Context) error
}

// RemoteChecker checks the remote search service.
type RemoteChecker interface {
	Ping(ctx context.Context) error
}

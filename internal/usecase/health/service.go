package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed; searches still run locally.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckDisabled marks a component that is not configured.
	CheckDisabled CheckResult = "disabled"
)

// Component names in Report.Checks.
const (
	ComponentDatabase = "database"
	ComponentEncoder  = "encoder"
	ComponentRemote   = "remote"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	encoder EncoderChecker
	remote  RemoteChecker
}

// New creates a Service. encoder and remote can be nil.
func New(db DBPinger, encoder EncoderChecker, remote RemoteChecker) *Service {
	return &Service{db: db, encoder: encoder, remote: remote}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		ComponentDatabase: result(s.db.Ping(ctx)),
		ComponentEncoder:  CheckDisabled,
		ComponentRemote:   CheckDisabled,
	}
	if s.encoder != nil {
		checks[ComponentEncoder] = result(s.encoder.HealthCheck(ctx))
	}
	if s.remote != nil {
		checks[ComponentRemote] = result(s.remote.Ping(ctx))
	}

	status := Healthy
	switch {
	case checks[ComponentDatabase] == CheckError:
		status = Unhealthy
	case checks[ComponentEncoder] == CheckError, checks[ComponentRemote] == CheckError:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}

package service

import (
	"context"
	"time"

	"zara-assistant-be/internal/dto"
)

const (
	healthOK       = "ok"
	healthDown     = "down"
	healthDisabled = "disabled"
	healthDegraded = "degraded"
)

// Probe checks one dependency. A nil Probe means the dependency is not
// configured.
type Probe func(ctx context.Context) error

type IHealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

type healthService struct {
	db, redis, nats Probe
	timeout         time.Duration
}

func NewHealthService(db, redis, nats Probe, timeout time.Duration) IHealthService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &healthService{db: db, redis: redis, nats: nats, timeout: timeout}
}

// Check reports "degraded" when the database is unreachable. Redis and NATS
// are optional and only reported.
func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	res := dto.HealthResponse{
		Status: healthOK,
		DB:     s.probe(ctx, s.db),
		Redis:  s.probe(ctx, s.redis),
		NATS:   s.probe(ctx, s.nats),
	}
	if res.DB != healthOK {
		res.Status = healthDegraded
	}
	return res
}

func (s *healthService) probe(ctx context.Context, p Probe) string {
	if p == nil {
		return healthDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := p(ctx); err != nil {
		return healthDown
	}
	return healthOK
}

package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const checkTimeout = 5 * time.Second

// CheckResult represents the result of a single dependency check
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthResponse represents the liveness response
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness response
type ReadyResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker defines a health check function
type Checker func(ctx context.Context) CheckResult

// HealthReporter is implemented by transports that track their own connection state
type HealthReporter interface {
	Healthy() bool
}

// Config holds health service dependencies. Nil members are not checked.
type Config struct {
	Version string
	DB      *gorm.DB
	Cache   ports.Cache
	Queue   HealthReporter
}

// Service handles liveness and readiness checks
type Service struct {
	startTime time.Time
	version   string
	checkers  map[string]Checker
	// optional checks report degraded instead of unhealthy
	optional map[string]bool
	log      *zap.Logger
	mu       sync.RWMutex
	now      func() time.Time
}

// NewService creates a new health service
func NewService(cfg *Config, log *zap.Logger) *Service {
	s := &Service{
		startTime: time.Now(),
		version:   cfg.Version,
		checkers:  make(map[string]Checker),
		optional:  make(map[string]bool),
		log:       log,
		now:       time.Now,
	}

	if cfg.DB != nil {
		db := cfg.DB
		s.RegisterChecker("database", func(ctx context.Context) CheckResult {
			return s.probe(ctx, "database", func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			})
		})
	}
	// The cache and broker only back best-effort paths, so their loss degrades
	// the service without taking it out of rotation.
	if cfg.Cache != nil {
		c := cfg.Cache
		s.RegisterOptionalChecker("cache", func(ctx context.Context) CheckResult {
			return s.probe(ctx, "cache", func(context.Context) error { return c.Ping() })
		})
	}
	if cfg.Queue != nil {
		q := cfg.Queue
		s.RegisterOptionalChecker("queue", func(ctx context.Context) CheckResult {
			return s.probe(ctx, "queue", func(context.Context) error {
				if !q.Healthy() {
					return fmt.Errorf("not connected")
				}
				return nil
			})
		})
	}

	return s
}

// RegisterChecker registers a check whose failure makes the service not ready
func (s *Service) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	delete(s.optional, name)
	s.log.Info("Registered health checker", zap.String("name", name))
}

// RegisterOptionalChecker registers a check whose failure only degrades the service
func (s *Service) RegisterOptionalChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.optional[name] = true
	s.log.Info("Registered optional health checker", zap.String("name", name))
}

// Health performs a basic liveness check
func (s *Service) Health(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Timestamp: s.now(),
	}
}

// Ready runs every registered check concurrently
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	optional := make(map[string]bool, len(s.optional))
	for k, v := range s.checkers {
		checkers[k] = v
	}
	for k, v := range s.optional {
		optional[k] = v
	}
	s.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			result := checker(checkCtx)
			if result.Status == StatusUnhealthy && optional[name] {
				result.Status = StatusDegraded
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}

	wg.Wait()

	overall := StatusHealthy
	ready := true
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch results[name].Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
			ready = false
		case StatusDegraded:
			if overall != StatusUnhealthy {
				overall = StatusDegraded
			}
		}
	}

	return &ReadyResponse{
		Ready:     ready,
		Status:    overall,
		Timestamp: s.now(),
		Checks:    results,
	}
}

func (s *Service) probe(ctx context.Context, name string, ping func(context.Context) error) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name, Timestamp: s.now()}

	err := ping(ctx)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("ping failed: %v", err)
		s.log.Warn("Health check failed", zap.String("check", name), zap.Error(err))
		return result
	}

	result.Status = StatusHealthy
	result.Message = "connection ok"
	return result
}

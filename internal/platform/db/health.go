package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the connection pool section of the health response.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

// Pinger is the part of the pool the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

type statPinger interface {
	Pinger
	Stat() *pgxpool.Stat
}

// Health is the body of GET /health.
type Health struct {
	Status   string     `json:"status"`
	Database string     `json:"database"`
	Error    string     `json:"error,omitempty"`
	Pool     *PoolStats `json:"pool,omitempty"`
}

const healthTimeout = 5 * time.Second

// HealthHandler reports the service as healthy only when the database
// answers a ping. A nil pinger reports the database as not configured.
func HealthHandler(p Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if p == nil {
			return c.JSON(http.StatusServiceUnavailable, Health{Status: "unhealthy", Database: "not configured"})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		h := Health{Status: "healthy", Database: "up"}
		if sp, ok := p.(statPinger); ok {
			stat := sp.Stat()
			h.Pool = &PoolStats{
				TotalConns:    stat.TotalConns(),
				IdleConns:     stat.IdleConns(),
				AcquiredConns: stat.AcquiredConns(),
				MaxConns:      stat.MaxConns(),
			}
		}

		if err := p.Ping(ctx); err != nil {
			h.Status = "unhealthy"
			h.Database = "down"
			h.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}

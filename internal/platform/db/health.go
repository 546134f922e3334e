package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthPingTimeout = 5 * time.Second

// poolSnapshot is the pool section of the /health/db response body.
type poolSnapshot struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
	EmptyAcquires int64 `json:"empty_acquire_count"`
}

type healthResponse struct {
	Status  string       `json:"status"`
	PingMs  int64        `json:"ping_ms"`
	Pool    poolSnapshot `json:"pool"`
	Error   string       `json:"error,omitempty"`
	Checked time.Time    `json:"checked_at"`
}

// HealthHandler reports database reachability along with connection pool
// pressure. EmptyAcquires counts acquires that had to wait for a free
// connection, which is the earliest sign the pool is undersized for the
// analysis workload.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		start := time.Now()
		pingErr := pool.Ping(ctx)

		stat := pool.Stat()
		resp := healthResponse{
			Status: "healthy",
			PingMs: time.Since(start).Milliseconds(),
			Pool: poolSnapshot{
				TotalConns:    stat.TotalConns(),
				IdleConns:     stat.IdleConns(),
				AcquiredConns: stat.AcquiredConns(),
				MaxConns:      stat.MaxConns(),
				EmptyAcquires: stat.EmptyAcquireCount(),
			},
			Checked: time.Now().UTC(),
		}

		if pingErr != nil {
			resp.Status = "unhealthy"
			resp.Error = pingErr.Error()
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness plus dependency status. It always answers
// 200 so load balancers keep routing while a dependency flaps; the payload
// carries the detail.
type HealthHandler struct {
	db      *sqlx.DB
	redis   *redis.Client
	version string
}

// NewHealthHandler constructs HealthHandler.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client, version string) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, version: version}
}

// Health checks the database, applied migrations, and cache with a short
// timeout. The overall status degrades when any check fails.
func (h *HealthHandler) Health(c *gin.Context) {
	checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	migrationsStatus := "ok"
	if h.db != nil {
		if err := h.db.PingContext(checkCtx); err != nil {
			dbStatus = "down"
			migrationsStatus = "down"
		} else {
			var applied bool
			err := h.db.GetContext(checkCtx, &applied,
				"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'schema_migrations')")
			if err != nil || !applied {
				migrationsStatus = "down"
			}
		}
	}
	redisStatus := "ok"
	if h.redis != nil {
		if err := h.redis.Ping(checkCtx).Err(); err != nil {
			redisStatus = "down"
		}
	}

	status := "ok"
	if dbStatus != "ok" || migrationsStatus != "ok" || redisStatus != "ok" {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"version": h.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"checks": gin.H{
			"db":         dbStatus,
			"migrations": migrationsStatus,
			"redis":      redisStatus,
		},
	})
}

// Ready reports readiness for traffic.
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

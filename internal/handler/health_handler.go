package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/littlesprouts/admissions-api/internal/utils"
)

// HealthHandler reports process and dependency health.
type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Check)
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	checks := fiber.Map{"database": "ok", "redis": "ok"}
	healthy := true

	if h.db != nil {
		if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			checks["database"] = "unavailable"
			healthy = false
		}
	} else {
		checks["database"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.UserContext()).Err(); err != nil {
			checks["redis"] = "unavailable"
			healthy = false
		}
	} else {
		checks["redis"] = "not configured"
	}

	status := fiber.StatusOK
	state := "healthy"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}

	return utils.SendDataWithStatus(c, status, fiber.Map{"status": state, "checks": checks}, "")
}

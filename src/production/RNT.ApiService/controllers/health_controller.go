package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
)

// HealthChecker reports readiness of one backing dependency.
type HealthChecker interface {
	Name() string
	Healthy(ctx *gin.Context) bool
}

// BrokerStatus reports the MQTT connection state.
type BrokerStatus interface {
	IsConnected() bool
}

// HealthController handles liveness and readiness requests
type HealthController struct {
	checkers []HealthChecker
	broker   BrokerStatus
	logger   *logger.Logger
}

// NewHealthController creates a new health controller
func NewHealthController(broker BrokerStatus, logger *logger.Logger, checkers ...HealthChecker) *HealthController {
	return &HealthController{
		checkers: checkers,
		broker:   broker,
		logger:   logger,
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", c.HealthReady)
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	ready := true
	deps := gin.H{}

	for _, checker := range c.checkers {
		ok := checker.Healthy(ctx)
		deps[checker.Name()] = ok
		ready = ready && ok
	}

	mqttOK := c.broker != nil && c.broker.IsConnected()
	deps["mqtt"] = mqttOK
	ready = ready && mqttOK

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	ctx.JSON(status, gin.H{
		"status":       state,
		"dependencies": deps,
	})
}

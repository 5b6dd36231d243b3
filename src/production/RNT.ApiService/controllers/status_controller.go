package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	registry "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Registry"
	interfaces "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Repository/Interfaces"
)

// StatusController serves machine catalog, live sensor status, device
// registry snapshots and alert history
type StatusController struct {
	machineRepo interfaces.MachineRepository
	alertRepo   interfaces.AlertRepository
	readingRepo interfaces.ReadingRepository
	registry    *registry.Registry
	logger      *logger.Logger
	auth        gin.HandlerFunc
}

// NewStatusController creates a new status controller
func NewStatusController(
	machineRepo interfaces.MachineRepository,
	alertRepo interfaces.AlertRepository,
	readingRepo interfaces.ReadingRepository,
	reg *registry.Registry,
	logger *logger.Logger,
	auth gin.HandlerFunc,
) *StatusController {
	return &StatusController{
		machineRepo: machineRepo,
		alertRepo:   alertRepo,
		readingRepo: readingRepo,
		registry:    reg,
		logger:      logger,
		auth:        auth,
	}
}

// RegisterRoutes registers the status routes with Gin
func (c *StatusController) RegisterRoutes(router *gin.Engine) {
	machines := router.Group("/machines", c.auth)
	{
		machines.GET("", c.ListMachines)
		machines.GET("/:machine_id/status", c.GetMachineStatus)
		machines.GET("/:machine_id/readings", c.GetMachineReadings)
	}

	router.GET("/devices", c.auth, c.ListDevices)
	router.GET("/alerts", c.auth, c.ListAlerts)
}

func (c *StatusController) ListMachines(ctx *gin.Context) {
	machines, err := c.machineRepo.ListMachines(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, machines)
}

// GetMachineStatus returns the latest value and severity per sensor
// type, plus the bound device if any.
func (c *StatusController) GetMachineStatus(ctx *gin.Context) {
	machineID := ctx.Param("machine_id")

	machine, err := c.machineRepo.GetMachine(ctx, machineID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if machine == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "machine not found"})
		return
	}

	statuses, err := c.machineRepo.GetLiveStatus(ctx, machineID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	response := gin.H{
		"machine": machine,
		"sensors": statuses,
	}
	if device, ok := c.registry.FindByMachine(machineID); ok {
		response["device"] = gin.H{
			"chipId":   device.ChipID,
			"liveness": c.registry.Liveness(device.ChipID),
			"rssi":     device.RSSI,
		}
	}
	ctx.JSON(http.StatusOK, response)
}

func (c *StatusController) GetMachineReadings(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	readings, err := c.readingRepo.LatestReadings(ctx, interfaces.ReadingQuery{
		MachineID:  ctx.Param("machine_id"),
		SensorType: ctx.Query("sensor_type"),
		Limit:      limit,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, readings)
}

// ListDevices returns the in-memory registry snapshot with liveness
// annotations.
func (c *StatusController) ListDevices(ctx *gin.Context) {
	devices := c.registry.Snapshot()

	out := make([]gin.H, 0, len(devices))
	for _, device := range devices {
		out = append(out, gin.H{
			"device":   device,
			"liveness": c.registry.Liveness(device.ChipID),
		})
	}
	ctx.JSON(http.StatusOK, out)
}

func (c *StatusController) ListAlerts(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	alerts, err := c.alertRepo.ListAlerts(ctx, ctx.Query("machine_id"), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, alerts)
}

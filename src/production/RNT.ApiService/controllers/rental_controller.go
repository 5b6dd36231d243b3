package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	rental "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Rental"
)

// RentalController handles rental session lifecycle requests
type RentalController struct {
	service *rental.Service
	logger  *logger.Logger
	auth    gin.HandlerFunc
}

// NewRentalController creates a new rental controller
func NewRentalController(service *rental.Service, logger *logger.Logger, auth gin.HandlerFunc) *RentalController {
	return &RentalController{
		service: service,
		logger:  logger,
		auth:    auth,
	}
}

// RegisterRoutes registers the rental routes with Gin
func (c *RentalController) RegisterRoutes(router *gin.Engine) {
	rentals := router.Group("/rentals", c.auth)
	{
		rentals.POST("", c.CreateRental)
		rentals.GET("", c.ListRentals)
		rentals.GET("/:rental_id", c.GetRental)
		rentals.PATCH("/:rental_id/approve", c.Approve)
		rentals.PATCH("/:rental_id/reject", c.Reject)
		rentals.PATCH("/:rental_id/start", c.Start)
		rentals.PATCH("/:rental_id/end", c.End)
		rentals.POST("/:rental_id/extend", c.Extend)
		rentals.POST("/:rental_id/emergency-shutdown", c.EmergencyShutdown)
	}
}

type CreateRentalRequest struct {
	MachineID      string    `json:"machineId" binding:"required"`
	UserID         string    `json:"userId" binding:"required"`
	ScheduledStart time.Time `json:"scheduledStart" binding:"required"`
	ScheduledEnd   time.Time `json:"scheduledEnd" binding:"required"`
}

type ExtendRentalRequest struct {
	Minutes int `json:"minutes" binding:"required"`
}

type EmergencyShutdownRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (c *RentalController) CreateRental(ctx *gin.Context) {
	var req CreateRentalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := c.service.CreateRental(ctx, req.MachineID, req.UserID, req.ScheduledStart, req.ScheduledEnd)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, created)
}

func (c *RentalController) ListRentals(ctx *gin.Context) {
	if status := ctx.Query("status"); status != "" {
		rentals, err := c.service.ListRentalsByStatus(ctx, rntmodels.RentalStatus(status))
		if err != nil {
			respondError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, rentals)
		return
	}

	rentals, err := c.service.ListRentals(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, rentals)
}

func (c *RentalController) GetRental(ctx *gin.Context) {
	found, err := c.service.GetRental(ctx, ctx.Param("rental_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, found)
}

func (c *RentalController) Approve(ctx *gin.Context) {
	updated, err := c.service.Approve(ctx, ctx.Param("rental_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, updated)
}

func (c *RentalController) Reject(ctx *gin.Context) {
	updated, err := c.service.Reject(ctx, ctx.Param("rental_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, updated)
}

// Start commits the session transition, then reports device binding. A
// transport failure after commit still returns 200 with a warning.
func (c *RentalController) Start(ctx *gin.Context) {
	result, err := c.service.StartRental(ctx, ctx.Param("rental_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	response := gin.H{"rental": result.Rental}
	if result.BoundChipID != "" {
		response["chipId"] = result.BoundChipID
	}
	if result.TransportWarning != "" {
		response["warning"] = result.TransportWarning
	}
	ctx.JSON(http.StatusOK, response)
}

func (c *RentalController) End(ctx *gin.Context) {
	result, err := c.service.EndRental(ctx, ctx.Param("rental_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	response := gin.H{"rental": result.Rental}
	if result.TransportWarning != "" {
		response["warning"] = result.TransportWarning
	}
	ctx.JSON(http.StatusOK, response)
}

func (c *RentalController) Extend(ctx *gin.Context) {
	var req ExtendRentalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := c.service.ExtendRental(ctx, ctx.Param("rental_id"), req.Minutes)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, updated)
}

func (c *RentalController) EmergencyShutdown(ctx *gin.Context) {
	var req EmergencyShutdownRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := c.service.EmergencyShutdown(ctx, ctx.Param("rental_id"), req.Reason); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "shutdown"})
}

// respondError maps the error taxonomy onto HTTP status codes.
func respondError(ctx *gin.Context, err error) {
	switch {
	case rntmodels.IsValidation(err):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case rntmodels.IsNotFound(err):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case rntmodels.IsConflict(err):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case rntmodels.IsTransport(err):
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

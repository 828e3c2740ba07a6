package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Device connectivity
// @Description  Latest reading of the background connectivity probe.
// @Tags         device
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/device [get]
// @Security     BearerAuth
func (h *Handler) getDevice(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Connectivity.Latest())
}

// @Summary      Shut the device down
// @Tags         device
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/device/off [post]
// @Security     BearerAuth
func (h *Handler) deviceOff(c *gin.Context) {
	if !h.services.Device.Off() {
		c.JSON(http.StatusBadGateway, gin.H{"error": "device did not acknowledge shutdown"})
		return
	}
	if h.log != nil {
		h.log.Infow("device_off")
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOff})
}

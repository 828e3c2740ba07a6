package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/E3dvis/cronustraining/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK       = "ok"
	statusStarted  = "started"
	statusStopping = "stopping"
	statusOff      = "off"

	errInvalidChannel  = "invalid channel id"
	errStartRun        = "failed to start run"
	errNoResults       = "no finished run on this channel"
	errRangeUnknown    = "device wavelength range unknown"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// channelParam parses the :id path segment; responds 400 itself on
// invalid input.
func (h *Handler) channelParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidChannel})
		return 0, false
	}
	return id, true
}

// StartRunRequest is an exported model for Swagger docs of the start
// payload. All fields are optional overrides of the channel defaults.
type StartRunRequest struct {
	// Lower test bound in nm
	TestMin *float64 `json:"test_min,omitempty" example:"700"`
	// Upper test bound in nm
	TestMax *float64 `json:"test_max,omitempty" example:"1000"`
	// Post-set settle wait in seconds
	WaitTime *float64 `json:"wait_time,omitempty" example:"3"`
	// Number of cycles; 0 or negative runs unbounded
	Cycles *int `json:"cycles,omitempty" example:"100"`
	// Sweep a power-vs-wavelength curve after the run
	MeasurePowerCurve *bool `json:"measure_power_curve,omitempty" example:"false"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Start a test run
// @Description  Starts an endurance run on the channel. Body fields override configured defaults.
// @Tags         runs
// @Accept       json
// @Produce      json
// @Param        id    path   int              true  "Channel (1 or 2)"
// @Param        body  body   StartRunRequest  false "Parameter overrides"
// @Success      200   {object}  map[string]interface{}  "status, run"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/channels/{id}/start [post]
// @Security     BearerAuth
func (h *Handler) startRun(c *gin.Context) {
	channel, ok := h.channelParam(c)
	if !ok {
		return
	}
	var overrides service.RunOverrides
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&overrides); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
			return
		}
	}

	snap, err := h.services.TestRuns.Start(channel, overrides)
	switch {
	case errors.Is(err, service.ErrUnknownChannel):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidChannel})
	case errors.Is(err, service.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "run": snap})
	case errors.Is(err, service.ErrRangeUnknown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errRangeUnknown, "run": snap})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errStartRun, "run_start_failed", err, "channel", channel)
	default:
		c.JSON(http.StatusOK, gin.H{"status": statusStarted, "run": snap})
	}
}

// @Summary      Stop a test run
// @Description  Requests cooperative cancellation; the run may finish one in-flight poll after this returns.
// @Tags         runs
// @Produce      json
// @Param        id  path  int  true  "Channel (1 or 2)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/channels/{id}/stop [post]
// @Security     BearerAuth
func (h *Handler) stopRun(c *gin.Context) {
	channel, ok := h.channelParam(c)
	if !ok {
		return
	}
	if err := h.services.TestRuns.Stop(channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStopping, "run": h.services.TestRuns.Snapshot(channel)})
}

// @Summary      Live run snapshot
// @Tags         runs
// @Produce      json
// @Param        id  path  int  true  "Channel (1 or 2)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/channels/{id}/state [get]
// @Security     BearerAuth
func (h *Handler) getRunState(c *gin.Context) {
	channel, ok := h.channelParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.services.TestRuns.Snapshot(channel))
}

// @Summary      Hardware wavelength range
// @Tags         device
// @Produce      json
// @Param        id  path  int  true  "Channel (1 or 2)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/channels/{id}/range [get]
// @Security     BearerAuth
func (h *Handler) getRange(c *gin.Context) {
	channel, ok := h.channelParam(c)
	if !ok {
		return
	}
	r := h.services.Device.Range(channel)
	if r == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errRangeUnknown})
		return
	}
	c.JSON(http.StatusOK, r)
}

// @Summary      Export run outcomes as CSV
// @Tags         runs
// @Produce      text/csv
// @Param        id  path  int  true  "Channel (1 or 2)"
// @Success      200  {string}  string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/channels/{id}/results.csv [get]
// @Security     BearerAuth
func (h *Handler) getResultsCSV(c *gin.Context) {
	channel, ok := h.channelParam(c)
	if !ok {
		return
	}
	outcomes, _, err := h.services.TestRuns.Results(channel)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errNoResults})
		return
	}

	h.writeCSV(c, fmt.Sprintf("Ch%d_results.csv", channel), func(w *csv.Writer) error {
		if err := w.Write([]string{"timestamp", "wavelength_nm", "success", "duration_s"}); err != nil {
			return err
		}
		for _, o := range outcomes {
			row := []string{
				o.Timestamp.Format("2006-01-02 15:04:05"),
				strconv.FormatFloat(o.Wavelength, 'f', 1, 64),
				strconv.FormatBool(o.Success),
				strconv.FormatFloat(o.Duration, 'f', 1, 64),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// @Summary      Export power-curve samples as CSV
// @Tags         runs
// @Produce      text/csv
// @Param        id  path  int  true  "Channel (1 or 2)"
// @Success      200  {string}  string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/channels/{id}/power.csv [get]
// @Security     BearerAuth
func (h *Handler) getPowerCSV(c *gin.Context) {
	channel, ok := h.channelParam(c)
	if !ok {
		return
	}
	_, samples, err := h.services.TestRuns.Results(channel)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errNoResults})
		return
	}

	h.writeCSV(c, fmt.Sprintf("Ch%d_power_curve.csv", channel), func(w *csv.Writer) error {
		if err := w.Write([]string{"wavelength_nm", "power"}); err != nil {
			return err
		}
		for _, s := range samples {
			row := []string{
				strconv.FormatFloat(s.Wavelength, 'f', 1, 64),
				strconv.FormatFloat(s.Power, 'f', 3, 64),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (h *Handler) writeCSV(c *gin.Context, filename string, write func(*csv.Writer) error) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	w := csv.NewWriter(c.Writer)
	if err := write(w); err != nil {
		if h.log != nil {
			h.log.Errorw("csv_write_failed", "err", err)
		}
		return
	}
	w.Flush()
}

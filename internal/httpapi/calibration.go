package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCalibration serves the current direction offset.
func (h *Handlers) GetCalibration(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"offset": h.Calib.OffsetDeg()})
}

type setCalibrationRequest struct {
	Offset int `json:"offset"`
}

// PostCalibration sets the direction offset. A rejected out-of-bounds value
// leaves the calibration state untouched (spec.md §8 round-trip property).
func (h *Handlers) PostCalibration(c *gin.Context) {
	var req setCalibrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.Calib.Set(req.Offset); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offset": h.Calib.OffsetDeg()})
}

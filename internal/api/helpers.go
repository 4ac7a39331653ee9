package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"visubase/internal/schema"
	"visubase/internal/state"
)

// statusFor maps store and project errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrNotFound), errors.Is(err, state.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, schema.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	switch status {
	case http.StatusNotFound:
		msg = "Not found"
	case http.StatusConflict:
		msg = "Duplicate id"
	case http.StatusBadRequest:
		msg = "Invalid input"
	}
	c.JSON(status, gin.H{"error": msg, "details": err.Error()})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "details": err.Error()})
		return false
	}
	return true
}

// indexParam reads a positional index from the path.
func indexParam(c *gin.Context, name string) (int, bool) {
	i, err := strconv.Atoi(c.Param(name))
	if err != nil || i < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid index", "details": c.Param(name)})
		return 0, false
	}
	return i, true
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/audit"
	"github.com/sysfr3ak/archive-sys/internal/backup"
	"github.com/sysfr3ak/archive-sys/internal/job"
	"github.com/sysfr3ak/archive-sys/internal/photo"
	"github.com/sysfr3ak/archive-sys/internal/stage"
	"github.com/sysfr3ak/archive-sys/internal/user"
)

var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, job.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, photo.ErrNotFound),
		errors.Is(err, backup.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, job.ErrDuplicateJobNumber),
		errors.Is(err, user.ErrDuplicate),
		errors.Is(err, photo.ErrLimitReached):
		return http.StatusConflict
	case errors.Is(err, access.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, job.ErrInvalid),
		errors.Is(err, user.ErrInvalid),
		errors.Is(err, user.ErrDeleteSelf),
		errors.Is(err, backup.ErrInvalid),
		errors.Is(err, audit.ErrInvalidDate),
		errors.Is(err, stage.ErrUnknownStage),
		errors.Is(err, photo.ErrUnsupportedType),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		c.Error(err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

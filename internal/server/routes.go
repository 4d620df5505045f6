package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/metrics"
)

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/", s.authenticate())

	api.GET("/stages", s.handleStages)

	api.GET("/jobs", s.handleListJobs)
	api.GET("/jobs/years", s.handleJobYears)
	api.GET("/jobs/:id", s.handleGetJob)
	api.POST("/jobs", require(access.CreateJob), s.handleCreateJob)
	api.PUT("/jobs/:id", require(access.EditJob), s.handleUpdateJob)
	api.DELETE("/jobs/:id", require(access.DeleteJob), s.handleDeleteJob)

	api.POST("/jobs/:id/stage", require(access.UpdateStage), s.handleTransition)
	api.GET("/jobs/:id/history", s.handleHistory)

	api.GET("/jobs/:id/photos", s.handleListPhotos)
	api.POST("/jobs/:id/photos", require(access.CreateJob), s.handleUploadPhotos)
	api.GET("/photos/:id/file", s.handlePhotoFile)
	api.DELETE("/photos/:id", require(access.DeletePhoto), s.handleDeletePhoto)

	api.GET("/activity", require(access.ViewAudit), s.handleActivity)
	api.GET("/activity/export", require(access.ViewAudit), s.handleActivityExport)

	api.GET("/backups", s.handleListBackups)
	api.GET("/backups/status", s.handleBackupStatus)
	api.POST("/backups", require(access.ManageBackups), s.handleAddBackup)
	api.PUT("/backups/:id", require(access.ManageBackups), s.handleUpdateBackup)

	api.GET("/users", require(access.ManageUsers), s.handleListUsers)
	api.POST("/users", require(access.ManageUsers), s.handleCreateUser)
	api.DELETE("/users/:id", require(access.ManageUsers), s.handleDeleteUser)
}

// pathID parses the :id path parameter.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

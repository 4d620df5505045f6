package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sysfr3ak/archive-sys/internal/backup"
	"github.com/sysfr3ak/archive-sys/internal/metrics"
)

type backupRequest struct {
	BackupDate string `json:"backup_date"`
	Type       string `json:"backup_type"`
	Location   string `json:"backup_location"`
	Notes      string `json:"notes"`
}

func (r backupRequest) entry() backup.Entry {
	return backup.Entry{BackupDate: r.BackupDate, Type: r.Type, Location: r.Location, Notes: r.Notes}
}

func (s *Server) handleListBackups(c *gin.Context) {
	rows, err := backup.List(s.db.WithContext(c.Request.Context()))
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]backupView, 0, len(rows))
	for i := range rows {
		out = append(out, newBackupView(&rows[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleBackupStatus(c *gin.Context) {
	today := time.Now().In(s.cfg.Location())
	st, last, err := backup.Current(s.db.WithContext(c.Request.Context()), today, s.cfg.Backup.DueSoonDays)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if st.State != backup.StateUnknown {
		metrics.BackupDaysUntilDue.Set(float64(st.DaysUntilDue))
	}
	resp := gin.H{"status": st}
	if last != nil {
		resp["last"] = newBackupView(last)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAddBackup(c *gin.Context) {
	var req backupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	row, err := backup.Add(s.db.WithContext(c.Request.Context()), req.entry(), actorFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newBackupView(row))
}

func (s *Server) handleUpdateBackup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req backupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	row, err := backup.Update(s.db.WithContext(c.Request.Context()), id, req.entry(), actorFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBackupView(row))
}

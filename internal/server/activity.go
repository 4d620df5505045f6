package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sysfr3ak/archive-sys/internal/audit"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) activityFilter(c *gin.Context) (audit.Filter, error) {
	f := audit.Filter{
		Date:     c.Query("date"),
		From:     c.Query("from"),
		To:       c.Query("to"),
		Location: s.cfg.Location(),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw)
		}
		f.Limit = n
	}
	return f, nil
}

func (s *Server) handleActivity(c *gin.Context) {
	f, err := s.activityFilter(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := audit.Query(s.db.WithContext(c.Request.Context()), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newActivityViews(rows))
}

func (s *Server) handleActivityExport(c *gin.Context) {
	f, err := s.activityFilter(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := audit.Query(s.db.WithContext(c.Request.Context()), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	data, err := audit.ExportXLSX(rows)
	if err != nil {
		abortWithError(c, err)
		return
	}
	name := fmt.Sprintf("activity_%s.xlsx", time.Now().In(s.cfg.Location()).Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, data)
}

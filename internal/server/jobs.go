package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sysfr3ak/archive-sys/internal/history"
	"github.com/sysfr3ak/archive-sys/internal/job"
	"github.com/sysfr3ak/archive-sys/internal/stage"
)

type checklistRequest struct {
	Plate bool `json:"plate"`
	Die   bool `json:"die"`
	Paper bool `json:"paper"`
}

func (r checklistRequest) checklist() job.Checklist {
	return job.Checklist{Plate: r.Plate, Die: r.Die, Paper: r.Paper}
}

type metadataRequest struct {
	JobNo  string `json:"job_no"`
	Name   string `json:"name"`
	Date   string `json:"date"`
	Paper  string `json:"paper"`
	Note   string `json:"note"`
	Price  string `json:"price"`
	Serial string `json:"serial"`
}

func (r metadataRequest) metadata() job.Metadata {
	return job.Metadata{Name: r.Name, Date: r.Date, Paper: r.Paper, Note: r.Note, Price: r.Price, Serial: r.Serial}
}

type createJobRequest struct {
	metadataRequest
	Stage     string           `json:"stage"`
	Checklist checklistRequest `json:"checklist"`
}

type transitionRequest struct {
	Stage     string           `json:"stage"`
	Checklist checklistRequest `json:"checklist"`
	Ticks     struct {
		PlateSent     bool `json:"plate_sent"`
		PlateReceived bool `json:"plate_received"`
		DieSent       bool `json:"die_sent"`
		DieReceived   bool `json:"die_received"`
		PaperSent     bool `json:"paper_sent"`
		PaperDone     bool `json:"paper_done"`
	} `json:"ticks"`
}

// checkStage enforces the catalog when strict stages are configured.
func (s *Server) checkStage(code string) error {
	if code == "" || !s.cfg.Tracker.StrictStages {
		return nil
	}
	return stage.Check(code)
}

func (s *Server) handleStages(c *gin.Context) {
	c.JSON(http.StatusOK, stage.All())
}

func (s *Server) handleListJobs(c *gin.Context) {
	f := job.ListFilters{
		Query: c.Query("q"),
		Mode:  job.SearchMode(c.Query("mode")),
		Year:  c.Query("year"),
		Month: c.Query("month"),
		Stage: c.Query("stage"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abortWithError(c, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw))
			return
		}
		f.Limit = n
	}
	jobs, err := job.List(s.db.WithContext(c.Request.Context()), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobViews(jobs))
}

func (s *Server) handleJobYears(c *gin.Context) {
	years, err := job.Years(s.db.WithContext(c.Request.Context()))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, years)
}

func (s *Server) handleGetJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	j, err := job.Get(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobView(j))
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.checkStage(req.Stage); err != nil {
		abortWithError(c, err)
		return
	}
	j, err := job.Create(s.db.WithContext(c.Request.Context()), job.CreateOpts{
		JobNo:     req.JobNo,
		Metadata:  req.metadata(),
		Stage:     req.Stage,
		Checklist: req.Checklist.checklist(),
		Actor:     actorFrom(c),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newJobView(j))
}

func (s *Server) handleUpdateJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req metadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	j, err := job.UpdateMetadata(s.db.WithContext(c.Request.Context()), id,
		job.MetadataUpdate{JobNo: req.JobNo, Metadata: req.metadata()}, actorFrom(c), s.photos)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobView(j))
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := job.Delete(s.db.WithContext(c.Request.Context()), id, actorFrom(c), s.photos); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTransition(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.checkStage(req.Stage); err != nil {
		abortWithError(c, err)
		return
	}
	res, err := job.ApplyTransition(s.db.WithContext(c.Request.Context()), id, job.TransitionRequest{
		Stage:     req.Stage,
		Checklist: req.Checklist.checklist(),
		Ticks: job.Ticks{
			PlateSent:     req.Ticks.PlateSent,
			PlateReceived: req.Ticks.PlateReceived,
			DieSent:       req.Ticks.DieSent,
			DieReceived:   req.Ticks.DieReceived,
			PaperSent:     req.Ticks.PaperSent,
			PaperDone:     req.Ticks.PaperDone,
		},
		Actor: actorFrom(c),
		Now:   time.Now(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	recorded := res.Recorded
	if recorded == nil {
		recorded = []string{}
	}
	c.JSON(http.StatusOK, transitionView{Job: newJobView(res.Job), Recorded: recorded})
}

// handleHistory serves the ledger by job id. It does not require the job to
// still exist.
func (s *Server) handleHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entries, err := history.ListFor(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newHistoryViews(entries))
}

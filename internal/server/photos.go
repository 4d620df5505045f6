package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sysfr3ak/archive-sys/internal/job"
	"github.com/sysfr3ak/archive-sys/internal/models"
	"github.com/sysfr3ak/archive-sys/internal/photo"
)

type skippedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

func (s *Server) handleListPhotos(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := job.Get(s.db.WithContext(c.Request.Context()), id); err != nil {
		abortWithError(c, err)
		return
	}
	photos, err := s.photos.List(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]photoView, 0, len(photos))
	for i := range photos {
		out = append(out, newPhotoView(&photos[i]))
	}
	c.JSON(http.StatusOK, out)
}

// handleUploadPhotos stores every file of the "photos" form field. Files
// with an unsupported type, or beyond the per-job limit, are skipped and
// reported.
func (s *Server) handleUploadPhotos(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := job.Get(s.db.WithContext(c.Request.Context()), id); err != nil {
		abortWithError(c, err)
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	files := form.File["photos"]
	if len(files) == 0 {
		abortWithError(c, fmt.Errorf("%w: no files in field \"photos\"", errBadRequest))
		return
	}

	saved := make([]photoView, 0, len(files))
	skipped := make([]skippedFile, 0)
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			skipped = append(skipped, skippedFile{Filename: fh.Filename, Reason: err.Error()})
			continue
		}
		var p *models.Photo
		p, err = s.photos.Save(id, fh.Filename, f)
		f.Close()
		switch {
		case err == nil:
			saved = append(saved, newPhotoView(p))
		case errors.Is(err, photo.ErrUnsupportedType), errors.Is(err, photo.ErrLimitReached):
			skipped = append(skipped, skippedFile{Filename: fh.Filename, Reason: err.Error()})
		default:
			abortWithError(c, err)
			return
		}
	}

	status := http.StatusCreated
	if len(saved) == 0 {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"saved": saved, "skipped": skipped})
}

func (s *Server) handlePhotoFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	path, err := s.photos.Locate(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.File(path)
}

func (s *Server) handleDeletePhoto(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := s.photos.Delete(id, actorFrom(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

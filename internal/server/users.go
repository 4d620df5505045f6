package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/user"
)

type createUserRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := user.List(s.db.WithContext(c.Request.Context()))
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]userView, 0, len(users))
	for i := range users {
		out = append(out, newUserView(&users[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	u, err := user.Create(s.db.WithContext(c.Request.Context()), user.CreateOpts{
		FullName: req.FullName,
		Username: req.Username,
		Role:     access.Role(req.Role),
		Actor:    actorFrom(c),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newUserView(u))
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := user.Delete(s.db.WithContext(c.Request.Context()), id, actorFrom(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

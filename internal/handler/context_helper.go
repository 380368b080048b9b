package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-leads-api/internal/middleware"
	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/response"
)

// actorFromContext returns the authenticated actor or writes 401.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// bindJSON decodes the body into dest or writes 400.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	return page, size
}

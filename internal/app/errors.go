package app

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interview-scheduler/internal/apperr"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) respondError(c *gin.Context, err error) {
	e := apperr.FromError(err)
	if e.Status >= 500 {
		a.logger().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(e.Status, gin.H{"error": errorBody{Code: e.Code, Message: e.Message}})
}

func badBody(err error) error {
	return apperr.Wrap(err, apperr.ErrValidation, "invalid request body")
}

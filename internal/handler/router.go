package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Feedback *FeedbackHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/feedback", deps.Feedback.Analyze)
	api.GET("/cache/introspect", deps.Feedback.Introspect)
}

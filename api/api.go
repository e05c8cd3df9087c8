/*
Copyright 2025 Postline Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/postlinehq/postline"
	"github.com/postlinehq/postline/api/middleware"
	"github.com/postlinehq/postline/config"
	"github.com/postlinehq/postline/internal/apierror"
)

type Api struct {
	line   *postline.Postline
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.GET("/scheduled-posts/immediate", a.GetImmediateTargets)
	router.GET("/scheduled-posts", a.ListScheduledPosts)
	router.GET("/scheduled-posts/:id", a.GetScheduledPost)
	router.POST("/scheduled-posts/:id/cancel", a.CancelScheduledPost)
	router.POST("/scheduled-posts/:id/retry-failed", a.RetryFailedTargets)

	router.GET("/admin/jobs", a.ListJobs)
	router.GET("/admin/jobs/stats", a.GetJobStats)
	router.GET("/admin/jobs/:jobID", a.GetJob)
	router.POST("/admin/jobs/:jobID/retry", a.RetryJob)
	router.POST("/admin/jobs/:jobID/cancel", a.CancelJob)

	router.GET("/notices", a.ListNotices)

	return a.router
}

// respondError renders the taxonomy-mapped status with the upstream-provided
// message when one exists; a messageless upstream failure gets the generic
// status text rather than an empty body.
func respondError(c *gin.Context, err error) {
	status := apierror.MapErrorToHTTPStatus(err)
	if apiErr, ok := err.(apierror.APIError); ok {
		message := apiErr.Message
		if message == "" {
			message = http.StatusText(status)
		}
		c.JSON(status, gin.H{"error": message, "code": apiErr.Code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func NewAPI(line *postline.Postline) (*Api, error) {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{line: line, router: r}, nil
}

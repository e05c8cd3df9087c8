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
	"github.com/sirupsen/logrus"

	model2 "github.com/postlinehq/postline/api/model"
)

// ListJobs serves one cursor page of job history. The query surface mirrors
// the upstream filter set; invalid values fail before any upstream call.
//
// Responses:
// - 400 Bad Request: If a filter value fails validation.
// - 200 OK: The page, shaped {items, next_cursor}.
func (a Api) ListJobs(c *gin.Context) {
	var query model2.JobHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := query.ValidateJobHistoryQuery(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	page, err := a.line.ListJobs(c.Request.Context(), query.ToFilter(), query.Cursor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetJob serves one job record by its durable id.
func (a Api) GetJob(c *gin.Context) {
	jobID, passed := c.Params.Get("jobID")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "jobID is required. pass id in the route /:jobID"})
		return
	}

	job, err := a.line.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetJobStats serves the aggregate counts for the dashboard header.
func (a Api) GetJobStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.line.Stats().Snapshot())
}

// RetryJob re-enqueues one job. Conflicting upstream state (nothing left to
// retry, attempts exhausted) comes back as 422.
func (a Api) RetryJob(c *gin.Context) {
	jobID, passed := c.Params.Get("jobID")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "jobID is required. pass id in the route /:jobID"})
		return
	}

	if err := a.line.RetryJob(c.Request.Context(), jobID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "retrying"})
}

// CancelJob cancels one job.
func (a Api) CancelJob(c *gin.Context) {
	jobID, passed := c.Params.Get("jobID")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "jobID is required. pass id in the route /:jobID"})
		return
	}

	if err := a.line.CancelJob(c.Request.Context(), jobID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

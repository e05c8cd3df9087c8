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
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetImmediateTargets serves the transient "currently publishing" view: the
// derived in-flight targets plus the tracker's lifecycle state so the
// dashboard can tell an empty set apart from a tracker that has not started.
func (a Api) GetImmediateTargets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"targets": a.line.Immediate().Snapshot(),
		"state":   a.line.Immediate().State(),
	})
}

// ListScheduledPosts serves one cursor page of the durable post listing.
//
// Responses:
// - 200 OK: The page, shaped {items, next_cursor}.
// - 502 Bad Gateway: The scheduler is unreachable.
func (a Api) ListScheduledPosts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	page, err := a.line.ListScheduledPosts(c.Request.Context(), c.Query("mode"), c.Query("cursor"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetScheduledPost serves the aggregated detail payload for one post.
func (a Api) GetScheduledPost(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	detail, err := a.line.GetPostDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CancelScheduledPost cancels the post and every unpublished target.
func (a Api) CancelScheduledPost(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	if err := a.line.CancelPost(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

// RetryFailedTargets re-enqueues the post's failed targets.
func (a Api) RetryFailedTargets(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	if err := a.line.RetryFailedTargets(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "retrying"})
}

// ListNotices serves the bounded in-memory notice feed, newest first.
func (a Api) ListNotices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notices": a.line.Notices().List()})
}

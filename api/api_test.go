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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postlinehq/postline"
	"github.com/postlinehq/postline/config"
	"github.com/postlinehq/postline/model"
)

const schedulerURL = "https://scheduler.test"

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	err := json.NewDecoder(resp.Body).Decode(&s.Response)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *postline.Postline) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		ProjectName: "postline",
		Scheduler:   config.SchedulerConfig{Url: schedulerURL},
		Redis:       config.RedisConfig{Dns: mr.Addr()},
	})

	// The gateway client rides on the default transport, which httpmock
	// intercepts.
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	line, err := postline.NewPostline()
	require.NoError(t, err)
	t.Cleanup(line.Stop)

	a, err := NewAPI(line)
	require.NoError(t, err)

	return a.Router(), line
}

func TestGetImmediateTargetsEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	var response struct {
		Targets []model.ImmediateTarget `json:"targets"`
		State   string                  `json:"state"`
	}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    "/scheduled-posts/immediate",
		Response: &response,
		Router:   router,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotNil(t, response.Targets)
	assert.Equal(t, string(postline.PollerIdle), response.State)
}

func TestListScheduledPostsEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	httpmock.RegisterResponder("GET", schedulerURL+"/scheduled-posts",
		httpmock.NewStringResponder(http.StatusOK, `{
			"items": [{"id": "p1", "mode": "scheduled", "platforms": []}],
			"next_cursor": "next"
		}`))

	var response model.PostPage
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    "/scheduled-posts?mode=scheduled&limit=10",
		Response: &response,
		Router:   router,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, response.Items, 1)
	assert.Equal(t, "p1", response.Items[0].ID)
	assert.Equal(t, "next", response.NextCursor)
}

func TestGetScheduledPostEndpointNotFound(t *testing.T) {
	router, _ := setupRouter(t)

	httpmock.RegisterResponder("GET", schedulerURL+"/scheduled-posts/missing",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error": "no such post"}`))

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    "/scheduled-posts/missing",
		Response: &response,
		Router:   router,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCancelScheduledPostEndpointConflict(t *testing.T) {
	router, _ := setupRouter(t)

	httpmock.RegisterResponder("POST", schedulerURL+"/scheduled-posts/p1/cancel",
		httpmock.NewStringResponder(http.StatusConflict, `{"error": "post already published"}`))

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "POST",
		Route:    "/scheduled-posts/p1/cancel",
		Response: &response,
		Router:   router,
	})
	require.NoError(t, err)

	// Upstream rejection maps to 422 so the dashboard can show the message
	// without treating it as a transport failure.
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "post already published", response["error"])
}

func TestListJobsEndpointValidatesQuery(t *testing.T) {
	router, _ := setupRouter(t)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    "/admin/jobs?status=exploded",
		Response: &response,
		Router:   router,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestListJobsEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	httpmock.RegisterResponder("GET", schedulerURL+"/admin/jobs",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "failed", req.URL.Query().Get("status"))
			assert.Equal(t, "10", req.URL.Query().Get("limit"))
			return httpmock.NewStringResponse(http.StatusOK, `{"items": [{"id": "j1", "status": "failed"}]}`), nil
		})

	var response model.JobPage
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    "/admin/jobs?status=failed&limit=10",
		Response: &response,
		Router:   router,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, response.Items, 1)
	assert.True(t, response.Items[0].Operations.CanRetry)
}

func TestRetryJobEndpointUpstreamDown(t *testing.T) {
	router, _ := setupRouter(t)

	httpmock.RegisterResponder("POST", schedulerURL+"/admin/jobs/j1/retry",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, ``))

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "POST",
		Route:    "/admin/jobs/j1/retry",
		Response: &response,
		Router:   router,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadGateway, resp.Code)
	// No upstream message in the body: the response carries the generic
	// status text instead of an empty string.
	assert.Equal(t, "Bad Gateway", response["error"])
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", response["code"])
}

func TestNoticesEndpointReflectsMutations(t *testing.T) {
	router, line := setupRouter(t)

	httpmock.RegisterResponder("POST", schedulerURL+"/admin/jobs/j1/cancel",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	var cancelResponse map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "POST",
		Route:    "/admin/jobs/j1/cancel",
		Response: &cancelResponse,
		Router:   router,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Code)

	var noticesResponse struct {
		Notices []struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		} `json:"notices"`
	}
	resp, err = SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    "/notices",
		Response: &noticesResponse,
		Router:   router,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, noticesResponse.Notices)
	assert.Equal(t, "success", noticesResponse.Notices[0].Level)
	assert.NotEmpty(t, line.Notices().List())
}

func TestSecretKeyAuthGuardsRoutes(t *testing.T) {
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		ProjectName: "postline",
		Scheduler:   config.SchedulerConfig{Url: schedulerURL},
		Redis:       config.RedisConfig{Dns: mr.Addr()},
		Server:      config.ServerConfig{Secure: true, SecretKey: "super-secret"},
	})
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	line, err := postline.NewPostline()
	require.NoError(t, err)
	t.Cleanup(line.Stop)
	a, err := NewAPI(line)
	require.NoError(t, err)
	router := a.Router()

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    "/scheduled-posts/immediate",
		Response: &response,
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{
		Method:   "GET",
		Route:    "/scheduled-posts/immediate",
		Response: &response,
		Router:   router,
		Header:   map[string]string{"X-Postline-Key": "super-secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
}

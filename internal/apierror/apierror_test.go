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

package apierror_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/postlinehq/postline/internal/apierror"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "retry attempted on a completed job"
	apiErr := apierror.NewAPIError(apierror.ErrRejected, "Job is not retryable", details)

	assert.Equal(t, apierror.ErrRejected, apiErr.Code)
	assert.Equal(t, "Job is not retryable", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "REJECTED: Job is not retryable", apiErr.Error())
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", apierror.NewAPIError(apierror.ErrNotFound, "no such job", nil), http.StatusNotFound},
		{"bad request", apierror.NewAPIError(apierror.ErrBadRequest, "bad cursor", nil), http.StatusBadRequest},
		{"invalid input", apierror.NewAPIError(apierror.ErrInvalidInput, "bad filter", nil), http.StatusBadRequest},
		{"business rejection", apierror.NewAPIError(apierror.ErrRejected, "not retryable", nil), http.StatusUnprocessableEntity},
		{"upstream down", apierror.NewAPIError(apierror.ErrUpstream, "scheduler unreachable", nil), http.StatusBadGateway},
		{"malformed response", apierror.NewAPIError(apierror.ErrMalformedResponse, "unexpected body", nil), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, apierror.MapErrorToHTTPStatus(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, apierror.ErrUpstream, apierror.Code(apierror.NewAPIError(apierror.ErrUpstream, "down", nil)))
	assert.Equal(t, apierror.ErrorCode(""), apierror.Code(errors.New("not an api error")))
}

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
package model

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/postlinehq/postline"
)

// JobHistoryQuery is the inbound query surface of the job history listing.
// Every field is optional; From/To are RFC3339 timestamps.
type JobHistoryQuery struct {
	Status    string `form:"status"`
	QueueName string `form:"queue_name"`
	Platform  string `form:"platform"`
	JobName   string `form:"job_name"`
	JobID     string `form:"job_id"`
	From      string `form:"from"`
	To        string `form:"to"`
	Limit     int    `form:"limit"`
	Cursor    string `form:"cursor"`
}

func validTimestamp(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, s); err != nil {
		return errors.New("must be an RFC3339 timestamp (e.g., 2026-04-22T15:28:03Z)")
	}
	return nil
}

func (q *JobHistoryQuery) ValidateJobHistoryQuery() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.Status, validation.In("pending", "processing", "completed", "failed", "canceled")),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(100)),
		validation.Field(&q.From, validation.By(validTimestamp)),
		validation.Field(&q.To, validation.By(validTimestamp)),
	)
}

// ToFilter converts the validated query into the service-level filter.
func (q *JobHistoryQuery) ToFilter() postline.JobFilter {
	filter := postline.JobFilter{
		Status:    q.Status,
		QueueName: q.QueueName,
		Platform:  q.Platform,
		JobName:   q.JobName,
		JobID:     q.JobID,
		Limit:     q.Limit,
	}
	if t, err := time.Parse(time.RFC3339, q.From); err == nil && q.From != "" {
		filter.From = &t
	}
	if t, err := time.Parse(time.RFC3339, q.To); err == nil && q.To != "" {
		filter.To = &t
	}
	return filter
}

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

package postline

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/postlinehq/postline/model"
)

var fixturePlatforms = []string{"twitter", "linkedin", "instagram", "facebook", "tiktok"}

func fakePlatformTarget(status string) model.PlatformTarget {
	return model.PlatformTarget{
		AccountID:   gofakeit.UUID(),
		Platform:    gofakeit.RandomString(fixturePlatforms),
		AccountName: gofakeit.Username(),
		Status:      status,
		Caption:     gofakeit.Sentence(6),
	}
}

func fakeScheduledPost(mode string, targetStatuses ...string) model.ScheduledPost {
	post := model.ScheduledPost{
		ID:        gofakeit.UUID(),
		Content:   gofakeit.Sentence(10),
		Mode:      mode,
		Status:    "pending",
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now(),
	}
	for _, status := range targetStatuses {
		post.Platforms = append(post.Platforms, fakePlatformTarget(status))
	}
	return post
}

func fakeJobRecord(status string) model.JobRecord {
	enqueued := time.Now().Add(-30 * time.Minute)
	job := model.JobRecord{
		ID:           gofakeit.UUID(),
		JobName:      "publish-post",
		QueueName:    "post-queue",
		Platform:     gofakeit.RandomString(fixturePlatforms),
		Status:       status,
		AttemptsMade: 1,
		AttemptsMax:  3,
		EnqueuedAt:   &enqueued,
	}
	job.Operations = job.ComputeOperations()
	return job
}

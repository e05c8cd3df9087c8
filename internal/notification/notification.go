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

package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/postlinehq/postline/internal/request"
	"github.com/postlinehq/postline/model"
	"github.com/sirupsen/logrus"

	"github.com/postlinehq/postline/config"
)

// SlackNotification sends an error message to a Slack webhook.
// It formats the error details and the current time into a Slack message payload.
func SlackNotification(err error) {
	data := json.RawMessage(fmt.Sprintf(`{
		"blocks": [
			{
				"type": "header",
				"text": {
					"type": "plain_text",
					"text": "Error From Postline 🐞",
					"emoji": true
				}
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*Error:*\n%v"
					}
				]
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*Time:*\n%v"
					}
				]
			}
		]
	}`, err.Error(), time.Now().Format(time.RFC822)))

	conf, err := config.Fetch()
	if err != nil {
		log.Println(err)
		return
	}

	payload, err := request.ToJsonReq(&data)
	if err != nil {
		log.Println(err)
		return
	}

	req, err := http.NewRequest("POST", conf.Notification.Slack.WebhookUrl, payload)
	if err != nil {
		log.Println(err)
		return
	}

	var response map[string]interface{}
	_, err = request.Call(req, &response)
	if err != nil {
		log.Println(err)
	}
}

// NotifyError sends an error notification through the configured notification
// system. It logs the error locally and sends a notification via Slack (if
// configured). Runs asynchronously to avoid blocking the caller.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			log.Println(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			SlackNotification(systemError)
		}
	}(systemError)
}

// Level distinguishes the two notice styles the dashboard renders: a transient
// success toast and a transient error toast.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is one user-facing notification produced by a mutation (retry,
// cancel) outcome. Notices never carry cached query data; a failed mutation
// leaves displayed data untouched and only adds a notice.
type Notice struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Feed is a bounded, newest-first, in-memory list of notices the dashboard
// polls. When full, the oldest notice is dropped.
type Feed struct {
	mu      sync.Mutex
	notices []Notice
	size    int
}

// NewFeed creates a feed bounded to the configured size.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 100
	}
	return &Feed{size: size}
}

func (f *Feed) push(level Level, message string) Notice {
	notice := Notice{
		ID:        model.GenerateUUIDWithSuffix("notice"),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append([]Notice{notice}, f.notices...)
	if len(f.notices) > f.size {
		f.notices = f.notices[:f.size]
	}
	return notice
}

// Success records a success notice.
func (f *Feed) Success(message string) Notice {
	return f.push(LevelSuccess, message)
}

// Error records an error notice and mirrors it to the log.
func (f *Feed) Error(message string) Notice {
	logrus.Error(message)
	return f.push(LevelError, message)
}

// List returns the notices, newest first.
func (f *Feed) List() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notice, len(f.notices))
	copy(out, f.notices)
	return out
}

package notification

import (
	"errors"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/postlinehq/postline/config"
	"github.com/stretchr/testify/assert"
)

func TestSlackNotification(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://hooks.slack.test/T000/B000",
		httpmock.NewStringResponder(200, `{"ok": true}`))

	config.MockConfig(&config.Configuration{
		Scheduler: config.SchedulerConfig{Url: "http://scheduler:4000"},
		Redis:     config.RedisConfig{Dns: "localhost:6379"},
		Notification: config.Notification{
			Slack: config.SlackWebhook{WebhookUrl: "https://hooks.slack.test/T000/B000"},
		},
	})

	SlackNotification(errors.New("poller died"))

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST https://hooks.slack.test/T000/B000"])
}

func TestFeedPushAndList(t *testing.T) {
	feed := NewFeed(10)

	feed.Success("Job retried")
	feed.Error("Unable to cancel job")

	notices := feed.List()
	assert.Len(t, notices, 2)
	// Newest first
	assert.Equal(t, LevelError, notices[0].Level)
	assert.Equal(t, "Unable to cancel job", notices[0].Message)
	assert.Equal(t, LevelSuccess, notices[1].Level)
	assert.NotEmpty(t, notices[0].ID)
	assert.NotEqual(t, notices[0].ID, notices[1].ID)
}

func TestFeedBounded(t *testing.T) {
	feed := NewFeed(3)
	feed.Success("one")
	feed.Success("two")
	feed.Success("three")
	feed.Success("four")

	notices := feed.List()
	assert.Len(t, notices, 3)
	assert.Equal(t, "four", notices[0].Message)
	// The oldest notice fell off
	for _, n := range notices {
		assert.NotEqual(t, "one", n.Message)
	}
}

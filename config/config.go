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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/wacul/ptr"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5430"

	// Reference polling cadences for the reconciliation core. Overridable per
	// deployment, but the dashboard UX is tuned against these values.
	DefaultImmediateIntervalMs = 4000
	DefaultDetailIntervalMs    = 4000
	DefaultStatsIntervalMs     = 10000
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"POSTLINE_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"POSTLINE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"POSTLINE_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"POSTLINE_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"POSTLINE_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"POSTLINE_SERVER_PORT"`
}

// SchedulerConfig points at the upstream publishing scheduler service that owns
// scheduled posts, platform targets and the job queue. Postline only ever talks
// to it over HTTP; it holds none of that state itself.
type SchedulerConfig struct {
	Url         string            `json:"url" envconfig:"POSTLINE_SCHEDULER_URL"`
	TimeoutSec  int               `json:"timeout_sec" envconfig:"POSTLINE_SCHEDULER_TIMEOUT_SEC"`
	MaxRetries  uint64            `json:"max_retries" envconfig:"POSTLINE_SCHEDULER_MAX_RETRIES"`
	Headers     map[string]string `json:"headers"`
	CacheTTLSec int               `json:"cache_ttl_sec" envconfig:"POSTLINE_SCHEDULER_CACHE_TTL_SEC"`
}

func (s SchedulerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

func (s SchedulerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSec) * time.Second
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"POSTLINE_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"POSTLINE_REDIS_SKIP_TLS_VERIFY"`
}

// PollConfig carries the recurring-refresh cadences of the three pollers
// (immediate tracker, detail watcher, job stats). Values are in milliseconds.
type PollConfig struct {
	ImmediateIntervalMs int `json:"immediate_interval_ms" envconfig:"POSTLINE_POLL_IMMEDIATE_INTERVAL_MS"`
	DetailIntervalMs    int `json:"detail_interval_ms" envconfig:"POSTLINE_POLL_DETAIL_INTERVAL_MS"`
	StatsIntervalMs     int `json:"stats_interval_ms" envconfig:"POSTLINE_POLL_STATS_INTERVAL_MS"`
}

func (p PollConfig) ImmediateInterval() time.Duration {
	return time.Duration(p.ImmediateIntervalMs) * time.Millisecond
}

func (p PollConfig) DetailInterval() time.Duration {
	return time.Duration(p.DetailIntervalMs) * time.Millisecond
}

func (p PollConfig) StatsInterval() time.Duration {
	return time.Duration(p.StatsIntervalMs) * time.Millisecond
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"POSTLINE_QUEUE_WEBHOOK"`
	MonitoringPort string `json:"monitoring_port" envconfig:"POSTLINE_QUEUE_MONITORING_PORT"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
	// FeedSize bounds the in-memory notice feed served to the dashboard.
	FeedSize int `json:"feed_size" envconfig:"POSTLINE_NOTIFICATION_FEED_SIZE"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"POSTLINE_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"POSTLINE_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"POSTLINE_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type Configuration struct {
	ProjectName     string          `json:"project_name" envconfig:"POSTLINE_PROJECT_NAME"`
	EnableTelemetry bool            `json:"enable_telemetry" envconfig:"POSTLINE_ENABLE_TELEMETRY"`
	Server          ServerConfig    `json:"server"`
	Scheduler       SchedulerConfig `json:"scheduler"`
	Redis           RedisConfig     `json:"redis"`
	Poll            PollConfig      `json:"poll"`
	Queue           QueueConfig     `json:"queue"`
	Notification    Notification    `json:"notification"`
	RateLimit       RateLimitConfig `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("postline", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called postline.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Postline Server"
	}

	if cnf.Scheduler.Url == "" {
		log.Println("Error: Scheduler URL is empty. It's a required field.")
		return errors.New("scheduler URL is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Scheduler.Url = strings.TrimRight(strings.TrimSpace(cnf.Scheduler.Url), "/")
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Scheduler.TimeoutSec <= 0 {
		cnf.Scheduler.TimeoutSec = 15
	}
	if cnf.Scheduler.MaxRetries == 0 {
		cnf.Scheduler.MaxRetries = 3
	}
	if cnf.Scheduler.CacheTTLSec <= 0 {
		cnf.Scheduler.CacheTTLSec = 30
	}

	if cnf.Poll.ImmediateIntervalMs <= 0 {
		cnf.Poll.ImmediateIntervalMs = DefaultImmediateIntervalMs
	}
	if cnf.Poll.DetailIntervalMs <= 0 {
		cnf.Poll.DetailIntervalMs = DefaultDetailIntervalMs
	}
	if cnf.Poll.StatsIntervalMs <= 0 {
		cnf.Poll.StatsIntervalMs = DefaultStatsIntervalMs
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5001"
	}

	if cnf.Notification.FeedSize <= 0 {
		cnf.Notification.FeedSize = 100
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		cnf.RateLimit.Burst = ptr.Int(2 * int(*cnf.RateLimit.RequestsPerSecond))
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", *cnf.RateLimit.Burst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		cnf.RateLimit.RequestsPerSecond = ptr.Float64(float64(*cnf.RateLimit.Burst) / 2)
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", *cnf.RateLimit.RequestsPerSecond)
	}

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		cnf.RateLimit.CleanupIntervalSec = ptr.Int(10800) // 3 hours
		log.Printf("Warning: Rate limit cleanup interval not specified. Setting default value: %d seconds", *cnf.RateLimit.CleanupIntervalSec)
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	if mockConfig.Scheduler.TimeoutSec <= 0 {
		mockConfig.Scheduler.TimeoutSec = 15
	}
	if mockConfig.Scheduler.CacheTTLSec <= 0 {
		mockConfig.Scheduler.CacheTTLSec = 30
	}
	if mockConfig.Poll.ImmediateIntervalMs <= 0 {
		mockConfig.Poll.ImmediateIntervalMs = DefaultImmediateIntervalMs
	}
	if mockConfig.Poll.DetailIntervalMs <= 0 {
		mockConfig.Poll.DetailIntervalMs = DefaultDetailIntervalMs
	}
	if mockConfig.Poll.StatsIntervalMs <= 0 {
		mockConfig.Poll.StatsIntervalMs = DefaultStatsIntervalMs
	}
	if mockConfig.Queue.WebhookQueue == "" {
		mockConfig.Queue.WebhookQueue = "new:webhook"
	}
	if mockConfig.Queue.MonitoringPort == "" {
		mockConfig.Queue.MonitoringPort = "5001"
	}
	if mockConfig.Notification.FeedSize <= 0 {
		mockConfig.Notification.FeedSize = 100
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}

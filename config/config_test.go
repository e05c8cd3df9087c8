package config

import (
	"encoding/json"
	"os"
	"testing"
)

func TestValidateAndAddDefaults(t *testing.T) {
	// Missing scheduler URL is a hard error
	cnf := Configuration{
		ProjectName: "",
		Scheduler: SchedulerConfig{
			Url: "",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
	}

	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "scheduler URL is required" {
		t.Errorf("Expected scheduler URL required error, got %v", err)
	}

	cnf = Configuration{
		ProjectName: "",
		Scheduler: SchedulerConfig{
			Url: "http://scheduler:4000",
		},
		Redis: RedisConfig{
			Dns: "",
		},
	}

	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "redis DNS is required" {
		t.Errorf("Expected redis DNS required error, got %v", err)
	}

	// Test case with all required fields filled, expect no error
	cnf = Configuration{
		ProjectName: "Test Project",
		Scheduler: SchedulerConfig{
			Url: "http://scheduler:4000/",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	// Trailing slash on the scheduler URL must be stripped so path joins stay clean
	if cnf.Scheduler.Url != "http://scheduler:4000" {
		t.Errorf("Expected trimmed scheduler URL, got '%s'", cnf.Scheduler.Url)
	}

	if cnf.Server.Port != DEFAULT_PORT {
		t.Errorf("Expected default port %s, got %s", DEFAULT_PORT, cnf.Server.Port)
	}

	if cnf.Poll.ImmediateIntervalMs != DefaultImmediateIntervalMs {
		t.Errorf("Expected default immediate interval %d, got %d", DefaultImmediateIntervalMs, cnf.Poll.ImmediateIntervalMs)
	}
	if cnf.Poll.DetailIntervalMs != DefaultDetailIntervalMs {
		t.Errorf("Expected default detail interval %d, got %d", DefaultDetailIntervalMs, cnf.Poll.DetailIntervalMs)
	}
	if cnf.Poll.StatsIntervalMs != DefaultStatsIntervalMs {
		t.Errorf("Expected default stats interval %d, got %d", DefaultStatsIntervalMs, cnf.Poll.StatsIntervalMs)
	}

	if cnf.Scheduler.TimeoutSec != 15 {
		t.Errorf("Expected default scheduler timeout of 15s, got %d", cnf.Scheduler.TimeoutSec)
	}
	if cnf.Queue.WebhookQueue != "new:webhook" {
		t.Errorf("Expected default webhook queue name, got '%s'", cnf.Queue.WebhookQueue)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	// Create a temporary file
	tmpFile, err := os.CreateTemp("", "postline.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name()) // Clean up after the test

	// Sample configuration to write to the temp file
	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		Scheduler: SchedulerConfig{
			Url: "http://scheduler:4000",
		},
		Redis: RedisConfig{
			Dns: "temp-redis",
		},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close() // Close the file so loadConfigFromFile can open it

	// Set an environment variable to override the project name
	os.Setenv("POSTLINE_PROJECT_NAME", "Env Project")
	defer os.Unsetenv("POSTLINE_PROJECT_NAME") // Clean up after the test

	// Load the configuration from the file
	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	// Fetch the loaded configuration
	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// Check if the environment variable override worked
	if loadedConfig.ProjectName != "Env Project" {
		t.Errorf("Expected ProjectName to be 'Env Project', got '%s'", loadedConfig.ProjectName)
	}

	// Check if the scheduler URL was loaded correctly from the file
	if loadedConfig.Scheduler.Url != "http://scheduler:4000" {
		t.Errorf("Expected Scheduler.Url to be 'http://scheduler:4000', got '%s'", loadedConfig.Scheduler.Url)
	}
}

func TestMockConfigDefaults(t *testing.T) {
	MockConfig(&Configuration{
		Scheduler: SchedulerConfig{Url: "http://scheduler:4000"},
		Redis:     RedisConfig{Dns: "localhost:6379"},
	})

	cnf, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if cnf.Poll.ImmediateIntervalMs != DefaultImmediateIntervalMs {
		t.Errorf("Expected mock config to carry poll defaults, got %d", cnf.Poll.ImmediateIntervalMs)
	}
	if cnf.Notification.FeedSize != 100 {
		t.Errorf("Expected mock config to default the notice feed size, got %d", cnf.Notification.FeedSize)
	}
}

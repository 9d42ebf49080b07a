package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callcenter"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.App.BaseURL = "https://cc.example.com"
	c.Auth = AuthConfig{JWTSecret: "secret", JWTIssuer: "i", JWTAudience: "a"}
	c.Twilio = TwilioConfig{AccountSID: "AC1", AuthToken: "t", PhoneNumber: "+15550001111"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.App.BaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected base url %q", c.App.BaseURL)
	}
	if c.SweepInterval != time.Minute {
		t.Fatalf("expected 1m sweep interval, got %v", c.SweepInterval)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected access ttl default, got %v", c.Auth.AccessTokenTTL)
	}
	if c.MQTT.TopicPrefix != "callcenter" {
		t.Fatalf("unexpected topic prefix %q", c.MQTT.TopicPrefix)
	}
}

func TestValidate_PartialTwilioConfigRejected(t *testing.T) {
	c := validLocal()
	c.Twilio = TwilioConfig{AccountSID: "AC1", AuthToken: "tok"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing TWILIO_PHONE_NUMBER")
	}
}

func TestWebhookURL(t *testing.T) {
	c := validLocal()
	c.App.BaseURL = "https://cc.example.com"
	if got := c.WebhookURL("call-status"); got != "https://cc.example.com/webhooks/twilio/call-status" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestLoadCallFlow_DefaultsWithoutFile(t *testing.T) {
	cf, err := LoadCallFlow("")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if q, ok := cf.QueueForDigits("2"); !ok || q != "support" {
		t.Fatalf("expected 2 -> support, got %q", q)
	}
	if _, ok := cf.QueueForDigits("9"); ok {
		t.Fatalf("expected 9 to be unmapped")
	}
}

func TestLoadCallFlow_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callflow.yaml")
	data := `
inbound_mode: queue
default_queue: vip
queues:
  - name: vip
    skills: [vip]
ivr:
  menu:
    "1": vip
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cf, err := LoadCallFlow(path)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cf.InboundMode != InboundModeQueue || cf.DefaultQueue != "vip" {
		t.Fatalf("unexpected flow: %+v", cf)
	}
	if cf.Voice != "alice" || cf.IVR.Timeout != 3 {
		t.Fatalf("expected defaults for unset values: %+v", cf)
	}
}

func TestLoadCallFlow_RejectsUnknownMenuQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callflow.yaml")
	data := `
ivr:
  menu:
    "7": marketing
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCallFlow(path); err == nil {
		t.Fatalf("expected error for unknown queue")
	}
}

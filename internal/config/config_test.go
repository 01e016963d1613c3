package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate runs the test in an empty directory so no stray config.yaml or
// .env file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "config.yaml"))
	t.Setenv("DISCORD_TOKEN", "")
	return dir
}

func TestLoadRequiresToken(t *testing.T) {
	isolate(t)
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DISCORD_TOKEN") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Reputation.Cooldown != 12*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Autoroles) != 0 || cfg.Automod.Actions.TimeoutAfter != 3 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Automod.RaidJoins != 10 || cfg.Audit.SummaryInterval != 24*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadLayersYAMLThenEnv(t *testing.T) {
	dir := isolate(t)
	yamlBody := `
log_level: DEBUG
database:
  driver: postgres
  url: postgres://localhost/txbot
reputation:
  cooldown: 30m
activity:
  reward: 7
automod:
  scam_phrases:
    - name: gift
      slots: [["free"], ["gift", "present"]]
  domains:
    - guild_id: "g1"
      allow_domains: [example.org]
      block_domains: [evil.example, worse.example]
autoroles:
  - guild_id: "g1"
    role_id: "r-member"
    trigger: join
  - guild_id: "g1"
    role_id: "r-regular"
    trigger: messages
    threshold: 500
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("ACTIVITY_REWARD", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Database.Driver != "postgres" {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.Reputation.Cooldown != 30*time.Minute {
		t.Fatalf("expected 30m cooldown, got %v", cfg.Reputation.Cooldown)
	}
	if cfg.Activity.Reward != 9 {
		t.Fatalf("env should override yaml, got %d", cfg.Activity.Reward)
	}
	if len(cfg.Automod.ScamPhrases) != 1 || len(cfg.Automod.ScamPhrases[0].Slots) != 2 {
		t.Fatalf("unexpected phrases %+v", cfg.Automod.ScamPhrases)
	}
	if len(cfg.Automod.Domains) != 1 || len(cfg.Automod.Domains[0].Block) != 2 || cfg.Automod.Domains[0].Allow[0] != "example.org" {
		t.Fatalf("unexpected domains %+v", cfg.Automod.Domains)
	}
	if len(cfg.Autoroles) != 2 || cfg.Autoroles[1].Threshold != 500 || cfg.Autoroles[0].Trigger != "join" {
		t.Fatalf("unexpected autoroles %+v", cfg.Autoroles)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("REDIS_ADDR=localhost:6379\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("REDIS_ADDR", "")
	os.Unsetenv("REDIS_ADDR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("expected .env value, got %q", cfg.Redis.Addr)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Driver = "mysql"
	cfg.Automod.OCR.Enabled = true
	cfg.Automod.RaidWindow = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"unknown database driver", "automod.ocr", "automod.raid_window"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}

	cfg = DefaultConfig()
	cfg.Automod.Domains = []DomainListConfig{{Allow: []string{"example.org"}}}
	cfg.Autoroles = []AutoroleConfig{
		{GuildID: "g1", RoleID: "r1", Trigger: "voice"},
		{GuildID: "g1", RoleID: "r2", Trigger: "reputation"},
		{GuildID: "g1", Trigger: "join"},
	}
	err = cfg.Validate()
	for _, want := range []string{"automod.domains[0].guild_id", "autoroles[0]: autorole: unknown trigger", "autoroles[1].threshold", "autoroles[2] needs guild_id and role_id"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}

	cfg = DefaultConfig()
	cfg.Database.Driver = "postgres"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "database.url") {
		t.Fatalf("expected missing url error, got %v", err)
	}
}

func TestBuildLogger(t *testing.T) {
	logger, err := BuildLogger("warn")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if logger.Core().Enabled(parseLevel("info")) {
		t.Fatalf("info should be disabled at warn level")
	}
}

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const fullConfig = `global: false
admin_client:
  conf:
    bootstrap.servers: kafka-a:9092,kafka-b:9092
    request.timeout.ms: 5000
consumer:
  conf:
    bootstrap.servers: kafka-a:9092
    group.id: orders
    enable.auto.commit: false
  topic_conf:
    auto.offset.reset: earliest
  topics: [orders, payments]
  auto_connect: false
  metadata_conf:
    topics: [orders]
    timeout: 5s
producer:
  conf: {bootstrap.servers: "kafka-a:9092", linger.ms: 5}
  topic_conf: {acks: all}
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), DefaultFileName, fullConfig)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	desc := cfg.Descriptor()

	if desc.IsGlobal() {
		t.Fatalf("global = true, want false")
	}
	if desc.Admin == nil || desc.Admin.Conf["bootstrap.servers"] != "kafka-a:9092,kafka-b:9092" {
		t.Fatalf("admin conf = %#v", desc.Admin)
	}
	if desc.Admin.Conf["request.timeout.ms"] != "5000" {
		t.Fatalf("request.timeout.ms = %q", desc.Admin.Conf["request.timeout.ms"])
	}

	c := desc.Consumer
	if c == nil {
		t.Fatalf("consumer missing")
	}
	if c.Conf["group.id"] != "orders" || c.Conf["enable.auto.commit"] != "false" {
		t.Fatalf("consumer conf = %#v", c.Conf)
	}
	if c.TopicConf["auto.offset.reset"] != "earliest" {
		t.Fatalf("consumer topic_conf = %#v", c.TopicConf)
	}
	if len(c.Topics) != 2 || c.Topics[0] != "orders" || c.Topics[1] != "payments" {
		t.Fatalf("topics = %#v", c.Topics)
	}
	if c.ShouldAutoConnect() {
		t.Fatalf("auto_connect = true, want false")
	}
	if c.MetadataConf == nil || c.MetadataConf.Timeout != 5*time.Second || len(c.MetadataConf.Topics) != 1 {
		t.Fatalf("metadata_conf = %#v", c.MetadataConf)
	}

	p := desc.Producer
	if p == nil {
		t.Fatalf("producer missing")
	}
	if p.Conf["linger.ms"] != "5" || p.TopicConf["acks"] != "all" {
		t.Fatalf("producer conf = %#v topic_conf = %#v", p.Conf, p.TopicConf)
	}
	if !p.ShouldAutoConnect() {
		t.Fatalf("producer auto_connect should default to true")
	}
	if p.MetadataConf != nil {
		t.Fatalf("producer metadata_conf = %#v, want nil", p.MetadataConf)
	}
}

func TestLoadFromPath_OmittedRoles(t *testing.T) {
	path := writeConfig(t, t.TempDir(), DefaultFileName, "producer:\n  conf:\n    bootstrap.servers: kafka:9092\n")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	desc := cfg.Descriptor()

	if desc.Admin != nil || desc.Consumer != nil {
		t.Fatalf("unrequested roles present: %+v", desc)
	}
	if desc.Producer == nil {
		t.Fatalf("producer missing")
	}
	if !desc.IsGlobal() {
		t.Fatalf("global should default to true")
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), DefaultFileName, fullConfig)

	t.Setenv("KAFKAPROVISION_CONSUMER__CONF__GROUP_ID", "billing")
	t.Setenv("KAFKAPROVISION_CONSUMER__TOPIC_CONF__AUTO_OFFSET_RESET", "latest")
	t.Setenv("KAFKAPROVISION_CONSUMER__AUTO_CONNECT", "true")
	t.Setenv("KAFKAPROVISION_PRODUCER__CONF__CLIENT_ID", "svc")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	desc := cfg.Descriptor()

	if got := desc.Consumer.Conf["group.id"]; got != "billing" {
		t.Fatalf("group.id = %q, want billing", got)
	}
	if got := desc.Consumer.TopicConf["auto.offset.reset"]; got != "latest" {
		t.Fatalf("auto.offset.reset = %q, want latest", got)
	}
	if !desc.Consumer.ShouldAutoConnect() {
		t.Fatalf("auto_connect override not applied")
	}
	if got := desc.Producer.Conf["client.id"]; got != "svc" {
		t.Fatalf("client.id = %q, want svc", got)
	}
	if got := desc.Producer.Conf["bootstrap.servers"]; got != "kafka-a:9092" {
		t.Fatalf("bootstrap.servers = %q, file value lost", got)
	}
}

func TestEnvKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"KAFKAPROVISION_GLOBAL", "global"},
		{"KAFKAPROVISION_CONSUMER__CONF__GROUP_ID", "consumer__conf__group.id"},
		{"KAFKAPROVISION_PRODUCER__TOPIC_CONF__MESSAGE_TIMEOUT_MS", "producer__topic_conf__message.timeout.ms"},
		{"KAFKAPROVISION_CONSUMER__METADATA_CONF__ALL_TOPICS", "consumer__metadata_conf__all_topics"},
		{"KAFKAPROVISION_ADMIN_CLIENT__CONF__BOOTSTRAP_SERVERS", "admin_client__conf__bootstrap.servers"},
	}

	for _, tc := range cases {
		if got := envKey(tc.in); got != tc.want {
			t.Fatalf("envKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadFromPath_Errors(t *testing.T) {
	tempDir := t.TempDir()

	unknownKey := writeConfig(t, tempDir, "unknown.yaml", "brokers: kafka:9092\n")
	if _, err := LoadFromPath(unknownKey); err == nil {
		t.Fatalf("expected error for unknown key")
	}

	badTimeout := writeConfig(t, tempDir, "bad-timeout.yaml", "consumer:\n  metadata_conf:\n    timeout: soon\n")
	if _, err := LoadFromPath(badTimeout); err == nil {
		t.Fatalf("expected error for invalid timeout")
	}

	badYAML := writeConfig(t, tempDir, "bad.yaml", "consumer: [unterminated\n")
	if _, err := LoadFromPath(badYAML); err == nil {
		t.Fatalf("expected error for invalid yaml")
	}

	if _, err := LoadFromPath(filepath.Join(tempDir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

// chdir switches the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	originalWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	t.Cleanup(func() {
		if chdirErr := os.Chdir(originalWD); chdirErr != nil {
			t.Fatalf("restore wd: %v", chdirErr)
		}
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%s): %v", dir, err)
	}
}

func TestLoad_AutoDiscovery(t *testing.T) {
	cwdDir := filepath.Join(t.TempDir(), "cwd")
	if err := os.MkdirAll(cwdDir, 0o755); err != nil {
		t.Fatalf("mkdir cwd: %v", err)
	}
	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}

	cwdConfig := writeConfig(t, cwdDir, DefaultFileName, "admin_client:\n  conf:\n    bootstrap.servers: cwd:9092\n")
	writeConfig(t, homeDir, DefaultFileName, "admin_client:\n  conf:\n    bootstrap.servers: home:9092\n")

	chdir(t, cwdDir)
	t.Setenv("HOME", homeDir)

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg == nil {
		t.Fatalf("Load() cfg is nil")
	}
	if !samePath(path, cwdConfig) {
		t.Fatalf("loaded path = %q, want %q", path, cwdConfig)
	}
	if got := cfg.Admin.Conf["bootstrap.servers"]; got != "cwd:9092" {
		t.Fatalf("bootstrap.servers = %q, want %q", got, "cwd:9092")
	}
}

func TestLoad_AutoDiscoveryHomeFallback(t *testing.T) {
	cwdDir := t.TempDir()
	homeDir := t.TempDir()
	homeConfig := writeConfig(t, homeDir, alternateName, "admin_client:\n  conf:\n    bootstrap.servers: home:9092\n")

	chdir(t, cwdDir)
	t.Setenv("HOME", homeDir)

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg == nil {
		t.Fatalf("Load() cfg is nil")
	}
	if !samePath(path, homeConfig) {
		t.Fatalf("loaded path = %q, want %q", path, homeConfig)
	}
}

func TestLoad_NoFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != nil || path != "" {
		t.Fatalf("Load() = (%v, %q), want (nil, \"\")", cfg, path)
	}

	if _, _, err := LoadDescriptor(""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadDescriptor() error = %v, want ErrNotFound", err)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KAFKAPROVISION_PRODUCER__CONF__BOOTSTRAP_SERVERS", "env:9092")

	desc, path, err := LoadDescriptor("")
	if err != nil {
		t.Fatalf("LoadDescriptor() error = %v", err)
	}
	if path != "" {
		t.Fatalf("path = %q, want none", path)
	}
	if desc.Producer == nil || desc.Producer.Conf["bootstrap.servers"] != "env:9092" {
		t.Fatalf("producer = %#v", desc.Producer)
	}
}

func TestResolver(t *testing.T) {
	path := writeConfig(t, t.TempDir(), DefaultFileName, fullConfig)

	desc, err := Resolver(path)(context.Background())
	if err != nil {
		t.Fatalf("Resolver() error = %v", err)
	}
	if len(desc.RequestedRoles()) != 3 {
		t.Fatalf("roles = %v, want all three", desc.RequestedRoles())
	}

	if _, err := Resolver(filepath.Join(t.TempDir(), "missing.yaml"))(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Resolver(path)(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolver() error = %v, want context.Canceled", err)
	}
}

func samePath(a, b string) bool {
	ar, errA := filepath.EvalSymlinks(a)
	br, errB := filepath.EvalSymlinks(b)
	if errA == nil && errB == nil {
		return ar == br
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

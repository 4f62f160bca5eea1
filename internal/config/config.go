package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ppiankov/kafkaprovision/kafka"
)

const (
	// DefaultFileName is the primary config file name that is auto-discovered.
	DefaultFileName = ".kafkaprovision.yaml"
	alternateName   = ".kafkaprovision.yml"

	// EnvPrefix prefixes environment overrides. Nested keys are separated by
	// "__", e.g. KAFKAPROVISION_CONSUMER__CONF__GROUP_ID.
	EnvPrefix = "KAFKAPROVISION_"
	envDelim  = "__"
)

// ErrNotFound is returned by LoadDescriptor when no config file was found
// and the environment defines nothing.
var ErrNotFound = errors.New("no kafkaprovision config found")

// File is the on-disk form of a connection descriptor.
type File struct {
	Global   *bool         `koanf:"global"`
	Admin    *AdminFile    `koanf:"admin_client"`
	Consumer *ConsumerFile `koanf:"consumer"`
	Producer *ProducerFile `koanf:"producer"`
}

type AdminFile struct {
	Conf kafka.Properties `koanf:"conf"`
}

type ConsumerFile struct {
	Conf         kafka.Properties `koanf:"conf"`
	TopicConf    kafka.Properties `koanf:"topic_conf"`
	Topics       []string         `koanf:"topics"`
	AutoConnect  *bool            `koanf:"auto_connect"`
	MetadataConf *MetadataFile    `koanf:"metadata_conf"`
}

type ProducerFile struct {
	Conf         kafka.Properties `koanf:"conf"`
	TopicConf    kafka.Properties `koanf:"topic_conf"`
	AutoConnect  *bool            `koanf:"auto_connect"`
	MetadataConf *MetadataFile    `koanf:"metadata_conf"`
}

type MetadataFile struct {
	Topics    []string      `koanf:"topics"`
	AllTopics bool          `koanf:"all_topics"`
	Timeout   time.Duration `koanf:"timeout"`
}

// Descriptor converts the file into a connection descriptor. A role section
// that is present, even empty, requests the role.
func (f *File) Descriptor() kafka.ConnectionDescriptor {
	desc := kafka.ConnectionDescriptor{Global: f.Global}

	if f.Admin != nil {
		desc.Admin = &kafka.AdminConfig{Conf: f.Admin.Conf}
	}
	if f.Consumer != nil {
		desc.Consumer = &kafka.ConsumerConfig{
			Conf:         f.Consumer.Conf,
			TopicConf:    f.Consumer.TopicConf,
			Topics:       f.Consumer.Topics,
			AutoConnect:  f.Consumer.AutoConnect,
			MetadataConf: f.Consumer.MetadataConf.config(),
		}
	}
	if f.Producer != nil {
		desc.Producer = &kafka.ProducerConfig{
			Conf:         f.Producer.Conf,
			TopicConf:    f.Producer.TopicConf,
			AutoConnect:  f.Producer.AutoConnect,
			MetadataConf: f.Producer.MetadataConf.config(),
		}
	}
	return desc
}

func (m *MetadataFile) config() *kafka.MetadataConfig {
	if m == nil {
		return nil
	}
	return &kafka.MetadataConfig{Topics: m.Topics, AllTopics: m.AllTopics, Timeout: m.Timeout}
}

// Load auto-discovers and loads a config file, then applies environment
// overrides.
// Search order:
// 1) current working directory
// 2) user home directory
//
// It returns a nil File when neither a file nor an override exists.
func Load() (*File, string, error) {
	paths, err := defaultPaths()
	if err != nil {
		return nil, "", err
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("stat config %q: %w", path, err)
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	k, err := load("")
	if err != nil {
		return nil, "", err
	}
	if len(k.Keys()) == 0 {
		return nil, "", nil
	}
	cfg, err := decode(k)
	if err != nil {
		return nil, "", fmt.Errorf("parse environment config: %w", err)
	}
	return cfg, "", nil
}

// LoadFromPath loads a config file from an explicit path and applies
// environment overrides.
func LoadFromPath(path string) (*File, error) {
	k, err := load(path)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(k)
	if err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// LoadDescriptor loads the descriptor from path, or from the discovered
// config when path is empty. It also returns the file that was read.
func LoadDescriptor(path string) (kafka.ConnectionDescriptor, string, error) {
	if path != "" {
		cfg, err := LoadFromPath(path)
		if err != nil {
			return kafka.ConnectionDescriptor{}, "", err
		}
		return cfg.Descriptor(), path, nil
	}

	cfg, found, err := Load()
	if err != nil {
		return kafka.ConnectionDescriptor{}, "", err
	}
	if cfg == nil {
		return kafka.ConnectionDescriptor{}, "", ErrNotFound
	}
	return cfg.Descriptor(), found, nil
}

// Resolver defers loading until provisioning runs.
func Resolver(path string) kafka.Resolver {
	return func(ctx context.Context) (kafka.ConnectionDescriptor, error) {
		if err := ctx.Err(); err != nil {
			return kafka.ConnectionDescriptor{}, err
		}
		desc, _, err := LoadDescriptor(path)
		return desc, err
	}
}

func load(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, envDelim, envKey), nil); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return k, nil
}

// envKey maps KAFKAPROVISION_CONSUMER__CONF__GROUP_ID onto
// consumer__conf__group.id so that it overrides the dotted file key.
func envKey(key string) string {
	parts := strings.Split(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), envDelim)
	if len(parts) > 2 && (parts[1] == "conf" || parts[1] == "topic_conf") {
		prop := strings.ReplaceAll(strings.Join(parts[2:], "_"), "_", ".")
		parts = append(parts[:2], prop)
	}
	return strings.Join(parts, envDelim)
}

func decode(k *koanf.Koanf) (*File, error) {
	var cfg File
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				propertiesHook,
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			ErrorUnused:      true,
			WeaklyTypedInput: true,
			TagName:          "koanf",
			Result:           &cfg,
		},
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

var propertiesType = reflect.TypeOf(kafka.Properties{})

// propertiesHook flattens the nested maps koanf builds from dotted property
// names back into "a.b.c" keys.
func propertiesHook(from, to reflect.Type, data any) (any, error) {
	if to != propertiesType {
		return data, nil
	}
	nested, ok := data.(map[string]any)
	if !ok {
		return data, nil
	}

	props := make(kafka.Properties)
	flattenInto(props, "", nested)
	return props, nil
}

func flattenInto(props kafka.Properties, prefix string, nested map[string]any) {
	keys := make([]string, 0, len(nested))
	for key := range nested {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := nested[key].(type) {
		case map[string]any:
			flattenInto(props, full, v)
		case nil:
			props[full] = ""
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, fmt.Sprint(item))
			}
			props[full] = strings.Join(items, ",")
		default:
			props[full] = fmt.Sprint(v)
		}
	}
}

func defaultPaths() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve current directory: %w", err)
	}

	paths := []string{
		filepath.Join(cwd, DefaultFileName),
		filepath.Join(cwd, alternateName),
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		for _, path := range []string{filepath.Join(home, DefaultFileName), filepath.Join(home, alternateName)} {
			if !containsPath(paths, path) {
				paths = append(paths, path)
			}
		}
	}

	return paths, nil
}

func containsPath(paths []string, target string) bool {
	for _, path := range paths {
		if path == target {
			return true
		}
	}
	return false
}

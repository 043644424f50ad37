// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"net"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/satready/internal/catalog"
	"github.com/cardinalhq/satready/internal/dedup"
	"github.com/cardinalhq/satready/internal/eventpub"
	"github.com/cardinalhq/satready/internal/helpers"
	"github.com/cardinalhq/satready/internal/notify"
	"github.com/cardinalhq/satready/internal/registry"
	"github.com/cardinalhq/satready/internal/remote"
)

const envPrefix = "SATREADY"

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Debug    bool            `mapstructure:"debug"`
	Registry registry.Config `mapstructure:"registry"`
	Remote   remote.Config   `mapstructure:"remote"`
	Notify   notify.Config   `mapstructure:"notify"`
	Event    eventpub.Config `mapstructure:"event"`
	Dedup    DedupConfig     `mapstructure:"dedup"`
	Catalog  CatalogConfig   `mapstructure:"catalog"`
	Health   HealthConfig    `mapstructure:"health"`
}

type DedupConfig struct {
	Mode string `mapstructure:"mode"`
}

type CatalogConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type HealthConfig struct {
	Port int `mapstructure:"port"`
	// PprofPort serves net/http/pprof in watch mode; 0 disables it.
	PprofPort int `mapstructure:"pprof_port"`
	// MaxFatalSweeps consecutive failed sweeps mark the process unhealthy.
	MaxFatalSweeps int `mapstructure:"max_fatal_sweeps"`
}

func defaults() *Config {
	return &Config{
		Registry: registry.DefaultConfig(),
		Remote:   remote.DefaultConfig(),
		Notify:   notify.DefaultConfig(),
		Event:    eventpub.DefaultConfig(),
		Dedup:    DedupConfig{Mode: string(dedup.ModeContent)},
		Catalog:  CatalogConfig{TTL: catalog.DefaultTTL},
		Health:   HealthConfig{Port: 8090, MaxFatalSweeps: 3},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "SATREADY" and the dot character
// in keys is replaced by an underscore. For example, "registry.url" becomes
// "SATREADY_REGISTRY_URL". The variables of the earlier deployment
// (CORE_APP, TOKEN, RABBITMQ_HOST, DEBUG_MODE) are honoured when the
// corresponding SATREADY_ variable is unset.
func Load() (*Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if b := v.GetString("notify.kafka.brokers"); b != "" {
		cfg.Notify.Kafka.Brokers = strings.Split(b, ",")
	}
	applyLegacyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyLegacyEnv(cfg *Config) {
	if host, ok := helpers.LegacyEnv(envPrefix+"_REGISTRY_URL", "CORE_APP"); ok {
		cfg.Registry.URL = "http://" + net.JoinHostPort(host, "8000") + "/api"
	}
	if tok, ok := helpers.LegacyEnv(envPrefix+"_REGISTRY_TOKEN", "TOKEN"); ok {
		cfg.Registry.Token = tok
	}
	if host, ok := helpers.LegacyEnv(envPrefix+"_NOTIFY_RABBITMQ_URL", "RABBITMQ_HOST"); ok {
		cfg.Notify.RabbitMQ.URL = "amqp://guest:guest@" + net.JoinHostPort(host, "5672") + "/"
	}
	if _, ok := helpers.LegacyEnv(envPrefix+"_REMOTE_DEBUG", "DEBUG_MODE"); ok {
		cfg.Remote.Debug = helpers.GetBoolEnv("DEBUG_MODE", false)
	}
}

// Validate rejects values that would otherwise only fail on first use.
func (c *Config) Validate() error {
	if _, err := notify.ParseBackend(c.Notify.Backend); err != nil {
		return err
	}
	if _, err := dedup.ParseMode(c.Dedup.Mode); err != nil {
		return err
	}
	switch c.Remote.Protocol {
	case remote.ProtocolFTP, remote.ProtocolSSH:
	default:
		return fmt.Errorf("unsupported remote protocol: %s", c.Remote.Protocol)
	}
	return nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}

// Package env sets up the environment of node tools from defaults, a TOML
// file, environment variables and command line flags.
package env

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/basenode.go/pkg/l0/comm"
	"github.com/robotalks/basenode.go/pkg/l0/serial"
	"github.com/robotalks/basenode.go/pkg/l1"
	"github.com/robotalks/basenode.go/pkg/l1/comm/mqtt"
)

// DefaultNodeType is used when node type is not configured.
const DefaultNodeType = "basenode"

// Config provides common options for node tools.
type Config struct {
	Node l1.NodeInfo

	// BrokerURL specifies the transport to bridge packets.
	// e.g. mqtt://host:port/topic-prefix, ws://host:port/path, tcp://host:port
	BrokerURL string

	Serial       serial.Config
	PollInterval time.Duration
	FrameTimeout time.Duration
}

var (
	defaultConfig = Config{
		Node:         l1.NodeInfo{Ref: l1.NodeRef{Type: DefaultNodeType}},
		BrokerURL:    mqtt.DefaultBrokerURL,
		PollInterval: comm.DefaultPollInterval,
		FrameTimeout: comm.DefaultFrameTimeout,
	}

	configFile string
)

func init() {
	defaultConfig.Node.Ref.ID = MachineID()
	defaultConfig.ApplyEnv()
	if val := os.Getenv("BASENODE_CONFIG"); val != "" {
		configFile = val
	}
}

// ApplyEnv overrides the config with BASENODE_* environment variables.
func (c *Config) ApplyEnv() {
	if val := os.Getenv("BASENODE_MQTT_URL"); val != "" {
		c.BrokerURL = val
	}
	if val := os.Getenv("BASENODE_NODE_TYPE"); val != "" {
		c.Node.Ref.Type = val
	}
	if val := os.Getenv("BASENODE_NODE_ID"); val != "" {
		c.Node.Ref.ID = val
	}
	c.Serial.ApplyEnv()
}

// flagSetters copy explicitly set flags from the default config.
var flagSetters = map[string]func(dst, src *Config){
	"broker":        func(dst, src *Config) { dst.BrokerURL = src.BrokerURL },
	"node-type":     func(dst, src *Config) { dst.Node.Ref.Type = src.Node.Ref.Type },
	"node-id":       func(dst, src *Config) { dst.Node.Ref.ID = src.Node.Ref.ID },
	"desc":          func(dst, src *Config) { dst.Node.Meta.Description = src.Node.Meta.Description },
	"poll":          func(dst, src *Config) { dst.PollInterval = src.PollInterval },
	"frame-timeout": func(dst, src *Config) { dst.FrameTimeout = src.FrameTimeout },
	"port":          func(dst, src *Config) { dst.Serial.Port = serial.Default().Port },
	"baud":          func(dst, src *Config) { dst.Serial.BaudRate = serial.Default().BaudRate },
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "Config file in TOML")
	flag.StringVar(&defaultConfig.BrokerURL, "broker", defaultConfig.BrokerURL, "Broker URL")
	flag.StringVar(&defaultConfig.Node.Ref.Type, "node-type", defaultConfig.Node.Ref.Type, "Node type")
	flag.StringVar(&defaultConfig.Node.Ref.ID, "node-id", defaultConfig.Node.Ref.ID, "Node ID")
	flag.StringVar(&defaultConfig.Node.Meta.Description, "desc", defaultConfig.Node.Meta.Description, "Node description")
	flag.DurationVar(&defaultConfig.PollInterval, "poll", defaultConfig.PollInterval, "Serial polling interval")
	flag.DurationVar(&defaultConfig.FrameTimeout, "frame-timeout", defaultConfig.FrameTimeout, "Drop a partial frame after idle")
	serial.SetupFlags()
}

// NewConfig creates a Config with default configurations.
// The config file, if specified, overrides defaults, then environment
// variables and flags set on command line take precedence.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	conf.Serial = *serial.NewConfig()
	if configFile == "" {
		return &conf, nil
	}
	if err := conf.LoadFile(configFile); err != nil {
		return nil, err
	}
	conf.ApplyEnv()
	flag.Visit(func(f *flag.Flag) {
		if set := flagSetters[f.Name]; set != nil {
			set(&conf, &defaultConfig)
		}
	})
	return &conf, nil
}

// MustNewConfig creates a Config and fails on error.
func MustNewConfig() *Config {
	conf, err := NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return conf
}

type fileConfig struct {
	Broker       string `toml:"broker"`
	PollInterval string `toml:"poll_interval"`
	FrameTimeout string `toml:"frame_timeout"`
	Node         struct {
		Type        string            `toml:"type"`
		ID          string            `toml:"id"`
		Description string            `toml:"description"`
		Labels      map[string]string `toml:"labels"`
	} `toml:"node"`
	Serial struct {
		Port string `toml:"port"`
		Baud int    `toml:"baud"`
	} `toml:"serial"`
}

// LoadFile loads the keys defined in a TOML file.
func (c *Config) LoadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("broker") {
		c.BrokerURL = strings.TrimSpace(raw.Broker)
	}
	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return fmt.Errorf("parse poll_interval: %w", err)
		}
		c.PollInterval = d
	}
	if meta.IsDefined("frame_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.FrameTimeout))
		if err != nil {
			return fmt.Errorf("parse frame_timeout: %w", err)
		}
		c.FrameTimeout = d
	}
	if meta.IsDefined("node", "type") {
		c.Node.Ref.Type = strings.TrimSpace(raw.Node.Type)
	}
	if meta.IsDefined("node", "id") {
		c.Node.Ref.ID = strings.TrimSpace(raw.Node.ID)
	}
	if meta.IsDefined("node", "description") {
		c.Node.Meta.Description = raw.Node.Description
	}
	if meta.IsDefined("node", "labels") {
		c.Node.Meta.Labels = raw.Node.Labels
	}
	if meta.IsDefined("serial", "port") {
		c.Serial.Port = strings.TrimSpace(raw.Serial.Port)
	}
	if meta.IsDefined("serial", "baud") {
		c.Serial.BaudRate = raw.Serial.Baud
	}
	return nil
}

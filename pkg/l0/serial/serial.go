// Package serial opens UART devices as comm streams.
package serial

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/basenode.go/pkg/l0/comm"
)

// DefaultBaudRate is used when BaudRate is not specified.
const DefaultBaudRate = 115200

// Config specifies the serial device.
type Config struct {
	// Port is the device name, e.g. /dev/ttyUSB0.
	Port     string
	BaudRate int
}

var defaultConfig = Config{
	BaudRate: DefaultBaudRate,
}

func init() {
	defaultConfig.ApplyEnv()
}

// ApplyEnv overrides the config with BASENODE_PORT and BASENODE_BAUD.
func (c *Config) ApplyEnv() {
	if val := os.Getenv("BASENODE_PORT"); val != "" {
		c.Port = val
	}
	if val := os.Getenv("BASENODE_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			c.BaudRate = baud
		} else {
			glog.Warningf("invalid BASENODE_BAUD %q: %v", val, err)
		}
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port device")
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Serial port baud rate")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Mode converts the config into serial.Mode, 8N1.
func (c *Config) Mode() *serial.Mode {
	baud := c.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Port is an opened serial device usable as comm.Stream.
type Port struct {
	*comm.ReadWriterStream
	Name string

	port serial.Port
}

// Open opens the serial port.
func (c *Config) Open() (*Port, error) {
	if c.Port == "" {
		return nil, fmt.Errorf("serial port must be specified")
	}
	port, err := serial.Open(c.Port, c.Mode())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Port, err)
	}
	glog.Infof("opened %s at %d", c.Port, c.Mode().BaudRate)
	return &Port{
		ReadWriterStream: comm.NewStream(port),
		Name:             c.Port,
		port:             port,
	}, nil
}

// Open opens a serial port with the given config.
func Open(conf Config) (*Port, error) {
	return conf.Open()
}

// Close closes the device, which stops the background reader.
func (p *Port) Close() error {
	return p.port.Close()
}

// Ports lists serial devices on the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

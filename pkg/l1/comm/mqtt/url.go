package mqtt

import (
	"net/url"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// DefaultBrokerURL is the broker used when none is configured.
const DefaultBrokerURL = "mqtt://localhost:1883/basenode/"

// NewClientID generates a unique MQTT client id.
func NewClientID() string {
	return "basenode:" + uuid.NewString()
}

// ClientOptionsFromURL creates ClientOptions from URL.
// The path of the URL is the topic prefix, query client-id overrides
// the generated client id.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	clientID := u.Query().Get("client-id")
	if clientID == "" {
		clientID = NewClientID()
	}
	opts.SetClientID(clientID)

	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/basenode.go/pkg/l1/comm"
	"github.com/robotalks/basenode.go/pkg/l1/comm/mqtt"
)

var (
	mqttURL = mqtt.DefaultBrokerURL
)

func init() {
	if val := os.Getenv("BASENODE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, mqtt.TopicMeta) {
			if len(payload) == 0 {
				log.Printf("%s: gone", topic)
			} else {
				log.Printf("%s: %s", topic, string(payload))
			}
			return
		}
		e, err := comm.DecodeEnvelope(payload)
		if err != nil {
			log.Printf("%s: bad envelope: %v", topic, err)
			return
		}
		if len(e.Data) > 0 {
			log.Printf("%s: %s % x", topic, e, e.Data)
		} else {
			log.Printf("%s: %s", topic, e)
		}
	}))
	<-(chan struct{})(nil)
}

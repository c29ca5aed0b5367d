package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"

	"github.com/golang/glog"

	fx "github.com/robotalks/basenode.go/pkg/framework"
	"github.com/robotalks/basenode.go/pkg/l1/comm"
	"github.com/robotalks/basenode.go/pkg/l1/env"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.MustNewConfig()
	port, err := conf.OpenSerial()
	if err != nil {
		glog.Exit(err)
	}
	defer port.Close()

	rw, err := conf.Dial(context.Background())
	if err != nil {
		glog.Exit(err)
	}
	glog.Infof("bridging %s as %s via %s", port.Name, conf.Node.Ref.Name(), conf.BrokerURL)
	bridge := comm.NewBridge(conf.NewLink(port), rw)
	fx.NewLoop().Add(bridge).RunOrFail()
}

package main

import (
	"github.com/robotalks/basenode.go/pkg/cli/sh"
	"github.com/robotalks/basenode.go/pkg/l1/env"

	_ "github.com/robotalks/basenode.go/pkg/cli/cmds/packet"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}

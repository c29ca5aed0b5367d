package packet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/basenode.go/pkg/cli/sh"
	"github.com/robotalks/basenode.go/pkg/l0/comm"
)

var typeNames = map[string]comm.PacketType{
	"ack":    comm.TypeAck,
	"nack":   comm.TypeNack,
	"data":   comm.TypeData,
	"idreq":  comm.TypeIDRequest,
	"idresp": comm.TypeIDResponse,
}

// ParseType parses a packet type by name or by its wire character.
func ParseType(str string) (comm.PacketType, error) {
	if typ, ok := typeNames[strings.ToLower(str)]; ok {
		return typ, nil
	}
	if len(str) == 1 {
		if typ := comm.PacketType(str[0]); typ.IsValid() {
			return typ, nil
		}
	}
	return comm.TypeNone, fmt.Errorf("unknown packet type %q", str)
}

// ParseHex parses payload bytes from hex strings, e.g. "01 02", "0102", "0x01".
func ParseHex(args []string) ([]byte, error) {
	var data []byte
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimPrefix(arg, "0x"), "0X")
		if len(arg)%2 != 0 {
			arg = "0" + arg
		}
		b, err := hex.DecodeString(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid HEX %q: %w", arg, err)
		}
		data = append(data, b...)
	}
	if len(data) > comm.MaxPayloadSize {
		return nil, comm.ErrPayloadTooLarge
	}
	return data, nil
}

var (
	// SendCmd sends a packet of any type.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "TYPE [HEX...]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("TYPE required"))
				return
			}
			typ, err := ParseType(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			data, err := ParseHex(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			if len(data) > 0 && !typ.HasPayload() {
				c.Err(fmt.Errorf("%s carries no payload", typ))
				return
			}
			sh.DoCommand(c, typ, data)
		}),
	}

	// DataCmd sends a DATA packet.
	DataCmd = ishell.Cmd{
		Name:    "data",
		Aliases: []string{"d"},
		Help:    "HEX...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			data, err := ParseHex(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, comm.TypeData, data)
		}),
	}

	// PingCmd sends an ID_REQUEST.
	PingCmd = ishell.Cmd{
		Name: "ping",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, comm.TypeIDRequest, nil)
		}),
	}
)

func init() {
	sh.AddCmds(&SendCmd, &DataCmd, &PingCmd)
}

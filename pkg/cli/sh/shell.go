package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	fx "github.com/robotalks/basenode.go/pkg/framework"
	"github.com/robotalks/basenode.go/pkg/l0/comm"
	"github.com/robotalks/basenode.go/pkg/l0/serial"
	"github.com/robotalks/basenode.go/pkg/l1"
	l1comm "github.com/robotalks/basenode.go/pkg/l1/comm"
	"github.com/robotalks/basenode.go/pkg/l1/env"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn
}

// Conn is a running loop with a node connection.
type Conn struct {
	Name   string
	Ctx    context.Context
	Cancel func()
	Client *comm.Client

	closer io.Closer
	doneCh chan struct{}
	err    error
}

// Done is closed when the connection stops, either by Disconnect
// or because the stream is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.doneCh
}

// Err returns the error which stopped the connection.
// It's only valid after Done is closed.
func (c *Conn) Err() error {
	return c.err
}

// DefaultTimeout is the default time to wait for a reply.
const DefaultTimeout = time.Second

// ErrNotConnected is reported by commands requiring a connection.
var ErrNotConnected = errors.New("not connected")

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	timeout    = DefaultTimeout

	// commands
	commands = []*ishell.Cmd{
		&PortsCmd,
		&OpenCmd,
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.DurationVar(&timeout, "timeout", timeout, "Time to wait for a reply.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     timeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(ErrNotConnected)
			return
		}
		fn(c)
	}
}

// FormatInfo prints NodeInfo into friendly string for display.
func FormatInfo(info l1.NodeInfo) string {
	str := info.Ref.Name()
	if info.Meta.Description != "" {
		str += ": " + info.Meta.Description
	}
	if info.Meta.Port != "" {
		str += fmt.Sprintf(" (%s@%d)", info.Meta.Port, info.Meta.BaudRate)
	}
	return str
}

// FormatResult prints a Result for display.
func FormatResult(r comm.Result) string {
	if len(r.Data) == 0 {
		return r.Type.String()
	}
	return fmt.Sprintf("%s % x", r.Type, r.Data)
}

// Attach runs a Client over the stream and makes it the current connection.
// The closer is closed on Disconnect.
func (s *Shell) Attach(name string, stream comm.Stream, closer io.Closer) *Conn {
	conn := &Conn{Name: name, closer: closer, doneCh: make(chan struct{})}
	conn.Ctx, conn.Cancel = context.WithCancel(context.Background())
	conn.Client = comm.NewClient(s.Config.NewLink(stream))
	loop := fx.NewLoop().AddRunnable(conn.Client.Link())
	if runnable, ok := stream.(fx.Runnable); ok {
		loop.AddRunnable(runnable)
	}
	go s.runConn(conn, loop)
	go s.printEvents(conn)

	s.Disconnect()
	s.Conn = conn
	if s.Shell != nil {
		s.Shell.SetPrompt(fmt.Sprintf("%s > ", name))
	}
	return conn
}

// OpenSerial opens a serial port as current connection.
func (s *Shell) OpenSerial(conf serial.Config) error {
	port, err := conf.Open()
	if err != nil {
		return err
	}
	s.Attach(port.Name, port, port)
	return nil
}

// DiscoverNodes discovers bridged nodes.
func (s *Shell) DiscoverNodes(filter func(l1.NodeInfo) bool) ([]l1.NodeInfo, error) {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return nil, err
	}
	infoList, err := connector.Discover(context.TODO())
	if err != nil {
		return nil, err
	}
	if filter != nil {
		items := make([]l1.NodeInfo, 0, len(infoList))
		for _, info := range infoList {
			if filter(info) {
				items = append(items, info)
			}
		}
		infoList = items
	}
	return infoList, nil
}

// SelectNode discovers nodes and asks for a choice.
func (s *Shell) SelectNode(filter func(l1.NodeInfo) bool) (*l1.NodeInfo, error) {
	infoList, err := s.DiscoverNodes(filter)
	if err != nil {
		return nil, err
	}
	if len(infoList) == 0 {
		return nil, nil
	}
	var index int
	if len(infoList) > 1 {
		if !s.Interactive {
			return nil, fmt.Errorf("more than 1 nodes discovered in non-interactive mode")
		}
		items := make([]string, len(infoList))
		for n, info := range infoList {
			items[n] = FormatInfo(info)
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
	}
	return &infoList[index], nil
}

// Connect connects a bridged node.
func (s *Shell) Connect(ref l1.NodeRef) error {
	conf := *s.Config
	conf.Node.Ref = ref
	rw, err := conf.Connect(context.TODO())
	if err != nil {
		return err
	}
	tunnel := l1comm.NewTunnel(rw)
	s.Attach(ref.Name(), tunnel, tunnel)
	return nil
}

// Disconnect disconnects current node.
func (s *Shell) Disconnect() {
	if conn := s.Conn; conn != nil {
		conn.Cancel()
		if conn.closer != nil {
			conn.closer.Close()
		}
		s.Conn = nil
		if s.Shell != nil {
			s.Shell.SetPrompt(unconnectedPrompt)
		}
	}
}

// Do sends a packet and waits for the reply.
func (s *Shell) Do(typ comm.PacketType, data []byte) (comm.Result, error) {
	conn := s.Conn
	if conn == nil {
		return comm.Result{}, ErrNotConnected
	}
	select {
	case <-conn.Done():
		return comm.Result{}, fmt.Errorf("%s: %w", conn.Name, conn.Err())
	default:
	}
	dur := s.Timeout
	if dur <= 0 {
		dur = DefaultTimeout
	}
	cmd := conn.Client.Do(typ, data)
	select {
	case res := <-cmd.ResultChan():
		return res, res.Err
	case <-conn.Done():
		return comm.Result{}, fmt.Errorf("%s: %w", conn.Name, conn.Err())
	case <-time.After(dur):
		return comm.Result{}, fmt.Errorf("packet %d: %w", cmd.RequestID(), context.DeadlineExceeded)
	}
}

// DoCommand runs a command and prints the result.
func DoCommand(c *ishell.Context, typ comm.PacketType, data []byte) error {
	s := ShellFrom(c)
	res, err := s.Do(typ, data)
	if err != nil {
		c.Err(err)
		return err
	}
	if s.OutputJSON {
		out, err := json.Marshal(map[string]interface{}{
			"type": res.Type.String(),
			"data": res.Data,
		})
		if err != nil {
			c.Err(err)
			return err
		}
		c.Println(string(out))
		return nil
	}
	c.Println(FormatResult(res))
	return nil
}

func (s *Shell) runConn(conn *Conn, loop *fx.Loop) {
	err := loop.Run(conn.Ctx)
	if err == nil {
		err = comm.ErrClosed
	}
	conn.err = err
	lost := conn.Ctx.Err() == nil
	conn.Cancel()
	close(conn.doneCh)
	if lost && s.Shell != nil {
		s.Shell.Printf("%s: connection lost: %v\n", conn.Name, err)
	}
}

func (s *Shell) printEvents(conn *Conn) {
	for {
		select {
		case <-conn.Ctx.Done():
			return
		case pkt := <-conn.Client.EventChan():
			if s.Shell != nil {
				s.Shell.Printf("EVENT %s % x\n", pkt, pkt.Data)
			}
		}
	}
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Serial.Port != "" {
		if err := s.OpenSerial(s.Config.Serial); err != nil {
			log.Fatalf("open %q failed: %v", s.Config.Serial.Port, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name: "ports",
		Help: "list serial ports",
		Func: func(c *ishell.Context) {
			ports, err := serial.Ports()
			if err != nil {
				c.Err(err)
				return
			}
			if ShellFrom(c).OutputJSON {
				if ports == nil {
					ports = []string{}
				}
				out, _ := json.Marshal(ports)
				c.Println(string(out))
				return
			}
			if len(ports) == 0 {
				c.Println("No serial ports found")
				return
			}
			for _, port := range ports {
				c.Println(port)
			}
		},
	}

	// OpenCmd opens a serial port.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "PORT [BAUD]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			conf := s.Config.Serial
			if len(c.Args) > 0 {
				conf.Port = c.Args[0]
			}
			if len(c.Args) > 1 {
				baud, err := strconv.Atoi(c.Args[1])
				if err != nil {
					c.Err(fmt.Errorf("invalid BAUD: %w", err))
					return
				}
				conf.BaudRate = baud
			}
			if err := s.OpenSerial(conf); err != nil {
				c.Err(err)
			}
		},
	}

	// DiscoverCmd discovers bridged nodes.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "list bridged nodes",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			infoList, err := s.DiscoverNodes(nil)
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(infoList) == 0 {
					// in case infoList is nil, make it empty slice.
					infoList = []l1.NodeInfo{}
				}
				out, err := json.Marshal(infoList)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(infoList) == 0 {
				c.Println("No nodes found")
				return
			}
			for _, info := range infoList {
				c.Println(FormatInfo(info))
			}
		},
	}

	// ConnectCmd connects a bridged node.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[TYPE [ID]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var ref l1.NodeRef
			if len(c.Args) >= 2 {
				ref.Type, ref.ID = c.Args[0], c.Args[1]
			} else {
				var filter func(l1.NodeInfo) bool
				if len(c.Args) == 1 {
					filter = func(info l1.NodeInfo) bool {
						return info.Ref.Type == c.Args[0]
					}
				}
				info, err := s.SelectNode(filter)
				if err != nil {
					c.Err(err)
					return
				}
				if info == nil {
					c.Err(fmt.Errorf("no node discovered"))
					return
				}
				ref = info.Ref
			}
			if err := s.Connect(ref); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes current connection.
	DisconnectCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"disconnect"},
		Help:    "close current connection",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.MustNewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}

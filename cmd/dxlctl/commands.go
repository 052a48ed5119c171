package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arloliu/go-dxl/bus"
	"github.com/arloliu/go-dxl/port"
	"github.com/arloliu/go-dxl/protocol2"
)

var errUsage = errors.New("usage")

// session is the state shared by shell commands.
type session struct {
	reg     *bus.Registry
	current *bus.Bus
}

func newSession(reg *bus.Registry) (*session, error) {
	names := reg.Names()
	if len(names) == 0 {
		return nil, errors.New("no bus is open")
	}

	b, err := reg.Get(names[0])
	if err != nil {
		return nil, err
	}

	return &session{reg: reg, current: b}, nil
}

type command struct {
	name  string
	usage string
	help  string
	run   func(s *session, args []string, out io.Writer) error
	// nargs is the minimum number of arguments.
	nargs int
}

var commands = []command{
	{name: "ports", help: "list serial devices on this host", run: cmdPorts},
	{name: "buses", help: "list open buses, * marks the selected one", run: cmdBuses},
	{name: "use", usage: "NAME", help: "select the bus used by other commands", run: cmdUse, nargs: 1},
	{name: "baud", usage: "[RATE]", help: "show or change the baud rate of the selected bus", run: cmdBaud},
	{name: "ping", usage: "ID", help: "ping one device", run: cmdPing, nargs: 1},
	{name: "scan", help: "broadcast ping and list every device that answers", run: cmdScan},
	{name: "read", usage: "ID ADDR 1|2|4", help: "read a control table value", run: cmdRead, nargs: 3},
	{name: "dump", usage: "ID ADDR LENGTH", help: "read raw control table bytes", run: cmdDump, nargs: 3},
	{name: "write", usage: "ID ADDR 1|2|4 VALUE", help: "write a control table value", run: cmdWrite, nargs: 4},
	{name: "action", usage: "ID", help: "run the registered write of a device", run: cmdAction, nargs: 1},
	{name: "reboot", usage: "ID", help: "reboot a device", run: cmdReboot, nargs: 1},
	{name: "reset", usage: "ID [all|except-id|except-id-baud]", help: "factory reset a device", run: cmdReset, nargs: 1},
	{name: "clear", usage: "ID", help: "clear the multi-turn position of a device", run: cmdClear, nargs: 1},
	{name: "syncread", usage: "ADDR LENGTH ID...", help: "read the same range from several devices", run: cmdSyncRead, nargs: 3},
	{name: "bulkread", usage: "ID:ADDR:LENGTH...", help: "read a different range from each device", run: cmdBulkRead, nargs: 1},
	{name: "stats", help: "show transaction counters of the selected bus", run: cmdStats},
}

func findCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}

	return command{}, false
}

// exec runs the named command with args, writing its output to out.
func (s *session) exec(name string, args []string, out io.Writer) error {
	cmd, ok := findCommand(name)
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	if len(args) < cmd.nargs {
		return fmt.Errorf("%w: %s %s", errUsage, cmd.name, cmd.usage)
	}

	return cmd.run(s, args, out)
}

func (s *session) client() *protocol2.Client {
	return s.current.Client
}

func cmdPorts(_ *session, _ []string, out io.Writer) error {
	names, err := port.ListSerialPorts()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "no serial ports found")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}

	return nil
}

func cmdBuses(s *session, _ []string, out io.Writer) error {
	for _, name := range s.reg.Names() {
		b, err := s.reg.Get(name)
		if err != nil {
			continue
		}
		mark := " "
		if b == s.current {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s %s %d\n", mark, b.Name, b.Port.Name(), b.Port.BaudRate())
	}

	return nil
}

func cmdUse(s *session, args []string, out io.Writer) error {
	b, err := s.reg.Get(args[0])
	if err != nil {
		return err
	}
	s.current = b
	fmt.Fprintf(out, "using %s (%s)\n", b.Name, b.Port.Name())

	return nil
}

func cmdBaud(s *session, args []string, out io.Writer) error {
	p := s.current.Port
	if len(args) == 0 {
		fmt.Fprintln(out, p.BaudRate())
		return nil
	}

	baud, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid baud rate %q", args[0])
	}
	if err := p.SetBaudRate(baud); err != nil {
		return err
	}
	fmt.Fprintf(out, "baud rate set to %d\n", baud)

	return nil
}

func cmdPing(s *session, args []string, out io.Writer) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	info, devErr, err := s.client().Ping(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "[ID:%03d] model %d firmware %d%s\n", id, info.ModelNumber, info.Firmware, devErrSuffix(devErr))

	return nil
}

func cmdScan(s *session, _ []string, out io.Writer) error {
	replies, err := s.client().BroadcastPing()
	for _, id := range protocol2.SortedIDs(replies) {
		info := replies[id]
		fmt.Fprintf(out, "[ID:%03d] model %d firmware %d\n", id, info.ModelNumber, info.Firmware)
	}
	if err != nil {
		if protocol2.ResultOf(err) == protocol2.RxTimeout {
			fmt.Fprintln(out, "no devices found")
			return nil
		}

		return err
	}

	return nil
}

func cmdRead(s *session, args []string, out io.Writer) error {
	id, addr, err := parseIDAddr(args[0], args[1])
	if err != nil {
		return err
	}

	var (
		v      uint32
		devErr protocol2.DeviceError
	)
	c := s.client()
	switch args[2] {
	case "1":
		var b uint8
		b, devErr, err = c.Read1Byte(id, addr)
		v = uint32(b)
	case "2":
		var w uint16
		w, devErr, err = c.Read2Byte(id, addr)
		v = uint32(w)
	case "4":
		v, devErr, err = c.Read4Byte(id, addr)
	default:
		return fmt.Errorf("invalid size %q, want 1, 2 or 4", args[2])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "[ID:%03d] %d: %d (0x%X)%s\n", id, addr, v, v, devErrSuffix(devErr))

	return nil
}

func cmdDump(s *session, args []string, out io.Writer) error {
	id, addr, err := parseIDAddr(args[0], args[1])
	if err != nil {
		return err
	}
	length, err := parseUint16(args[2], "length")
	if err != nil {
		return err
	}

	data, devErr, err := s.client().Read(id, addr, length)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "[ID:%03d] %d: % X%s\n", id, addr, data, devErrSuffix(devErr))

	return nil
}

func cmdWrite(s *session, args []string, out io.Writer) error {
	id, addr, err := parseIDAddr(args[0], args[1])
	if err != nil {
		return err
	}

	var bits int
	switch args[2] {
	case "1":
		bits = 8
	case "2":
		bits = 16
	case "4":
		bits = 32
	default:
		return fmt.Errorf("invalid size %q, want 1, 2 or 4", args[2])
	}
	v, err := strconv.ParseUint(args[3], 0, bits)
	if err != nil {
		return fmt.Errorf("invalid %d-byte value %q", bits/8, args[3])
	}

	var devErr protocol2.DeviceError
	c := s.client()
	switch bits {
	case 8:
		devErr, err = c.Write1Byte(id, addr, uint8(v))
	case 16:
		devErr, err = c.Write2Byte(id, addr, uint16(v))
	default:
		devErr, err = c.Write4Byte(id, addr, uint32(v))
	}

	return report(out, id, "write", devErr, err)
}

func cmdAction(s *session, args []string, out io.Writer) error {
	id, err := parseTargetID(args[0])
	if err != nil {
		return err
	}
	if err := s.client().Action(id); err != nil {
		return err
	}
	fmt.Fprintf(out, "[ID:%03d] action sent\n", id)

	return nil
}

func cmdReboot(s *session, args []string, out io.Writer) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	devErr, err := s.client().Reboot(id)

	return report(out, id, "reboot", devErr, err)
}

func cmdReset(s *session, args []string, out io.Writer) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	option := protocol2.ResetAll
	if len(args) > 1 {
		switch args[1] {
		case "all":
		case "except-id":
			option = protocol2.ResetExceptID
		case "except-id-baud":
			option = protocol2.ResetExceptIDBaud
		default:
			return fmt.Errorf("invalid reset option %q", args[1])
		}
	}
	devErr, err := s.client().FactoryReset(id, option)

	return report(out, id, "factory reset", devErr, err)
}

func cmdClear(s *session, args []string, out io.Writer) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	devErr, err := s.client().ClearMultiTurn(id)

	return report(out, id, "clear multi-turn", devErr, err)
}

func cmdSyncRead(s *session, args []string, out io.Writer) error {
	addr, err := parseUint16(args[0], "address")
	if err != nil {
		return err
	}
	length, err := parseUint16(args[1], "length")
	if err != nil {
		return err
	}
	ids := make([]byte, 0, len(args)-2)
	for _, arg := range args[2:] {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	replies, err := s.client().SyncRead(addr, length, ids)
	printReplies(out, ids, replies)

	return err
}

func cmdBulkRead(s *session, args []string, out io.Writer) error {
	records := make([]protocol2.BulkReadRecord, 0, len(args))
	ids := make([]byte, 0, len(args))
	for _, arg := range args {
		parts := strings.Split(arg, ":")
		if len(parts) != 3 {
			return fmt.Errorf("invalid record %q, want ID:ADDR:LENGTH", arg)
		}
		id, addr, err := parseIDAddr(parts[0], parts[1])
		if err != nil {
			return err
		}
		length, err := parseUint16(parts[2], "length")
		if err != nil {
			return err
		}
		records = append(records, protocol2.BulkReadRecord{ID: id, Addr: addr, Length: length})
		ids = append(ids, id)
	}

	replies, err := s.client().BulkRead(records)
	printReplies(out, ids, replies)

	return err
}

func cmdStats(s *session, _ []string, out io.Writer) error {
	m := s.client().Metrics()
	fmt.Fprintf(out, "tx packets:     %d\n", m.TxPacketCount.Load())
	fmt.Fprintf(out, "tx failures:    %d\n", m.TxFailCount.Load())
	fmt.Fprintf(out, "rx packets:     %d\n", m.RxPacketCount.Load())
	fmt.Fprintf(out, "rx timeouts:    %d\n", m.RxTimeoutCount.Load())
	fmt.Fprintf(out, "rx corrupt:     %d\n", m.RxCorruptCount.Load())
	fmt.Fprintf(out, "port busy:      %d\n", m.PortBusyCount.Load())
	fmt.Fprintf(out, "cross-talk:     %d\n", m.CrossTalkCount.Load())
	fmt.Fprintf(out, "resync bytes:   %d\n", m.ResyncByteCount.Load())

	return nil
}

func printReplies(out io.Writer, ids []byte, replies map[byte]protocol2.Reply) {
	for _, id := range ids {
		r, ok := replies[id]
		if !ok {
			fmt.Fprintf(out, "[ID:%03d] no reply\n", id)
			continue
		}
		fmt.Fprintf(out, "[ID:%03d] % X%s\n", id, r.Data, devErrSuffix(r.Error))
	}
}

func report(out io.Writer, id byte, what string, devErr protocol2.DeviceError, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "[ID:%03d] %s ok%s\n", id, what, devErrSuffix(devErr))

	return nil
}

func devErrSuffix(devErr protocol2.DeviceError) string {
	if devErr.IsZero() {
		return ""
	}

	return " (" + devErr.String() + ")"
}

// parseID parses a unicast device ID.
func parseID(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || v > uint64(protocol2.MaxID) {
		return 0, fmt.Errorf("invalid device id %q, want 0-%d", s, protocol2.MaxID)
	}

	return byte(v), nil
}

// parseTargetID is parseID that also accepts the broadcast ID.
func parseTargetID(s string) (byte, error) {
	if v, err := strconv.ParseUint(s, 0, 8); err == nil && v == uint64(protocol2.BroadcastID) {
		return protocol2.BroadcastID, nil
	}

	return parseID(s)
}

func parseIDAddr(idArg, addrArg string) (byte, uint16, error) {
	id, err := parseID(idArg)
	if err != nil {
		return 0, 0, err
	}
	addr, err := parseUint16(addrArg, "address")
	if err != nil {
		return 0, 0, err
	}

	return id, addr, nil
}

func parseUint16(s, what string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}

	return uint16(v), nil
}

package oi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"oihost/host/console"
)

// BoardType is the numeric module type used by the bus commands
type BoardType int

const (
	BoardCore BoardType = iota
	BoardDiscrete
	BoardDiscreteVE
	BoardStepper
	BoardStepperVE
	BoardMixed
	BoardRelayLP
	BoardRelayHP
)

var boardNames = map[BoardType]string{
	BoardCore:       "core",
	BoardDiscrete:   "discrete",
	BoardDiscreteVE: "discreteve",
	BoardStepper:    "stepper",
	BoardStepperVE:  "stepperve",
	BoardMixed:      "mixed",
	BoardRelayLP:    "relaylp",
	BoardRelayHP:    "relayhp",
}

func (b BoardType) String() string {
	if name, ok := boardNames[b]; ok {
		return name
	}
	return "type" + strconv.Itoa(int(b))
}

// ParseBoardType accepts a board name or its number
func ParseBoardType(s string) (BoardType, error) {
	for b, name := range boardNames {
		if name == s {
			return b, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.Errorf("unknown board type %q", s)
	}
	return BoardType(n), nil
}

// ErrModuleNotFound is returned when the bus master does not know a module
var ErrModuleNotFound = errors.New("module not found")

// Slave is one entry of discover-slaves
type Slave struct {
	ID           int       `json:"id"`
	Type         BoardType `json:"type"`
	SerialNumber int       `json:"sn"`
}

// BoardInfo is what get-slave-info reports
type BoardInfo struct {
	Type            BoardType
	HardwareVariant int
	SerialNumber    int
	Timestamp       int64
	SoftwareVersion string
}

var (
	slaveIDReply  = console.MustRegexp(`Slave ID: (\d+)|(No slave found)[^\r\n]*`)
	discoverReply = console.MustRegexp(`(\[{"id":[^\]]+\]|\[\])`)
	pingReply     = console.MustRegexp(`Ping module: (\d+) time: (\d+) us|(Cannot ping module)`)
	boardReply    = console.MustRegexp(`(?m)^(\d+)\r?\n(\d+)\r?\n(\d+)\r?\n(-?\d+)\r?\n([^\r\n]*)\r?\n`)
)

// GetSlaveID returns the bus id assigned to the module with the given type
// and serial number
func (c *Client) GetSlaveID(ctx context.Context, typ BoardType, sn int) (int, error) {
	cmd := c.master("get-slave-id", int(typ), sn)
	m, err := c.query(ctx, cmd, slaveIDReply, true)
	if err != nil {
		return 0, err
	}
	if m.Group(2) != "" {
		return 0, errors.Wrapf(ErrModuleNotFound, "%s %d", typ, sn)
	}
	return parseInt(cmd, m.Group(1))
}

// DiscoverSlaves lists the modules found on the bus
func (c *Client) DiscoverSlaves(ctx context.Context) ([]Slave, error) {
	cmd := c.master("discover-slaves")
	m, err := c.query(ctx, cmd, discoverReply, true)
	if err != nil {
		return nil, err
	}
	var slaves []Slave
	if err := json.Unmarshal([]byte(m.Group(1)), &slaves); err != nil {
		return nil, &MalformedReplyError{Command: cmd, Text: m.Group(1), Err: err}
	}
	return slaves, nil
}

// Ping measures the round trip to a module
func (c *Client) Ping(ctx context.Context, typ BoardType, sn int) (time.Duration, error) {
	cmd := c.master("ping", int(typ), sn)
	m, err := c.query(ctx, cmd, pingReply, true)
	if err != nil {
		return 0, err
	}
	if m.Group(3) != "" {
		return 0, errors.Wrapf(ErrModuleNotFound, "ping %s %d", typ, sn)
	}
	us, err := parseInt(cmd, m.Group(2))
	if err != nil {
		return 0, err
	}
	return time.Duration(us) * time.Microsecond, nil
}

// GetSlaveInfo reads the identification of a module. The fields come back
// one per line in a fixed order whatever the order of the flags.
func (c *Client) GetSlaveInfo(ctx context.Context, typ BoardType, sn int) (BoardInfo, error) {
	cmd := c.master("get-slave-info", int(typ), sn, "-t", "-h", "-n", "-d", "-s")
	m, err := c.query(ctx, cmd, boardReply, true)
	if err != nil {
		return BoardInfo{}, err
	}

	var info BoardInfo
	nums := make([]int64, 4)
	for i := range nums {
		nums[i], err = strconv.ParseInt(m.Group(i+1), 10, 64)
		if err != nil {
			return BoardInfo{}, &MalformedReplyError{Command: cmd, Text: m.Text, Err: err}
		}
	}
	info.Type = BoardType(nums[0])
	info.HardwareVariant = int(nums[1])
	info.SerialNumber = int(nums[2])
	info.Timestamp = nums[3]
	info.SoftwareVersion = m.Group(5)
	return info, nil
}

func (s Slave) String() string {
	return fmt.Sprintf("%s sn=%d id=%d", s.Type, s.SerialNumber, s.ID)
}

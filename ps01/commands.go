package ps01

// Application commands, datasheet table 60. Every opcode is written as the
// literal bit list of the datasheet and packed with BitsToInt.

// Direction of a motion command (DIR bit)
type Direction uint8

const (
	Backward Direction = 0
	Forward  Direction = 1
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Action of GO_UNTIL and RELEASE_SW on switch detection (ACT bit)
type Action uint8

const (
	ActionReset Action = 0 // ABS_POS is reset
	ActionCopy  Action = 1 // ABS_POS is copied into MARK
)

// Command is a command without payload
type Command uint8

const (
	Nop Command = iota
	GoHome
	GoMark
	ResetPos
	ResetDevice
	SoftStop
	HardStop
	SoftHiZ
	HardHiZ
	GetStatus
)

var commandBits = [...][]uint8{
	Nop:         {0, 0, 0, 0, 0, 0, 0, 0},
	GoHome:      {0, 1, 1, 1, 0, 0, 0, 0},
	GoMark:      {0, 1, 1, 1, 1, 0, 0, 0},
	ResetPos:    {1, 1, 0, 1, 1, 0, 0, 0},
	ResetDevice: {1, 1, 0, 0, 0, 0, 0, 0},
	SoftStop:    {1, 0, 1, 1, 0, 0, 0, 0},
	HardStop:    {1, 0, 1, 1, 1, 0, 0, 0},
	SoftHiZ:     {1, 0, 1, 0, 0, 0, 0, 0},
	HardHiZ:     {1, 0, 1, 0, 1, 0, 0, 0},
	GetStatus:   {1, 1, 0, 1, 0, 0, 0, 0},
}

var commandNames = [...]string{
	Nop:         "NOP",
	GoHome:      "GO_HOME",
	GoMark:      "GO_MARK",
	ResetPos:    "RESET_POS",
	ResetDevice: "RESET_DEVICE",
	SoftStop:    "SOFT_STOP",
	HardStop:    "HARD_STOP",
	SoftHiZ:     "SOFT_HIZ",
	HardHiZ:     "HARD_HIZ",
	GetStatus:   "GET_STATUS",
}

// Opcode returns the command byte
func (c Command) Opcode() uint8 {
	if int(c) >= len(commandBits) {
		return 0
	}
	return uint8(BitsToInt(commandBits[c]...))
}

func (c Command) String() string {
	if int(c) >= len(commandNames) {
		return "UNKNOWN"
	}
	return commandNames[c]
}

// Motion is a command carrying a direction and, for most kinds, a payload
type Motion uint8

const (
	Run Motion = iota
	StepClock
	Move
	GoTo
	GoToDir
	GoUntil
	ReleaseSW
)

var motionNames = [...]string{
	Run:       "RUN",
	StepClock: "STEP_CLOCK",
	Move:      "MOVE",
	GoTo:      "GO_TO",
	GoToDir:   "GO_TO_DIR",
	GoUntil:   "GO_UNTIL",
	ReleaseSW: "RELEASE_SW",
}

func (m Motion) String() string {
	if int(m) >= len(motionNames) {
		return "UNKNOWN"
	}
	return motionNames[m]
}

// Opcode returns the command byte for the given direction and action.
// Kinds without a DIR or ACT bit ignore the corresponding argument.
func (m Motion) Opcode(dir Direction, act Action) uint8 {
	d, a := uint8(dir), uint8(act)
	var bits []uint8
	switch m {
	case Run:
		bits = []uint8{0, 1, 0, 1, 0, 0, 0, d}
	case StepClock:
		bits = []uint8{0, 1, 0, 1, 1, 0, 0, d}
	case Move:
		bits = []uint8{0, 1, 0, 0, 0, 0, 0, d}
	case GoTo:
		bits = []uint8{0, 1, 1, 0, 0, 0, 0, 0}
	case GoToDir:
		bits = []uint8{0, 1, 1, 0, 1, 0, 0, d}
	case GoUntil:
		bits = []uint8{1, 0, 0, 0, a, 0, 1, d}
	case ReleaseSW:
		bits = []uint8{1, 0, 0, 1, a, 0, 1, d}
	default:
		return 0
	}
	return uint8(BitsToInt(bits...))
}

// payloadMask is the width of the motion argument: speeds use the SPEED
// register format, step counts and targets the ABS_POS format
func (m Motion) payloadMask() uint32 {
	switch m {
	case Run, GoUntil:
		return Speed.ValueMask()
	case Move, GoTo, GoToDir:
		return AbsPos.ValueMask()
	default:
		return 0
	}
}

// PayloadBytes returns the number of argument bytes the motion carries
func (m Motion) PayloadBytes() int {
	if m.payloadMask() == 0 {
		return 0
	}
	return 3
}

// opSetParam returns SET_PARAM: 000 followed by the 5-bit address
func opSetParam(addr uint8) uint8 {
	bits := append([]uint8{0, 0, 0}, IntToBits(uint32(addr), 5)...)
	return uint8(BitsToInt(bits...))
}

// opGetParam returns GET_PARAM: 001 followed by the 5-bit address
func opGetParam(addr uint8) uint8 {
	bits := append([]uint8{0, 0, 1}, IntToBits(uint32(addr), 5)...)
	return uint8(BitsToInt(bits...))
}

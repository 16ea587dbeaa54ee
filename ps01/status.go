package ps01

import "fmt"

// Variant identifies the driver chip of a stepper board. The two chips share
// the low STATUS bits but place the fault flags differently.
type Variant uint8

const (
	VariantOIStepper   Variant = iota // powerSTEP01
	VariantOIStepperLP                // L6470
)

func (v Variant) String() string {
	switch v {
	case VariantOIStepper:
		return "OIStepper"
	case VariantOIStepperLP:
		return "OIStepperLP"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// StatusRegister returns the STATUS register of the variant
func StatusRegister(v Variant) Register {
	if v == VariantOIStepperLP {
		r := Status
		r.Address = AddrStatusLP
		return r
	}
	return Status
}

// MotorState is the MOT_STATUS field
type MotorState uint8

const (
	MotorStopped MotorState = iota
	MotorAccelerating
	MotorDecelerating
	MotorConstantSpeed
)

func (m MotorState) String() string {
	switch m {
	case MotorStopped:
		return "stopped"
	case MotorAccelerating:
		return "accelerating"
	case MotorDecelerating:
		return "decelerating"
	default:
		return "constant"
	}
}

// StatusFlags is a decoded STATUS word. Every flag is true when the
// condition is present, whatever the polarity of its bit.
type StatusFlags struct {
	Raw             uint16
	HiZ             bool
	Busy            bool
	SwitchOn        bool
	SwitchEvent     bool
	Forward         bool
	Motion          MotorState
	CommandError    bool
	StepClockMode   bool
	UnderVoltage    bool
	UnderVoltageADC bool
	ThermalWarning  bool
	ThermalShutdown bool
	OverCurrent     bool
	StallA          bool
	StallB          bool
}

const (
	motStatusMask  = 0x0060
	motStatusShift = 5
)

type flagBit struct {
	mask      uint16
	activeLow bool
	field     func(*StatusFlags) *bool
}

var commonBits = []flagBit{
	{0x0001, false, func(s *StatusFlags) *bool { return &s.HiZ }},
	{0x0002, true, func(s *StatusFlags) *bool { return &s.Busy }},
	{0x0004, false, func(s *StatusFlags) *bool { return &s.SwitchOn }},
	{0x0008, false, func(s *StatusFlags) *bool { return &s.SwitchEvent }},
	{0x0010, false, func(s *StatusFlags) *bool { return &s.Forward }},
}

// Bit positions per variant. powerSTEP01: datasheet table 50.
// L6470: datasheet table 33.
var variantBits = map[Variant][]flagBit{
	VariantOIStepper: {
		{0x0080, false, func(s *StatusFlags) *bool { return &s.CommandError }},
		{0x0100, false, func(s *StatusFlags) *bool { return &s.StepClockMode }},
		{0x0200, true, func(s *StatusFlags) *bool { return &s.UnderVoltage }},
		{0x0400, true, func(s *StatusFlags) *bool { return &s.UnderVoltageADC }},
		{0x0800, false, func(s *StatusFlags) *bool { return &s.ThermalWarning }},
		{0x1000, false, func(s *StatusFlags) *bool { return &s.ThermalShutdown }},
		{0x2000, true, func(s *StatusFlags) *bool { return &s.OverCurrent }},
		{0x4000, true, func(s *StatusFlags) *bool { return &s.StallB }},
		{0x8000, true, func(s *StatusFlags) *bool { return &s.StallA }},
	},
	VariantOIStepperLP: {
		{0x0080, false, func(s *StatusFlags) *bool { return &s.CommandError }}, // NOTPERF_CMD
		{0x0100, false, func(s *StatusFlags) *bool { return &s.CommandError }}, // WRONG_CMD
		{0x0200, true, func(s *StatusFlags) *bool { return &s.UnderVoltage }},
		{0x0400, true, func(s *StatusFlags) *bool { return &s.ThermalWarning }},
		{0x0800, true, func(s *StatusFlags) *bool { return &s.ThermalShutdown }},
		{0x1000, true, func(s *StatusFlags) *bool { return &s.OverCurrent }},
		{0x2000, true, func(s *StatusFlags) *bool { return &s.StallA }},
		{0x4000, true, func(s *StatusFlags) *bool { return &s.StallB }},
		{0x8000, false, func(s *StatusFlags) *bool { return &s.StepClockMode }},
	},
}

// DecodeStatusWord decodes a STATUS word for the given board variant
func DecodeStatusWord(word uint16, v Variant) StatusFlags {
	s := StatusFlags{
		Raw:    word,
		Motion: MotorState((word & motStatusMask) >> motStatusShift),
	}
	apply := func(bits []flagBit) {
		for _, b := range bits {
			set := word&b.mask != 0
			if b.activeLow {
				set = !set
			}
			if set {
				*b.field(&s) = true
			}
		}
	}
	apply(commonBits)
	apply(variantBits[v])
	return s
}

// Faulted reports whether any fault condition is present
func (s StatusFlags) Faulted() bool {
	return s.CommandError || s.UnderVoltage || s.UnderVoltageADC ||
		s.ThermalShutdown || s.OverCurrent || s.StallA || s.StallB
}

// Package ps01 encodes commands for the STMicroelectronics powerSTEP01
// stepper driver (and the L6470 used on the low-power board) as integer
// frames, and decodes what the driver sends back. It performs no I/O except
// in Transmitter.
package ps01

// powerSTEP01 register definitions
// Based on powerSTEP01 datasheet DocID025022 Rev 5, table 12

// Rights is the set of operations a register accepts
type Rights uint8

const (
	Read             Rights = 1 << iota // readable at any time
	WriteWhenHiZ                        // writable only with the bridges in high impedance
	WriteWhenStopped                    // writable only with the motor stopped
	WriteAlways                         // writable at any time
)

func (r Rights) String() string {
	s := ""
	for _, p := range []struct {
		bit  Rights
		name string
	}{{Read, "R"}, {WriteWhenHiZ, "WH"}, {WriteWhenStopped, "WS"}, {WriteAlways, "WR"}} {
		if r&p.bit == 0 {
			continue
		}
		if s != "" {
			s += ","
		}
		s += p.name
	}
	if s == "" {
		return "-"
	}
	return s
}

// Mode is the control method a register belongs to. Addresses 0x09-0x10 and
// the CONFIG register (0x1A) mean different things in voltage mode and in
// current mode: the same address carries two decode schemas, selected by the
// CM_VM bit of STEP_MODE.
type Mode uint8

const (
	ModeGeneral Mode = iota // same meaning in both modes
	ModeVoltage
	ModeCurrent
)

func (m Mode) String() string {
	switch m {
	case ModeVoltage:
		return "voltage"
	case ModeCurrent:
		return "current"
	default:
		return "general"
	}
}

// Register describes one driver register. Values are compared and copied
// freely; the table below is never modified.
type Register struct {
	Address uint8
	Name    string
	Width   uint8 // bits, 1..32
	Reset   uint32
	Rights  Rights
	Mode    Mode
}

// ValueMask returns 2^Width - 1
func (r Register) ValueMask() uint32 {
	if r.Width >= 32 {
		return 0xFFFFFFFF
	}
	return uint32(1)<<r.Width - 1
}

// Bytes returns how many bytes the register occupies in a SET/GET transfer
func (r Register) Bytes() int {
	return (int(r.Width) + 7) / 8
}

func (r Register) String() string {
	return r.Name
}

// Register addresses
const (
	AddrAbsPos    = 0x01 // Current position
	AddrElPos     = 0x02 // Electrical position
	AddrMark      = 0x03 // Mark position
	AddrSpeed     = 0x04 // Current speed (read only)
	AddrAcc       = 0x05 // Acceleration
	AddrDec       = 0x06 // Deceleration
	AddrMaxSpeed  = 0x07 // Maximum speed
	AddrMinSpeed  = 0x08 // Minimum speed and low speed optimization
	AddrHold      = 0x09 // KVAL_HOLD (voltage) / TVAL_HOLD (current)
	AddrRun       = 0x0A // KVAL_RUN / TVAL_RUN
	AddrAccVal    = 0x0B // KVAL_ACC / TVAL_ACC
	AddrDecVal    = 0x0C // KVAL_DEC / TVAL_DEC
	AddrIntSpeed  = 0x0D // Intersect speed (voltage mode)
	AddrStSlp     = 0x0E // ST_SLP (voltage) / T_FAST (current)
	AddrFnSlpAcc  = 0x0F // FN_SLP_ACC / TON_MIN
	AddrFnSlpDec  = 0x10 // FN_SLP_DEC / TOFF_MIN
	AddrKTherm    = 0x11 // Thermal compensation factor (voltage mode)
	AddrAdcOut    = 0x12 // ADC output (read only)
	AddrOcdTh     = 0x13 // Overcurrent threshold
	AddrStallTh   = 0x14 // Stall threshold (voltage mode)
	AddrFsSpd     = 0x15 // Full-step speed
	AddrStepMode  = 0x16 // Step mode
	AddrAlarmEn   = 0x17 // Alarm enables
	AddrGateCfg1  = 0x18 // Gate driver configuration
	AddrGateCfg2  = 0x19 // Gate driver configuration
	AddrConfig    = 0x1A // IC configuration (two schemas)
	AddrStatus    = 0x1B // Status (read only)
	AddrStatusLP  = 0x19 // Status register of the L6470 (OIStepperLP board)
)

// Register table
var (
	AbsPos   = Register{AddrAbsPos, "ABS_POS", 22, 0x000000, Read | WriteWhenStopped, ModeGeneral}
	ElPos    = Register{AddrElPos, "EL_POS", 9, 0x000, Read | WriteWhenStopped, ModeGeneral}
	Mark     = Register{AddrMark, "MARK", 22, 0x000000, Read | WriteAlways, ModeGeneral}
	Speed    = Register{AddrSpeed, "SPEED", 20, 0x00000, Read, ModeGeneral}
	Acc      = Register{AddrAcc, "ACC", 12, 0x08A, Read | WriteWhenStopped, ModeGeneral}
	Dec      = Register{AddrDec, "DEC", 12, 0x08A, Read | WriteWhenStopped, ModeGeneral}
	MaxSpeed = Register{AddrMaxSpeed, "MAX_SPEED", 10, 0x041, Read | WriteAlways, ModeGeneral}
	MinSpeed = Register{AddrMinSpeed, "MIN_SPEED", 13, 0x000, Read | WriteWhenStopped, ModeGeneral}
	AdcOut   = Register{AddrAdcOut, "ADC_OUT", 5, 0x00, Read, ModeGeneral}
	OcdTh    = Register{AddrOcdTh, "OCD_TH", 5, 0x08, Read | WriteAlways, ModeGeneral}
	FsSpd    = Register{AddrFsSpd, "FS_SPD", 11, 0x027, Read | WriteAlways, ModeGeneral}
	StepMode = Register{AddrStepMode, "STEP_MODE", 8, 0x07, Read | WriteWhenHiZ, ModeGeneral}
	AlarmEn  = Register{AddrAlarmEn, "ALARM_EN", 8, 0xFF, Read | WriteWhenStopped, ModeGeneral}
	GateCfg1 = Register{AddrGateCfg1, "GATECFG1", 12, 0x000, Read | WriteWhenHiZ, ModeGeneral}
	GateCfg2 = Register{AddrGateCfg2, "GATECFG2", 8, 0x00, Read | WriteWhenHiZ, ModeGeneral}
	Status   = Register{AddrStatus, "STATUS", 16, 0x0000, Read, ModeGeneral}

	// Voltage mode
	KvalHold = Register{AddrHold, "KVAL_HOLD", 8, 0x29, Read | WriteAlways, ModeVoltage}
	KvalRun  = Register{AddrRun, "KVAL_RUN", 8, 0x29, Read | WriteAlways, ModeVoltage}
	KvalAcc  = Register{AddrAccVal, "KVAL_ACC", 8, 0x29, Read | WriteAlways, ModeVoltage}
	KvalDec  = Register{AddrDecVal, "KVAL_DEC", 8, 0x29, Read | WriteAlways, ModeVoltage}
	IntSpeed = Register{AddrIntSpeed, "INT_SPEED", 14, 0x0408, Read | WriteWhenHiZ, ModeVoltage}
	StSlp    = Register{AddrStSlp, "ST_SLP", 8, 0x19, Read | WriteWhenHiZ, ModeVoltage}
	FnSlpAcc = Register{AddrFnSlpAcc, "FN_SLP_ACC", 8, 0x29, Read | WriteWhenHiZ, ModeVoltage}
	FnSlpDec = Register{AddrFnSlpDec, "FN_SLP_DEC", 8, 0x29, Read | WriteWhenHiZ, ModeVoltage}
	KTherm   = Register{AddrKTherm, "K_THERM", 4, 0x0, Read | WriteAlways, ModeVoltage}
	StallTh  = Register{AddrStallTh, "STALL_TH", 5, 0x10, Read | WriteAlways, ModeVoltage}
	ConfigVM = Register{AddrConfig, "CONFIG", 16, 0x2C88, Read | WriteWhenHiZ, ModeVoltage}

	// Current mode
	TvalHold = Register{AddrHold, "TVAL_HOLD", 7, 0x29, Read | WriteAlways, ModeCurrent}
	TvalRun  = Register{AddrRun, "TVAL_RUN", 7, 0x29, Read | WriteAlways, ModeCurrent}
	TvalAcc  = Register{AddrAccVal, "TVAL_ACC", 7, 0x29, Read | WriteAlways, ModeCurrent}
	TvalDec  = Register{AddrDecVal, "TVAL_DEC", 7, 0x29, Read | WriteAlways, ModeCurrent}
	TFast    = Register{AddrStSlp, "T_FAST", 8, 0x19, Read | WriteWhenHiZ, ModeCurrent}
	TonMin   = Register{AddrFnSlpAcc, "TON_MIN", 7, 0x29, Read | WriteWhenHiZ, ModeCurrent}
	ToffMin  = Register{AddrFnSlpDec, "TOFF_MIN", 7, 0x29, Read | WriteWhenHiZ, ModeCurrent}
	ConfigCM = Register{AddrConfig, "CONFIG", 16, 0x2C88, Read | WriteWhenHiZ, ModeCurrent}
)

var registers = []Register{
	AbsPos, ElPos, Mark, Speed, Acc, Dec, MaxSpeed, MinSpeed,
	KvalHold, KvalRun, KvalAcc, KvalDec, IntSpeed, StSlp, FnSlpAcc, FnSlpDec, KTherm,
	TvalHold, TvalRun, TvalAcc, TvalDec, TFast, TonMin, ToffMin,
	AdcOut, OcdTh, StallTh, FsSpd, StepMode, AlarmEn, GateCfg1, GateCfg2,
	ConfigVM, ConfigCM, Status,
}

// Registers returns a copy of the register table
func Registers() []Register {
	out := make([]Register, len(registers))
	copy(out, registers)
	return out
}

// Lookup finds a register by name as seen in the given mode. Registers of
// the other mode are not visible.
func Lookup(name string, mode Mode) (Register, bool) {
	for _, r := range registers {
		if r.Name == name && visible(r, mode) {
			return r, true
		}
	}
	return Register{}, false
}

// ByAddress returns the register at addr as seen in the given mode
func ByAddress(addr uint8, mode Mode) (Register, bool) {
	for _, r := range registers {
		if r.Address == addr && visible(r, mode) {
			return r, true
		}
	}
	return Register{}, false
}

func visible(r Register, mode Mode) bool {
	return r.Mode == ModeGeneral || mode == ModeGeneral || r.Mode == mode
}

// MIN_SPEED and FS_SPD flag bits
const (
	MinSpeedLspdOpt = 1 << 12 // Low speed optimization
	FsSpdBoostMode  = 1 << 10 // Boost mode (current mode)
)

// STEP_MODE fields
const (
	StepModeStepSel = 0x07 // Step resolution
	StepModeCmVm    = 0x08 // Control method: 0 voltage, 1 current
	StepModeSyncSel = 0x70 // Synchronization selection
	StepModeSyncEn  = 0x80 // Synchronization enable
)

// ALARM_EN bits
const (
	AlarmOverCurrent     = 0x01
	AlarmThermalShutdown = 0x02
	AlarmThermalWarning  = 0x04
	AlarmUVLO            = 0x08
	AlarmADCUVLO         = 0x10
	AlarmStallDetection  = 0x20
	AlarmSwitchTurnOn    = 0x40
	AlarmCommandError    = 0x80
)

// GATECFG1 and GATECFG2 fields
const (
	GateCfg1Tcc    = 0x001F // Controlled current time
	GateCfg1IGate  = 0x00E0 // Gate sink/source current
	GateCfg1TBoost = 0x0700 // Duration of the overboost phase
	GateCfg1WdEn   = 0x0800 // Clock source monitoring enable
	GateCfg2Tdt    = 0x1F   // Dead time
	GateCfg2TBlank = 0xE0   // Blanking time
)

// CONFIG fields common to both modes
const (
	ConfigOscSel  = 0x0007 // Oscillator selection
	ConfigExtClk  = 0x0008 // External clock
	ConfigSwMode  = 0x0010 // Switch mode: 0 hard stop, 1 user
	ConfigOcSd    = 0x0080 // Overcurrent shutdown
	ConfigUvloVal = 0x0100 // UVLO threshold
	ConfigVccVal  = 0x0200 // Vcc voltage: 0 7.5V, 1 15V
)

// CONFIG fields, voltage mode
const (
	ConfigEnVsComp = 0x0020 // Supply voltage compensation
	ConfigFPwmDec  = 0x1C00 // PWM frequency multiplication factor
	ConfigFPwmInt  = 0xE000 // PWM frequency division factor
)

// CONFIG fields, current mode
const (
	ConfigEnTqReg = 0x0020 // Torque regulation from ADC_OUT
	ConfigTsw     = 0x7C00 // Switching period
	ConfigPredEn  = 0x8000 // Predictive current control
)

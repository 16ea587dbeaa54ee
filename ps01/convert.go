package ps01

import "math"

// Unit conversions between engineering values and register contents, from
// the datasheet register descriptions (tick = 250 ns). Results are clamped
// at zero and masked to the width of the target register.

func toReg(reg Register, v float64, round bool) uint32 {
	if round {
		v += 0.5
	}
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= float64(reg.ValueMask()) {
		return reg.ValueMask()
	}
	return uint32(v)
}

// SpeedToReg converts steps/s to the SPEED format (RUN, GO_UNTIL payload)
func SpeedToReg(stepsPerSec float64) uint32 {
	return toReg(Speed, stepsPerSec*67.108864, true)
}

// SpeedFromReg converts a SPEED value to steps/s
func SpeedFromReg(v uint32) float64 {
	return float64(Mask(Speed, v)) * 0.01490116119
}

// AccDecToReg converts steps/s^2 to ACC/DEC
func AccDecToReg(stepsPerSec2 float64) uint32 {
	return toReg(Acc, stepsPerSec2*0.068719476736, true)
}

// AccDecFromReg converts ACC/DEC to steps/s^2
func AccDecFromReg(v uint32) float64 {
	return float64(Mask(Acc, v)) * 14.5519152283
}

// MaxSpeedToReg converts steps/s to MAX_SPEED
func MaxSpeedToReg(stepsPerSec float64) uint32 {
	return toReg(MaxSpeed, stepsPerSec*0.065536, true)
}

// MaxSpeedFromReg converts MAX_SPEED to steps/s
func MaxSpeedFromReg(v uint32) float64 {
	return float64(Mask(MaxSpeed, v)) * 15.258789
}

// MinSpeedToReg converts steps/s to the MIN_SPEED value bits (LSPD_OPT
// excluded)
func MinSpeedToReg(stepsPerSec float64) uint32 {
	return toReg(Register{Width: 12}, stepsPerSec*4.194304, true)
}

// MinSpeedFromReg converts MIN_SPEED to steps/s, ignoring LSPD_OPT
func MinSpeedFromReg(v uint32) float64 {
	return float64(v&^MinSpeedLspdOpt&0xFFF) * 0.238418579
}

// FsSpdToReg converts steps/s to the FS_SPD value bits. The datasheet
// truncates here instead of rounding.
func FsSpdToReg(stepsPerSec float64) uint32 {
	return toReg(Register{Width: 10}, stepsPerSec*0.065536, false)
}

// FsSpdFromReg converts FS_SPD to steps/s, ignoring BOOST_MODE
func FsSpdFromReg(v uint32) float64 {
	return (float64(v&0x3FF) + 0.999) * 15.258789
}

// IntSpeedToReg converts steps/s to INT_SPEED
func IntSpeedToReg(stepsPerSec float64) uint32 {
	return toReg(IntSpeed, stepsPerSec*16.777216, true)
}

// IntSpeedFromReg converts INT_SPEED to steps/s
func IntSpeedFromReg(v uint32) float64 {
	return float64(Mask(IntSpeed, v)) * 0.0596045
}

// KvalToReg converts a percentage of the supply voltage to KVAL_*
func KvalToReg(percent float64) uint32 {
	return toReg(KvalRun, percent*2.56, true)
}

// KvalFromReg converts KVAL_* to a percentage
func KvalFromReg(v uint32) float64 {
	return float64(Mask(KvalRun, v)) * 0.390625
}

// BEMFSlopeToReg converts a slope in % s/step to ST_SLP or FN_SLP_*
func BEMFSlopeToReg(percent float64) uint32 {
	return toReg(StSlp, percent*637.5, true)
}

// BEMFSlopeFromReg converts ST_SLP or FN_SLP_* to % s/step
func BEMFSlopeFromReg(v uint32) float64 {
	return float64(Mask(StSlp, v)) * 0.00156862745098
}

// KThermToReg converts a compensation factor (1 to 1.46875) to K_THERM
func KThermToReg(factor float64) uint32 {
	return toReg(KTherm, (factor-1)*32, true)
}

// KThermFromReg converts K_THERM to a compensation factor
func KThermFromReg(v uint32) float64 {
	return float64(Mask(KTherm, v))*0.03125 + 1
}

// ThresholdToReg converts a threshold in mV to OCD_TH or STALL_TH
func ThresholdToReg(mV float64) uint32 {
	return toReg(OcdTh, (mV-31.25)*0.032, true)
}

// ThresholdFromReg converts OCD_TH or STALL_TH to mV
func ThresholdFromReg(v uint32) float64 {
	return float64(Mask(OcdTh, v)+1) * 31.25
}

// TvalToReg converts a reference voltage in mV to TVAL_*
func TvalToReg(mV float64) uint32 {
	return toReg(TvalRun, (mV-7.8125)*0.128, true)
}

// TvalFromReg converts TVAL_* to mV
func TvalFromReg(v uint32) float64 {
	return float64(Mask(TvalRun, v)+1) * 7.8125
}

// TminToReg converts a time in us to TON_MIN or TOFF_MIN
func TminToReg(us float64) uint32 {
	return toReg(TonMin, (us-0.5)*2, true)
}

// TminFromReg converts TON_MIN or TOFF_MIN to us
func TminFromReg(v uint32) float64 {
	return float64(Mask(TonMin, v)+1) * 0.5
}

// TFastToReg converts a time in us to one 4-bit field of T_FAST
// (TOFF_FAST or FAST_STEP)
func TFastToReg(us float64) uint32 {
	return toReg(Register{Width: 4}, us/2-1, false)
}

// TFastFromReg converts one 4-bit field of T_FAST to us
func TFastFromReg(v uint32) float64 {
	return float64(v&0xF+1) * 2
}

package ps01

// StepModeFields is a decoded STEP_MODE register
type StepModeFields struct {
	StepSel uint8 // microstep resolution, 2^StepSel microsteps per step
	Current bool  // CM_VM: current mode control
	SyncSel uint8
	SyncEn  bool
}

// DecodeStepMode splits a STEP_MODE value into its fields
func DecodeStepMode(v uint32) StepModeFields {
	return StepModeFields{
		StepSel: uint8(v & StepModeStepSel),
		Current: v&StepModeCmVm != 0,
		SyncSel: uint8(v&StepModeSyncSel) >> 4,
		SyncEn:  v&StepModeSyncEn != 0,
	}
}

// Encode packs the fields back into a STEP_MODE value
func (f StepModeFields) Encode() uint32 {
	v := uint32(f.StepSel) & StepModeStepSel
	if f.Current {
		v |= StepModeCmVm
	}
	v |= uint32(f.SyncSel) << 4 & StepModeSyncSel
	if f.SyncEn {
		v |= StepModeSyncEn
	}
	return v
}

// Mode returns the control method selected by CM_VM
func (f StepModeFields) Mode() Mode {
	if f.Current {
		return ModeCurrent
	}
	return ModeVoltage
}

// ConfigFields is a decoded CONFIG register. Which of the mode specific
// fields are meaningful depends on Mode.
type ConfigFields struct {
	Mode    Mode
	OscSel  uint8
	ExtClk  bool
	SwUser  bool // SW_MODE: switch event does not stop the motor
	OcSd    bool
	UvloVal bool
	Vcc15V  bool

	// Voltage mode
	VsComp  bool
	FPwmDec uint8
	FPwmInt uint8

	// Current mode
	TqReg  bool
	Tsw    uint8
	PredEn bool
}

// DecodeConfig decodes CONFIG with the schema of the given mode. The same
// bits mean different things in voltage and current mode.
func DecodeConfig(v uint32, mode Mode) ConfigFields {
	f := ConfigFields{
		Mode:    mode,
		OscSel:  uint8(v & ConfigOscSel),
		ExtClk:  v&ConfigExtClk != 0,
		SwUser:  v&ConfigSwMode != 0,
		OcSd:    v&ConfigOcSd != 0,
		UvloVal: v&ConfigUvloVal != 0,
		Vcc15V:  v&ConfigVccVal != 0,
	}
	switch mode {
	case ModeCurrent:
		f.TqReg = v&ConfigEnTqReg != 0
		f.Tsw = uint8((v & ConfigTsw) >> 10)
		f.PredEn = v&ConfigPredEn != 0
	default:
		f.Mode = ModeVoltage
		f.VsComp = v&ConfigEnVsComp != 0
		f.FPwmDec = uint8((v & ConfigFPwmDec) >> 10)
		f.FPwmInt = uint8((v & ConfigFPwmInt) >> 13)
	}
	return f
}

// Encode packs the fields back into a CONFIG value using f.Mode
func (f ConfigFields) Encode() uint32 {
	v := uint32(f.OscSel) & ConfigOscSel
	set := func(cond bool, bit uint32) {
		if cond {
			v |= bit
		}
	}
	set(f.ExtClk, ConfigExtClk)
	set(f.SwUser, ConfigSwMode)
	set(f.OcSd, ConfigOcSd)
	set(f.UvloVal, ConfigUvloVal)
	set(f.Vcc15V, ConfigVccVal)
	if f.Mode == ModeCurrent {
		set(f.TqReg, ConfigEnTqReg)
		v |= uint32(f.Tsw) << 10 & ConfigTsw
		set(f.PredEn, ConfigPredEn)
	} else {
		set(f.VsComp, ConfigEnVsComp)
		v |= uint32(f.FPwmDec) << 10 & ConfigFPwmDec
		v |= uint32(f.FPwmInt) << 13 & ConfigFPwmInt
	}
	return v
}

// ConfigRegister returns the CONFIG descriptor for the mode
func ConfigRegister(mode Mode) Register {
	if mode == ModeCurrent {
		return ConfigCM
	}
	return ConfigVM
}

// Package protocol implements the OpenIndus module console line protocol
package protocol

import (
	"strconv"
	"strings"
)

// Version represents the oihost tooling version
const Version = "0.1.0"

// Protocol constants
const (
	// LineTerminator ends every outbound command line
	LineTerminator = "\r\n"

	// ModuleFlag addresses a command to a remote module on the bus
	ModuleFlag = "-i"

	// PromptSuffix closes every role prompt ("Core>", "Discrete>")
	PromptSuffix = ">"

	// LocalModule is the module id meaning "the module the console is attached to"
	LocalModule = -1
)

// Module roles as reported by the firmware
const (
	RoleCore      = "core"
	RoleDiscrete  = "discrete"
	RoleStepper   = "stepper"
	RoleMixed     = "mixed"
	RoleRelayHP   = "relayhp"
	RoleRelayLP   = "relaylp"
	RoleAnalogLS  = "analogls"
	RoleDC        = "dc"
	RoleBrushless = "brushless"
)

// PromptFor returns the prompt literal printed by a module of the given role.
// Unknown roles get their first letter capitalized.
func PromptFor(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + role[1:] + PromptSuffix
}

// Address appends the module flag to cmd unless id is LocalModule
func Address(cmd string, id int) string {
	if id == LocalModule {
		return cmd
	}
	return cmd + " " + ModuleFlag + " " + strconv.Itoa(id)
}

// Command joins a command name and its arguments with single spaces
func Command(name string, args ...any) string {
	var b strings.Builder
	b.WriteString(name)
	for _, arg := range args {
		b.WriteByte(' ')
		switch v := arg.(type) {
		case string:
			b.WriteString(v)
		case int:
			b.WriteString(strconv.Itoa(v))
		case uint64:
			b.WriteString(strconv.FormatUint(v, 10))
		case uint32:
			b.WriteString(strconv.FormatUint(uint64(v), 10))
		case float64:
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		case interface{ String() string }:
			b.WriteString(v.String())
		default:
			b.WriteString("?")
		}
	}
	return b.String()
}

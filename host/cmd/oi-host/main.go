package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"oihost/host/config"
	"oihost/host/serial"
	"oihost/protocol"
)

var (
	device     = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud       = flag.Int("baud", 115200, "Baud rate")
	backend    = flag.String("backend", serial.BackendTarm, "Serial backend (tarm or bugst)")
	role       = flag.String("role", protocol.RoleCore, "Role of the module behind the console, sets the prompt")
	configPath = flag.String("config", "bench.yaml", "Bench description for the check command")
	module     = flag.Int("module", protocol.LocalModule, "Address commands to this slave module id")
	mode       = flag.String("mode", "voltage", "Stepper control mode for frame (voltage or current)")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	log := newLogger(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := "console"
	args := flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "console":
		err = runConsole(ctx, log, consoleFromFlags())
	case "check":
		err = runCheck(ctx, log, *configPath)
	case "ports":
		err = runPorts()
	case "frame":
		err = runFrame(args)
	case "version":
		fmt.Println("oi-host", protocol.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("failed")
		os.Exit(1)
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// consoleFromFlags describes the console given on the command line
func consoleFromFlags() config.Console {
	return config.Console{
		Name:           "cli",
		Device:         *device,
		Baud:           *baud,
		Backend:        *backend,
		Role:           *role,
		ReadTimeoutMs:  serial.DefaultConfig("").ReadTimeout,
		ReplyTimeoutMs: 5000,
	}
}

func runPorts() error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: oi-host [flags] <command> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  console              Interactive module console (default)\n")
	fmt.Fprintf(os.Stderr, "  check                Discover the modules of the -config bench and check their ids\n")
	fmt.Fprintf(os.Stderr, "  ports                List serial ports\n")
	fmt.Fprintf(os.Stderr, "  frame <op> [args]    Print a stepper driver frame, see 'frame help'\n")
	fmt.Fprintf(os.Stderr, "  version              Print the version\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

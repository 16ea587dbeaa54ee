package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"oihost/host/config"
	"oihost/host/console"
	"oihost/host/oi"
	"oihost/protocol"
)

// idleQuiet is how long the console must stay silent before a command is
// sent; output read meanwhile is dropped after its events are queued
const idleQuiet = 20 * time.Millisecond

func runConsole(ctx context.Context, log zerolog.Logger, c config.Console) error {
	fmt.Println("OpenIndus Host - module console")
	fmt.Println("================================")
	fmt.Println()

	fmt.Printf("Connecting to %s on %s...\n", c.Prompt(), c.Device)
	conn, err := oi.ConnectWithConfig(ctx, c.SerialConfig(), c.Prompt(),
		console.WithLogger(log),
		console.WithReplyTimeout(c.ReplyTimeout()),
		console.WithEventPattern(console.LogLine),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Println("Connected successfully!")

	session := conn.Session()
	client := conn.Client(oi.WithModuleID(*module), oi.WithTimeout(c.ReplyTimeout()))
	reply := replyPattern(c.Prompt())

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(c.Prompt() + " ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return nil

		case "help", "?":
			printHelp()

		case "events":
			printEvents(session.DrainUnsolicited())

		case "discover":
			slaves, err := client.DiscoverSlaves(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				break
			}
			fmt.Printf("%d slave(s)\n", len(slaves))
			for _, s := range slaves {
				fmt.Printf("  %s\n", s)
			}

		case "wait":
			timeout := 10 * time.Second
			if len(parts) > 1 {
				sec, err := strconv.ParseFloat(parts[1], 64)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: bad timeout %q\n", parts[1])
					break
				}
				timeout = time.Duration(sec * float64(time.Second))
			}
			pin, err := client.WaitForInterrupt(ctx, timeout)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				break
			}
			fmt.Printf("Interrupt on DIN_%d\n", pin)

		default:
			if err := execLine(ctx, session, reply, parts, c.ReplyTimeout()); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				if errors.Is(err, console.ErrStreamClosed) {
					return err
				}
			}
		}

		printEvents(session.DrainUnsolicited())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	return nil
}

// execLine sends a raw module command and prints what it answered
func execLine(ctx context.Context, s *console.Session, reply console.Pattern, parts []string, timeout time.Duration) error {
	args := make([]any, 0, len(parts)-1)
	for _, p := range parts[1:] {
		args = append(args, p)
	}
	cmd := protocol.Address(protocol.Command(parts[0], args...), *module)

	if _, err := s.Discard(ctx, idleQuiet); err != nil {
		return err
	}
	m, err := s.SendExpect(ctx, cmd, reply, timeout)
	if err != nil {
		return err
	}
	if text := replyText(m.Group(1), cmd); text != "" {
		fmt.Println(text)
	}
	return nil
}

// replyPattern captures everything the module prints up to its prompt
func replyPattern(prompt string) console.Pattern {
	return console.MustRegexp(`(?s)(.*?)` + regexp.QuoteMeta(prompt))
}

// replyText strips the echoed command and surrounding blank lines
func replyText(raw, cmd string) string {
	text := strings.Trim(raw, "\r\n")
	first, rest, found := strings.Cut(text, "\n")
	if strings.TrimSpace(first) == cmd {
		if !found {
			return ""
		}
		text = rest
	}
	return strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\r\n \t")
}

func printEvents(events []console.UnsolicitedEvent) {
	for _, ev := range events {
		fmt.Printf("[%s] %s\n", ev.Kind, ev.Raw)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  events         - Print queued unsolicited lines")
	fmt.Println("  discover       - List the slave modules on the bus")
	fmt.Println("  wait [sec]     - Wait for a digital input interrupt")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println("  <anything>     - Sent to the module as is, -module adds the address flag")
	fmt.Println()
}

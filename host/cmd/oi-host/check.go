package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"oihost/host/config"
	"oihost/host/console"
	"oihost/host/oi"
)

// checkResult is the outcome for one configured module
type checkResult struct {
	Console string
	Module  string
	ID      int
	Err     error
}

func (r checkResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%-10s %-16s FAIL %v", r.Console, r.Module, r.Err)
	}
	return fmt.Sprintf("%-10s %-16s ok   id=%d", r.Console, r.Module, r.ID)
}

func runCheck(ctx context.Context, log zerolog.Logger, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		results []checkResult
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range cfg.Consoles {
		c := c
		mods := cfg.ModulesOn(c.Name)
		g.Go(func() error {
			res, err := checkConsole(ctx, log.With().Str("console", c.Name).Logger(), c, mods)
			mu.Lock()
			results = append(results, res...)
			mu.Unlock()
			return err
		})
	}
	err = g.Wait()

	failed := 0
	for _, r := range results {
		fmt.Println(r)
		if r.Err != nil {
			failed++
		}
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return errors.Errorf("%d of %d modules failed", failed, len(results))
	}
	fmt.Printf("%d modules ok\n", len(results))
	return nil
}

// checkConsole opens one console, lists the slaves it sees and resolves the
// id of every configured module. Only a console that cannot be opened is an
// error; module problems go into the results.
func checkConsole(ctx context.Context, log zerolog.Logger, c config.Console, mods []config.Module) ([]checkResult, error) {
	conn, err := oi.ConnectWithConfig(ctx, c.SerialConfig(), c.Prompt(),
		console.WithLogger(log),
		console.WithReplyTimeout(c.ReplyTimeout()),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "console %q", c.Name)
	}
	defer conn.Close()

	client := conn.Client(oi.WithTimeout(c.ReplyTimeout()))
	slaves, err := client.DiscoverSlaves(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "console %q: discover", c.Name)
	}
	log.Info().Int("slaves", len(slaves)).Msg("discovered")

	return checkModules(ctx, client, c.Name, mods, slaves), nil
}

// checkModules matches configured modules against the discovered slaves
func checkModules(ctx context.Context, client *oi.Client, consoleName string, mods []config.Module, slaves []oi.Slave) []checkResult {
	results := make([]checkResult, 0, len(mods))
	for _, m := range mods {
		r := checkResult{Console: consoleName, Module: m.Name}
		r.ID, r.Err = checkModule(ctx, client, m, slaves)
		results = append(results, r)
	}
	return results
}

func checkModule(ctx context.Context, client *oi.Client, m config.Module, slaves []oi.Slave) (int, error) {
	typ, err := m.BoardType()
	if err != nil {
		return 0, err
	}

	seen := false
	for _, s := range slaves {
		if s.Type == typ && s.SerialNumber == m.SerialNumber {
			seen = true
			break
		}
	}
	if !seen {
		return 0, errors.Errorf("%s sn %d not discovered", typ, m.SerialNumber)
	}

	id, err := client.GetSlaveID(ctx, typ, m.SerialNumber)
	if err != nil {
		return 0, err
	}
	if m.ExpectedID != 0 && id != m.ExpectedID {
		return id, errors.Errorf("id %d, expected %d", id, m.ExpectedID)
	}
	return id, nil
}

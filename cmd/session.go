package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/bootforge/internal/config"
	"github.com/papapumpkin/bootforge/internal/inventory"
	"github.com/papapumpkin/bootforge/internal/item"
	"github.com/papapumpkin/bootforge/internal/settings"
	"github.com/papapumpkin/bootforge/internal/telemetry"
	"github.com/papapumpkin/bootforge/internal/ui"
)

// session is the loaded state every subcommand works against.
type session struct {
	cfg      config.Config
	log      *logrus.Logger
	events   *telemetry.Emitter
	settings *settings.Settings
	inv      *inventory.Inventory
	printer  *ui.Printer
}

// openSession loads configuration, settings, and the inventory. With load
// unset the inventory is created empty.
func openSession(cmd *cobra.Command, load bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		ui.DisableColors()
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.Level())

	s := &session{cfg: cfg, log: log, printer: &ui.Printer{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}}
	if cfg.Events != "" {
		if s.events, err = telemetry.NewEmitter(cfg.Events); err != nil {
			return nil, err
		}
	}
	if s.settings, err = settings.New(settings.Config{Path: cfg.Settings, Logger: log, Events: s.events}); err != nil {
		s.close()
		return nil, err
	}
	s.inv = inventory.New(inventory.Config{
		Settings: s.settings,
		Lazy:     cfg.Lazy,
		Logger:   log,
		Events:   s.events,
	})
	if !load {
		return s, nil
	}

	doc, err := inventory.ReadFile(cfg.Inventory)
	if err != nil {
		s.close()
		return nil, err
	}
	if _, err := s.inv.Apply(doc); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) close() {
	if err := s.events.Close(); err != nil {
		s.log.Warnf("%v", err)
	}
}

// lookup finds the item named by a FAMILY NAME argument pair.
func (s *session) lookup(familyArg, name string) (*item.Item, error) {
	f, err := item.ParseFamily(familyArg)
	if err != nil {
		return nil, err
	}
	it := s.inv.Registry().Get(f, name)
	if it == nil {
		return nil, fmt.Errorf("%s %q not found in %s", f, name, s.cfg.Inventory)
	}
	return it, nil
}

func itemNames(items []*item.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}

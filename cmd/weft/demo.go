package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/weft-dev/weft"
)

func demoCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted demo of the reactive core",
		Long: `Run a small scripted combat scenario on a synchronous core.

The demo registers health and shield properties, derives an effective
hit-point cell from them, binds a console HUD to health before the
property exists, and then plays a few hits through the store so every
layer fires: direct subscribers, the derived cell, the HUD binding,
and the generic change events on the bus.

Examples:
  weft demo
  weft demo --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print event metadata for every publish")

	return cmd
}

// hudBinding is a console stand-in for a UI widget. Activate subscribes to
// the bound cell; Deactivate tears the subscription down again.
type hudBinding struct {
	label string
	sub   *weft.Subscription
}

func (h *hudBinding) Activate(cell weft.AnyCell) {
	info("HUD bound to %s", h.label)
	h.sub = cell.Watch(func(old, new any) {
		info("HUD %s: %v -> %v", h.label, old, new)
	})
}

func (h *hudBinding) Deactivate() {
	if h.sub != nil {
		h.sub.Dispose()
		h.sub = nil
	}
}

func runDemo(verbose bool) error {
	printBanner()
	fmt.Println("  demo")
	fmt.Println()

	opts := []weft.CoreOption{weft.Synchronous()}
	if verbose {
		opts = append(opts, weft.WithObserver(func(ev weft.AnyEvent) {
			info("event %s id=%s source=%s", ev.Type, ev.Meta.ID, ev.Meta.Source)
		}))
	}
	core := weft.New(opts...)
	defer core.Close()

	// The HUD attaches before the property exists; activation is deferred
	// until registration.
	hud := &hudBinding{label: "player.health"}
	weft.Bind(core, "player.health", hud)
	defer hud.Deactivate()

	// Generic change feed, the way a debug console would watch everything.
	weft.Subscribe(core, func(ev weft.Event[weft.PropertyChanged]) {
		info("changed %s: %v -> %v", ev.Payload.Key, ev.Payload.Old, ev.Payload.New)
	}, weft.WithPriority(10))

	health, err := weft.GetOrCreate(core, "player.health", 100)
	if err != nil {
		return err
	}
	shield, err := weft.GetOrCreate(core, "player.shield", 50)
	if err != nil {
		return err
	}
	success("registered %d properties: %v", core.Store.Len(), core.Store.Keys())

	// Derived cells are pull-based: reading recomputes when stale.
	effective := weft.Combine2(health, shield, func(hp, sp int) int { return hp + sp })
	info("effective hit points: %d", effective.Get())

	fmt.Println()
	info("taking damage")
	for _, hit := range []int{20, 35, 15} {
		if shield.Get() >= hit {
			shield.Update(func(sp int) int { return sp - hit })
		} else {
			spill := hit - shield.Get()
			shield.Set(0)
			health.Update(func(hp int) int { return hp - spill })
		}
	}
	info("effective hit points: %d", effective.Get())

	fmt.Println()
	info("healing")
	health.Update(func(hp int) int { return hp + 25 })
	info("effective hit points: %d", effective.Get())

	label, err := weft.ConvertTo[string](core, health.Get())
	if err != nil {
		return err
	}
	success("final health reads back as %q through the converter registry", label)

	if verbose {
		stats := core.Bus.Stats()
		fmt.Println()
		info("bus: published=%d delivered=%d subscribers=%d",
			stats.Published, stats.Delivered, stats.Subscribers)
	}

	return nil
}

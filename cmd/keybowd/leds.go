package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"keybowd/internal/config"
	"keybowd/internal/keypad"
	"keybowd/internal/store"
)

func cmdLEDs() {
	fs := flag.NewFlagSet("leds", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file")
	dryRun := fs.Bool("dry-run", false, "Use an in-memory driver instead of the device")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, `Usage: keybowd leds [options] <action>

ACTIONS:
    off                       Turn every indicator off
    clear                     Clear every indicator through the driver
    on <key> <hex>            Light one key, e.g. on 0 ff0000
    toggle <key> [hex]        Toggle one key; hex is required to turn it on
    blink <key> <hex> [n]     Blink one key n times (default 3)
    show                      Print the state of every key`)
		os.Exit(1)
	}

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		fatalf("load config: %v", err)
	}
	kc, err := cfg.KeypadConfig()
	if err != nil {
		fatalf("%v", err)
	}
	kc.Implementation = keypad.Keybow
	if *dryRun {
		kc.Driver = keypad.NewMemoryDriver()
	}
	if cfg.Storage.Enabled {
		st, err := store.Open(cfg.Storage.Path)
		if err != nil {
			fatalf("open colour store: %v", err)
		}
		defer st.Close()
		kc.Store = st
	}

	kp, err := keypad.New(kc)
	if err != nil {
		fatalf("open keypad: %v", err)
	}
	defer kp.Close()

	ctx, stop := signalContext()
	defer stop()

	if err := ledAction(ctx, kp, fs.Args()); err != nil {
		kp.Close()
		fatalf("%v", err)
	}
}

// ledAction performs one leds subcommand.
func ledAction(ctx context.Context, kp *keypad.Keypad, args []string) error {
	key := func(i int) (int, error) {
		if len(args) <= i {
			return 0, fmt.Errorf("%s: missing key index", args[0])
		}
		return strconv.Atoi(args[i])
	}
	arg := func(i int) string {
		if len(args) <= i {
			return ""
		}
		return args[i]
	}

	switch args[0] {
	case "off":
		return kp.AllLEDsOff()
	case "clear":
		return kp.Clear()
	case "on":
		k, err := key(1)
		if err != nil {
			return err
		}
		return kp.LEDOn(k, arg(2))
	case "toggle":
		k, err := key(1)
		if err != nil {
			return err
		}
		return kp.LEDToggle(k, arg(2))
	case "blink":
		k, err := key(1)
		if err != nil {
			return err
		}
		c, err := keypad.ParseColor(arg(2))
		if err != nil {
			return err
		}
		count := 3
		if s := arg(3); s != "" {
			if count, err = strconv.Atoi(s); err != nil {
				return fmt.Errorf("blink count: %w", err)
			}
		}
		cmd, err := keypad.NewLEDCommand(k, keypad.LEDBlink, int(c.R), int(c.G), int(c.B), count)
		if err != nil {
			return err
		}
		return kp.Apply(ctx, cmd)
	case "show":
		for i, state := range kp.Keys() {
			fmt.Printf("%2d %s\n", i, state)
		}
		return nil
	default:
		return fmt.Errorf("unknown leds action %q", args[0])
	}
}

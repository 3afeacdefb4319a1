package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"keybowd/internal/clock"
	"keybowd/internal/gesture"
	"keybowd/internal/keypad"
	"keybowd/internal/logging"
)

// replayOptions configures a scripted replay.
type replayOptions struct {
	KeyCount      int
	Interest      gesture.InterestSet
	HoldThreshold time.Duration
	RealTime      bool
	ShowEmpty     bool
	Logger        *slog.Logger
}

func cmdReplay() {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	keys := fs.Int("keys", keypad.DefaultKeyCount, "Number of keys (3 or 12)")
	listenFor := fs.String("listen-for", "single", "Comma-separated gestures to report: single, hold, double")
	holdMs := fs.Int("hold-ms", int(gesture.DefaultHoldThreshold/time.Millisecond), "Hold threshold in milliseconds")
	realTime := fs.Bool("realtime", false, "Honour sleeps in real time instead of virtual time")
	showEmpty := fs.Bool("all", false, "Also print polls that produced no gesture")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: keybowd replay [options] <script>")
		os.Exit(1)
	}

	script, err := readScriptFile(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}

	interest, err := gesture.ParseInterestSet(strings.FieldsFunc(*listenFor, func(r rune) bool { return r == ',' }))
	if err != nil {
		fatalf("%v", err)
	}

	lc := logging.DefaultConfig()
	if *verbose {
		lc.Level = logging.LevelDebug
	}
	logger, err := logging.New(lc)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signalContext()
	defer stop()

	err = replay(ctx, script, os.Stdout, replayOptions{
		KeyCount:      *keys,
		Interest:      interest,
		HoldThreshold: time.Duration(*holdMs) * time.Millisecond,
		RealTime:      *realTime,
		ShowEmpty:     *showEmpty,
		Logger:        logger.Logger,
	})
	if err != nil {
		fatalf("%v", err)
	}
}

func readScriptFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return keypad.ReadScript(f)
}

// replay runs script through a simulated keypad and writes one line per
// gesture to out. It returns once the script is exhausted.
func replay(ctx context.Context, script []string, out io.Writer, opts replayOptions) error {
	var clk clock.Clock = clock.Real{}
	if !opts.RealTime {
		clk = clock.NewVirtual(time.Unix(0, 0))
	}
	start := clk.Now()

	kc := keypad.DefaultConfig()
	kc.Implementation = keypad.Simulated
	kc.KeyCount = opts.KeyCount
	kc.Script = script
	kc.Clock = clk
	kc.Logger = opts.Logger

	kp, err := keypad.New(kc)
	if err != nil {
		return err
	}
	defer kp.Close()
	src := kp.Source().(*keypad.ScriptedSource)

	l, err := gesture.NewListener(kp,
		gesture.WithInterest(opts.Interest),
		gesture.WithHoldThreshold(opts.HoldThreshold),
		gesture.WithClock(clk),
		gesture.WithLogger(opts.Logger),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := gesture.NewQueue()
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, q)
		q.Close()
	}()

	// The scripted source idles forever once exhausted; stop the listener then.
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if src.Exhausted() {
					cancel()
					return
				}
			}
		}
	}()

	for {
		res, err := q.Get(context.Background())
		if errors.Is(err, gesture.ErrQueueClosed) {
			break
		}
		if err != nil {
			return err
		}
		elapsed := clk.Now().Sub(start).Seconds()
		switch {
		case !res.Empty():
			fmt.Fprintf(out, "%8.3fs  key %d  %s\n", elapsed, res.Key, res.Sequence)
		case opts.ShowEmpty:
			fmt.Fprintf(out, "%8.3fs  -\n", elapsed)
		}
	}
	return <-done
}

func cmdCheckScript() {
	fs := flag.NewFlagSet("check-script", flag.ExitOnError)
	keys := fs.Int("keys", keypad.DefaultKeyCount, "Number of keys (3 or 12)")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: keybowd check-script [-keys n] <file>")
		os.Exit(1)
	}

	script, err := readScriptFile(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	summary, err := checkScript(script, *keys)
	if err != nil {
		fatalf("%s: %v", fs.Arg(0), err)
	}
	fmt.Println(summary)
}

// checkScript validates every command and key index of script.
func checkScript(script []string, keyCount int) (string, error) {
	layout, err := keypad.LayoutForKeyCount(keyCount)
	if err != nil {
		return "", err
	}
	cmds, err := keypad.ParseScript(script)
	if err != nil {
		return "", err
	}

	var total time.Duration
	presses := 0
	for i, cmd := range cmds {
		switch cmd.Op {
		case keypad.OpSleep:
			total += cmd.Delay
		case keypad.OpDown, keypad.OpUp:
			if cmd.Key >= layout.KeyCount() {
				return "", &keypad.ScriptError{
					Line: i + 1,
					Text: script[i],
					Err:  fmt.Errorf("%w: %d (layout has %d keys)", keypad.ErrUnknownKey, cmd.Key, layout.KeyCount()),
				}
			}
			if cmd.Op == keypad.OpDown {
				presses++
			}
		}
	}
	return fmt.Sprintf("ok: %d commands, %d presses, %.3fs of sleeps", len(cmds), presses, total.Seconds()), nil
}

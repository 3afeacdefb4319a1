// keybowd - keypad gesture daemon
//
// keybowd watches a small keypad, classifies key presses as SINGLE or HOLD
// gestures and reacts to them:
//
//	keybowd run                   Run the daemon from the config file
//	keybowd replay <script>       Replay a script and print the gestures
//	keybowd check-script <file>   Validate a replay script
//	keybowd leds <action>         Control the key indicators
//	keybowd config                Print or create the configuration
package main

import (
	"fmt"
	"os"
	"runtime"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun()
	case "replay":
		cmdReplay()
	case "check-script":
		cmdCheckScript()
	case "leds":
		cmdLEDs()
	case "config":
		cmdConfig()
	case "version", "-v", "--version":
		fmt.Printf("keybowd %s (%s/%s, %s)\n", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`keybowd - keypad gesture daemon

USAGE:
    keybowd <command> [options]

COMMANDS:
    run                       Run the daemon
    replay <script>           Replay a script through the classifier
    check-script <file>       Validate a replay script
    leds <action>             Control key indicators (off, on, toggle, blink, show)
    config                    Print the effective configuration
    version                   Show version information
    help                      Show this help message

SCRIPTS:
    One command per line; blank lines and lines starting with # are ignored.
        down <key>      press key
        up <key>        release key
        sleep <secs>    wait (fractional seconds allowed)

GESTURES:
    A release is a HOLD when the key was down for more than the hold
    threshold (500ms by default), otherwise a SINGLE. Only gestures in
    gestures.listen_for are reported.

ENVIRONMENT:
    KEYBOWD_CONFIG            Config file path
    KEYBOWD_IMPLEMENTATION    keybow, simulated or dummy
    KEYBOWD_KEY_COUNT         3 or 12
    KEYBOWD_SCRIPT_PATH       Replay script for the simulated keypad
    KEYBOWD_LISTEN_FOR        Comma-separated gestures, e.g. single,hold
    KEYBOWD_HOLD_THRESHOLD_MS Hold threshold in milliseconds
    KEYBOWD_DATA_DIR          Directory for the colour database
    KEYBOWD_METRICS_ENABLED   Serve /metrics and health probes
    KEYBOWD_LOG_LEVEL         debug, info, warn or error`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"keybowd/internal/config"
)

func cmdConfig() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file")
	initFile := fs.Bool("init", false, "Write a default config file if none exists")
	fs.Parse(os.Args[2:])

	path := resolveConfigPath(*configPath)

	if *initFile {
		if _, err := os.Stat(path); err == nil {
			fatalf("%s already exists", path)
		}
		if err := config.Save(config.DefaultConfig(), path); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Wrote %s\n", path)
		return
	}

	cfg, err := config.Load(path)
	if err != nil {
		fatalf("load config: %v", err)
	}

	fmt.Printf("# %s\n", path)
	if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		fatalf("encode config: %v", err)
	}

	issues := config.ValidateConfig(cfg)
	for _, w := range issues.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Field, w.Message)
	}
	if issues.HasErrors() {
		fatalf("%v", issues.Errors())
	}
}

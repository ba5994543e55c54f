package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const defaultDirName = ".tally"

var helpMsg = `
Usage: tally [OPTION] COMMAND [ARGS]
An SPV timechain client: verifies transactions against proof-of-work
secured headers with merkle proofs, no full blocks needed.

COMMANDS:
  ingest HEIGHT FILE    index a raw block file at the given height
  headers SINCE         print known headers from a height on
  verify TXID           prove the tx confirmed and check its spends
  broadcast FILE        submit a raw transaction file
  serve                 answer timechain queries on -listen
`

type config struct {
	DataDir      string `short:"b" long:"datadir" description:"Directory for the timechain database"`
	DebugLevel   string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogFile      string `long:"logfile" description:"Write a rotating log to this file as well as stdout"`
	Connect      string `short:"c" long:"connect" description:"Query a remote timechain at host:port instead of the local store"`
	Proxy        string `long:"proxy" description:"Dial the remote through a SOCKS5 proxy at host:port"`
	Listen       string `long:"listen" description:"Address to serve the local store on (serve command)"`
	CheckScripts bool   `long:"checkscripts" description:"Execute input scripts when verifying (slower)"`
}

// loadConfig parses flags, fills in defaults, and returns the leftover
// positional arguments (the command and its args).
func loadConfig() (*config, []string, error) {
	cfg := config{
		DebugLevel: "info",
	}
	args, err := flags.Parse(&cfg)
	if err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, err
	}
	if len(args) < 1 {
		fmt.Print(helpMsg)
		os.Exit(0)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("no datadir and no home dir: %v", err)
		}
		cfg.DataDir = filepath.Join(home, defaultDirName)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, err
	}

	return &cfg, args, nil
}

package main

import (
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"

	"github.com/spvtally/tally/ledger"
	"github.com/spvtally/tally/remote"
	"github.com/spvtally/tally/scriptval"
	"github.com/spvtally/tally/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tally: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, args, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.LogFile != "" {
		if err := initLogRotator(cfg.LogFile); err != nil {
			return err
		}
		defer logRotator.Close()
	}
	if err := setLogLevels(cfg.DebugLevel); err != nil {
		return err
	}

	// The timechain we talk to: a remote peer when -connect is given,
	// the local store otherwise.
	var tc ledger.Timechain
	var db *store.DB
	if cfg.Connect != "" {
		client, err := remote.Dial(cfg.Connect, cfg.Proxy)
		if err != nil {
			return err
		}
		defer client.Close()
		tc = client
	} else {
		db, err = store.Open(filepath.Join(cfg.DataDir, "timechain"))
		if err != nil {
			return err
		}
		defer db.Close()
		tc = db
	}

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "ingest":
		return ingestCmd(db, cmdArgs)
	case "headers":
		return headersCmd(tc, cmdArgs)
	case "verify":
		return verifyCmd(tc, cfg, cmdArgs)
	case "broadcast":
		return broadcastCmd(tc, cmdArgs)
	case "serve":
		return serveCmd(tc, cfg)
	default:
		fmt.Print(helpMsg)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func ingestCmd(db *store.DB, args []string) error {
	if db == nil {
		return fmt.Errorf("ingest works on the local store, not a remote")
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: ingest HEIGHT FILE")
	}
	height, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("bad height %q: %v", args[0], err)
	}
	raw, err := ioutil.ReadFile(args[1])
	if err != nil {
		return err
	}
	return db.PutBlock(int32(height), raw)
}

func headersCmd(tc ledger.Timechain, args []string) error {
	since := int64(0)
	if len(args) > 0 {
		var err error
		since, err = strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("bad height %q: %v", args[0], err)
		}
	}
	headers, err := tc.Headers(int32(since))
	if err != nil {
		return err
	}
	for i := range headers {
		fmt.Printf("%d %s\n", headers[i].Height, headers[i].Hash())
	}
	return nil
}

func verifyCmd(tc ledger.Timechain, cfg *config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: verify TXID")
	}
	txid, err := chainhash.NewHashFromStr(args[0])
	if err != nil {
		return fmt.Errorf("bad txid %q: %v", args[0], err)
	}

	entry, err := tc.Transaction(*txid)
	if err != nil {
		return err
	}
	if !entry.Found() {
		return fmt.Errorf("tx %s is unknown", txid)
	}
	fmt.Printf("confirmed: %v\n", entry.Confirmed())

	vertex, err := ledger.MakeVertex(tc, entry)
	if err != nil {
		return err
	}
	rules := ledger.StandardRules
	if cfg.CheckScripts {
		rules.VerifyScript = scriptval.NewVerifier(txscript.StandardVerifyFlags).VerifyScript
	}
	fmt.Printf("valid:     %v\n", vertex.Valid(rules))
	fmt.Printf("spent:     %v\n", vertex.Spent())
	fmt.Printf("sent:      %v\n", vertex.Sent())
	fmt.Printf("fee:       %v\n", vertex.Fee())
	fmt.Printf("sigops:    %d\n", vertex.SigOps())
	return nil
}

func broadcastCmd(tc ledger.Timechain, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: broadcast FILE")
	}
	raw, err := ioutil.ReadFile(args[0])
	if err != nil {
		return err
	}
	ok, err := tc.Broadcast(raw)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("transaction rejected")
	}
	fmt.Println("accepted")
	return nil
}

func serveCmd(tc ledger.Timechain, cfg *config) error {
	addr := cfg.Listen
	if addr == "" {
		addr = "0.0.0.0:8338"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Infof("serving timechain on %s", addr)

	halt := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Infof("shutting down")
		close(halt)
	}()

	remote.Serve(listener, tc, halt)
	return nil
}

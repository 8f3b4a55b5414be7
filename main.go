package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/searchnet/chainreg/logging"
	"github.com/searchnet/chainreg/registry"
	"github.com/searchnet/chainreg/server"
	"github.com/searchnet/chainreg/shared"
)

// Chainreg binary version.
// It should be passed during the build with '-ldflags "-X main.version="'.
var version = "unknown"

type registerOpts struct {
	Owner    string   `long:"owner"    description:"Owner account (hex encoded)"`
	Name     string   `long:"name"     description:"Service name"`
	Endpoint string   `long:"endpoint" description:"Service endpoint"`
	Tags     []string `long:"tag"      description:"Service tag (repeatable, up to 10)"`
}

type commitOpts struct {
	Owner     string `long:"owner" description:"Owner account (hex encoded)"`
	Name      string `long:"name"  description:"Service name"`
	BatchFile string `long:"batch" description:"Path to the batch file; one '<signature-hex> <message-hex>' pair per line"`
	Root      string `long:"root"  description:"New root hash (hex); derived from the batch when omitted"`
	Prev      string `long:"prev"  description:"Expected previous root hash (hex); the stored head when omitted"`
}

type findOpts struct {
	Tags []string `long:"tag" description:"Tag every match must carry (repeatable)"`
}

type getOpts struct {
	Name string `long:"name" description:"Service name"`
}

type balanceOpts struct {
	Account string `long:"account" description:"Account (hex encoded)"`
}

type appConfig struct {
	server.Config

	Register registerOpts `group:"Register" namespace:"register"`
	Commit   commitOpts   `group:"Commit"   namespace:"commit"`
	Find     findOpts     `group:"Find"     namespace:"find"`
	Get      getOpts      `group:"Get"      namespace:"get"`
	Balance  balanceOpts  `group:"Balance"  namespace:"balance"`
}

func loadConfig() (*appConfig, []string, error) {
	cfg := &appConfig{Config: *server.DefaultConfig()}
	// Pre-parse the command line to pick up an alternative config file.
	if _, err := flags.Parse(cfg); err != nil {
		return nil, nil, err
	}
	if _, err := server.ReadConfigFile(&cfg.Config); err != nil {
		return nil, nil, err
	}
	if _, err := server.SetupConfig(&cfg.Config); err != nil {
		return nil, nil, err
	}
	// Parse the command line again so flags take precedence over the file.
	args, err := flags.Parse(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, args, nil
}

// chainregMain is the true entry point for chainreg. This function is
// required since defers created in the top-level scope of a main method
// aren't executed if os.Exit() is called.
func chainregMain() error {
	cfg, args, err := loadConfig()
	if err != nil {
		return err
	}

	logLevel := zap.InfoLevel
	if cfg.DebugLog {
		logLevel = zap.DebugLevel
	}
	logger := logging.New(logLevel, filepath.Join(cfg.LogDir, "chainreg.log"), cfg.JSONLog)
	ctx := logging.NewContext(context.Background(), logger)
	defer logger.Info("shutdown complete")

	logger.Sugar().Debugf("version: %s, dir: %v, datadir: %v", version, cfg.ChainregDir, cfg.DataDir)

	if len(args) == 0 {
		return errors.New("expected a command: register | commit | get | find | recommend | balance | serve")
	}

	srv, err := server.New(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer srv.Close()

	switch cmd := args[0]; cmd {
	case "register":
		return runRegister(ctx, srv, cfg.Register)
	case "commit":
		return runCommit(ctx, srv, cfg.Commit)
	case "get":
		return runGet(ctx, srv, cfg.Get)
	case "find":
		return runFind(ctx, srv, cfg.Find)
	case "recommend":
		return runRecommend(ctx, srv)
	case "balance":
		return runBalance(srv, cfg.Balance)
	case "serve":
		serveCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(serveCtx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runRegister(ctx context.Context, srv *server.Server, opts registerOpts) error {
	owner, err := hex.DecodeString(opts.Owner)
	if err != nil {
		return fmt.Errorf("decoding owner: %w", err)
	}
	tags := make([][]byte, len(opts.Tags))
	for i, tag := range opts.Tags {
		tags[i] = []byte(tag)
	}
	if err := srv.Registry().Register(ctx, owner, []byte(opts.Name), []byte(opts.Endpoint), tags); err != nil {
		return err
	}
	fmt.Printf("registered %q\n", opts.Name)
	return nil
}

func runCommit(ctx context.Context, srv *server.Server, opts commitOpts) error {
	owner, err := hex.DecodeString(opts.Owner)
	if err != nil {
		return fmt.Errorf("decoding owner: %w", err)
	}
	batch, err := readBatchFile(opts.BatchFile)
	if err != nil {
		return err
	}

	var root shared.RootHash
	if opts.Root == "" {
		if root, err = shared.BatchRoot(batch); err != nil {
			return err
		}
	} else {
		raw, err := hex.DecodeString(opts.Root)
		if err != nil {
			return fmt.Errorf("decoding root: %w", err)
		}
		var ok bool
		if root, ok = shared.RootHashFromBytes(raw); !ok {
			return fmt.Errorf("root must be %d bytes", shared.RootHashSize)
		}
	}

	var prev *shared.RootHash
	if opts.Prev == "" {
		// Use the stored head as the claimed previous root.
		head, err := srv.Registry().Head(ctx, []byte(opts.Name))
		if err != nil {
			return err
		}
		if h, ok := shared.RootHashFromBytes(head.RootHash); ok {
			prev = &h
		}
	} else {
		raw, err := hex.DecodeString(opts.Prev)
		if err != nil {
			return fmt.Errorf("decoding prev: %w", err)
		}
		h, ok := shared.RootHashFromBytes(raw)
		if !ok {
			return fmt.Errorf("prev must be %d bytes", shared.RootHashSize)
		}
		prev = &h
	}

	if err := srv.Registry().Commit(ctx, owner, []byte(opts.Name), batch, root, prev); err != nil {
		return err
	}
	fmt.Printf("chain advanced: %s (%d entries)\n", root, len(batch))
	return nil
}

// readBatchFile parses one signed entry per line: '<signature-hex> <message-hex>'.
func readBatchFile(path string) ([]shared.SignedEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch file: %w", err)
	}
	defer file.Close()

	var batch []shared.SignedEntry
	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("batch file line %d: expected '<signature-hex> <message-hex>'", line)
		}
		sig, err := hex.DecodeString(fields[0])
		if err != nil {
			return nil, fmt.Errorf("batch file line %d: decoding signature: %w", line, err)
		}
		msg, err := hex.DecodeString(fields[1])
		if err != nil {
			return nil, fmt.Errorf("batch file line %d: decoding message: %w", line, err)
		}
		batch = append(batch, shared.SignedEntry{Signature: sig, Message: msg})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	return batch, nil
}

func runGet(ctx context.Context, srv *server.Server, opts getOpts) error {
	record, err := srv.Registry().GetByName(ctx, []byte(opts.Name))
	if err != nil {
		return err
	}
	printRecord(record)
	return nil
}

func runFind(ctx context.Context, srv *server.Server, opts findOpts) error {
	targets := make([][]byte, len(opts.Tags))
	for i, tag := range opts.Tags {
		targets[i] = []byte(tag)
	}
	records, err := srv.Registry().FindByTags(ctx, targets)
	if err != nil {
		return err
	}
	for _, record := range records {
		printRecord(record)
	}
	return nil
}

func runRecommend(ctx context.Context, srv *server.Server) error {
	records, err := srv.Registry().Recommend(ctx)
	if err != nil {
		return err
	}
	for _, record := range records {
		printRecord(record)
	}
	return nil
}

func runBalance(srv *server.Server, opts balanceOpts) error {
	account, err := hex.DecodeString(opts.Account)
	if err != nil {
		return fmt.Errorf("decoding account: %w", err)
	}
	balance, err := srv.Balance(account)
	if err != nil {
		return err
	}
	fmt.Printf("%d\n", balance)
	return nil
}

func printRecord(record *registry.ServiceRecord) {
	tags := make([]string, len(record.Tags))
	for i, tag := range record.Tags {
		tags[i] = string(tag)
	}
	fmt.Printf("%s\towner=%x\tendpoint=%s\ttags=[%s]\theat=%d\n",
		record.Name, record.Owner, record.Endpoint, strings.Join(tags, ","), record.Heat)
}

func main() {
	if err := chainregMain(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

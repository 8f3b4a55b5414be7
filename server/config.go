// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers

package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/searchnet/chainreg/logging"
	"github.com/searchnet/chainreg/signing"
)

const (
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
)

// Config defines the configuration options for chainreg.
//
// See main's loadConfig for details on the loading+parsing process.
type Config struct {
	ChainregDir    string `long:"chainregdir"    description:"The base directory that contains chainreg's data, logs, configuration file, etc."`
	ConfigFile     string `long:"configfile"     description:"Path to configuration file"                                                       short:"c"`
	DataDir        string `long:"datadir"        description:"The directory to store chainreg's data within"                                    short:"b"`
	LogDir         string `long:"logdir"         description:"Directory to log output"`
	DebugLog       bool   `long:"debuglog"       description:"Enable debug logs"`
	JSONLog        bool   `long:"jsonlog"        description:"Whether to log in JSON format"`
	MaxLogFiles    int    `long:"maxlogfiles"    description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	MetricsPort *uint16 `long:"metrics-port" description:"The port to expose metrics"`

	// Scheme selects the signature scheme batches are verified under.
	Scheme string `long:"scheme" description:"Signature scheme for batch verification" choice:"ed25519" choice:"sr25519" choice:"secp256k1"`

	// AttestorKey is the public key attestations must verify against.
	AttestorKey Base64Enc `long:"attestor-pubkey" description:"The attestor public key (base64 encoded)"`
}

type Base64Enc []byte

// UnmarshalFlag implements flags.Unmarshaler.
func (k *Base64Enc) UnmarshalFlag(value string) error {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return err
	}
	*k = b
	return nil
}

func (k *Base64Enc) Bytes() []byte {
	return *k
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	chainregDir := "./chainreg"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		chainregDir = filepath.Join(cacheDir, "chainreg")
	}

	return &Config{
		ChainregDir:    chainregDir,
		DataDir:        filepath.Join(chainregDir, defaultDataDirname),
		LogDir:         filepath.Join(chainregDir, defaultLogDirname),
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		Scheme:         string(signing.Ed25519),
	}
}

// ReadConfigFile reads config from an ini file.
// It uses the provided `cfg` as a base config and overrides it with the
// values from the config file.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Sugar().Debugf("reading config from %s", cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}

	return cfg, nil
}

// SetupConfig expands paths and initializes the filesystem.
func SetupConfig(cfg *Config) (*Config, error) {
	// If the provided base directory is not the default, move the
	// directories that live within it accordingly.
	defaultCfg := DefaultConfig()
	if cfg.ChainregDir != defaultCfg.ChainregDir {
		if cfg.DataDir == defaultCfg.DataDir {
			cfg.DataDir = filepath.Join(cfg.ChainregDir, defaultDataDirname)
		}
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.ChainregDir, defaultLogDirname)
		}
	}

	if err := os.MkdirAll(cfg.ChainregDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.ChainregDir, err)
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	return cfg, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

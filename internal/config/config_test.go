package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadFetchPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "pair.yaml")
	content := "rpc: http://file\nbatch-size: 10\npair:\n  - 0x00000000000000000000000000000000000000f1\n  - 0x00000000000000000000000000000000000000f2\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PAIR_RPC", "http://env")
	t.Setenv("PAIR_MAX_RETRIES", "9")

	flags := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Uint64("batch-size", 2000, "")
	flags.Int("max-retries", 5, "")
	if err := flags.Parse([]string{"--rpc", "http://flag"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadFetch(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://flag" {
		t.Fatalf("flag should win, got %s", cfg.RPCURL)
	}
	if cfg.MaxRetries != 9 {
		t.Fatalf("env should beat flag default, got %d", cfg.MaxRetries)
	}
	if cfg.BatchSize != 10 {
		t.Fatalf("file should beat flag default, got %d", cfg.BatchSize)
	}
	if len(cfg.Pairs) != 2 {
		t.Fatalf("pairs from file: %v", cfg.Pairs)
	}
	if cfg.RetryBackoff != 500*time.Millisecond || cfg.Out == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadSimulateDefaults(t *testing.T) {
	cfg, err := LoadSimulate(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err == nil {
		t.Fatalf("explicit missing config file must fail")
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err = LoadSimulate("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChainID != 31337 || cfg.StartTime != 1_700_000_000 || cfg.LogLevel != "info" {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestDecodeTopicMapFromEnv(t *testing.T) {
	t.Setenv("PAIR_TOPIC0_MAP", "0xabc=swap, bad ,0xdef=")
	t.Setenv("PAIR_PAIR", "0x01, ,0x02")

	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := LoadDecode("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Topic0Map) != 1 || cfg.Topic0Map["0xabc"] != "swap" {
		t.Fatalf("topic map: %v", cfg.Topic0Map)
	}
	if len(cfg.Pairs) != 2 {
		t.Fatalf("pairs: %v", cfg.Pairs)
	}
}

// Package config parses the sentinel's environment-variable contract into
// per-rollup runtime configuration. There is no JSON/TOML chain-list file:
// the supported rollup set is closed, and each rollup's L1 contract
// address, optional L2 endpoint, and threshold overrides all arrive as
// environment variables, alongside the shared RPC_WS endpoint and an
// optional L1_CHAIN_ID override (default: Ethereum mainnet) the Chain
// Client verifies itself against at startup.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/chainwatch/rollup-sentinel/pkg/models"
)

// contractEnvSuffix names the L1 contract address environment variable each
// rollup reads, reflecting the differing contract architectures named in
// ({ROLLUP}_ADDRESS / {ROLLUP}_CORE / {ROLLUP}_PORTAL): Arbitrum
// and Starknet each have a single core/rollup contract, Base and Optimism
// are OP-stack chains whose dispute games are anchored at the portal, and
// zkSync's diamond proxy is just "the address".
var contractEnvSuffix = map[models.RollupId]string{
	models.Arbitrum: "CORE",
	models.Starknet: "CORE",
	models.Base:     "PORTAL",
	models.Optimism: "PORTAL",
	models.ZkSync:   "ADDRESS",
}

// defaultThresholds apply to any rollup that doesn't override them via
// {ROLLUP}_BATCH_CADENCE_SECS / _PROOF_CADENCE_SECS / _DELAYED_SECS /
// _HALTED_SECS. These are deployment configuration, not part of any
// contract; see DESIGN.md for the chosen defaults and the reasoning.
var defaultThresholds = models.ThresholdSet{
	BatchCadenceSecs: 300,
	ProofCadenceSecs: 3600,
	DelayedSecs:      600,
	HaltedSecs:       1800,
}

const (
	defaultL2PollInterval        = 10 * time.Second
	defaultStaleFilterTimeout    = 600 * time.Second
	defaultSequencerDownSeconds  = 30 * time.Second
	defaultBroadcastRingCapacity = 1024
	defaultL1ChainID             = 1 // Ethereum mainnet, where every supported rollup settles
)

// RollupRuntimeConfig is the fully-resolved per-rollup configuration: the
// L1 contract address its watcher filters on, the optional L2 endpoint its
// sequencer poller uses, and its health thresholds.
type RollupRuntimeConfig struct {
	Rollup         models.RollupId
	ContractAddr   common.Address
	L2RPC          string // empty disables sequencer polling for this rollup
	L2PollInterval time.Duration
	Thresholds     models.ThresholdSet
}

// SequencerEnabled reports whether this rollup has an L2 endpoint
// configured and should run a Sequencer Poller.
func (c RollupRuntimeConfig) SequencerEnabled() bool {
	return c.L2RPC != ""
}

// Config is the fully parsed environment contract.
type Config struct {
	RPCWS                  string
	L1ChainID              int64
	StaleFilterTimeout     time.Duration
	SequencerDownThreshold time.Duration
	BroadcastRingCapacity  int
	Rollups                map[models.RollupId]RollupRuntimeConfig
}

// Load reads the environment contract via getenv (a koanf env-provider
// lookup via LoadFromEnv in production, a map lookup in tests) and returns
// a validated Config, or a fatal,
// fail-fast configuration error describing exactly what's wrong.
//
// A rollup is considered "enabled" iff its contract address env var is set;
// at least one rollup must be enabled.
func Load(getenv func(string) string) (*Config, error) {
	rpcWS := getenv("RPC_WS")
	if rpcWS == "" {
		return nil, fmt.Errorf("missing required env var RPC_WS")
	}

	l1ChainID := int64(defaultL1ChainID)
	if raw := getenv("L1_CHAIN_ID"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid L1_CHAIN_ID=%q: must be a positive integer", raw)
		}
		l1ChainID = v
	}

	cfg := &Config{
		RPCWS:                  rpcWS,
		L1ChainID:              l1ChainID,
		StaleFilterTimeout:     durationSecsEnv(getenv, "STALE_FILTER_TIMEOUT_SECS", defaultStaleFilterTimeout),
		SequencerDownThreshold: durationSecsEnv(getenv, "SEQUENCER_DOWNTIME_THRESHOLD_SECS", defaultSequencerDownSeconds),
		BroadcastRingCapacity:  defaultBroadcastRingCapacity,
		Rollups:                make(map[models.RollupId]RollupRuntimeConfig),
	}

	for _, id := range models.AllRollups {
		prefix := envPrefix(id)
		suffix, ok := contractEnvSuffix[id]
		if !ok {
			return nil, fmt.Errorf("no contract env mapping registered for rollup %s", id)
		}

		addrStr := getenv(prefix + "_" + suffix)
		if addrStr == "" {
			// rollup not enabled for this deployment
			continue
		}
		if !common.IsHexAddress(addrStr) {
			return nil, fmt.Errorf("invalid contract address for %s (%s_%s=%q)", id, prefix, suffix, addrStr)
		}

		rc := RollupRuntimeConfig{
			Rollup:         id,
			ContractAddr:   common.HexToAddress(addrStr),
			L2RPC:          getenv(prefix + "_L2_RPC"),
			L2PollInterval: defaultL2PollInterval,
			Thresholds:     defaultThresholds,
		}

		if ms := getenv(prefix + "_L2_POLL_MS"); ms != "" {
			v, err := strconv.Atoi(ms)
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("invalid %s_L2_POLL_MS=%q: must be a positive integer", prefix, ms)
			}
			rc.L2PollInterval = time.Duration(v) * time.Millisecond
		}

		thresholds, err := loadThresholdOverrides(getenv, prefix, defaultThresholds)
		if err != nil {
			return nil, err
		}
		rc.Thresholds = thresholds

		cfg.Rollups[id] = rc
	}

	if len(cfg.Rollups) == 0 {
		return nil, fmt.Errorf("no rollups enabled: set at least one {ROLLUP}_ADDRESS/_CORE/_PORTAL env var")
	}

	return cfg, nil
}

func loadThresholdOverrides(getenv func(string) string, prefix string, base models.ThresholdSet) (models.ThresholdSet, error) {
	t := base

	fields := []struct {
		env string
		dst *int64
	}{
		{prefix + "_BATCH_CADENCE_SECS", &t.BatchCadenceSecs},
		{prefix + "_PROOF_CADENCE_SECS", &t.ProofCadenceSecs},
		{prefix + "_DELAYED_SECS", &t.DelayedSecs},
		{prefix + "_HALTED_SECS", &t.HaltedSecs},
	}

	for _, f := range fields {
		raw := getenv(f.env)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return t, fmt.Errorf("invalid %s=%q: must be a positive integer", f.env, raw)
		}
		*f.dst = v
	}

	if !(t.BatchCadenceSecs <= t.DelayedSecs && t.DelayedSecs <= t.HaltedSecs) {
		return t, fmt.Errorf("invalid thresholds for %s: require batch_cadence(%d) <= delayed(%d) <= halted(%d)",
			prefix, t.BatchCadenceSecs, t.DelayedSecs, t.HaltedSecs)
	}

	return t, nil
}

func durationSecsEnv(getenv func(string) string, key string, def time.Duration) time.Duration {
	raw := getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}

// envPrefix returns the upper-cased env var prefix for a rollup, e.g.
// "arbitrum" -> "ARBITRUM".
func envPrefix(id models.RollupId) string {
	s := string(id)
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// LoadFromEnv loads the process environment through koanf's env provider
// (the same load-then-query layering internal/util uses for the local TOML
// file) and parses the result through Load. The provider's key transform is
// the identity function: this contract's env var names (RPC_WS,
// ARBITRUM_CORE, ...) are already the exact keys Load looks up.
func LoadFromEnv() (*Config, error) {
	ko := koanf.New(".")
	if err := ko.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}
	return Load(ko.String)
}

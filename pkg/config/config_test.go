package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/rollup-sentinel/pkg/models"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestLoadRequiresRPCWS(t *testing.T) {
	_, err := Load(envMap(map[string]string{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPC_WS")
}

func TestLoadRequiresAtLeastOneRollup(t *testing.T) {
	_, err := Load(envMap(map[string]string{"RPC_WS": "wss://l1.example/ws"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rollups enabled")
}

func TestLoadEnablesRollupByContractAddress(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"RPC_WS":         "wss://l1.example/ws",
		"ARBITRUM_CORE":  "0x0000000000000000000000000000000000000001",
		"STARKNET_CORE":  "0x0000000000000000000000000000000000000002",
		"STARKNET_L2_RPC": "https://starknet-l2.example",
	}))
	require.NoError(t, err)

	require.Contains(t, cfg.Rollups, models.Arbitrum)
	assert.False(t, cfg.Rollups[models.Arbitrum].SequencerEnabled())

	require.Contains(t, cfg.Rollups, models.Starknet)
	assert.True(t, cfg.Rollups[models.Starknet].SequencerEnabled())

	assert.NotContains(t, cfg.Rollups, models.Base)
	assert.NotContains(t, cfg.Rollups, models.Optimism)
	assert.NotContains(t, cfg.Rollups, models.ZkSync)
}

func TestLoadRejectsInvalidContractAddress(t *testing.T) {
	_, err := Load(envMap(map[string]string{
		"RPC_WS":        "wss://l1.example/ws",
		"ARBITRUM_CORE": "not-an-address",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid contract address")
}

func TestLoadThresholdOverridesEnforceOrdering(t *testing.T) {
	_, err := Load(envMap(map[string]string{
		"RPC_WS":               "wss://l1.example/ws",
		"ARBITRUM_CORE":        "0x0000000000000000000000000000000000000001",
		"ARBITRUM_DELAYED_SECS": "100",
		"ARBITRUM_HALTED_SECS":  "50", // halted < delayed: invalid
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid thresholds")
}

func TestLoadThresholdOverridesApply(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"RPC_WS":                     "wss://l1.example/ws",
		"BASE_PORTAL":                "0x0000000000000000000000000000000000000001",
		"BASE_BATCH_CADENCE_SECS":    "60",
		"BASE_PROOF_CADENCE_SECS":    "7200",
		"BASE_DELAYED_SECS":          "120",
		"BASE_HALTED_SECS":           "3600",
	}))
	require.NoError(t, err)

	th := cfg.Rollups[models.Base].Thresholds
	assert.Equal(t, int64(60), th.BatchCadenceSecs)
	assert.Equal(t, int64(7200), th.ProofCadenceSecs)
	assert.Equal(t, int64(120), th.DelayedSecs)
	assert.Equal(t, int64(3600), th.HaltedSecs)
}

func TestLoadDefaultsStaleFilterTimeoutAndDownThreshold(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"RPC_WS":      "wss://l1.example/ws",
		"ZKSYNC_ADDRESS": "0x0000000000000000000000000000000000000009",
	}))
	require.NoError(t, err)
	assert.Equal(t, defaultStaleFilterTimeout, cfg.StaleFilterTimeout)
	assert.Equal(t, defaultSequencerDownSeconds, cfg.SequencerDownThreshold)
	assert.Equal(t, int64(defaultL1ChainID), cfg.L1ChainID)
}

func TestLoadL1ChainIDOverride(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"RPC_WS":         "wss://l1.example/ws",
		"ZKSYNC_ADDRESS": "0x0000000000000000000000000000000000000009",
		"L1_CHAIN_ID":    "11155111", // Sepolia
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), cfg.L1ChainID)
}

func TestLoadRejectsInvalidL1ChainID(t *testing.T) {
	_, err := Load(envMap(map[string]string{
		"RPC_WS":         "wss://l1.example/ws",
		"ZKSYNC_ADDRESS": "0x0000000000000000000000000000000000000009",
		"L1_CHAIN_ID":    "not-a-number",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "L1_CHAIN_ID")
}

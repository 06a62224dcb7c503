package types

import (
	"fmt"
)

// GenesisTracker pairs a request id with its tracker record.
type GenesisTracker struct {
	RequestID string           `json:"request_id"`
	Tracker   ExecutionTracker `json:"tracker"`
}

// GenesisState is the postproof module genesis.
type GenesisState struct {
	Params       Params            `json:"params"`
	Configs      []CampaignConfig  `json:"configs"`
	Logs         []VerificationLog `json:"logs"`
	Trackers     []GenesisTracker  `json:"trackers"`
	NextJobNonce uint64            `json:"next_job_nonce"`
}

// DefaultGenesis returns the default genesis state
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params:       DefaultParams(),
		Configs:      []CampaignConfig{},
		Logs:         []VerificationLog{},
		Trackers:     []GenesisTracker{},
		NextJobNonce: 1,
	}
}

// Validate performs basic genesis state validation returning an error upon any
// failure.
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	if gs.NextJobNonce == 0 {
		return fmt.Errorf("next job nonce cannot be zero")
	}

	configs := make(map[string]bool, len(gs.Configs))
	for i, c := range gs.Configs {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("config %d: %w", i, err)
		}
		key := c.Address().String()
		if configs[key] {
			return fmt.Errorf("config %d: duplicate config %s/%s", i, c.Owner, c.Label)
		}
		configs[key] = true
	}

	logs := make(map[string]bool, len(gs.Logs))
	for i, l := range gs.Logs {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("log %d: %w", i, err)
		}
		if !configs[l.Config.String()] {
			return fmt.Errorf("log %d: unknown config %s", i, l.Config)
		}
		key := l.Address().String()
		if logs[key] {
			return fmt.Errorf("log %d: duplicate log for %s", i, l.Verifier)
		}
		logs[key] = true
	}

	trackers := make(map[string]bool, len(gs.Trackers))
	for i, t := range gs.Trackers {
		if t.RequestID == "" || len(t.RequestID) > MaxRequestIDLen {
			return fmt.Errorf("tracker %d: request id must be 1-%d bytes", i, MaxRequestIDLen)
		}
		if trackers[t.RequestID] {
			return fmt.Errorf("tracker %d: duplicate request id %q", i, t.RequestID)
		}
		trackers[t.RequestID] = true
	}
	return nil
}

package app

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

// GenesisState represents the genesis state of the devnet ledger.
// It is a map from module name to module genesis state.
type GenesisState map[string]json.RawMessage

// NewDefaultGenesisState generates the default genesis state
func NewDefaultGenesisState() GenesisState {
	genesis := make(GenesisState)

	// Bank module - balances of prefunded accounts
	bankGenesis := banktypes.DefaultGenesisState()
	bankGenesis.Params = banktypes.Params{
		SendEnabled:        []*banktypes.SendEnabled{},
		DefaultSendEnabled: true,
	}
	genesis[banktypes.ModuleName] = mustMarshalJSON(bankGenesis)

	// Postproof module - campaigns, logs and trackers
	genesis[types.ModuleName] = mustMarshalJSON(types.DefaultGenesis())

	return genesis
}

// NewGenesisStateFromConfig creates genesis state with custom parameters
func NewGenesisStateFromConfig(config GenesisConfig) (GenesisState, error) {
	genesis := NewDefaultGenesisState()

	var postproofGenesis types.GenesisState
	mustUnmarshalJSON(genesis[types.ModuleName], &postproofGenesis)
	postproofGenesis.Params.VerificationCooldown = config.VerificationCooldown
	postproofGenesis.Params.JobDeadlineHorizon = config.JobDeadlineHorizon
	postproofGenesis.Params.StorageFloor = config.StorageFloor
	postproofGenesis.Params.PendingJobTimeout = config.PendingJobTimeout
	if err := postproofGenesis.Validate(); err != nil {
		return nil, err
	}
	genesis[types.ModuleName] = mustMarshalJSON(postproofGenesis)

	var bankGenesis banktypes.GenesisState
	mustUnmarshalJSON(genesis[banktypes.ModuleName], &bankGenesis)
	for _, acc := range config.Accounts {
		if _, err := sdk.AccAddressFromBech32(acc.Address); err != nil {
			return nil, fmt.Errorf("genesis account %q: %w", acc.Address, err)
		}
		bankGenesis.Balances = append(bankGenesis.Balances, banktypes.Balance{
			Address: acc.Address,
			Coins:   sdk.NewCoins(sdk.NewCoin(BondDenom, math.NewIntFromUint64(acc.Amount))),
		})
	}
	bankGenesis.Balances = banktypes.SanitizeGenesisBalances(bankGenesis.Balances)
	genesis[banktypes.ModuleName] = mustMarshalJSON(bankGenesis)

	return genesis, nil
}

// GenesisAccount is a prefunded devnet account
type GenesisAccount struct {
	Address string `json:"address" mapstructure:"address"`
	Amount  uint64 `json:"amount" mapstructure:"amount"`
}

// GenesisConfig holds configuration parameters for genesis state
type GenesisConfig struct {
	ChainID              string
	VerificationCooldown int64
	JobDeadlineHorizon   int64
	StorageFloor         uint64
	PendingJobTimeout    int64
	Accounts             []GenesisAccount
}

// DefaultGenesisConfig returns default devnet configuration
func DefaultGenesisConfig() GenesisConfig {
	params := types.DefaultParams()
	return GenesisConfig{
		ChainID:              "pop-devnet-1",
		VerificationCooldown: params.VerificationCooldown,
		JobDeadlineHorizon:   params.JobDeadlineHorizon,
		StorageFloor:         params.StorageFloor,
		// expire abandoned jobs a day of 5s blocks after their deadline
		PendingJobTimeout: 17280,
	}
}

// PostproofGenesis decodes the postproof module genesis
func (g GenesisState) PostproofGenesis() (*types.GenesisState, error) {
	raw, ok := g[types.ModuleName]
	if !ok {
		return types.DefaultGenesis(), nil
	}
	var gs types.GenesisState
	if err := json.Unmarshal(raw, &gs); err != nil {
		return nil, fmt.Errorf("decode %s genesis: %w", types.ModuleName, err)
	}
	return &gs, nil
}

// BankGenesis decodes the bank module genesis
func (g GenesisState) BankGenesis() (*banktypes.GenesisState, error) {
	raw, ok := g[banktypes.ModuleName]
	if !ok {
		return banktypes.DefaultGenesisState(), nil
	}
	var gs banktypes.GenesisState
	if err := json.Unmarshal(raw, &gs); err != nil {
		return nil, fmt.Errorf("decode %s genesis: %w", banktypes.ModuleName, err)
	}
	return &gs, nil
}

// Validate decodes and validates every module genesis
func (g GenesisState) Validate() error {
	pg, err := g.PostproofGenesis()
	if err != nil {
		return err
	}
	if err := pg.Validate(); err != nil {
		return fmt.Errorf("%s genesis: %w", types.ModuleName, err)
	}
	bg, err := g.BankGenesis()
	if err != nil {
		return err
	}
	if err := bg.Validate(); err != nil {
		return fmt.Errorf("%s genesis: %w", banktypes.ModuleName, err)
	}
	return nil
}

// Helper functions
func mustMarshalJSON(v interface{}) json.RawMessage {
	bz, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bz
}

func mustUnmarshalJSON(bz []byte, v interface{}) {
	if err := json.Unmarshal(bz, v); err != nil {
		panic(err)
	}
}

package app

import (
	"sync"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

const (
	// Bech32PrefixAccAddr defines the Bech32 prefix of an account's address
	Bech32PrefixAccAddr = "pop"
	// Bech32PrefixAccPub defines the Bech32 prefix of an account's public key
	Bech32PrefixAccPub = "poppub"
	// Bech32PrefixValAddr defines the Bech32 prefix of a validator's operator address
	Bech32PrefixValAddr = "popvaloper"
	// Bech32PrefixValPub defines the Bech32 prefix of a validator's operator public key
	Bech32PrefixValPub = "popvaloperpub"
	// Bech32PrefixConsAddr defines the Bech32 prefix of a consensus node address
	Bech32PrefixConsAddr = "popvalcons"
	// Bech32PrefixConsPub defines the Bech32 prefix of a consensus node public key
	Bech32PrefixConsPub = "popvalconspub"

	// CoinType is the coin type as defined in SLIP44
	CoinType = 118

	// BondDenom is the native token denomination; rewards and tips are paid in it.
	BondDenom = types.DefaultDenom

	// DisplayDenom defines the display name of the token.
	DisplayDenom = "POP"
)

var configOnce sync.Once

// SetConfig seals the global SDK config with the pop prefixes. Safe to call
// more than once.
func SetConfig() {
	configOnce.Do(func() {
		config := sdk.GetConfig()
		config.SetBech32PrefixForAccount(Bech32PrefixAccAddr, Bech32PrefixAccPub)
		config.SetBech32PrefixForValidator(Bech32PrefixValAddr, Bech32PrefixValPub)
		config.SetBech32PrefixForConsensusNode(Bech32PrefixConsAddr, Bech32PrefixConsPub)
		config.SetCoinType(CoinType)
		config.Seal()
	})
}

package types

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// BankKeeper defines the expected bank keeper used for escrow transfers
type BankKeeper interface {
	GetBalance(ctx context.Context, addr sdk.AccAddress, denom string) sdk.Coin
	SpendableCoins(ctx context.Context, addr sdk.AccAddress) sdk.Coins
	SendCoins(ctx context.Context, fromAddr sdk.AccAddress, toAddr sdk.AccAddress, amt sdk.Coins) error
}

// Coprocessor is the verifiable-computation service. SubmitJob must not block
// on execution: results come back later through Keeper.OnJobResult, presented
// with the capability the keeper handed out at bind time.
// Tips are paid to FeeAddress when the job is accepted.
type Coprocessor interface {
	SubmitJob(ctx context.Context, job Job) error
	FeeAddress() sdk.AccAddress
}

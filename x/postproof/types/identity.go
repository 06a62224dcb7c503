package types

import (
	"encoding/binary"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"
)

// Derive returns the deterministic identity for namespace and seeds.
//
// The namespace is the first derivation key under the module, each seed is
// chained with address.Derive, so ("ab","c") and ("a","bc") never collide.
func Derive(namespace string, seeds ...[]byte) sdk.AccAddress {
	keys := make([][]byte, 0, len(seeds)+1)
	keys = append(keys, []byte(namespace))
	keys = append(keys, seeds...)
	return sdk.AccAddress(address.Module(ModuleName, keys...))
}

// ConfigAddress derives the campaign identity for an owner and label.
func ConfigAddress(owner sdk.AccAddress, label string) sdk.AccAddress {
	return Derive(ConfigNamespace, owner.Bytes(), []byte(label))
}

// LogAddress derives the verification log identity for a claimant/campaign pair.
func LogAddress(claimant, config sdk.AccAddress) sdk.AccAddress {
	return Derive(LogNamespace, claimant.Bytes(), config.Bytes())
}

// TrackerAddress derives the execution tracker identity for a request id.
func TrackerAddress(requestID string) sdk.AccAddress {
	return Derive(TrackerNamespace, []byte(requestID))
}

// ExecutionAddress derives a job reference. The nonce is unique per job, so
// a tracker reused across requests never yields the same reference twice.
func ExecutionAddress(tracker, claimant sdk.AccAddress, nonce uint64) sdk.AccAddress {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, nonce)
	return Derive(ExecutionNamespace, tracker.Bytes(), claimant.Bytes(), bz)
}

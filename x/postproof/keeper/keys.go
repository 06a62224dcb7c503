package keeper

import (
	"encoding/binary"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"
)

var (
	// ParamsKey is the key for module parameters
	ParamsKey = []byte{0x01}

	// ConfigKeyPrefix is the prefix for campaign configs, keyed by config identity
	ConfigKeyPrefix = []byte{0x02}

	// LogKeyPrefix is the prefix for verification logs, keyed by log identity
	LogKeyPrefix = []byte{0x03}

	// TrackerKeyPrefix is the prefix for execution trackers, keyed by tracker identity
	TrackerKeyPrefix = []byte{0x04}

	// TrackerRequestIDPrefix maps a tracker identity back to its request id
	TrackerRequestIDPrefix = []byte{0x05}

	// ConfigsByOwnerPrefix indexes configs by owner
	ConfigsByOwnerPrefix = []byte{0x06}

	// LogsByConfigPrefix indexes logs by config
	LogsByConfigPrefix = []byte{0x07}

	// PendingByDeadlinePrefix indexes pending logs by job deadline
	PendingByDeadlinePrefix = []byte{0x08}

	// NextJobNonceKey is the key for the job nonce counter
	NextJobNonceKey = []byte{0x09}
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	n := len(prefix)
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	key = append(key, prefix...)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

// ConfigKey returns the store key for a config
func ConfigKey(config sdk.AccAddress) []byte {
	return prefixed(ConfigKeyPrefix, config)
}

// LogKey returns the store key for a verification log
func LogKey(log sdk.AccAddress) []byte {
	return prefixed(LogKeyPrefix, log)
}

// TrackerKey returns the store key for an execution tracker
func TrackerKey(tracker sdk.AccAddress) []byte {
	return prefixed(TrackerKeyPrefix, tracker)
}

// TrackerRequestIDKey returns the key holding the request id of a tracker
func TrackerRequestIDKey(tracker sdk.AccAddress) []byte {
	return prefixed(TrackerRequestIDPrefix, tracker)
}

// ConfigsByOwnerPrefixKey returns the index prefix for one owner
func ConfigsByOwnerPrefixKey(owner sdk.AccAddress) []byte {
	return prefixed(ConfigsByOwnerPrefix, address.MustLengthPrefix(owner))
}

// ConfigByOwnerKey returns the owner index key for a config
func ConfigByOwnerKey(owner, config sdk.AccAddress) []byte {
	return prefixed(ConfigsByOwnerPrefixKey(owner), config)
}

// LogsByConfigPrefixKey returns the index prefix for one config
func LogsByConfigPrefixKey(config sdk.AccAddress) []byte {
	return prefixed(LogsByConfigPrefix, address.MustLengthPrefix(config))
}

// LogByConfigKey returns the config index key for a log
func LogByConfigKey(config, log sdk.AccAddress) []byte {
	return prefixed(LogsByConfigPrefixKey(config), log)
}

// PendingDeadlineKey returns the deadline index key for a pending log
func PendingDeadlineKey(deadline int64, log sdk.AccAddress) []byte {
	return prefixed(PendingByDeadlinePrefix, deadlineBytes(deadline), log)
}

func deadlineBytes(deadline int64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, uint64(deadline))
	return bz
}

// splitPendingDeadlineKey returns the deadline and log encoded in an index key
func splitPendingDeadlineKey(key []byte) (int64, sdk.AccAddress) {
	body := key[len(PendingByDeadlinePrefix):]
	return int64(binary.BigEndian.Uint64(body[:8])), sdk.AccAddress(body[8:])
}

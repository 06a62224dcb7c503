package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDerivationIsDeterministic(t *testing.T) {
	owner := testAddr(1)
	require.Equal(t, ConfigAddress(owner, "launch"), ConfigAddress(owner, "launch"))
	require.NotEqual(t, ConfigAddress(owner, "launch"), ConfigAddress(owner, "launch2"))
	require.NotEqual(t, ConfigAddress(owner, "launch"), ConfigAddress(testAddr(2), "launch"))
	require.Len(t, ConfigAddress(owner, "launch").Bytes(), 32)
}

func TestDerivationSeparatesSeeds(t *testing.T) {
	require.NotEqual(t,
		Derive(ConfigNamespace, []byte("ab"), []byte("c")),
		Derive(ConfigNamespace, []byte("a"), []byte("bc")),
	)
	require.NotEqual(t,
		Derive(ConfigNamespace, []byte("x")),
		Derive(LogNamespace, []byte("x")),
	)
}

func TestExecutionAddressUniquePerNonce(t *testing.T) {
	tracker := TrackerAddress("req-1")
	claimant := testAddr(4)
	seen := map[string]bool{}
	for nonce := uint64(0); nonce < 50; nonce++ {
		ref := ExecutionAddress(tracker, claimant, nonce).String()
		require.False(t, seen[ref])
		seen[ref] = true
	}
}

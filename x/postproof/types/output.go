package types

import (
	"bytes"
	"encoding/hex"

	errorsmod "cosmossdk.io/errors"
)

const (
	// DigestSize is the size of the committed content digest.
	DigestSize = 32

	// JobOutputSize is the callback payload size: verdict byte then digest.
	JobOutputSize = 1 + DigestSize
)

// JobOutput is the committed output of one verification job.
type JobOutput struct {
	Verdict byte
	Digest  [DigestSize]byte
}

// Verified treats any nonzero verdict as a match.
func (o JobOutput) Verified() bool {
	return o.Verdict != 0
}

// Bytes returns the 33-byte callback payload.
func (o JobOutput) Bytes() []byte {
	out := make([]byte, 0, JobOutputSize)
	out = append(out, o.Verdict)
	return append(out, o.Digest[:]...)
}

// DigestHex returns the digest hex encoded.
func (o JobOutput) DigestHex() string {
	return hex.EncodeToString(o.Digest[:])
}

// MatchesDigest reports whether the committed digest equals expected. An
// empty expectation always matches.
func (o JobOutput) MatchesDigest(expected []byte) bool {
	return len(expected) == 0 || bytes.Equal(o.Digest[:], expected)
}

// ParseJobOutput decodes a callback payload. Anything but exactly
// JobOutputSize bytes is a malformed result.
func ParseJobOutput(bz []byte) (JobOutput, error) {
	if len(bz) != JobOutputSize {
		return JobOutput{}, errorsmod.Wrapf(ErrCallbackError, "payload is %d bytes, expected %d", len(bz), JobOutputSize)
	}
	var o JobOutput
	o.Verdict = bz[0]
	copy(o.Digest[:], bz[1:])
	return o, nil
}

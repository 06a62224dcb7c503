package types

import (
	"encoding/binary"
	"strings"

	errorsmod "cosmossdk.io/errors"
)

const (
	// PublicInputHeaderLen covers content_size and the keyword blob length.
	PublicInputHeaderLen = 16

	keywordSeparator = ","
)

// EncodePublicInput lays out the job's public input:
//
//	content_size (u64 BE) || blob_len (u64 BE) || comma-joined keywords
func EncodePublicInput(contentSize uint64, keywords []string) []byte {
	blob := strings.Join(keywords, keywordSeparator)
	out := make([]byte, PublicInputHeaderLen, PublicInputHeaderLen+len(blob))
	binary.BigEndian.PutUint64(out[0:8], contentSize)
	binary.BigEndian.PutUint64(out[8:16], uint64(len(blob)))
	return append(out, blob...)
}

// DecodePublicInput reverses EncodePublicInput. The keyword list is the raw
// comma split of the blob, so empty and duplicate entries survive; an empty
// blob decodes to an empty list. The input must have exactly the declared
// length.
func DecodePublicInput(bz []byte) (uint64, []string, error) {
	if len(bz) < PublicInputHeaderLen {
		return 0, nil, errorsmod.Wrapf(ErrInvalidPublicInput, "%d bytes is shorter than the header", len(bz))
	}
	contentSize := binary.BigEndian.Uint64(bz[0:8])
	blobLen := binary.BigEndian.Uint64(bz[8:16])
	if blobLen != uint64(len(bz)-PublicInputHeaderLen) {
		return 0, nil, errorsmod.Wrapf(ErrInvalidPublicInput, "blob length %d does not match %d remaining bytes", blobLen, len(bz)-PublicInputHeaderLen)
	}
	if blobLen == 0 {
		return contentSize, []string{}, nil
	}
	return contentSize, strings.Split(string(bz[PublicInputHeaderLen:]), keywordSeparator), nil
}

// NormalizeKeywords trims every keyword and drops the empty ones, which is
// the policy the verification program evaluates.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

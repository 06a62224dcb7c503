// Package guest is the post verification program executed by the
// verifiable-computation service. It is a pure function of its two inputs
// and only depends on the standard library so the same bytes can be built
// for the proving target.
package guest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// ProgramName identifies this program. Changing the verification logic must
// change the name so old and new jobs get different image ids.
const ProgramName = "postproof/post_verification/v1"

// ImageID is the program identity submitted with every job.
var ImageID = func() string {
	sum := sha256.Sum256([]byte(ProgramName))
	return hex.EncodeToString(sum[:])
}()

const (
	headerLen  = 16
	outputSize = 1 + sha256.Size
)

// Output is what the program commits: a verdict byte and the SHA-256 of
// the content it consumed.
type Output struct {
	Verdict byte
	Digest  [sha256.Size]byte
}

// Bytes returns the committed journal, verdict first.
func (o Output) Bytes() []byte {
	out := make([]byte, 0, outputSize)
	out = append(out, o.Verdict)
	return append(out, o.Digest[:]...)
}

// Verify evaluates the keyword policy encoded in publicInput against the
// getPosts JSON in content. Every failure path yields verdict 0; the digest
// is always committed.
func Verify(publicInput, content []byte) (out Output) {
	out.Digest = sha256.Sum256(content)
	defer func() {
		if r := recover(); r != nil {
			out.Verdict = 0
		}
	}()
	if verify(publicInput, content) {
		out.Verdict = 1
	}
	return out
}

func verify(publicInput, content []byte) bool {
	contentSize, keywords, ok := parsePublicInput(publicInput)
	if !ok || uint64(len(content)) != contentSize {
		return false
	}
	if !utf8.Valid(content) {
		return false
	}
	posts, ok := parsePosts(content)
	if !ok || len(posts) == 0 {
		return false
	}
	return matches(posts[0].Record.Text, keywords)
}

// matches reports whether text contains any keyword, ignoring case. An empty
// policy matches everything.
func matches(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	text = strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// parsePublicInput reads content_size and the comma-separated keyword blob.
// Keywords are trimmed and empty ones dropped.
func parsePublicInput(in []byte) (uint64, []string, bool) {
	if len(in) < headerLen {
		return 0, nil, false
	}
	contentSize := binary.BigEndian.Uint64(in[0:8])
	blobLen := binary.BigEndian.Uint64(in[8:16])
	if blobLen != uint64(len(in)-headerLen) {
		return 0, nil, false
	}
	blob := in[headerLen:]
	if !utf8.Valid(blob) {
		return 0, nil, false
	}
	var keywords []string
	for _, kw := range strings.Split(string(blob), ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return contentSize, keywords, true
}

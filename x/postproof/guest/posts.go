package guest

import (
	"bytes"
	"encoding/json"
	"io"
)

// The getPosts decoder below follows the app.bsky.feed.getPosts lexicon as
// a strict schema:
//   - keys match exactly, so "TEXT" is an unknown key and not "text"
//   - a known object may not repeat a key
//   - required fields reject null; list and count fields fall back to their
//     default only when the key is absent, never for an explicit null
//   - unknown keys are ignored

type postView struct {
	URI       string
	CID       string
	Author    author
	Record    postRecord
	IndexedAt string
}

type author struct {
	DID    string
	Handle string
}

type postRecord struct {
	Type      string
	CreatedAt string
	Text      string
	Langs     []string
}

// members is one JSON object split by exact key.
type members map[string]json.RawMessage

// splitObject reads raw as exactly one JSON object.
func splitObject(raw []byte) (members, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, false
	}
	out := members{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		if _, dup := out[key]; dup {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		out[key] = value
	}
	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return out, true
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// required decodes key into dst; absent or null fails.
func (m members) required(key string, dst interface{}) bool {
	v, ok := m[key]
	if !ok || isNull(v) {
		return false
	}
	return json.Unmarshal(v, dst) == nil
}

// optional decodes key into dst when present and not null.
func (m members) optional(key string, dst interface{}) bool {
	v, ok := m[key]
	if !ok || isNull(v) {
		return true
	}
	return json.Unmarshal(v, dst) == nil
}

// defaulted leaves dst untouched when key is absent; null fails.
func (m members) defaulted(key string, dst interface{}) bool {
	v, ok := m[key]
	if !ok {
		return true
	}
	if isNull(v) {
		return false
	}
	return json.Unmarshal(v, dst) == nil
}

// stringList decodes a defaulted list of strings whose items may not be null.
func (m members) stringList(key string) ([]string, bool) {
	var items []json.RawMessage
	if !m.defaulted(key, &items) {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if isNull(item) || json.Unmarshal(item, &s) != nil {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func parseAuthor(raw json.RawMessage) (author, bool) {
	var a author
	m, ok := splitObject(raw)
	if !ok {
		return a, false
	}
	var displayName, avatar, createdAt string
	var associated json.RawMessage
	var labels []json.RawMessage
	ok = m.required("did", &a.DID) &&
		m.required("handle", &a.Handle) &&
		m.optional("displayName", &displayName) &&
		m.optional("avatar", &avatar) &&
		m.optional("associated", &associated) &&
		m.defaulted("labels", &labels) &&
		m.optional("createdAt", &createdAt)
	return a, ok
}

func parseRecord(raw json.RawMessage) (postRecord, bool) {
	var r postRecord
	m, ok := splitObject(raw)
	if !ok {
		return r, false
	}
	if !(m.required("$type", &r.Type) &&
		m.required("createdAt", &r.CreatedAt) &&
		m.required("text", &r.Text)) {
		return r, false
	}
	r.Langs, ok = m.stringList("langs")
	// embed is free-form
	return r, ok
}

func parseEmbed(m members) bool {
	v, ok := m["embed"]
	if !ok || isNull(v) {
		return true
	}
	e, ok := splitObject(v)
	if !ok {
		return false
	}
	var typ string
	var images []json.RawMessage
	return e.required("$type", &typ) && e.defaulted("images", &images)
}

func parsePost(raw json.RawMessage) (postView, bool) {
	var p postView
	m, ok := splitObject(raw)
	if !ok {
		return p, false
	}
	if !(m.required("uri", &p.URI) &&
		m.required("cid", &p.CID) &&
		m.required("indexedAt", &p.IndexedAt)) {
		return p, false
	}

	authorRaw, ok := m["author"]
	if !ok {
		return p, false
	}
	if p.Author, ok = parseAuthor(authorRaw); !ok {
		return p, false
	}
	recordRaw, ok := m["record"]
	if !ok {
		return p, false
	}
	if p.Record, ok = parseRecord(recordRaw); !ok {
		return p, false
	}
	if !parseEmbed(m) {
		return p, false
	}

	var count uint64
	for _, key := range []string{"bookmarkCount", "replyCount", "repostCount", "likeCount", "quoteCount"} {
		if !m.defaulted(key, &count) {
			return p, false
		}
	}
	var labels []json.RawMessage
	return p, m.defaulted("labels", &labels)
}

// parsePosts decodes content and returns the post list, or false when the
// content does not have the expected shape.
func parsePosts(content []byte) ([]postView, bool) {
	m, ok := splitObject(content)
	if !ok {
		return nil, false
	}
	var raws []json.RawMessage
	if !m.required("posts", &raws) {
		return nil, false
	}
	posts := make([]postView, 0, len(raws))
	for _, raw := range raws {
		p, ok := parsePost(raw)
		if !ok {
			return nil, false
		}
		posts = append(posts, p)
	}
	return posts, true
}

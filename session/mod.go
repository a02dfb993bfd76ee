// Package session reads the user session produced by the wallet
// authentication library.
//
// The session is an opaque nested mapping whose shape is controlled by the
// wallet. It is kept read-only and the insertion order of the keys is
// preserved when it is decoded, so that any scan over it is deterministic.
//
// Documentation Last Review: 19.10.2026
//
package session

import (
	"bytes"
	"encoding/json"
	"os"

	orderedmap "github.com/wk8/go-ordered-map"
	"golang.org/x/xerrors"
)

const (
	userDataKey      = "userData"
	appPrivateKeyKey = "appPrivateKey"
)

// Session is the authenticated user context. Objects of the mapping are
// *orderedmap.OrderedMap, arrays are []interface{}, numbers are json.Number.
type Session struct {
	data *orderedmap.OrderedMap
}

// New creates a session from an existing mapping.
func New(data *orderedmap.OrderedMap) *Session {
	return &Session{data: data}
}

// Decode parses the JSON representation of the session. It accepts the user
// data itself or the wallet storage envelope that wraps it in "userData".
func Decode(data []byte) (*Session, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	value, err := decodeValue(dec)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode session: %v", err)
	}

	root, ok := value.(*orderedmap.OrderedMap)
	if !ok {
		return nil, xerrors.Errorf("session must be an object but got '%T'", value)
	}

	inner, found := root.Get(userDataKey)
	if found {
		userData, ok := inner.(*orderedmap.OrderedMap)
		if ok {
			root = userData
		}
	}

	return New(root), nil
}

// LoadFile reads and decodes the session stored in the file.
func LoadFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read session file: %v", err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, xerrors.Errorf("file '%s': %v", path, err)
	}

	return sess, nil
}

// SignedIn returns true when the session holds user data.
func (s *Session) SignedIn() bool {
	return s != nil && s.data != nil && s.data.Len() > 0
}

// Root returns the top-level mapping of the session.
func (s *Session) Root() *orderedmap.OrderedMap {
	if s == nil {
		return nil
	}

	return s.data
}

// Get follows the path of keys and returns the value if every step exists.
func (s *Session) Get(path ...string) (interface{}, bool) {
	if s == nil || s.data == nil {
		return nil, false
	}

	return lookup(s.data, path...)
}

// String returns the string at the path, if any.
func (s *Session) String(path ...string) (string, bool) {
	value, found := s.Get(path...)
	if !found {
		return "", false
	}

	str, ok := value.(string)

	return str, ok
}

// AppPrivateKey returns the hex-encoded signing key the wallet attached to the
// session. The key is never persisted by this package.
func (s *Session) AppPrivateKey() (string, bool) {
	key, found := s.String(appPrivateKeyKey)
	if !found || key == "" {
		return "", false
	}

	return key, true
}

func lookup(m *orderedmap.OrderedMap, path ...string) (interface{}, bool) {
	var current interface{} = m

	for _, key := range path {
		obj, ok := current.(*orderedmap.OrderedMap)
		if !ok {
			return nil, false
		}

		current, ok = obj.Get(key)
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// decodeValue reads the next JSON value while preserving the order of the
// object keys.
func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, xerrors.Errorf("unexpected delimiter '%v'", t)
		}
	default:
		return t, nil
	}
}

func decodeObject(dec *json.Decoder) (*orderedmap.OrderedMap, error) {
	obj := orderedmap.New()

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := tok.(string)
		if !ok {
			return nil, xerrors.Errorf("invalid key '%v'", tok)
		}

		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		obj.Set(key, value)
	}

	// Consume the closing delimiter.
	_, err := dec.Token()
	if err != nil {
		return nil, xerrors.Errorf("unterminated value: %v", err)
	}

	return obj, nil
}

func decodeArray(dec *json.Decoder) ([]interface{}, error) {
	arr := []interface{}{}

	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		arr = append(arr, value)
	}

	_, err := dec.Token()
	if err != nil {
		return nil, xerrors.Errorf("unterminated value: %v", err)
	}

	return arr, nil
}

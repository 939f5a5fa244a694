package subscription

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rzbill/subrelay/pkg/types"
)

const (
	outboundsKey = "outbounds"
	detourKey    = "detour"
)

// member is one key/value pair of a JSON object, kept in document order.
type member struct {
	key   string
	value json.RawMessage
}

// Rewrite chains every outbound of doc through proxyTag by setting its
// detour to [proxyTag]. It returns the resulting document and the number of
// outbounds changed.
//
// doc must be valid JSON. When proxyTag is blank, or doc has no outbounds
// array, doc is returned as is. Array elements that are not objects are
// left alone. Key order of every object is preserved.
func Rewrite(doc []byte, proxyTag string) ([]byte, int, error) {
	if !json.Valid(doc) {
		return nil, 0, &types.ProcessingError{Message: "Backend response is not valid JSON"}
	}
	if strings.TrimSpace(proxyTag) == "" {
		return doc, 0, nil
	}

	top, ok, err := decodeObject(doc)
	if err != nil {
		return nil, 0, processingError(err)
	}
	if !ok {
		return doc, 0, nil
	}

	idx := -1
	for i, m := range top {
		if m.key == outboundsKey {
			idx = i
		}
	}
	if idx < 0 {
		return doc, 0, nil
	}

	var outbounds []json.RawMessage
	if err := json.Unmarshal(top[idx].value, &outbounds); err != nil || outbounds == nil {
		// present but not an array
		return doc, 0, nil
	}

	detour, err := marshalNoEscape([]string{proxyTag})
	if err != nil {
		return nil, 0, processingError(err)
	}

	changed := 0
	for i, raw := range outbounds {
		fields, ok, err := decodeObject(raw)
		if err != nil {
			return nil, 0, processingError(err)
		}
		if !ok {
			continue
		}
		outbounds[i] = encodeObject(setMember(fields, detourKey, detour))
		changed++
	}

	top[idx].value = encodeArray(outbounds)

	var out bytes.Buffer
	if err := json.Compact(&out, encodeObject(top)); err != nil {
		return nil, 0, processingError(err)
	}
	return out.Bytes(), changed, nil
}

func processingError(err error) error {
	return &types.ProcessingError{Message: "Failed to process backend response", Err: err}
}

// decodeObject splits a JSON object into its members. ok is false when data
// holds some other JSON value.
func decodeObject(data []byte) (members []member, ok bool, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, false, err
	}
	if d, isDelim := tok.(json.Delim); !isDelim || d != '{' {
		return nil, false, nil
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false, err
		}
		key, isString := tok.(string)
		if !isString {
			return nil, false, fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false, err
		}
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	return members, true, nil
}

// setMember sets key to value at the position of its first occurrence, or
// appends it when absent. Later duplicates of key are dropped so last-wins
// decoders see value too.
func setMember(members []member, key string, value json.RawMessage) []member {
	out := members[:0]
	found := false
	for _, m := range members {
		if m.key != key {
			out = append(out, m)
			continue
		}
		if !found {
			out = append(out, member{key: key, value: value})
			found = true
		}
	}
	if !found {
		out = append(out, member{key: key, value: value})
	}
	return out
}

func encodeObject(members []member) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := marshalNoEscape(m.key)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(m.value)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func encodeArray(items []json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(item)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

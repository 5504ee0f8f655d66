package jsoncodec

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

// RawMessage is a raw encoded JSON value embedded as is.
type RawMessage = json.RawMessage

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Valid reports whether data is a single valid JSON value.
func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}

// DecodeAll decodes every JSON document concatenated in data, in order.
// Whitespace between documents is ignored. On a syntax error, or when the
// last document is cut short, the documents decoded so far are returned
// together with the error.
func DecodeAll[T any](data []byte) ([]T, error) {
	var out []T
	for {
		data = bytes.TrimLeft(data, " \t\r\n")
		if len(data) == 0 {
			return out, nil
		}
		n, complete := documentEnd(data)
		if !complete {
			return out, io.ErrUnexpectedEOF
		}
		var doc T
		if err := defaultConfig.Unmarshal(data[:n], &doc); err != nil {
			return out, err
		}
		out = append(out, doc)
		data = data[n:]
	}
}

// documentEnd returns the length of the top-level value data starts with.
// complete is false when an object, array or string is still open at the
// end of data.
func documentEnd(data []byte) (n int, complete bool) {
	depth := 0
	inString, escaped := false, false
	for i, c := range data {
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				if depth == 0 {
					return i + 1, true
				}
			}
		case c == '"':
			inString = true
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth <= 0 {
				return i + 1, true
			}
		case depth == 0 && (c == ' ' || c == '\t' || c == '\r' || c == '\n'):
			return i, true
		}
	}
	return len(data), depth == 0 && !inString
}

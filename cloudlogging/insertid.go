// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cloudlogging

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// DefaultHashAlgorithm is used when no algorithm is configured.
const DefaultHashAlgorithm = "sha1"

const nullValue = "(null)"

// EventNameKey is the record attribute holding the event name.
const EventNameKey = "event.name"

var hashAlgorithms = map[string]func() hash.Hash{
	"md5":        md5.New,
	"sha1":       sha1.New,
	"sha224":     sha256.New224,
	"sha256":     sha256.New,
	"sha384":     sha512.New384,
	"sha512":     sha512.New,
	"sha512_224": sha512.New512_224,
	"sha512_256": sha512.New512_256,
	"sha3_224":   sha3.New224,
	"sha3_256":   sha3.New256,
	"sha3_384":   sha3.New384,
	"sha3_512":   sha3.New512,
	"blake2b": func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	},
	"blake2s": func() hash.Hash {
		h, _ := blake2s.New256(nil)
		return h
	},
}

// HashAlgorithms lists every supported insert id hash algorithm.
func HashAlgorithms() []string {
	names := make([]string, 0, len(hashAlgorithms))
	for name := range hashAlgorithms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// UnknownHashAlgorithmError is returned for an unsupported algorithm name.
type UnknownHashAlgorithmError struct {
	Algorithm string
}

// Error implements the [builtin.error] interface.
func (e UnknownHashAlgorithmError) Error() string {
	return fmt.Sprintf("unknown insert id hash algorithm %q, expected one of: %s", e.Algorithm, strings.Join(HashAlgorithms(), ", "))
}

// InsertIDHasher computes deduplication ids for log entries.
type InsertIDHasher struct {
	algorithm string
	newHash   func() hash.Hash
}

// NewInsertIDHasher returns a hasher using the named algorithm. Names are
// case insensitive and an empty name selects [DefaultHashAlgorithm].
func NewInsertIDHasher(algorithm string) (*InsertIDHasher, error) {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	if name == "" {
		name = DefaultHashAlgorithm
	}
	newHash, ok := hashAlgorithms[name]
	if !ok {
		return nil, UnknownHashAlgorithmError{Algorithm: algorithm}
	}
	return &InsertIDHasher{algorithm: name, newHash: newHash}, nil
}

// Algorithm is the normalized algorithm name.
func (h *InsertIDHasher) Algorithm() string {
	return h.algorithm
}

// Compute returns the hex digest identifying v. Attribute keys are sorted
// before hashing so the result does not depend on attribute order.
func (h *InsertIDHasher) Compute(v View) string {
	d := h.newHash()

	eventName := v.Record.EventName
	if name, ok := v.Record.Attributes[EventNameKey]; ok {
		eventName = fmt.Sprint(name)
	}

	writeProperty(d, "event_name", eventName)
	writeProperty(d, "timestamp", timestampString(v.Record))
	writeProperty(d, "trace_id", hexOrNull(v.Record.TraceID.IsValid(), v.Record.TraceID.String()))
	writeProperty(d, "span_id", hexOrNull(v.Record.SpanID.IsValid(), v.Record.SpanID.String()))

	for _, k := range sortedKeys(v.Record.Attributes) {
		if k == EventNameKey {
			continue
		}
		writeProperty(d, `attributes["`+k+`"]`, fmt.Sprint(v.Record.Attributes[k]))
	}
	for _, k := range sortedKeys(v.Resource.Attributes) {
		writeProperty(d, `resource.attributes["`+k+`"]`, fmt.Sprint(v.Resource.Attributes[k]))
	}

	return hex.EncodeToString(d.Sum(nil))
}

func writeProperty(w io.Writer, name, value string) {
	io.WriteString(w, name)
	io.WriteString(w, "=")
	io.WriteString(w, value)
}

func timestampString(r Record) string {
	if r.Timestamp.IsZero() {
		return nullValue
	}
	return strconv.FormatInt(r.Timestamp.UnixNano(), 10)
}

func hexOrNull(valid bool, s string) string {
	if !valid {
		return nullValue
	}
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

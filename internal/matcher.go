package internal

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

// Signature is a fixed byte sequence identifying a known format. Identity is by Name.
type Signature struct {
	Name  string
	Bytes []byte
}

// DefaultSignatures returns a fresh copy of the built-in table.
func DefaultSignatures() []Signature {
	return []Signature{
		{Name: "PDF", Bytes: []byte("%PDF")},
		{Name: "JPEG", Bytes: []byte{0xFF, 0xD8, 0xFF, 0xE0}},
		{Name: "ZIP", Bytes: []byte{0x50, 0x4B, 0x03, 0x04}},
		{Name: "PNG", Bytes: []byte{0x89, 0x50, 0x4E, 0x47}},
	}
}

// SignatureMatcher finds every occurrence of a signature set, including
// occurrences that straddle window boundaries, using a carried suffix.
type SignatureMatcher struct {
	sigs     []Signature
	carryLen int
}

func NewSignatureMatcher(sigs []Signature) (*SignatureMatcher, error) {
	m := &SignatureMatcher{sigs: sigs}
	for i, s := range sigs {
		if len(s.Bytes) == 0 {
			return nil, configError("signature %d (%q) is empty", i, s.Name)
		}
		m.carryLen = max(m.carryLen, len(s.Bytes)-1)
	}
	return m, nil
}

// CarryLen is the number of tail bytes kept between windows: max signature length - 1.
func (m *SignatureMatcher) CarryLen() int { return m.carryLen }

// Scan searches carry+window for all signatures. A match is reported only if
// its last byte lies in w.Data; matches ending inside carry were reported by
// the previous call. The returned carry may alias an internal buffer and must be
// passed unchanged to the next call.
func (m *SignatureMatcher) Scan(w Window, carry []byte) ([]Finding, []byte) {
	if len(m.sigs) == 0 {
		return nil, nil
	}
	buf := make([]byte, 0, len(carry)+len(w.Data))
	buf = append(buf, carry...)
	buf = append(buf, w.Data...)
	base := w.Offset - int64(len(carry))

	var out []Finding
	for _, sig := range m.sigs {
		start := 0
		for {
			pos := bytes.Index(buf[start:], sig.Bytes)
			if pos < 0 {
				break
			}
			p := start + pos
			if p+len(sig.Bytes) > len(carry) {
				out = append(out, Finding{
					Kind:   KindSignature,
					Name:   sig.Name,
					Offset: base + int64(p),
					Length: len(sig.Bytes),
				})
			}
			start = p + 1
		}
	}
	// stable: equal offsets keep declaration order
	slices.SortStableFunc(out, func(a, b Finding) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		}
		return 0
	})

	keep := min(m.carryLen, len(buf))
	next := make([]byte, keep)
	copy(next, buf[len(buf)-keep:])
	return out, next
}

// LoadSignatures reads a signature file.
// Lines:
//
//	PNG=hex:89 50 4E 47
//	PDF=%PDF
//	# comment
func LoadSignatures(path string) ([]Signature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sigs []Signature
	sc := bufio.NewScanner(f)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, configError("%s:%d: expected name=value", path, lineNum)
		}
		sig, err := ParseSignature(name, strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNum, err)
		}
		sigs = append(sigs, sig)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	logrus.Debugf("Loaded %d signatures", len(sigs))
	return sigs, nil
}

// ParseSignature accepts "hex:<digits>" (spaces allowed) or literal text.
func ParseSignature(name, value string) (Signature, error) {
	var b []byte
	if rest, ok := strings.CutPrefix(value, "hex:"); ok {
		var err error
		b, err = hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(rest), " ", ""))
		if err != nil {
			return Signature{}, configError("signature %q: %v", name, err)
		}
	} else {
		b = []byte(value)
	}
	if len(b) == 0 {
		return Signature{}, configError("signature %q is empty", name)
	}
	return Signature{Name: name, Bytes: b}, nil
}

package internal

import "fmt"

type FindingKind int

const (
	KindSignature FindingKind = iota
	KindString
)

func (k FindingKind) String() string {
	if k == KindSignature {
		return "signature"
	}
	return "string"
}

// Finding is one detection. Offset is absolute within the source.
// For KindSignature Name is set, for KindString Text is set.
type Finding struct {
	Kind      FindingKind
	Source    string
	Name      string
	Text      string
	Offset    int64
	Length    int
	Truncated bool // run was split at the configured cap
}

// Line renders the finding in the report format.
func (f Finding) Line() string {
	if f.Kind == KindSignature {
		return fmt.Sprintf("Pattern '%s' found at 0x%X", f.Name, f.Offset)
	}
	return fmt.Sprintf("ASCII String '%s' found at 0x%X", f.Text, f.Offset)
}

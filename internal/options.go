package internal

import (
	"errors"
	"runtime"
)

// Config is what a single Driver needs. Signatures are owned by the caller
// and must not be mutated while a scan runs.
type Config struct {
	WindowSize      int
	BytesPerRow     int
	MinStringLength int
	MaxRunLength    int
	RunPolicy       RunPolicy
	Signatures      []Signature
}

func DefaultConfig() Config {
	return Config{
		WindowSize:      1024,
		BytesPerRow:     16,
		MinStringLength: 4,
		MaxRunLength:    DefaultMaxRunLength,
		RunPolicy:       RunPolicySplit,
		Signatures:      DefaultSignatures(),
	}
}

// Validate checks invariants before any byte is read.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return configError("window size must be > 0, got %d", c.WindowSize)
	}
	if c.BytesPerRow <= 0 {
		return configError("bytes per row must be > 0, got %d", c.BytesPerRow)
	}
	for i, s := range c.Signatures {
		if len(s.Bytes) == 0 {
			return configError("signature %d (%q) is empty", i, s.Name)
		}
	}
	if _, err := ParseRunPolicy(string(c.RunPolicy)); err != nil {
		return err
	}
	return nil
}

// ScanOptions - public options from CLI.
type ScanOptions struct {
	Config

	Roots            []string
	SignatureFile    string
	ConfigFile       string
	Depth            int
	Archives         bool
	Threads          int
	FailFast         bool
	Progress         bool
	NoHex            bool
	NoStrings        bool
	NoPatterns       bool
	SaveFindingsFile string
	OutDir           string
}

// Validate checks invariants.
func (o *ScanOptions) Validate() error {
	if len(o.Roots) == 0 {
		return errors.New("no sources given")
	}
	if o.NoHex && o.NoStrings && o.NoPatterns {
		return configError("all output channels disabled")
	}
	return o.Config.Validate()
}

// Prepare sets sensible defaults.
func (o *ScanOptions) Prepare() {
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.Threads > runtime.GOMAXPROCS(0)*4 {
		o.Threads = runtime.GOMAXPROCS(0) * 4
	}
	if o.MinStringLength <= 0 {
		o.MinStringLength = 1
	}
	if o.MaxRunLength <= 0 {
		o.MaxRunLength = DefaultMaxRunLength
	}
	if o.RunPolicy == "" {
		o.RunPolicy = RunPolicySplit
	}
}

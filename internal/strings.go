package internal

import "fmt"

const DefaultMaxRunLength = 1 << 20

// RunPolicy decides what happens when a printable run reaches the cap.
type RunPolicy string

const (
	RunPolicySplit RunPolicy = "split" // emit a truncated finding, continue with a new run
	RunPolicyFail  RunPolicy = "fail"  // abort with ErrRunTooLong
)

func ParseRunPolicy(s string) (RunPolicy, error) {
	switch RunPolicy(s) {
	case "", RunPolicySplit:
		return RunPolicySplit, nil
	case RunPolicyFail:
		return RunPolicyFail, nil
	}
	return "", configError("unknown run policy %q", s)
}

// OpenRun is a printable run not yet terminated by a non-printable byte or end of source.
type OpenRun struct {
	Start int64
	Buf   []byte
}

// RunExtractor finds maximal runs of printable ASCII at or above a minimum length.
type RunExtractor struct {
	minLen int
	maxLen int
	policy RunPolicy
}

// NewRunExtractor treats minLen <= 0 as 1 and maxLen <= 0 as DefaultMaxRunLength.
func NewRunExtractor(minLen, maxLen int, policy RunPolicy) (*RunExtractor, error) {
	if minLen <= 0 {
		minLen = 1
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxRunLength
	}
	if maxLen < minLen {
		return nil, configError("max run length %d below min string length %d", maxLen, minLen)
	}
	if _, err := ParseRunPolicy(string(policy)); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = RunPolicySplit
	}
	return &RunExtractor{minLen: minLen, maxLen: maxLen, policy: policy}, nil
}

// IsPrintable reports ASCII graphic characters and space.
func IsPrintable(b byte) bool { return b >= 0x20 && b <= 0x7E }

// Scan walks w and returns closed runs. A run still open at the end of the
// window is returned for the next call; use Flush at end of source.
func (e *RunExtractor) Scan(w Window, open *OpenRun) ([]Finding, *OpenRun, error) {
	var out []Finding
	for i, b := range w.Data {
		if !IsPrintable(b) {
			if open != nil {
				out = e.emit(out, open, false)
				open = nil
			}
			continue
		}
		if open != nil && len(open.Buf) == e.maxLen {
			// b would overflow the cap
			if e.policy == RunPolicyFail {
				return out, nil, &ScanError{
					Op:       "detect",
					Detector: "strings",
					Offset:   open.Start,
					Err:      fmt.Errorf("%w: exceeds %d bytes", ErrRunTooLong, e.maxLen),
				}
			}
			out = e.emit(out, open, true)
			open = nil
		}
		if open == nil {
			open = &OpenRun{Start: w.Offset + int64(i)}
		}
		open.Buf = append(open.Buf, b)
	}
	return out, open, nil
}

// Flush closes the run at end of source.
func (e *RunExtractor) Flush(open *OpenRun) []Finding {
	if open == nil {
		return nil
	}
	return e.emit(nil, open, false)
}

func (e *RunExtractor) emit(out []Finding, run *OpenRun, truncated bool) []Finding {
	if len(run.Buf) < e.minLen {
		return out
	}
	// printable bytes are ASCII by construction, so the conversion is lossless
	return append(out, Finding{
		Kind:      KindString,
		Text:      string(run.Buf),
		Offset:    run.Start,
		Length:    len(run.Buf),
		Truncated: truncated,
	})
}

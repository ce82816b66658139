package tuning

import (
	"fmt"
	"strings"
)

// GPUPerfHint is an advisory performance level forwarded to the GPU driver.
type GPUPerfHint int

const (
	GPUPerfDefault GPUPerfHint = iota
	GPUPerfLow
	GPUPerfNormal
	GPUPerfHigh
)

// GPUPriorityHint is an advisory queue priority forwarded to the GPU driver.
type GPUPriorityHint int

const (
	GPUPriorityDefault GPUPriorityHint = iota
	GPUPriorityLow
	GPUPriorityNormal
	GPUPriorityHigh
)

// CPUAffinityPolicy selects which cores compute threads run on.
type CPUAffinityPolicy int

const (
	// AffinityNone uses every core and leaves scheduling to the OS.
	AffinityNone CPUAffinityPolicy = iota
	// AffinityBigOnly pins threads to the highest-frequency cores.
	AffinityBigOnly
	// AffinityLittleOnly pins threads to the remaining cores.
	AffinityLittleOnly
)

var levelNames = []string{"default", "low", "normal", "high"}

func (h GPUPerfHint) String() string {
	if h < 0 || int(h) >= len(levelNames) {
		return fmt.Sprintf("GPUPerfHint(%d)", int(h))
	}
	return levelNames[h]
}

func (h GPUPriorityHint) String() string {
	if h < 0 || int(h) >= len(levelNames) {
		return fmt.Sprintf("GPUPriorityHint(%d)", int(h))
	}
	return levelNames[h]
}

func (p CPUAffinityPolicy) String() string {
	switch p {
	case AffinityNone:
		return "none"
	case AffinityBigOnly:
		return "big_only"
	case AffinityLittleOnly:
		return "little_only"
	default:
		return fmt.Sprintf("CPUAffinityPolicy(%d)", int(p))
	}
}

func parseLevel(kind, s string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, nil
	}
	for i, name := range levelNames {
		if v == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q (expected default, low, normal, or high)", kind, s)
}

// ParseGPUPerfHint accepts the names produced by String. Empty means default.
func ParseGPUPerfHint(s string) (GPUPerfHint, error) {
	v, err := parseLevel("gpu perf hint", s)
	return GPUPerfHint(v), err
}

// ParseGPUPriorityHint accepts the names produced by String. Empty means default.
func ParseGPUPriorityHint(s string) (GPUPriorityHint, error) {
	v, err := parseLevel("gpu priority hint", s)
	return GPUPriorityHint(v), err
}

// ParseCPUAffinityPolicy accepts none, big_only and little_only (also
// big/little). Empty means none.
func ParseCPUAffinityPolicy(s string) (CPUAffinityPolicy, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "", "none":
		return AffinityNone, nil
	case "big_only", "big":
		return AffinityBigOnly, nil
	case "little_only", "little":
		return AffinityLittleOnly, nil
	default:
		return AffinityNone, fmt.Errorf("unknown affinity policy %q (expected none, big_only, or little_only)", s)
	}
}

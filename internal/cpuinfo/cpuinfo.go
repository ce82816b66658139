// Package cpuinfo probes per-core maximum frequencies from sysfs and uses
// them to split heterogeneous (big.LITTLE) CPUs into core clusters.
package cpuinfo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
)

// ErrFrequencyUnavailable is returned when some core does not expose a
// usable maximum frequency, e.g. offline cores or vendor kernels that hide
// cpufreq. Big/little detection is unreliable in that case.
var ErrFrequencyUnavailable = errors.New("cpuinfo: max frequency unavailable")

// ErrNoCores is returned when no cpuN entries are found.
var ErrNoCores = errors.New("cpuinfo: no cpu cores found")

const cpuDir = "devices/system/cpu"

// Core is one logical CPU.
type Core struct {
	ID         int    `json:"id"`
	MaxFreqKHz uint64 `json:"max_freq_khz"`
}

// Prober reads topology from a sysfs tree. FS is rooted at the sysfs mount
// point; a nil FS means os.DirFS("/sys").
type Prober struct {
	FS fs.FS
}

// Default probes the host.
func Default() Prober {
	return Prober{}
}

func (p Prober) fsys() fs.FS {
	if p.FS == nil {
		return os.DirFS("/sys")
	}
	return p.FS
}

// CoreIDs lists the cpuN directories in id order.
func (p Prober) CoreIDs() ([]int, error) {
	entries, err := fs.ReadDir(p.fsys(), cpuDir)
	if err != nil {
		return nil, fmt.Errorf("cpuinfo: read %s: %w", cpuDir, err)
	}
	var ids []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		id, err := strconv.Atoi(name[3:])
		if err != nil || id < 0 {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ErrNoCores
	}
	slices.Sort(ids)
	return ids, nil
}

// CPUCount returns the number of cpuN entries.
func (p Prober) CPUCount() (int, error) {
	ids, err := p.CoreIDs()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// MaxFreq reads cpuinfo_max_freq (kHz) for one core.
func (p Prober) MaxFreq(id int) (uint64, error) {
	name := path.Join(cpuDir, "cpu"+strconv.Itoa(id), "cpufreq", "cpuinfo_max_freq")
	data, err := fs.ReadFile(p.fsys(), name)
	if err != nil {
		return 0, fmt.Errorf("%w: cpu%d: %v", ErrFrequencyUnavailable, id, err)
	}
	freq, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: cpu%d: %v", ErrFrequencyUnavailable, id, err)
	}
	if freq == 0 {
		return 0, fmt.Errorf("%w: cpu%d reports 0", ErrFrequencyUnavailable, id)
	}
	return freq, nil
}

// Cores returns every core with its max frequency. It fails if any core's
// frequency cannot be read.
func (p Prober) Cores() ([]Core, error) {
	ids, err := p.CoreIDs()
	if err != nil {
		return nil, err
	}
	cores := make([]Core, 0, len(ids))
	for _, id := range ids {
		freq, err := p.MaxFreq(id)
		if err != nil {
			return nil, err
		}
		cores = append(cores, Core{ID: id, MaxFreqKHz: freq})
	}
	return cores, nil
}

// BigLittleCoreIDs probes the host and partitions its cores.
func (p Prober) BigLittleCoreIDs() (big, little []int, err error) {
	cores, err := p.Cores()
	if err != nil {
		return nil, nil, err
	}
	big, little = Partition(cores)
	return big, little, nil
}

// Partition assigns the cores with the highest max frequency to big and all
// others to little. When every core has the same max frequency both results
// hold every core id.
func Partition(cores []Core) (big, little []int) {
	if len(cores) == 0 {
		return nil, nil
	}
	maxFreq, minFreq := cores[0].MaxFreqKHz, cores[0].MaxFreqKHz
	for _, c := range cores[1:] {
		maxFreq = max(maxFreq, c.MaxFreqKHz)
		minFreq = min(minFreq, c.MaxFreqKHz)
	}
	for _, c := range cores {
		if c.MaxFreqKHz == maxFreq {
			big = append(big, c.ID)
		} else {
			little = append(little, c.ID)
		}
	}
	if maxFreq == minFreq {
		little = slices.Clone(big)
	}
	return big, little
}

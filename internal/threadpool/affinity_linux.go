//go:build linux

package threadpool

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// maxCPUID matches the kernel's default CPU_SETSIZE.
const maxCPUID = 1024

// pinCurrentThread restricts the calling OS thread to cpuIDs.
func pinCurrentThread(cpuIDs []int) error {
	var set unix.CPUSet
	set.Zero()
	for _, id := range cpuIDs {
		if id < 0 || id >= maxCPUID {
			return fmt.Errorf("cpu id %d out of range", id)
		}
		set.Set(id)
	}
	return unix.SchedSetaffinity(0, &set)
}

// currentAffinity returns the cpu ids the calling thread may run on.
func currentAffinity() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, err
	}
	var ids []int
	for id := 0; id < maxCPUID; id++ {
		if set.IsSet(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

//go:build !linux

package threadpool

import "github.com/samcharles93/kernelhal/internal/status"

func pinCurrentThread([]int) error {
	return status.New(status.Unsupported, "threadpool", "thread affinity is only supported on linux")
}

func currentAffinity() ([]int, error) {
	return nil, status.New(status.Unsupported, "threadpool", "thread affinity is only supported on linux")
}

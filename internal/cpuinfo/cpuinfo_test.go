package cpuinfo

import (
	"errors"
	"io/fs"
	"slices"
	"strconv"
	"testing"
	"testing/fstest"
)

func sysfs(freqs map[int]string) fstest.MapFS {
	m := fstest.MapFS{
		"devices/system/cpu/possible":  {Data: []byte("0-7\n")},
		"devices/system/cpu/cpufreq":   {Mode: fs.ModeDir | 0o755},
		"devices/system/cpu/cpuidle/x": {Data: []byte("")},
	}
	for id, f := range freqs {
		dir := "devices/system/cpu/cpu" + strconv.Itoa(id)
		m[dir+"/online"] = &fstest.MapFile{Data: []byte("1\n")}
		if f != "" {
			m[dir+"/cpufreq/cpuinfo_max_freq"] = &fstest.MapFile{Data: []byte(f + "\n")}
		}
	}
	return m
}

func TestCoreIDsSkipsNonCoreEntries(t *testing.T) {
	t.Parallel()
	p := Prober{FS: sysfs(map[int]string{0: "1800000", 10: "1800000", 2: "1800000"})}
	ids, err := p.CoreIDs()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []int{0, 2, 10}) {
		t.Fatalf("ids: got %v", ids)
	}
}

func TestBigLittlePartition(t *testing.T) {
	t.Parallel()
	p := Prober{FS: sysfs(map[int]string{
		0: "1785600", 1: "1785600", 2: "1785600", 3: "1785600",
		4: "2841600", 5: "2841600", 6: "2841600", 7: "3187200",
	})}
	big, little, err := p.BigLittleCoreIDs()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(big, []int{7}) {
		t.Fatalf("big: got %v", big)
	}
	if !slices.Equal(little, []int{0, 1, 2, 3, 4, 5, 6}) {
		t.Fatalf("little: got %v", little)
	}
}

func TestBigLittleUniformFrequency(t *testing.T) {
	t.Parallel()
	p := Prober{FS: sysfs(map[int]string{0: "2000000", 1: "2000000", 2: "2000000", 3: "2000000"})}
	big, little, err := p.BigLittleCoreIDs()
	if err != nil {
		t.Fatal(err)
	}
	all := []int{0, 1, 2, 3}
	if !slices.Equal(big, all) || !slices.Equal(little, all) {
		t.Fatalf("uniform: big=%v little=%v", big, little)
	}
}

func TestBigLittleMissingFrequency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		freqs map[int]string
	}{
		{"missing file", map[int]string{0: "2000000", 1: ""}},
		{"zero", map[int]string{0: "2000000", 1: "0"}},
		{"garbage", map[int]string{0: "2000000", 1: "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Prober{FS: sysfs(tt.freqs)}
			_, _, err := p.BigLittleCoreIDs()
			if !errors.Is(err, ErrFrequencyUnavailable) {
				t.Fatalf("expected ErrFrequencyUnavailable, got %v", err)
			}
		})
	}
}

func TestNoCores(t *testing.T) {
	t.Parallel()
	p := Prober{FS: fstest.MapFS{"devices/system/cpu/possible": {Data: []byte("0")}}}
	if _, err := p.CPUCount(); !errors.Is(err, ErrNoCores) {
		t.Fatalf("expected ErrNoCores, got %v", err)
	}
}

func TestPartitionEmpty(t *testing.T) {
	t.Parallel()
	big, little := Partition(nil)
	if big != nil || little != nil {
		t.Fatalf("expected nil partitions, got %v %v", big, little)
	}
}

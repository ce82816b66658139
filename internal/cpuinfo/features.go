package cpuinfo

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Features reports the vector extensions of the host CPU that kernels may
// dispatch on. Keys absent on the current architecture are omitted.
func Features() map[string]bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return map[string]bool{
			"sse41":      cpu.X86.HasSSE41,
			"avx":        cpu.X86.HasAVX,
			"avx2":       cpu.X86.HasAVX2,
			"fma":        cpu.X86.HasFMA,
			"avx512f":    cpu.X86.HasAVX512F,
			"avx512bf16": cpu.X86.HasAVX512BF16,
			"avx512vnni": cpu.X86.HasAVX512VNNI,
		}
	case "arm64":
		return map[string]bool{
			"asimd":   cpu.ARM64.HasASIMD,
			"fphp":    cpu.ARM64.HasFPHP,
			"asimdhp": cpu.ARM64.HasASIMDHP,
			"asimddp": cpu.ARM64.HasASIMDDP,
			"sve":     cpu.ARM64.HasSVE,
		}
	default:
		return map[string]bool{}
	}
}

// Variant names the widest vector extension kernels can rely on, or "" for
// scalar code.
func Variant() string {
	switch {
	case cpu.X86.HasAVX512F:
		return "avx512"
	case cpu.X86.HasAVX2:
		return "avx2"
	case cpu.X86.HasAVX:
		return "avx"
	case cpu.ARM64.HasSVE:
		return "sve"
	case cpu.ARM64.HasASIMD:
		return "neon"
	default:
		return ""
	}
}

package gclflow

import (
	"log/slog"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// HostInfo describes the CPU the numeric kernels run on.
type HostInfo struct {
	Brand         string `json:"brand"`
	Vendor        string `json:"vendor"`
	PhysicalCores int    `json:"physical_cores"`
	LogicalCores  int    `json:"logical_cores"`
	GOMAXPROCS    int    `json:"gomaxprocs"`
	AVX2          bool   `json:"avx2"`
	FMA3          bool   `json:"fma3"`
	AVX512        bool   `json:"avx512"`
}

// Host inspects the current machine.
func Host() HostInfo {
	return HostInfo{
		Brand:         cpuid.CPU.BrandName,
		Vendor:        cpuid.CPU.VendorString,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		AVX2:          cpuid.CPU.Supports(cpuid.AVX2),
		FMA3:          cpuid.CPU.Supports(cpuid.FMA3),
		AVX512:        cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
	}
}

func logHost(logger *slog.Logger) {
	h := Host()
	logger.Info("numeric backend",
		"device", "cpu",
		"brand", h.Brand,
		"cores", h.PhysicalCores,
		"threads", h.LogicalCores,
		"gomaxprocs", h.GOMAXPROCS,
		"avx2", h.AVX2,
		"fma3", h.FMA3)
}

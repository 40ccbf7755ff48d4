package tuner

import (
	"runtime"
	"testing"
)

const (
	mib = int64(1) << 20
	gib = int64(1) << 30
)

func TestDetect(t *testing.T) {
	resources, err := Detect()
	if err != nil {
		t.Fatalf("Detect() returned error: %v", err)
	}

	if resources.CPUCores != runtime.NumCPU() {
		t.Errorf("CPUCores = %d, want %d (runtime.NumCPU())", resources.CPUCores, runtime.NumCPU())
	}
	if resources.TotalRAM <= 0 {
		t.Errorf("TotalRAM = %d, want > 0", resources.TotalRAM)
	}
	if resources.AvailableRAM < 0 || resources.AvailableRAM > resources.TotalRAM {
		t.Errorf("AvailableRAM = %d, want within [0, %d]", resources.AvailableRAM, resources.TotalRAM)
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name        string
		resources   SystemResources
		maxFileSize int64
		want        int
	}{
		{
			name:        "cpu bound on a roomy host",
			resources:   SystemResources{CPUCores: 8, TotalRAM: 16 * gib, AvailableRAM: 8 * gib},
			maxFileSize: 10 * mib,
			want:        9,
		},
		{
			name:        "memory bound with large files",
			resources:   SystemResources{CPUCores: 16, TotalRAM: 4 * gib, AvailableRAM: 2 * gib},
			maxFileSize: 100 * mib,
			want:        minWorkers, // 512MiB budget / 300MiB per worker = 1
		},
		{
			name:        "capped on a huge host",
			resources:   SystemResources{CPUCores: 256, TotalRAM: 1024 * gib, AvailableRAM: 512 * gib},
			maxFileSize: mib,
			want:        maxWorkers,
		},
		{
			name:        "single core",
			resources:   SystemResources{CPUCores: 1, TotalRAM: 2 * gib, AvailableRAM: gib},
			maxFileSize: mib,
			want:        minWorkers,
		},
		{
			name:        "unknown memory ignores the memory cap",
			resources:   SystemResources{CPUCores: 4},
			maxFileSize: 100 * mib,
			want:        5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.resources, tt.maxFileSize)
			if got.Workers != tt.want {
				t.Errorf("Workers = %d, want %d", got.Workers, tt.want)
			}
			if got.MemoryPerWorker != tt.maxFileSize*copiesPerFile {
				t.Errorf("MemoryPerWorker = %d, want %d", got.MemoryPerWorker, tt.maxFileSize*copiesPerFile)
			}
		})
	}
}

func TestCalculateWithOverride(t *testing.T) {
	resources := SystemResources{CPUCores: 4, TotalRAM: 8 * gib, AvailableRAM: 4 * gib}

	tests := []struct {
		name     string
		override int
		want     int
	}{
		{"zero keeps tuned value", 0, 5},
		{"negative keeps tuned value", -3, 5},
		{"positive wins", 12, 12},
		{"one is allowed", 1, 1},
		{"capped", 500, maxWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateWithOverride(resources, mib, tt.override)
			if got.Workers != tt.want {
				t.Errorf("Workers = %d, want %d", got.Workers, tt.want)
			}
		})
	}
}

package tuner

const (
	maxWorkers = 64
	minWorkers = 2

	// copiesPerFile counts the buffers one in-flight file can hold at once:
	// the rendered payload, its compressed or encrypted form and the
	// base64 text.
	copiesPerFile = 3

	// memoryFraction of available RAM may be held by in-flight files.
	memoryFraction = 0.25
)

// Config is the tuned generator setup.
type Config struct {
	// Workers is the size of the render/encode/write pool.
	Workers int

	// MemoryPerWorker is the worst-case heap one worker holds, in bytes.
	MemoryPerWorker int64
}

// Calculate sizes the pool for files of at most maxFileSize bytes.
//
// Rendering and encryption are CPU bound, so the pool starts at one worker
// per core plus one to cover write latency. It is then capped so that
// every worker holding its largest file still fits in a quarter of the
// available memory, and clamped to [2, 64].
func Calculate(resources SystemResources, maxFileSize int64) Config {
	workers := resources.CPUCores + 1

	perWorker := max(maxFileSize, 1) * copiesPerFile
	if resources.AvailableRAM > 0 {
		budget := int64(float64(resources.AvailableRAM) * memoryFraction)
		workers = min(workers, int(min(budget/perWorker, maxWorkers)))
	}

	workers = max(workers, minWorkers)
	workers = min(workers, maxWorkers)

	return Config{Workers: workers, MemoryPerWorker: perWorker}
}

// CalculateWithOverride returns Calculate's result unless override is
// positive, in which case it is used as the worker count (still capped at
// 64).
func CalculateWithOverride(resources SystemResources, maxFileSize int64, override int) Config {
	cfg := Calculate(resources, maxFileSize)
	if override > 0 {
		cfg.Workers = min(override, maxWorkers)
	}
	return cfg
}

//go:build !unix

package logging

import "os"

// Appends from a single process are already serialized by RotatingWriter.mu.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) {}

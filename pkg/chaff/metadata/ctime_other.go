//go:build !windows

package metadata

import "github.com/jamesainslie/chaff/pkg/chaff/types"

// CreationTimeSupported reports whether Apply sets creation times. Unix
// filesystems expose no portable way to set a birth time, so it keeps its
// natural value.
const CreationTimeSupported = false

func setCreationTime(string, types.TimestampTriple) error { return nil }

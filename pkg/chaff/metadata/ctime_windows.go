//go:build windows

package metadata

import (
	"golang.org/x/sys/windows"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// CreationTimeSupported reports whether Apply sets creation times.
const CreationTimeSupported = true

func setCreationTime(path string, ts types.TimestampTriple) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	h, err := windows.CreateFile(p, windows.FILE_WRITE_ATTRIBUTES, windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	created := windows.NsecToFiletime(ts.Created.UnixNano())
	accessed := windows.NsecToFiletime(ts.Accessed.UnixNano())
	modified := windows.NsecToFiletime(ts.Modified.UnixNano())
	return windows.SetFileTime(h, &created, &accessed, &modified)
}

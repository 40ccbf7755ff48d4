package encoding

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"filippo.io/age"
)

// maxArchiveWorkFactor bounds the scrypt cost a decoder will accept.
const maxArchiveWorkFactor = 30

// archive stores raw as the single entry of a zip container. The entry is
// age-encrypted to a scrypt passphrase recipient and named after the
// logical file, so listing the archive shows what is inside.
func archive(logicalName string, raw []byte, secret string, workFactor int) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(secret)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(workFactor)

	var sealed bytes.Buffer
	w, err := age.Encrypt(&sealed, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("encrypting archive entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive entry: %w", err)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	// Ciphertext does not deflate; store it.
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     path.Base(logicalName),
		Method:   zip.Store,
		Modified: time.Unix(0, 0).UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating zip entry: %w", err)
	}
	if _, err := fw.Write(sealed.Bytes()); err != nil {
		return nil, fmt.Errorf("writing zip entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing zip: %w", err)
	}
	return out.Bytes(), nil
}

func unarchive(data []byte, secret string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if len(zr.File) != 1 {
		return nil, fmt.Errorf("%w: archive holds %d entries, want 1", ErrCorrupt, len(zr.File))
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer rc.Close()

	identity, err := age.NewScryptIdentity(secret)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	identity.SetMaxWorkFactor(maxArchiveWorkFactor)

	r, err := age.Decrypt(rc, identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) || errors.Is(err, age.ErrIncorrectIdentity) {
			return nil, ErrWrongSecret
		}
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return raw, nil
}

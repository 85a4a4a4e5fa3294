package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"devsync/internal"
	"devsync/internal/cleaner"
)

type Loader struct {
	source  Source
	archive *ArchiveStore
}

func NewLoader(src Source, archiveDir string) *Loader {
	return &Loader{source: src, archive: NewArchiveStore(archiveDir)}
}

// IsMissing reports whether err means the export has not been dropped yet.
func IsMissing(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// Load reads, archives and decodes one export. When decoding fails the
// returned file still carries the path and hash so the failure can be
// recorded against it.
func (l *Loader) Load(ctx context.Context, name, delimiter string) (internal.ExportFile, error) {
	raw, err := l.source.Read(ctx, name)
	if err != nil {
		return internal.ExportFile{}, err
	}

	hash, _, err := l.archive.Store(raw)
	if err != nil {
		return internal.ExportFile{}, fmt.Errorf("archive %s: %w", raw.Name, err)
	}
	file := internal.ExportFile{Path: raw.Path, Hash: hash}

	text, err := DecodeFile(raw.Name, raw.Raw, delimiter)
	if err != nil {
		return file, err
	}
	file.Text = text
	return file, nil
}

// DecodeFile turns an export's bytes into cleaner input. Workbooks are
// flattened with delimiter; everything else is decoded as text.
func DecodeFile(name string, raw []byte, delimiter string) (string, error) {
	if isWorkbook(name) {
		text, err := FlattenWorkbook(raw, delimiter)
		if err != nil {
			return "", fmt.Errorf("%w: %v", cleaner.ErrUndecodable, err)
		}
		return text, nil
	}
	return cleaner.Decode(raw)
}

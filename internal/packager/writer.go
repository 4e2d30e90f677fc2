package packager

import (
	"fmt"
	"os"
	"path/filepath"
)

// Output locates a bundle written to disk.
type Output struct {
	Dir         string
	ArchivePath string
}

// Writer lays bundles out under Root as bot_<id>/ and bot_<id>.zip.
type Writer struct {
	Root string
}

func NewWriter(root string) *Writer {
	return &Writer{Root: root}
}

// Write stages the file set in a temporary directory and swaps it into place,
// so a failure never leaves a half-written bundle behind.
func (w *Writer) Write(botID int64, set FileSet, archive []byte) (Output, error) {
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return Output{}, fmt.Errorf("create bundle root: %w", err)
	}

	name := fmt.Sprintf("bot_%d", botID)
	out := Output{
		Dir:         filepath.Join(w.Root, name),
		ArchivePath: filepath.Join(w.Root, name+".zip"),
	}

	staging, err := os.MkdirTemp(w.Root, "."+name+"-")
	if err != nil {
		return Output{}, fmt.Errorf("create staging dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	for _, f := range set {
		path := filepath.Join(staging, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Output{}, fmt.Errorf("create dir for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(path, f.Content, f.Mode); err != nil {
			return Output{}, fmt.Errorf("write %s: %w", f.Path, err)
		}
		// umask may have stripped the executable bit
		if err := os.Chmod(path, f.Mode); err != nil {
			return Output{}, fmt.Errorf("chmod %s: %w", f.Path, err)
		}
	}

	archiveTmp := filepath.Join(staging, name+".zip")
	if err := os.WriteFile(archiveTmp, archive, modeFile); err != nil {
		return Output{}, fmt.Errorf("write archive: %w", err)
	}
	if err := os.Rename(archiveTmp, out.ArchivePath); err != nil {
		return Output{}, fmt.Errorf("move archive: %w", err)
	}

	if err := os.RemoveAll(out.Dir); err != nil {
		return Output{}, fmt.Errorf("replace bundle dir: %w", err)
	}
	if err := os.Rename(staging, out.Dir); err != nil {
		return Output{}, fmt.Errorf("move bundle dir: %w", err)
	}
	committed = true
	return out, nil
}

package exporter

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
)

var disableConfigDir sync.Once

// pdfConfig returns a relaxed pdfcpu configuration that never touches the
// user's config directory.
func pdfConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Verify parses data as a PDF and returns its page count. A document pdfcpu
// cannot read, or one without pages, is rejected with ErrInvalidArtifact.
func Verify(data []byte) (int, error) {
	pages, err := api.PageCount(bytes.NewReader(data), pdfConfig())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if pages == 0 {
		return 0, fmt.Errorf("%w: document has no pages", ErrInvalidArtifact)
	}
	return pages, nil
}

// Merge concatenates the PDFs at paths, in order, into out.
func Merge(fs afero.Fs, paths []string, out string) error {
	if len(paths) == 0 {
		return fmt.Errorf("nothing to merge")
	}

	readers := make([]io.ReadSeeker, 0, len(paths))
	for _, p := range paths {
		f, err := fs.Open(p)
		if err != nil {
			closeAll(readers)
			return fmt.Errorf("failed to open %s: %w", p, err)
		}
		readers = append(readers, f)
	}
	defer closeAll(readers)

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, pdfConfig()); err != nil {
		return fmt.Errorf("failed to merge %d documents: %w", len(paths), err)
	}

	if err := fs.MkdirAll(filepath.Dir(out), dirPerm); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(out), err)
	}
	if err := afero.WriteFile(fs, out, buf.Bytes(), filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return nil
}

// MergeArtifacts merges the export's artifacts in index order into the
// configured merge file and returns its path.
func (e *Exporter) MergeArtifacts(artifacts []schemas.Artifact) (string, error) {
	paths := make([]string, len(artifacts))
	for _, a := range artifacts {
		if a.Index < 0 || a.Index >= len(paths) {
			return "", fmt.Errorf("artifact index %d out of range", a.Index)
		}
		paths[a.Index] = a.Path
	}
	out := filepath.Join(e.cfg.OutputDir, e.cfg.MergeFile)
	if err := Merge(e.fs, paths, out); err != nil {
		return "", err
	}
	e.logger.Info("Merged invoices.", zap.Int("documents", len(paths)), zap.String("path", out))
	return out, nil
}

func closeAll(readers []io.ReadSeeker) {
	for _, r := range readers {
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// File: internal/exporter/exporter.go
// Description: Renders one print-layout PDF per collected record id. Output
// files are numbered by the id's position in the collected list.

package exporter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/browser/session"
	"github.com/xkilldash9x/ledger-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidArtifact is returned when verification rejects a rendered PDF.
var ErrInvalidArtifact = errors.New("rendered document is not a valid PDF")

// ManifestName is the file in the output directory that lists every artifact
// written by the current run.
const ManifestName = "manifest.json"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Manifest describes the artifacts of one export.
type Manifest struct {
	UpdatedAt time.Time          `json:"updated_at"`
	Artifacts []schemas.Artifact `json:"artifacts"`
}

type Exporter struct {
	cfg      config.ExporterConfig
	fs       afero.Fs
	pageLoad time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(fs afero.Fs, cfg config.ExporterConfig, pageLoad time.Duration, logger *zap.Logger) *Exporter {
	return &Exporter{
		cfg:      cfg,
		fs:       fs,
		pageLoad: pageLoad,
		logger:   logger.Named("exporter"),
		now:      time.Now,
	}
}

// RenderURL is the print view of the record.
func (e *Exporter) RenderURL(id schemas.RecordID) string {
	return strings.ReplaceAll(e.cfg.PrintURL, config.IDPlaceholder, url.QueryEscape(id.String()))
}

// PathFor is the output path of the i-th record.
func (e *Exporter) PathFor(i int) string {
	return filepath.Join(e.cfg.OutputDir, e.cfg.FilePrefix+strconv.Itoa(i)+".pdf")
}

// Export writes one PDF per id, in order. The first failure ends the export;
// the artifacts written before it are returned with the error and stay on disk.
func (e *Exporter) Export(ctx context.Context, page schemas.Page, ids []schemas.RecordID) ([]schemas.Artifact, error) {
	if err := e.fs.MkdirAll(e.cfg.OutputDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	artifacts := make([]schemas.Artifact, 0, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return artifacts, err
		}
		artifact, err := e.exportOne(ctx, page, i, id)
		if err != nil {
			return artifacts, fmt.Errorf("export of record %d (%s) failed: %w", i, id, err)
		}
		artifacts = append(artifacts, artifact)

		if err := e.writeManifest(artifacts); err != nil {
			return artifacts, err
		}
		e.logger.Info("Invoice saved.",
			zap.Int("index", i),
			zap.String("record_id", id.String()),
			zap.String("path", artifact.Path))
	}
	return artifacts, nil
}

func (e *Exporter) exportOne(ctx context.Context, page schemas.Page, i int, id schemas.RecordID) (schemas.Artifact, error) {
	target := e.RenderURL(id)
	artifact := schemas.Artifact{Index: i, RecordID: id, URL: target, Path: e.PathFor(i)}

	err := session.WithBound(ctx, e.pageLoad, "navigate to "+target, func(c context.Context) error {
		return page.Navigate(c, target)
	})
	if err != nil {
		return artifact, err
	}
	if err := page.WaitForLoad(ctx, e.pageLoad); err != nil {
		return artifact, err
	}
	if err := page.EmulatePrintMedia(ctx); err != nil {
		return artifact, err
	}

	var data []byte
	err = session.WithBound(ctx, e.pageLoad, "render "+target, func(c context.Context) error {
		var err error
		data, err = page.PrintToPDF(c)
		return err
	})
	if err != nil {
		return artifact, err
	}

	if e.cfg.Verify {
		pages, err := Verify(data)
		if err != nil {
			return artifact, err
		}
		artifact.Pages = pages
	}

	if err := afero.WriteFile(e.fs, artifact.Path, data, filePerm); err != nil {
		return artifact, fmt.Errorf("failed to write %s: %w", artifact.Path, err)
	}
	artifact.Bytes = len(data)
	return artifact, nil
}

// writeManifest replaces the manifest so it lists exactly the artifacts
// written so far.
func (e *Exporter) writeManifest(artifacts []schemas.Artifact) error {
	raw, err := json.MarshalIndent(Manifest{UpdatedAt: e.now().UTC(), Artifacts: artifacts}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := filepath.Join(e.cfg.OutputDir, ManifestName)
	tmp := path + ".tmp"
	if err := afero.WriteFile(e.fs, tmp, raw, filePerm); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := e.fs.Rename(tmp, path); err != nil {
		_ = e.fs.Remove(tmp)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest from dir.
func ReadManifest(fs afero.Fs, dir string) (*Manifest, error) {
	raw, err := afero.ReadFile(fs, filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

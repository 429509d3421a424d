package exporter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/browser/fake"
	"github.com/xkilldash9x/ledger-cli/internal/config"
	"github.com/xkilldash9x/ledger-cli/internal/mocks"
)

func newExporter(t *testing.T, mutate ...func(*config.ExporterConfig)) (*Exporter, afero.Fs) {
	t.Helper()
	cfg := config.NewDefaultConfig().Exporter()
	cfg.PrintURL = "https://shop.test/print.html?orderID={id}&ref=invoice"
	for _, m := range mutate {
		m(&cfg)
	}
	fs := afero.NewMemMapFs()
	e := New(fs, cfg, 10*time.Second, zaptest.NewLogger(t))
	e.now = func() time.Time { return time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC) }
	return e, fs
}

func TestRenderURLAndPath(t *testing.T) {
	e, _ := newExporter(t)

	assert.Equal(t, "https://shop.test/print.html?orderID=112-0001&ref=invoice", e.RenderURL("112-0001"))
	assert.Equal(t, "https://shop.test/print.html?orderID=a%26b+c&ref=invoice", e.RenderURL("a&b c"))
	assert.Equal(t, filepath.Join("invoices", "invoice_7.pdf"), e.PathFor(7))
}

// Each id lands in the file numbered by its position in the list.
func TestExport_IndexMatchesPosition(t *testing.T) {
	ctx := context.Background()
	e, fs := newExporter(t)
	page := fake.NewPage()
	ids := []schemas.RecordID{"a", "b", "c"}

	artifacts, err := e.Export(ctx, page, ids)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	pdfs, err := afero.Glob(fs, filepath.Join("invoices", "*.pdf"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join("invoices", "invoice_0.pdf"),
		filepath.Join("invoices", "invoice_1.pdf"),
		filepath.Join("invoices", "invoice_2.pdf"),
	}, pdfs)

	for i, id := range ids {
		assert.Equal(t, i, artifacts[i].Index)
		assert.Equal(t, id, artifacts[i].RecordID)

		data, err := afero.ReadFile(fs, e.PathFor(i))
		require.NoError(t, err)
		assert.Contains(t, string(data), "rendering of "+e.RenderURL(id), "file %d holds record %s", i, id)
		assert.Equal(t, len(data), artifacts[i].Bytes)
	}
	assert.Equal(t, []string{e.RenderURL("a"), e.RenderURL("b"), e.RenderURL("c")}, page.Printed())
}

func TestExport_ReplacesPreviousRunFiles(t *testing.T) {
	e, fs := newExporter(t)
	require.NoError(t, fs.MkdirAll("invoices", 0o755))
	require.NoError(t, afero.WriteFile(fs, e.PathFor(0), []byte("stale"), 0o644))

	_, err := e.Export(context.Background(), fake.NewPage(), []schemas.RecordID{"fresh"})
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, e.PathFor(0))
	require.NoError(t, err)
	assert.NotEqual(t, "stale", string(data))
}

func TestExport_NoIDs(t *testing.T) {
	e, fs := newExporter(t)

	artifacts, err := e.Export(context.Background(), fake.NewPage(), nil)
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	exists, err := afero.DirExists(fs, "invoices")
	require.NoError(t, err)
	assert.True(t, exists, "output directory is created even when nothing is exported")
}

func TestExport_TimeoutAbortsLoop(t *testing.T) {
	e, fs := newExporter(t)
	timeout := fmt.Errorf("wait for page load after 10s: %w", schemas.ErrTimeout)
	page := fake.NewPage().FailLoad(e.RenderURL("b"), timeout)

	artifacts, err := e.Export(context.Background(), page, []schemas.RecordID{"a", "b", "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrTimeout)
	require.Len(t, artifacts, 1, "the artifact written before the failure is reported")

	exists, _ := afero.Exists(fs, e.PathFor(0))
	assert.True(t, exists, "earlier files stay on disk")
	for _, i := range []int{1, 2} {
		exists, _ := afero.Exists(fs, e.PathFor(i))
		assert.False(t, exists, "no file for record %d", i)
	}
	assert.Equal(t, []string{e.RenderURL("a")}, page.Printed(), "no retry, no skip-and-continue")

	m, err := ReadManifest(fs, "invoices")
	require.NoError(t, err)
	assert.Len(t, m.Artifacts, 1)
}

func TestExport_StepOrder(t *testing.T) {
	ctx := context.Background()
	e, _ := newExporter(t)
	target := e.RenderURL("a")

	page := new(mocks.MockPage)
	var order []string
	record := func(step string) func(mock.Arguments) { return func(mock.Arguments) { order = append(order, step) } }
	page.On("Navigate", mock.Anything, target).Return(nil).Run(record("navigate")).Once()
	page.On("WaitForLoad", ctx, 10*time.Second).Return(nil).Run(record("load")).Once()
	page.On("EmulatePrintMedia", ctx).Return(nil).Run(record("media")).Once()
	page.On("PrintToPDF", mock.Anything).Return(fake.MinimalPDF(1, ""), nil).Run(record("print")).Once()

	_, err := e.Export(ctx, page, []schemas.RecordID{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"navigate", "load", "media", "print"}, order)
	page.AssertExpectations(t)
}

func TestExport_PrintFailure(t *testing.T) {
	e, _ := newExporter(t)
	page := fake.NewPage().WithPDF(func(string) ([]byte, error) { return nil, errors.New("printing failed") })

	artifacts, err := e.Export(context.Background(), page, []schemas.RecordID{"a"})
	require.Error(t, err)
	assert.Empty(t, artifacts)
}

func TestExport_ContextCancelled(t *testing.T) {
	e, _ := newExporter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Export(ctx, fake.NewPage(), []schemas.RecordID{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExport_Manifest(t *testing.T) {
	e, fs := newExporter(t)

	_, err := e.Export(context.Background(), fake.NewPage(), []schemas.RecordID{"a", "b"})
	require.NoError(t, err)

	m, err := ReadManifest(fs, "invoices")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC), m.UpdatedAt)
	require.Len(t, m.Artifacts, 2)
	assert.Equal(t, schemas.RecordID("b"), m.Artifacts[1].RecordID)
	assert.Equal(t, e.PathFor(1), m.Artifacts[1].Path)
	assert.Zero(t, m.Artifacts[1].Pages, "pages are only counted when verifying")

	tmpExists, _ := afero.Exists(fs, filepath.Join("invoices", ManifestName+".tmp"))
	assert.False(t, tmpExists)
}

func TestExport_Verify(t *testing.T) {
	verify := func(c *config.ExporterConfig) { c.Verify = true }

	t.Run("ValidDocumentsRecordPageCount", func(t *testing.T) {
		e, _ := newExporter(t, verify)
		page := fake.NewPage().WithPDF(func(url string) ([]byte, error) { return fake.MinimalPDF(2, url), nil })

		artifacts, err := e.Export(context.Background(), page, []schemas.RecordID{"a"})
		require.NoError(t, err)
		assert.Equal(t, 2, artifacts[0].Pages)
	})

	t.Run("GarbageIsRejectedBeforeWriting", func(t *testing.T) {
		e, fs := newExporter(t, verify)
		page := fake.NewPage().WithPDF(func(string) ([]byte, error) { return []byte("<html>error page</html>"), nil })

		_, err := e.Export(context.Background(), page, []schemas.RecordID{"a"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidArtifact)

		exists, _ := afero.Exists(fs, e.PathFor(0))
		assert.False(t, exists)
	})
}

func TestMergeArtifacts(t *testing.T) {
	e, fs := newExporter(t)
	page := fake.NewPage().WithPDF(func(url string) ([]byte, error) { return fake.MinimalPDF(1, url), nil })

	artifacts, err := e.Export(context.Background(), page, []schemas.RecordID{"a", "b", "c"})
	require.NoError(t, err)

	out, err := e.MergeArtifacts(artifacts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("invoices", "invoices_merged.pdf"), out)

	data, err := afero.ReadFile(fs, out)
	require.NoError(t, err)
	pages, err := Verify(data)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestMerge_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	assert.Error(t, Merge(fs, nil, "out.pdf"))
	assert.Error(t, Merge(fs, []string{"missing.pdf"}, "out.pdf"))
}

func TestVerify(t *testing.T) {
	pages, err := Verify(fake.MinimalPDF(3, "three pages"))
	require.NoError(t, err)
	assert.Equal(t, 3, pages)

	_, err = Verify(nil)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

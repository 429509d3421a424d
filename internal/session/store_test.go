package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/browser/fake"
	"github.com/xkilldash9x/ledger-cli/internal/mocks"
)

const statePath = "playwright/.auth/auth_state.json"

func sampleState() *schemas.StorageState {
	return &schemas.StorageState{
		Cookies: []schemas.Cookie{
			{Name: "at-main", Value: "Atza|1", Domain: ".amazon.com", Path: "/", Expires: 1767225600, Secure: true, HTTPOnly: true},
			{Name: "i18n-prefs", Value: "USD", Domain: ".amazon.com", Path: "/", Expires: -1},
		},
		Origins: []schemas.OriginState{
			{Origin: "https://www.amazon.com", LocalStorage: []schemas.NameValue{{Name: "csm:adb", Value: "adblk_no"}}},
		},
	}
}

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewStore(fs, statePath, zaptest.NewLogger(t)), fs
}

func TestStore_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("NoFileStartsFresh", func(t *testing.T) {
		store, _ := newTestStore(t)
		page := new(mocks.MockPage)
		browser := new(mocks.MockBrowser)
		browser.On("NewPage", ctx, (*schemas.StorageState)(nil)).Return(page, nil).Once()

		got, err := store.Restore(ctx, browser)
		require.NoError(t, err)
		assert.Same(t, page, got)
		browser.AssertExpectations(t)
	})

	t.Run("SavedFileIsRestored", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.Save(sampleState()))

		browser := new(mocks.MockBrowser)
		browser.On("NewPage", ctx, sampleState()).Return(new(mocks.MockPage), nil).Once()

		_, err := store.Restore(ctx, browser)
		require.NoError(t, err)
		browser.AssertExpectations(t)
	})

	t.Run("CorruptFileIsLoggedAndIgnored", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, statePath, []byte(`{"cookies": [`), 0o600))

		core, logs := observer.New(zap.WarnLevel)
		store := NewStore(fs, statePath, zap.New(core))

		browser := new(mocks.MockBrowser)
		browser.On("NewPage", ctx, (*schemas.StorageState)(nil)).Return(new(mocks.MockPage), nil).Once()

		_, err := store.Restore(ctx, browser)
		require.NoError(t, err, "restore never fails because of the file")
		browser.AssertExpectations(t)

		require.Equal(t, 1, logs.Len())
		assert.Contains(t, logs.All()[0].Message, "Ignoring unusable session file")
	})

	t.Run("BrowserErrorPropagates", func(t *testing.T) {
		store, _ := newTestStore(t)
		browser := new(mocks.MockBrowser)
		browser.On("NewPage", ctx, mock.Anything).Return(nil, errors.New("target crashed")).Once()

		page, err := store.Restore(ctx, browser)
		require.Error(t, err)
		assert.Nil(t, page)
		assert.Contains(t, err.Error(), "target crashed")
	})
}

func TestStore_Persist(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesDirectoriesAndWritesPrivateFile", func(t *testing.T) {
		store, fs := newTestStore(t)
		page := new(mocks.MockPage)
		page.On("StorageState", ctx).Return(sampleState(), nil).Once()

		require.NoError(t, store.Persist(ctx, page))

		info, err := fs.Stat(statePath)
		require.NoError(t, err)
		assert.Equal(t, "-rw-------", info.Mode().Perm().String())

		tmpExists, err := afero.Exists(fs, statePath+".tmp")
		require.NoError(t, err)
		assert.False(t, tmpExists, "the temporary file is renamed away")

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, sampleState(), loaded)
	})

	t.Run("OverwritesUnconditionally", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.Save(sampleState()))

		replacement := &schemas.StorageState{Cookies: []schemas.Cookie{{Name: "only", Value: "1", Expires: -1}}}
		page := new(mocks.MockPage)
		page.On("StorageState", ctx).Return(replacement, nil).Once()
		require.NoError(t, store.Persist(ctx, page))

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, replacement.Cookies, loaded.Cookies)
		assert.Empty(t, loaded.Origins, "no merge with the previous snapshot")
	})

	t.Run("SnapshotFailureLeavesNoFile", func(t *testing.T) {
		store, _ := newTestStore(t)
		page := new(mocks.MockPage)
		page.On("StorageState", ctx).Return(nil, errors.New("target closed")).Once()

		err := store.Persist(ctx, page)
		require.Error(t, err)
		exists, _ := store.Exists()
		assert.False(t, exists)
	})
}

// A session persisted from an authenticated page, then restored into a fresh
// browser, navigates like the original: the protected page is reachable
// without another sign-in.
func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	const listing = "https://shop.test/your-orders/orders?timeFilter=year-2024"
	const signin = "https://shop.test/ap/signin"

	store, _ := newTestStore(t)

	original := fake.NewPage().WithLogin("at-main", signin).WithListing(listing, "<p>orders</p>")
	require.NoError(t, original.Navigate(ctx, listing))
	original.CompleteLogin(listing)
	landed, err := original.WaitForNavigation(ctx)
	require.NoError(t, err)
	require.Equal(t, listing, landed)
	require.NoError(t, store.Persist(ctx, original))

	restoredPage := fake.NewPage().WithLogin("at-main", signin).WithListing(listing, "<p>orders</p>")
	browser := fake.NewBrowser(restoredPage)
	page, err := store.Restore(ctx, browser)
	require.NoError(t, err)

	require.NoError(t, page.Navigate(ctx, listing))
	url, err := page.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, listing, url, "restored context must not be sent to sign-in")

	want, _ := original.StorageState(ctx)
	got, _ := page.StorageState(ctx)
	assert.Equal(t, want, got)
}

func TestStore_ClearAndSummary(t *testing.T) {
	store, fs := newTestStore(t)

	_, err := store.Summary()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.NoError(t, store.Clear(), "clearing a missing session is not an error")

	require.NoError(t, store.Save(sampleState()))
	summary, err := store.Summary()
	require.NoError(t, err)
	assert.Equal(t, statePath, summary.Path)
	assert.Equal(t, 2, summary.Cookies)
	assert.Equal(t, 1, summary.Origins)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), summary.EarliestExpiry)
	assert.False(t, summary.ModTime.IsZero())

	require.NoError(t, store.Clear())
	exists, err := afero.Exists(fs, statePath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_Load(t *testing.T) {
	store, fs := newTestStore(t)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, fs.MkdirAll("playwright/.auth", 0o700))
	require.NoError(t, afero.WriteFile(fs, statePath, []byte("not json"), 0o600))
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrCorruptSession)
}

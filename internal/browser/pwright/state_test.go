package pwright

import (
	"errors"
	"os"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
)

func TestDecodeState(t *testing.T) {
	raw := []byte(`{
  "cookies": [{"name": "session-id", "value": "1", "domain": ".amazon.com", "path": "/", "expires": 1767225600, "httpOnly": false, "secure": true, "sameSite": "Lax"},
              {"name": "ubid", "value": "2", "domain": ".amazon.com", "path": "/", "expires": -1, "httpOnly": true, "secure": true, "sameSite": null}],
  "origins": [{"origin": "https://www.amazon.com", "localStorage": [{"name": "k", "value": "v"}]}]
}`)

	state, err := decodeState(raw)
	require.NoError(t, err)
	require.Len(t, state.Cookies, 2)
	assert.Equal(t, schemas.CookieSameSiteLax, state.Cookies[0].SameSite)
	assert.Empty(t, state.Cookies[1].SameSite)
	assert.True(t, state.Cookies[1].IsSession())
	require.NotNil(t, state.Origin("https://www.amazon.com"))
}

func TestDecodeState_EmptyListsAreNotNil(t *testing.T) {
	state, err := decodeState([]byte(`{}`))
	require.NoError(t, err)
	assert.NotNil(t, state.Cookies)
	assert.NotNil(t, state.Origins)

	_, err = decodeState([]byte(`{"cookies": {`))
	assert.Error(t, err)
}

func TestWriteStateFile(t *testing.T) {
	dir := t.TempDir()
	original := &schemas.StorageState{
		Cookies: []schemas.Cookie{{Name: "at-main", Value: "Atza|x", Domain: ".amazon.com", Path: "/", Expires: 1767225600, Secure: true}},
		Origins: []schemas.OriginState{{Origin: "https://www.amazon.com", LocalStorage: []schemas.NameValue{{Name: "k", Value: "v"}}}},
	}

	path, err := writeStateFile(dir, original)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded, err := decodeState(raw)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestMapTimeout(t *testing.T) {
	err := mapTimeout("wait for page load", playwright.ErrTimeout)
	assert.ErrorIs(t, err, schemas.ErrTimeout)

	other := mapTimeout("click", errors.New("element detached"))
	assert.NotErrorIs(t, other, schemas.ErrTimeout)
	assert.Contains(t, other.Error(), "click: element detached")
}

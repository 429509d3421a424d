package pwright

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// The snapshot format is Playwright's own storage-state layout, so the
// conversions below are plain re-encodings.

// fromPlaywrightState converts a context snapshot to the shared schema.
func fromPlaywrightState(st *playwright.StorageState) (*schemas.StorageState, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode storage state: %w", err)
	}
	return decodeState(raw)
}

func decodeState(raw []byte) (*schemas.StorageState, error) {
	state := &schemas.StorageState{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("failed to decode storage state: %w", err)
	}
	if state.Cookies == nil {
		state.Cookies = []schemas.Cookie{}
	}
	if state.Origins == nil {
		state.Origins = []schemas.OriginState{}
	}
	return state, nil
}

// writeStateFile stores state in a private temporary file for
// BrowserNewContextOptions.StorageStatePath. The caller removes the file.
func writeStateFile(dir string, state *schemas.StorageState) (string, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode storage state: %w", err)
	}

	f, err := os.CreateTemp(dir, "ledger-state-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create storage state file: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write storage state file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write storage state file: %w", err)
	}
	return f.Name(), nil
}

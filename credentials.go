package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ambisync/internal/config"
)

// BridgeCredentials is what a Hue bridge hands out on pairing.
type BridgeCredentials struct {
	Username  string `json:"username"`
	Clientkey string `json:"clientkey"`
}

// credentialsDir overrides the config directory in tests.
var credentialsDir string

func credentialsPath() (string, error) {
	dir := credentialsDir
	if dir == "" {
		d, err := config.Dir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	return filepath.Join(dir, "hue.json"), nil
}

// readCredentials returns all stored credentials keyed by bridge ID. A
// missing file is an empty store.
func readCredentials(path string) (map[string]BridgeCredentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]BridgeCredentials{}, nil
	}
	if err != nil {
		return nil, err
	}
	creds := map[string]BridgeCredentials{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return creds, nil
}

func writeCredentials(path string, creds map[string]BridgeCredentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadCredentials returns the credentials stored for bridgeID, if any.
func LoadCredentials(bridgeID string) (BridgeCredentials, bool, error) {
	path, err := credentialsPath()
	if err != nil {
		return BridgeCredentials{}, false, err
	}
	all, err := readCredentials(path)
	if err != nil {
		return BridgeCredentials{}, false, err
	}
	bc, ok := all[bridgeID]
	return bc, ok, nil
}

// SaveCredentials stores creds for bridgeID, keeping other bridges.
func SaveCredentials(bridgeID string, creds BridgeCredentials) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	all, err := readCredentials(path)
	if err != nil {
		// An unreadable store is replaced rather than blocking pairing.
		all = map[string]BridgeCredentials{}
	}
	all[bridgeID] = creds
	return writeCredentials(path, all)
}

// DeleteCredentials forgets bridgeID.
func DeleteCredentials(bridgeID string) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	all, err := readCredentials(path)
	if err != nil {
		return err
	}
	delete(all, bridgeID)
	return writeCredentials(path, all)
}

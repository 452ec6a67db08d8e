package main

import (
	"os"
	"path/filepath"
	"testing"
)

func setupCredentialsDir(t *testing.T) {
	t.Helper()
	credentialsDir = t.TempDir()
	t.Cleanup(func() { credentialsDir = "" })
}

func TestCredentials_RoundTrip(t *testing.T) {
	setupCredentialsDir(t)

	creds := BridgeCredentials{Username: "user1", Clientkey: "key1"}
	if err := SaveCredentials("bridge-1", creds); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	got, found, err := LoadCredentials("bridge-1")
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if !found {
		t.Fatal("expected credentials to be found")
	}
	if got.Username != "user1" || got.Clientkey != "key1" {
		t.Fatalf("got %+v, want username=user1 clientkey=key1", got)
	}
}

func TestCredentials_NoFile(t *testing.T) {
	setupCredentialsDir(t)

	_, found, err := LoadCredentials("bridge-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected credentials not found")
	}
}

func TestCredentials_UnknownBridge(t *testing.T) {
	setupCredentialsDir(t)

	if err := SaveCredentials("bridge-1", BridgeCredentials{Username: "u", Clientkey: "k"}); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	_, found, err := LoadCredentials("bridge-other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected credentials not found for missing bridge ID")
	}
}

func TestCredentials_Delete(t *testing.T) {
	setupCredentialsDir(t)

	if err := SaveCredentials("bridge-1", BridgeCredentials{Username: "u", Clientkey: "k"}); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	if err := DeleteCredentials("bridge-1"); err != nil {
		t.Fatalf("DeleteCredentials: %v", err)
	}

	_, found, err := LoadCredentials("bridge-1")
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if found {
		t.Fatal("expected credentials to be deleted")
	}
}

func TestCredentials_KeepsOtherBridges(t *testing.T) {
	setupCredentialsDir(t)

	stored := map[string]BridgeCredentials{
		"bridge-1": {Username: "user1", Clientkey: "key1"},
		"bridge-2": {Username: "user2", Clientkey: "key2"},
	}
	for id, c := range stored {
		if err := SaveCredentials(id, c); err != nil {
			t.Fatalf("SaveCredentials %s: %v", id, err)
		}
	}
	for id, want := range stored {
		got, found, err := LoadCredentials(id)
		if err != nil || !found {
			t.Fatalf("LoadCredentials %s: found=%v err=%v", id, found, err)
		}
		if got != want {
			t.Errorf("%s: got %+v, want %+v", id, got, want)
		}
	}

	if err := DeleteCredentials("bridge-1"); err != nil {
		t.Fatalf("DeleteCredentials: %v", err)
	}
	if _, found, _ := LoadCredentials("bridge-1"); found {
		t.Error("bridge-1 should be deleted")
	}
	if got, found, _ := LoadCredentials("bridge-2"); !found || got != stored["bridge-2"] {
		t.Errorf("bridge-2 should be unchanged, got %+v found=%v", got, found)
	}
}

func TestCredentials_CreatesPrivateFile(t *testing.T) {
	tmp := t.TempDir()
	credentialsDir = filepath.Join(tmp, "nested", "dir")
	t.Cleanup(func() { credentialsDir = "" })

	if err := SaveCredentials("b1", BridgeCredentials{Username: "u", Clientkey: "k"}); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	path := filepath.Join(credentialsDir, "hue.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("credentials file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("file permissions: got %o, want 0600", info.Mode().Perm())
	}
}

func TestCredentials_CorruptFile(t *testing.T) {
	setupCredentialsDir(t)

	if err := os.WriteFile(filepath.Join(credentialsDir, "hue.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := LoadCredentials("bridge-1"); err == nil {
		t.Fatal("expected error for a corrupt credentials file")
	}

	// Pairing again replaces the corrupt store.
	if err := SaveCredentials("bridge-1", BridgeCredentials{Username: "u", Clientkey: "k"}); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}
	if _, found, err := LoadCredentials("bridge-1"); err != nil || !found {
		t.Fatalf("LoadCredentials: found=%v err=%v", found, err)
	}
}

func TestCredentials_DeleteWithoutFile(t *testing.T) {
	setupCredentialsDir(t)

	if err := DeleteCredentials("bridge-1"); err != nil {
		t.Fatalf("DeleteCredentials: %v", err)
	}
}

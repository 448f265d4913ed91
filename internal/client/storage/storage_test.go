package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/atinyakov/chemora/internal/models"
)

func newTestStore(t *testing.T, kv KV) *CredentialStore {
	t.Helper()
	codec, err := NewCodecFromSecret([]byte("test-secret"))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return NewCredentialStore(kv, codec, nil)
}

func TestFileKV_FileNotExist(t *testing.T) {
	kv, err := OpenFileKV(filepath.Join(t.TempDir(), "nested", storageFile))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := kv.Get("auth"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileKV_SetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), storageFile)
	kv, err := OpenFileKV(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := kv.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// read back from disk
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var onDisk FileKV
	if err := json.Unmarshal(buf, &onDisk); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if string(onDisk.Entries["k"]) != "v" {
		t.Errorf("unexpected saved data: %+v", onDisk.Entries)
	}

	reopened, err := OpenFileKV(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := reopened.Get("k")
	if err != nil || string(got) != "v" {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}

	if err := reopened.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := reopened.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := reopened.Delete("k"); err != nil {
		t.Errorf("Delete of missing key returned %v", err)
	}
}

func TestFileKV_WriteErrors(t *testing.T) {
	t.Run("target is a directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), storageFile)
		kv, err := OpenFileKV(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := os.Mkdir(path, 0700); err != nil {
			t.Fatal(err)
		}
		if err := kv.Set("k", []byte("v")); err == nil {
			t.Error("expected Set to report the failed write")
		}
	})

	t.Run("device full", func(t *testing.T) {
		if _, err := os.Stat("/dev/full"); err != nil {
			t.Skip("/dev/full not available")
		}
		kv := &FileKV{path: "/dev/full", Entries: map[string][]byte{}}
		if err := kv.Set("k", []byte("v")); err == nil {
			t.Error("expected Set to report the failed flush")
		}
	})
}

func TestFileKV_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), storageFile)
	if err := os.WriteFile(path, []byte("not-json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileKV(path); err == nil {
		t.Error("expected decode error for corrupt file")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("redis", t.TempDir()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestCredentialStore_Backends(t *testing.T) {
	backends := []string{"file", "badger"}
	for _, b := range backends {
		t.Run(b, func(t *testing.T) {
			kv, err := Open(b, t.TempDir())
			if err != nil {
				t.Fatalf("Open(%s): %v", b, err)
			}
			s := newTestStore(t, kv)
			defer s.Close()

			if _, ok, err := s.LoadCredential(); err != nil || ok {
				t.Fatalf("empty store LoadCredential = ok %v, err %v", ok, err)
			}

			cred := models.Credential{Username: "alice", Password: "secret1"}
			if err := s.SaveCredential(cred); err != nil {
				t.Fatalf("SaveCredential: %v", err)
			}
			got, ok, err := s.LoadCredential()
			if err != nil || !ok || got != cred {
				t.Fatalf("LoadCredential = %+v, %v, %v", got, ok, err)
			}

			if err := s.ClearCredential(); err != nil {
				t.Fatalf("ClearCredential: %v", err)
			}
			if _, ok, _ := s.LoadCredential(); ok {
				t.Error("credential still present after clear")
			}
		})
	}
}

func TestCredentialStore_RegisteredUsers(t *testing.T) {
	kv, err := OpenFileKV(filepath.Join(t.TempDir(), storageFile))
	if err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t, kv)

	users, err := s.RegisteredUsers()
	if err != nil || len(users) != 0 {
		t.Fatalf("RegisteredUsers on empty = %v, %v", users, err)
	}
	for _, u := range []string{"bob", "carol", "bob"} {
		if err := s.AddRegisteredUser(u); err != nil {
			t.Fatalf("AddRegisteredUser(%s): %v", u, err)
		}
	}
	users, _ = s.RegisteredUsers()
	if len(users) != 2 || users[0] != "bob" || users[1] != "carol" {
		t.Errorf("users = %v; want [bob carol]", users)
	}
}

func TestCredentialStore_ForeignSecretIsAbsent(t *testing.T) {
	kv, err := OpenFileKV(filepath.Join(t.TempDir(), storageFile))
	if err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t, kv)
	if err := s.SaveCredential(models.Credential{Username: "u", Password: "p"}); err != nil {
		t.Fatal(err)
	}

	other, _ := NewCodecFromSecret([]byte("different"))
	s2 := NewCredentialStore(kv, other, nil)
	if _, ok, err := s2.LoadCredential(); ok || err != nil {
		t.Errorf("LoadCredential with foreign secret = ok %v, err %v; want false, nil", ok, err)
	}
}

package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Current().WalletAddress != "" {
		t.Fatal("expected empty session")
	}
}

func TestSavePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, _ := Open(path)
	if err := s.Save(Session{WalletAddress: "0xabc", ProfileName: "ada"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("re-open: %v", err)
	}
	got := s2.Current()
	if got.WalletAddress != "0xabc" || got.ProfileName != "ada" {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, _ := Open(path)
	_ = s.Save(Session{WalletAddress: "0xabc"})

	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if s.Current().WalletAddress != "" {
		t.Fatal("session not cleared in memory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("session file should be gone")
	}
}

func TestReconcilePrefersLiveAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, _ := Open(path)
	_ = s.Save(Session{WalletAddress: "0xstale", ProfileName: "old"})

	got := s.Reconcile("0xLIVE")
	if got.WalletAddress != "0xLIVE" {
		t.Fatalf("live address should win, got %+v", got)
	}
	if got.ProfileName != "" {
		t.Fatal("stale profile should be dropped with the stale address")
	}

	// Same address, case-insensitive: cached session survives.
	_ = s.Save(Session{WalletAddress: "0xlive", ProfileName: "ada"})
	got = s.Reconcile("0xLIVE")
	if got.ProfileName != "ada" {
		t.Fatalf("matching live address should keep cached profile, got %+v", got)
	}
}

package anacrolix

import (
	"os"
	"path/filepath"
	"testing"
)

const sintelHash = "08ada5a7a6183aae1e09d831df6748d566095a10"

func TestNormalizeIdentifierMagnet(t *testing.T) {
	got, ok := NormalizeIdentifier("magnet:?xt=urn:btih:08ADA5A7A6183AAE1E09D831DF6748D566095A10&dn=Sintel")
	if !ok {
		t.Fatal("expected magnet to normalize")
	}
	if got != sintelHash {
		t.Fatalf("got %q, want %q", got, sintelHash)
	}
}

func TestNormalizeIdentifierHex(t *testing.T) {
	got, ok := NormalizeIdentifier("08ADA5A7A6183AAE1E09D831DF6748D566095A10")
	if !ok || got != sintelHash {
		t.Fatalf("got %q ok=%v, want %q", got, ok, sintelHash)
	}
}

func TestNormalizeIdentifierURNPrefix(t *testing.T) {
	got, ok := NormalizeIdentifier("urn:btih:" + sintelHash)
	if !ok || got != sintelHash {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestNormalizeIdentifierBase32(t *testing.T) {
	// Base32 form of the same 20 bytes.
	got, ok := NormalizeIdentifier("BCW2LJ5GDA5K4HQJ3AY56Z2I2VTASWQQ")
	if !ok || got != sintelHash {
		t.Fatalf("got %q ok=%v, want %q", got, ok, sintelHash)
	}
}

func TestNormalizeIdentifierUnparseable(t *testing.T) {
	for _, raw := range []string{
		"",
		"https://example.com/sintel.torrent",
		"not-a-hash",
		"magnet:?xt=urn:btih:zz",
		"08ada5a7",
	} {
		if _, ok := NormalizeIdentifier(raw); ok {
			t.Errorf("expected %q not to normalize", raw)
		}
	}
}

func TestRemoveTorrentDataGuardsEscape(t *testing.T) {
	dir := t.TempDir()
	if err := removeTorrentData(dir, "../outside"); err == nil {
		t.Fatal("expected escape to be rejected")
	}
	if err := removeTorrentData(dir, "."); err == nil {
		t.Fatal("expected data dir root to be rejected")
	}
}

func TestRemoveTorrentData(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "Some Movie")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "movie.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := removeTorrentData(dir, "Some Movie"); err != nil {
		t.Fatalf("removeTorrentData: %v", err)
	}
	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Fatal("expected torrent data to be removed")
	}

	// Removing again is a no-op.
	if err := removeTorrentData(dir, "Some Movie"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

package tle

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheWriteAndLoadLatest(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 3)

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		data := []byte(noaa19Line1 + "\n" + noaa19Line2 + "\n")
		if i == 4 {
			data = []byte(hiberLine1 + "\n" + hiberLine2 + "\n")
		}
		if err := c.Write(data, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("got %d files after prune, want 3", len(files))
	}

	data, ts, err := c.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if want := base.Add(4 * time.Hour); !ts.Equal(want) {
		t.Errorf("ts = %v, want %v", ts, want)
	}
	if string(data) != hiberLine1+"\n"+hiberLine2+"\n" {
		t.Errorf("LoadLatest returned %q", data)
	}
}

func TestCacheReadsLegacyFiles(t *testing.T) {
	dir := t.TempDir()
	body := noaa19Line1 + "\n" + noaa19Line2 + "\n"
	if err := os.WriteFile(filepath.Join(dir, "tle_1700000000.txt"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	data, ts, err := NewCache(dir, 0).LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if ts.Unix() != 1_700_000_000 {
		t.Errorf("ts = %v", ts)
	}
	if string(data) != body {
		t.Errorf("data = %q", data)
	}
}

func TestCacheEmptyDir(t *testing.T) {
	c := NewCache(filepath.Join(t.TempDir(), "missing"), 1)
	if _, _, err := c.LoadLatest(); err == nil {
		t.Fatal("expected error for empty cache")
	}
}

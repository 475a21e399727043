package main

import (
	"crypto/tls"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestSplitHosts(t *testing.T) {
	got := splitHosts(" localhost, ,127.0.0.1,")
	want := []string{"localhost", "127.0.0.1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitHosts = %v; want %v", got, want)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	if err := run(dir, []string{"localhost"}, time.Hour); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := tls.LoadX509KeyPair(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key")); err != nil {
		t.Errorf("generated files are not a usable key pair: %v", err)
	}
}

func TestRun_NoHosts(t *testing.T) {
	if err := run(t.TempDir(), nil, time.Hour); err == nil {
		t.Error("expected error without hosts")
	}
}

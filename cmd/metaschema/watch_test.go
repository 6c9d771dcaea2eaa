package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create xml", fsnotify.Event{Name: "/s/oscal_catalog_metaschema.xml", Op: fsnotify.Create}, true},
		{"write xml", fsnotify.Event{Name: "/s/catalog.XML", Op: fsnotify.Write}, true},
		{"remove xml", fsnotify.Event{Name: "/s/catalog.xml", Op: fsnotify.Remove}, true},
		{"rename xml", fsnotify.Event{Name: "/s/catalog.xml", Op: fsnotify.Rename}, true},
		{"chmod xml", fsnotify.Event{Name: "/s/catalog.xml", Op: fsnotify.Chmod}, false},
		{"hidden file", fsnotify.Event{Name: "/s/.catalog.xml", Op: fsnotify.Write}, false},
		{"other extension", fsnotify.Event{Name: "/s/catalog.json", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(tt.ev))
		})
	}
}

func TestWatchLoop(t *testing.T) {
	dir := t.TempDir()
	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, addTree(w, dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, w, 20*time.Millisecond, func(changed []string) {
			changes <- changed
		})
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oscal_catalog_metaschema.xml"), []byte("<a/>"), 0o644))

	select {
	case changed := <-changes:
		assert.Equal(t, []string{"oscal_catalog_metaschema.xml"}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after writing a schema file")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}

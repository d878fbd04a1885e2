// manager_test.go - Tests for the export file store
package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleExport = `[{"data":{"Name":"Class","Value":"IfcPipeSegment"}}]`

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	if _, err := NewLocalStore(dir); err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Expected upload directory to be created")
	}
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves export from reader", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("selectedElementData.json", strings.NewReader(sampleExport))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if info.Size != int64(len(sampleExport)) {
			t.Errorf("Expected size %d, got %d", len(sampleExport), info.Size)
		}
		if info.Status != StatusUploaded {
			t.Errorf("Expected status %q, got %q", StatusUploaded, info.Status)
		}

		data, err := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		if err != nil {
			t.Fatalf("Failed to read saved file: %v", err)
		}
		if string(data) != sampleExport {
			t.Errorf("Saved content mismatch: %s", data)
		}
	})

	t.Run("saves bytes", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.SaveBytes("export.json", []byte("{}"))
		if err != nil {
			t.Fatalf("Failed to save bytes: %v", err)
		}
		path, err := store.GetFilePath(info.ID)
		if err != nil {
			t.Fatalf("GetFilePath failed: %v", err)
		}
		if filepath.Base(path) != info.ID {
			t.Errorf("Expected file named by ID, got %s", path)
		}
	})
}

func TestLocalStore_ReturnsCopies(t *testing.T) {
	store := createTestStore(t)
	info, _ := store.SaveBytes("a.json", []byte("{}"))

	info.Name = "mutated"
	got, err := store.Get(info.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "a.json" {
		t.Errorf("Expected stored metadata to be unaffected, got %q", got.Name)
	}
}

func TestLocalStore_List(t *testing.T) {
	store := createTestStore(t)

	ids := make([]string, 3)
	for i := range ids {
		info, err := store.SaveBytes("export.json", []byte("[]"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		ids[i] = info.ID
		time.Sleep(10 * time.Millisecond)
	}

	files, err := store.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(files))
	}
	if files[0].ID != ids[2] {
		t.Error("Expected newest file first")
	}

	all, _ := store.List(0)
	if len(all) != 3 {
		t.Errorf("Expected no limit for 0, got %d files", len(all))
	}
}

func TestLocalStore_DeleteRenameStatus(t *testing.T) {
	store := createTestStore(t)
	info, _ := store.SaveBytes("export.json", []byte("[]"))

	renamed, err := store.Rename(info.ID, "level-1.json")
	if err != nil || renamed.Name != "level-1.json" {
		t.Fatalf("Rename failed: %v %+v", err, renamed)
	}

	if err := store.SetStatus(info.ID, StatusSimplified); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	got, _ := store.Get(info.ID)
	if got.Status != StatusSimplified {
		t.Errorf("Expected status %q, got %q", StatusSimplified, got.Status)
	}

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.uploadDir, info.ID)); !os.IsNotExist(err) {
		t.Error("Physical file should be deleted")
	}

	if err := store.Delete(info.ID); err == nil {
		t.Error("Expected error deleting twice")
	}
	if _, err := store.Rename("missing", "x"); err == nil {
		t.Error("Expected error renaming missing file")
	}
	if err := store.SetStatus("missing", StatusError); err == nil {
		t.Error("Expected error for missing file status")
	}
	if _, err := store.GetFilePath("missing"); err == nil {
		t.Error("Expected error for missing file path")
	}
}

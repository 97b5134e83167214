package store

import (
	"fmt"
	"testing"

	"github.com/dperrin/gather/internal/model"
)

func TestCreateBackupLifecycle(t *testing.T) {
	db := testDB(t)
	s := NewBackupStore(db)

	b, err := s.Create("backup-2026.db.enc", "backups/backup-2026.db.enc")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.Status != model.BackupStatusPending {
		t.Errorf("status = %q, want pending", b.Status)
	}

	if err := s.UpdateStatus(b.ID, model.BackupStatusUploading, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := s.UpdateCompleted(b.ID, 4096); err != nil {
		t.Fatalf("update completed: %v", err)
	}

	got, err := s.GetByID(b.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Status != model.BackupStatusCompleted || got.SizeBytes != 4096 {
		t.Errorf("got %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestBackupFailedKeepsError(t *testing.T) {
	db := testDB(t)
	s := NewBackupStore(db)

	b, _ := s.Create("backup.db.enc", "backups/backup.db.enc")
	if err := s.UpdateStatus(b.ID, model.BackupStatusFailed, "upload timed out"); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, _ := s.GetByID(b.ID)
	if got.Status != model.BackupStatusFailed || got.Error != "upload timed out" {
		t.Errorf("got %+v", got)
	}
}

func TestPruneKeep(t *testing.T) {
	db := testDB(t)
	s := NewBackupStore(db)

	var ids []int64
	for i := 0; i < 5; i++ {
		b, err := s.Create(fmt.Sprintf("backup-%d.db.enc", i), fmt.Sprintf("backups/backup-%d.db.enc", i))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.UpdateCompleted(b.ID, 100); err != nil {
			t.Fatalf("complete: %v", err)
		}
		ids = append(ids, b.ID)
	}
	// One failed backup, never counted against retention
	failed, _ := s.Create("broken.db.enc", "backups/broken.db.enc")
	s.UpdateStatus(failed.ID, model.BackupStatusFailed, "nope")

	keys, err := s.PruneKeep(2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("pruned %d backups, want 3", len(keys))
	}

	remaining, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// 2 newest completed + the failed record
	if len(remaining) != 3 {
		t.Errorf("got %d remaining, want 3", len(remaining))
	}
	// The newest two completed survive
	for _, id := range ids[3:] {
		got, _ := s.GetByID(id)
		if got == nil {
			t.Errorf("newest backup %d was pruned", id)
		}
	}
	for _, id := range ids[:3] {
		got, _ := s.GetByID(id)
		if got != nil {
			t.Errorf("old backup %d survived pruning", id)
		}
	}
}

package store

import "testing"

func TestSetAndGetSetting(t *testing.T) {
	db := testDB(t)
	s := NewSettingsStore(db)

	if err := s.Set("feed_per_page", "25"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get("feed_per_page")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "25" {
		t.Errorf("got %q, want %q", got, "25")
	}

	// Upsert overwrites
	if err := s.Set("feed_per_page", "50"); err != nil {
		t.Fatalf("re-set: %v", err)
	}
	got, _ = s.Get("feed_per_page")
	if got != "50" {
		t.Errorf("got %q after overwrite, want %q", got, "50")
	}
}

func TestGetMissingSetting(t *testing.T) {
	db := testDB(t)
	s := NewSettingsStore(db)

	if _, err := s.Get("nonexistent"); err == nil {
		t.Error("expected error for missing setting")
	}
}

func TestGetFeedSettingsSkipsUnset(t *testing.T) {
	db := testDB(t)
	s := NewSettingsStore(db)

	s.Set("feed_edit_throttle_hours", "2")
	s.Set("backup_enabled", "true")

	feed, err := s.GetFeedSettings()
	if err != nil {
		t.Fatalf("get feed settings: %v", err)
	}
	if len(feed) != 1 || feed["feed_edit_throttle_hours"] != "2" {
		t.Errorf("feed settings = %v", feed)
	}

	backup, err := s.GetBackupSettings()
	if err != nil {
		t.Fatalf("get backup settings: %v", err)
	}
	if len(backup) != 1 || backup["backup_enabled"] != "true" {
		t.Errorf("backup settings = %v", backup)
	}
}

func TestGetAllSettings(t *testing.T) {
	db := testDB(t)
	s := NewSettingsStore(db)

	s.Set("a", "1")
	s.Set("b", "2")

	all, err := s.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 || all["a"] != "1" || all["b"] != "2" {
		t.Errorf("got %v", all)
	}
}

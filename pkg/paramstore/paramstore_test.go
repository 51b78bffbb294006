package paramstore

import "testing"

func TestParamF32SetAndSave(t *testing.T) {
	store := NewMemoryStore()
	p := NewParamF32(store, "roll.ff", 0.3)

	if got := p.Get(); got != 0.3 {
		t.Fatalf("Get() = %v, want 0.3", got)
	}

	if err := p.SetAndSave(0.35); err != nil {
		t.Fatalf("SetAndSave failed: %v", err)
	}
	if got := p.Get(); got != 0.35 {
		t.Errorf("Get() after SetAndSave = %v, want 0.35", got)
	}
	v, ok := store.GetFloat("roll.ff")
	if !ok || v != 0.35 {
		t.Errorf("store.GetFloat(roll.ff) = %v, %v, want 0.35, true", v, ok)
	}
}

func TestParamI16SetAndSave(t *testing.T) {
	store := NewMemoryStore()
	p := NewParamI16(store, "roll.rmax", 75)

	if err := p.SetAndSave(90); err != nil {
		t.Fatalf("SetAndSave failed: %v", err)
	}
	v, ok := store.GetInt("roll.rmax")
	if !ok || v != 90 {
		t.Errorf("store.GetInt(roll.rmax) = %v, %v, want 90, true", v, ok)
	}
}

func TestParamSetWithoutSaveDoesNotTouchStore(t *testing.T) {
	store := NewMemoryStore()
	p := NewParamF32(store, "pitch.kp", 0.5)
	p.Set(0.6)

	if _, ok := store.GetFloat("pitch.kp"); ok {
		t.Error("Set without Save should not have written to the store")
	}
	if got := store.WriteCounts(); got != 0 {
		t.Errorf("WriteCounts() = %d, want 0", got)
	}
}

func TestMemoryStoreWriteCounts(t *testing.T) {
	store := NewMemoryStore()
	_ = store.SetFloat("a", 1)
	_ = store.SetFloat("a", 2)
	_ = store.SetInt("b", 1)

	if got := store.WriteCounts(); got != 3 {
		t.Errorf("WriteCounts() = %d, want 3", got)
	}
}

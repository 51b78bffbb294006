package autotune

import (
	"testing"

	"fwautotune/pkg/paramstore"
)

func TestSaveFloatIfChangedElidesSmallDelta(t *testing.T) {
	store := paramstore.NewMemoryStore()
	h := paramstore.NewParamF32(store, "x", 1.0)

	saveFloatIfChanged(h, 1.0005) // |Δ|/|new| = 0.0005/1.0005 < 0.001
	if got := store.WriteCounts(); got != 0 {
		t.Errorf("small relative delta should not persist: WriteCounts() = %d, want 0", got)
	}
	if got := h.Get(); got != 1.0005 {
		t.Errorf("Set should still apply even when the save is elided: Get() = %v, want 1.0005", got)
	}
}

func TestSaveFloatIfChangedPersistsLargeDelta(t *testing.T) {
	store := paramstore.NewMemoryStore()
	h := paramstore.NewParamF32(store, "x", 1.0)

	saveFloatIfChanged(h, 1.1) // |Δ|/|new| = 0.1/1.1 > 0.001
	if got := store.WriteCounts(); got != 1 {
		t.Errorf("large relative delta should persist: WriteCounts() = %d, want 1", got)
	}
}

func TestSaveFloatIfChangedAlwaysPersistsNonPositive(t *testing.T) {
	store := paramstore.NewMemoryStore()
	h := paramstore.NewParamF32(store, "x", 1.0)

	saveFloatIfChanged(h, 0)
	if got := store.WriteCounts(); got != 1 {
		t.Errorf("new value <= 0 must always persist: WriteCounts() = %d, want 1", got)
	}
}

func TestSaveIntIfChangedElidesUnchanged(t *testing.T) {
	store := paramstore.NewMemoryStore()
	h := paramstore.NewParamI16(store, "n", 75)

	saveIntIfChanged(h, 75)
	if got := store.WriteCounts(); got != 0 {
		t.Errorf("unchanged int should not persist: WriteCounts() = %d, want 0", got)
	}
}

func TestSaveIntIfChangedPersistsOnChange(t *testing.T) {
	store := paramstore.NewMemoryStore()
	h := paramstore.NewParamI16(store, "n", 75)

	saveIntIfChanged(h, 90)
	if got := store.WriteCounts(); got != 1 {
		t.Errorf("changed int should persist: WriteCounts() = %d, want 1", got)
	}
}

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/Phishtrap/internal/scoring"
)

func TestMemoryStorage(t *testing.T) {
	store := NewMemoryStorage()

	v1 := &scoring.Verdict{ID: "a", URL: "https://one.example", Label: scoring.LabelSafe}
	v2 := &scoring.Verdict{ID: "b", URL: "https://two.example", Label: scoring.LabelUnsafe}
	store.StoreVerdict(v1)
	store.StoreVerdict(v2)

	got, ok := store.GetVerdict("b")
	require.True(t, ok)
	assert.Equal(t, "https://two.example", got.URL)

	_, ok = store.GetVerdict("nope")
	assert.False(t, ok)

	// история отдаётся от новых к старым
	all := store.GetAllVerdicts()
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)
	assert.Equal(t, "a", all[1].ID)
}

// TestMemoryStorage_Overwrite повторный вердикт с тем же ID не дублирует историю
func TestMemoryStorage_Overwrite(t *testing.T) {
	store := NewMemoryStorage()

	store.StoreVerdict(&scoring.Verdict{ID: "a", Label: scoring.LabelSafe})
	store.StoreVerdict(&scoring.Verdict{ID: "a", Label: scoring.LabelUnsafe})

	all := store.GetAllVerdicts()
	require.Len(t, all, 1)
	assert.Equal(t, scoring.LabelUnsafe, all[0].Label)
}

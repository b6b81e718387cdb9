package inventory

import (
	"context"
	"testing"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReader(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryReader(
		domain.Unit{ID: 3, Project: "Sky", Category: domain.CategoryFlat, Price: 500_000_000, Status: "Подбор"},
		domain.Unit{ID: 1, Project: "Sky", Category: domain.CategoryFlat, Price: 2_000_000, Status: "Подбор"},
		domain.Unit{ID: 2, Project: "Park", Category: domain.CategoryGarage, Price: 90_000_000, Status: "Продано"},
	)

	u, err := r.GetUnit(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Sky", u.Project)

	_, err = r.GetUnit(ctx, 42)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	got, err := r.ListCandidates(ctx, Filter{Category: domain.CategoryFlat, Statuses: []string{"Подбор"}, MinPrice: 3_000_000})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)

	all, err := r.ListCandidates(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].ID)
}

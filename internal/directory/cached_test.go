package directory

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/pkg/cache"
)

type countingGetter struct {
	calls int
	org   Organisation
}

func (g *countingGetter) GetOrganisation(_ context.Context, _ uuid.UUID) (*Organisation, error) {
	g.calls++
	org := g.org
	return &org, nil
}

func TestCachedOrganisationsServesFromCache(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	upstream := &countingGetter{org: Organisation{
		ID:           orgID,
		Name:         "City of Bergen",
		Translations: map[string]string{"nb": "Bergen kommune"},
	}}

	cached := NewCachedOrganisations(upstream, cache.NewMemory[Organisation](0), time.Minute, slog.Default())

	first, err := cached.GetOrganisation(ctx, orgID)
	require.NoError(t, err)
	second, err := cached.GetOrganisation(ctx, orgID)
	require.NoError(t, err)

	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, "Bergen kommune", second.LocalizedName("nb"))
}

func TestLocalizedNameFallsBackToDefault(t *testing.T) {
	org := Organisation{Name: "City of Bergen", Translations: map[string]string{"nb": "Bergen kommune"}}

	assert.Equal(t, "Bergen kommune", org.LocalizedName("nb"))
	assert.Equal(t, "City of Bergen", org.LocalizedName("de"))
	assert.Equal(t, "City of Bergen", Organisation{Name: "City of Bergen"}.LocalizedName("nb"))
}

package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/messaging/models"
	"courier/internal/messaging/provider"
	"courier/internal/messaging/store/providers"
)

func newProviderEnv(t *testing.T) (*testEnv, uuid.UUID) {
	t.Helper()
	env := &testEnv{router: chi.NewRouter()}

	resolver := provider.NewResolver()
	resolver.Register(models.ChannelEmail, providers.NewMemory())

	h := NewProviderHandler(resolver, adminToken, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Register(env.router)

	return env, uuid.New()
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": adminToken}
}

func TestProviderSurfaceRequiresAdminToken(t *testing.T) {
	env, orgID := newProviderEnv(t)

	rec := env.do(http.MethodGet, "/v1/admin/channels/email/providers/?organisation_id="+orgID.String(), "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProviderCreateAndList(t *testing.T) {
	env, orgID := newProviderEnv(t)
	base := "/v1/admin/channels/email/providers/?organisation_id=" + orgID.String()

	rec := env.do(http.MethodPost, base,
		`{"name":"municipal relay","credentials":{"host":"relay.gov"},"is_primary":true}`, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created providerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, orgID.String(), created.OrganisationID)
	assert.Equal(t, "email", created.ChannelType)
	assert.True(t, created.IsPrimary)

	rec = env.do(http.MethodGet, base, "", adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []providerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	// A second organisation sees an empty list.
	other := "/v1/admin/channels/email/providers/?organisation_id=" + uuid.NewString()
	rec = env.do(http.MethodGet, other, "", adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestProviderSecondPrimaryConflicts(t *testing.T) {
	env, orgID := newProviderEnv(t)
	base := "/v1/admin/channels/email/providers/?organisation_id=" + orgID.String()

	rec := env.do(http.MethodPost, base, `{"name":"first","is_primary":true}`, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, base, `{"name":"second","is_primary":true}`, adminHeaders())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProviderUnsupportedChannel(t *testing.T) {
	env, orgID := newProviderEnv(t)

	rec := env.do(http.MethodGet, "/v1/admin/channels/sms/providers/?organisation_id="+orgID.String(), "", adminHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProviderRequiresOrganisationID(t *testing.T) {
	env, _ := newProviderEnv(t)

	rec := env.do(http.MethodGet, "/v1/admin/channels/email/providers/", "", adminHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProviderPrimaryLookup(t *testing.T) {
	env, orgID := newProviderEnv(t)
	base := "/v1/admin/channels/email/providers/?organisation_id=" + orgID.String()
	primaryURL := "/v1/admin/channels/email/providers/primary?organisation_id=" + orgID.String()

	rec := env.do(http.MethodGet, primaryURL, "", adminHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, base, `{"name":"default relay"}`, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodGet, primaryURL, "", adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var got providerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "default relay", got.Name)
}

func TestProviderUpdateAndDelete(t *testing.T) {
	env, orgID := newProviderEnv(t)
	base := "/v1/admin/channels/email/providers/?organisation_id=" + orgID.String()

	rec := env.do(http.MethodPost, base, `{"name":"relay"}`, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created providerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	itemURL := "/v1/admin/channels/email/providers/" + created.ID + "/?organisation_id=" + orgID.String()

	rec = env.do(http.MethodPut, itemURL, `{"name":"renamed relay"}`, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var updated providerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "renamed relay", updated.Name)

	rec = env.do(http.MethodDelete, itemURL, "", adminHeaders())
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, itemURL, "", adminHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

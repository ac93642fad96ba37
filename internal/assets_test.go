package internal

import (
	"fmt"
	"net/http"
	"testing"

	"erp-asset-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAsset(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"asset_id": "LAP-001", "asset_type": "Laptop", "serial_number": "SN-1"}

	t.Run("employee is forbidden", func(t *testing.T) {
		w := env.do("POST", "/assets", "employee", body)
		assertError(t, w, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("manager creates", func(t *testing.T) {
		w := env.do("POST", "/assets", "manager", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		a := decode[models.Asset](t, w)
		assert.Equal(t, "LAP-001", a.AssetID)
		assert.Equal(t, models.StatusActive, a.Status)
		assert.Nil(t, a.AssignedEmployeeID)

		events := env.store.AllEvents("LAP-001")
		require.Len(t, events, 1)
		assert.Equal(t, models.EventCreated, events[0].EventType)
		require.NotNil(t, events[0].PerformedBy)
		assert.Equal(t, "manager", *events[0].PerformedBy)
	})

	t.Run("duplicate conflicts", func(t *testing.T) {
		w := env.do("POST", "/assets", "admin", body)
		assertError(t, w, http.StatusConflict, "CONFLICT")
	})

	t.Run("missing asset_id", func(t *testing.T) {
		w := env.do("POST", "/assets", "manager", map[string]any{"asset_type": "Laptop"})
		assertError(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")
	})

	t.Run("malformed body", func(t *testing.T) {
		w := env.do("POST", "/assets", "manager", "{not json")
		assertError(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")
	})
}

func TestGetAsset(t *testing.T) {
	env := newTestEnv(t)
	env.seed("MON-7")

	w := env.do("GET", "/assets/MON-7", "employee", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MON-7", decode[models.Asset](t, w).AssetID)

	w = env.do("GET", "/assets/NOPE", "employee", nil)
	assertError(t, w, http.StatusNotFound, "NOT_FOUND")
}

func TestUpdateAsset(t *testing.T) {
	env := newTestEnv(t)
	env.seed("LAP-002")

	w := env.do("PUT", "/assets/LAP-002", "manager", map[string]any{"model": "T14", "ram_size_gb": "32"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a := decode[models.Asset](t, w)
	require.NotNil(t, a.Model)
	assert.Equal(t, "T14", *a.Model)
	assert.Equal(t, models.StatusActive, a.Status)

	events := env.store.AllEvents("LAP-002")
	require.Len(t, events, 1)
	assert.Equal(t, models.EventUpdated, events[0].EventType)
	assert.Contains(t, events[0].Details, "model")

	w = env.do("PUT", "/assets/LAP-002", "manager", map[string]any{})
	assertError(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")

	w = env.do("PUT", "/assets/NOPE", "manager", map[string]any{"model": "X"})
	assertError(t, w, http.StatusNotFound, "NOT_FOUND")

	w = env.do("PUT", "/assets/LAP-002", "employee", map[string]any{"model": "X"})
	assertError(t, w, http.StatusForbidden, "FORBIDDEN")
}

func TestListAssets(t *testing.T) {
	env := newTestEnv(t)
	for i := 1; i <= 25; i++ {
		env.seed(fmt.Sprintf("A-%03d", i))
	}
	monitor := "Monitor"
	env.store.AddAsset(models.Asset{AssetID: "M-001", AssetType: &monitor, Status: models.StatusMaintenance})

	t.Run("default page", func(t *testing.T) {
		w := env.do("GET", "/assets", "employee", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[models.AssetList](t, w)
		assert.Equal(t, 26, list.Total)
		assert.Equal(t, 1, list.Page)
		assert.Equal(t, 20, list.Size)
		assert.Equal(t, 2, list.Pages)
		assert.Len(t, list.Items, 20)
	})

	t.Run("second page sorted", func(t *testing.T) {
		w := env.do("GET", "/assets?page=2&size=10&sort=asset_id", "employee", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[models.AssetList](t, w)
		require.Len(t, list.Items, 10)
		assert.Equal(t, "A-011", list.Items[0].AssetID)
		assert.Equal(t, 3, list.Pages)
	})

	t.Run("size is capped", func(t *testing.T) {
		w := env.do("GET", "/assets?size=500", "employee", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 100, decode[models.AssetList](t, w).Size)
	})

	t.Run("status and type filters", func(t *testing.T) {
		w := env.do("GET", "/assets?status=maintenance,retired", "employee", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[models.AssetList](t, w)
		require.Len(t, list.Items, 1)
		assert.Equal(t, "M-001", list.Items[0].AssetID)

		w = env.do("GET", "/assets?asset_type=Monitor", "employee", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, decode[models.AssetList](t, w).Total)
	})

	t.Run("search", func(t *testing.T) {
		w := env.do("GET", "/assets?search=a-02", "employee", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 6, decode[models.AssetList](t, w).Total)
	})

	t.Run("page past the end", func(t *testing.T) {
		w := env.do("GET", "/assets?page=9", "employee", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[models.AssetList](t, w)
		assert.Empty(t, list.Items)
		assert.NotNil(t, list.Items)
		assert.Equal(t, 26, list.Total)
	})

	t.Run("bad parameters", func(t *testing.T) {
		for _, q := range []string{"page=0", "page=x", "size=0", "status=lost", "page=9223372036854775807&size=20"} {
			w := env.do("GET", "/assets?"+q, "employee", nil)
			assertError(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")
		}
	})
}

func TestListAssignedAssets(t *testing.T) {
	env := newTestEnv(t)
	env.seed("A-1")
	env.seed("A-2")

	w := env.do("POST", "/assets/A-2/assign", "employee", map[string]any{"employee_id": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do("GET", "/assets/assigned", "employee", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.AssetList](t, w)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "A-2", list.Items[0].AssetID)
	require.NotNil(t, list.Items[0].AssignedEmployeeID)
	assert.EqualValues(t, 5, *list.Items[0].AssignedEmployeeID)
}

func TestDeleteAssetDisposes(t *testing.T) {
	env := newTestEnv(t)
	env.seed("OLD-1")
	env.seed("HELD-1")

	w := env.do("DELETE", "/assets/OLD-1", "employee", nil)
	assertError(t, w, http.StatusForbidden, "FORBIDDEN")

	w = env.do("DELETE", "/assets/OLD-1", "manager", nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	a, ok := env.store.Asset("OLD-1")
	require.True(t, ok)
	assert.Equal(t, models.StatusDisposed, a.Status)

	events := env.store.AllEvents("OLD-1")
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, models.EventStatusChanged, last.EventType)
	assert.Equal(t, "Status changed: active -> disposed (Reason: Asset disposed)", last.Details)

	w = env.do("POST", "/assets/HELD-1/assign", "employee", map[string]any{"employee_id": 3})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do("DELETE", "/assets/HELD-1", "admin", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_STATE")

	w = env.do("DELETE", "/assets/NOPE", "admin", nil)
	assertError(t, w, http.StatusNotFound, "NOT_FOUND")
}

//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/rolewarden/rolewarden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type historyPage struct {
	Data struct {
		Items []struct {
			ID           string  `json:"id"`
			UserID       string  `json:"user_id"`
			ChangedByID  string  `json:"changed_by_id"`
			PreviousRole string  `json:"previous_role"`
			NewRole      string  `json:"new_role"`
			ChangedAt    string  `json:"changed_at"`
			Reason       *string `json:"reason"`
		} `json:"items"`
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
		Links  []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	} `json:"data"`
}

func getHistory(t *testing.T, client *testutil.Client, path string) historyPage {
	t.Helper()

	resp, err := client.GET(path)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page historyPage
	testutil.DecodeJSON(t, resp, &page)
	return page
}

func TestRoles_History_OrderingAndPagination(t *testing.T) {
	admin := newAdminClient(t)
	userID, _ := registerTestUser(t, admin)

	// Three changes in a known order.
	for _, role := range []string{"MANAGER", "AUTHENTICATED", "MANAGER"} {
		resp := changeRole(t, admin, userID, role, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	page := getHistory(t, admin, "/api/v1/roles/history/"+userID)
	require.Equal(t, 3, page.Data.Total)
	require.Len(t, page.Data.Items, 3)

	// Newest first: the most recent change tops the list.
	assert.Equal(t, "MANAGER", page.Data.Items[0].NewRole)
	assert.Equal(t, "AUTHENTICATED", page.Data.Items[0].PreviousRole)
	assert.Equal(t, "MANAGER", page.Data.Items[2].NewRole)
	assert.Equal(t, "AUTHENTICATED", page.Data.Items[2].PreviousRole)

	for i := 1; i < len(page.Data.Items); i++ {
		assert.GreaterOrEqual(t, page.Data.Items[i-1].ChangedAt, page.Data.Items[i].ChangedAt,
			"records must be ordered newest first")
	}

	// Window of size 2 starting at offset 1 is a contiguous slice.
	window := getHistory(t, admin, fmt.Sprintf("/api/v1/roles/history/%s?limit=2&offset=1", userID))
	assert.Equal(t, 3, window.Data.Total)
	require.Len(t, window.Data.Items, 2)
	assert.Equal(t, page.Data.Items[1].ID, window.Data.Items[0].ID)
	assert.Equal(t, page.Data.Items[2].ID, window.Data.Items[1].ID)
}

func TestRoles_History_Links(t *testing.T) {
	admin := newAdminClient(t)
	userID, _ := registerTestUser(t, admin)

	for _, role := range []string{"MANAGER", "AUTHENTICATED", "MANAGER"} {
		resp := changeRole(t, admin, userID, role, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	page := getHistory(t, admin, fmt.Sprintf("/api/v1/roles/history/%s?limit=1&offset=1", userID))

	rels := make(map[string]string, len(page.Data.Links))
	for _, link := range page.Data.Links {
		rels[link.Rel] = link.Href
	}
	assert.Contains(t, rels, "self")
	assert.Contains(t, rels, "first")
	assert.Contains(t, rels, "last")
	assert.Contains(t, rels, "next")
	assert.Contains(t, rels, "prev")
	assert.Contains(t, rels["next"], "offset=2")
	assert.Contains(t, rels["prev"], "offset=0")
}

func TestRoles_History_UserFilter(t *testing.T) {
	admin := newAdminClient(t)
	firstID, _ := registerTestUser(t, admin)
	secondID, _ := registerTestUser(t, admin)

	resp := changeRole(t, admin, firstID, "MANAGER", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = changeRole(t, admin, secondID, "MANAGER", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	page := getHistory(t, admin, "/api/v1/roles/history?user_id="+firstID)
	assert.Equal(t, 1, page.Data.Total)
	for _, item := range page.Data.Items {
		assert.Equal(t, firstID, item.UserID)
	}

	// The unfiltered trail spans both subjects.
	all := getHistory(t, admin, "/api/v1/roles/history?limit=100")
	assert.GreaterOrEqual(t, all.Data.Total, 2)
}

func TestRoles_History_EmptyForNewUser(t *testing.T) {
	admin := newAdminClient(t)
	userID, _ := registerTestUser(t, admin)

	page := getHistory(t, admin, "/api/v1/roles/history/"+userID)
	assert.Equal(t, 0, page.Data.Total)
	assert.Empty(t, page.Data.Items)
}

func TestRoles_History_RequiresAdmin(t *testing.T) {
	client := newTestClient(t)
	_, email := registerTestUser(t, client)
	client.LoginAs(t, email, "password123")

	resp, err := client.GET("/api/v1/roles/history")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestRoles_History_BadPaginationParams(t *testing.T) {
	admin := newAdminClient(t)

	for _, target := range []string{
		"/api/v1/roles/history?limit=0",
		"/api/v1/roles/history?limit=abc",
		"/api/v1/roles/history?offset=-1",
	} {
		resp, err := admin.GET(target)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "target %s", target)
		resp.Body.Close()
	}
}

//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/rolewarden/rolewarden/internal/testutil"
	"github.com/stretchr/testify/require"
)

// registerTestUser creates an account and returns its id and email. New
// accounts always start as AUTHENTICATED.
func registerTestUser(t *testing.T, client *testutil.Client) (id, email string) {
	t.Helper()

	email = testutil.RandomEmail()
	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": "password123",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	require.NotEmpty(t, result.Data.ID)
	return result.Data.ID, email
}

// newAdminClient returns a client logged in as the bootstrap administrator.
func newAdminClient(t *testing.T) *testutil.Client {
	t.Helper()
	client := newTestClient(t)
	client.LoginAs(t, bootstrapAdminEmail, bootstrapAdminPassword)
	return client
}

// changeRole performs a role change as the given client and returns the
// response.
func changeRole(t *testing.T, client *testutil.Client, userID, newRole string, reason *string) *http.Response {
	t.Helper()

	payload := map[string]interface{}{"new_role": newRole}
	if reason != nil {
		payload["reason"] = *reason
	}

	resp, err := client.PUT("/api/v1/roles/users/"+userID, payload)
	require.NoError(t, err)
	return resp
}

// setUserRoleDirect flips a user's role straight in the database, bypassing
// the API. Used to restore state between admin-count tests.
func setUserRoleDirect(t *testing.T, userID, role string) {
	t.Helper()

	_, err := testDB.Exec(context.Background(),
		`UPDATE users SET role = $1, updated_at = now() WHERE id = $2`, role, userID)
	require.NoError(t, err)
}

// errorMessage extracts the error envelope message from a response.
func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	testutil.DecodeJSON(t, resp, &body)
	return body.Error.Message
}

func strPtr(s string) *string { return &s }

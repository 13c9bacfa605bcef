package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/auth"
	"github.com/quarryhq/quarry/pkg/tracker"
)

// mustAddContributor invites userID onto the project through the API
func (ts *testServer) mustAddContributor(t *testing.T, author *auth.User, projectID, userID int64) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/users", projectID),
		ts.tokenFor(t, author), map[string]int64{"user_id": userID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAddContributor(t *testing.T) {
	t.Run("author invites", func(t *testing.T) {
		ts := newTestServer(t)
		alice := ts.mustRegister(t, "alice")
		bob := ts.mustRegister(t, "bob")
		project := ts.mustCreateProject(t, alice, "checkout")

		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/users", project.ID),
			ts.tokenFor(t, alice), map[string]int64{"user_id": bob.ID})
		require.Equal(t, http.StatusCreated, rec.Code)

		var membership tracker.Membership
		decodeBody(t, rec, &membership)
		assert.Equal(t, tracker.RoleCollaborator, membership.Role)
		require.NotNil(t, membership.InvitedBy)
		assert.Equal(t, alice.ID, *membership.InvitedBy)
	})

	t.Run("collaborator cannot invite", func(t *testing.T) {
		ts := newTestServer(t)
		alice := ts.mustRegister(t, "alice")
		bob := ts.mustRegister(t, "bob")
		carol := ts.mustRegister(t, "carol")
		project := ts.mustCreateProject(t, alice, "checkout")
		ts.mustAddContributor(t, alice, project.ID, bob.ID)

		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/users", project.ID),
			ts.tokenFor(t, bob), map[string]int64{"user_id": carol.ID})
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "not_author", reasonOf(t, rec))
	})

	t.Run("duplicate invite conflicts", func(t *testing.T) {
		ts := newTestServer(t)
		alice := ts.mustRegister(t, "alice")
		bob := ts.mustRegister(t, "bob")
		project := ts.mustCreateProject(t, alice, "checkout")
		ts.mustAddContributor(t, alice, project.ID, bob.ID)

		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/users", project.ID),
			ts.tokenFor(t, alice), map[string]int64{"user_id": bob.ID})
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "duplicate_membership", reasonOf(t, rec))
	})

	t.Run("unknown user", func(t *testing.T) {
		ts := newTestServer(t)
		alice := ts.mustRegister(t, "alice")
		project := ts.mustCreateProject(t, alice, "checkout")

		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/users", project.ID),
			ts.tokenFor(t, alice), map[string]int64{"user_id": 9999})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListContributors(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.mustRegister(t, "alice")
	bob := ts.mustRegister(t, "bob")
	carol := ts.mustRegister(t, "carol")
	project := ts.mustCreateProject(t, alice, "checkout")
	ts.mustAddContributor(t, alice, project.ID, bob.ID)

	t.Run("member lists", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d/users", project.ID),
			ts.tokenFor(t, bob), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var memberships []*tracker.Membership
		decodeBody(t, rec, &memberships)
		require.Len(t, memberships, 2)
	})

	t.Run("non-member is refused", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d/users", project.ID),
			ts.tokenFor(t, carol), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "not_a_contributor", reasonOf(t, rec))
	})
}

func TestRemoveContributor(t *testing.T) {
	t.Run("author removes collaborator", func(t *testing.T) {
		ts := newTestServer(t)
		alice := ts.mustRegister(t, "alice")
		bob := ts.mustRegister(t, "bob")
		project := ts.mustCreateProject(t, alice, "checkout")
		ts.mustAddContributor(t, alice, project.ID, bob.ID)

		rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/projects/%d/users/%d", project.ID, bob.ID),
			ts.tokenFor(t, alice), nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		// Bob lost access along with the membership.
		after := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d", project.ID),
			ts.tokenFor(t, bob), nil)
		require.Equal(t, http.StatusForbidden, after.Code)
	})

	t.Run("collaborator cannot remove", func(t *testing.T) {
		ts := newTestServer(t)
		alice := ts.mustRegister(t, "alice")
		bob := ts.mustRegister(t, "bob")
		project := ts.mustCreateProject(t, alice, "checkout")
		ts.mustAddContributor(t, alice, project.ID, bob.ID)

		rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/projects/%d/users/%d", project.ID, bob.ID),
			ts.tokenFor(t, bob), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "not_author", reasonOf(t, rec))
	})

	t.Run("sole author cannot be removed", func(t *testing.T) {
		ts := newTestServer(t)
		alice := ts.mustRegister(t, "alice")
		project := ts.mustCreateProject(t, alice, "checkout")

		rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/projects/%d/users/%d", project.ID, alice.ID),
			ts.tokenFor(t, alice), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "last_author", reasonOf(t, rec))
	})

	t.Run("unknown membership", func(t *testing.T) {
		ts := newTestServer(t)
		alice := ts.mustRegister(t, "alice")
		project := ts.mustCreateProject(t, alice, "checkout")

		rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/projects/%d/users/9999", project.ID),
			ts.tokenFor(t, alice), nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/audit"
	"github.com/projecthub/projecthub/internal/auth"
)

func newUserFixture() (*world, *UserService, *recordingAuditor) {
	w := newWorld()
	rec := &recordingAuditor{}
	svc := NewUserService(fakeOrgs{w}, fakeUsers{w}, auth.NewPasswordHasher(bcrypt.MinCost), rec)
	return w, svc, rec
}

func newMemberInput(email string) CreateUserInput {
	return CreateUserInput{Email: email, Password: "password1", FullName: "New Member"}
}

func TestUserCreate(t *testing.T) {
	w, svc, rec := newUserFixture()
	org := w.addOrg("Acme", "acme", 5, 3)
	admin := w.addUser(t, org.ID, "a@acme.io", auth.RoleOrgAdmin, nil, "")

	user, err := svc.Create(context.Background(), identityOf(admin), org.ID, newMemberInput("New@Acme.io"), "")
	require.NoError(t, err)
	assert.Equal(t, "new@acme.io", user.Email)
	assert.Equal(t, "user", user.Role, "role defaults to user")
	assert.Equal(t, org.ID, user.OrgID())
	assert.True(t, user.IsActive)

	ev := rec.last()
	assert.Equal(t, audit.ActionCreateUser, ev.Action)
	assert.Equal(t, user.ID, ev.EntityID)
	assert.Equal(t, admin.ID, ev.UserID)
}

func TestUserCreate_Rules(t *testing.T) {
	w, svc, _ := newUserFixture()
	acme := w.addOrg("Acme", "acme", 2, 3)
	other := w.addOrg("Other", "other", 5, 3)
	admin := w.addUser(t, acme.ID, "a@acme.io", auth.RoleOrgAdmin, nil, "")
	lead := w.addUser(t, acme.ID, "lead@acme.io", auth.RoleProjectLead, nil, "")
	otherAdmin := w.addUser(t, other.ID, "a@other.io", auth.RoleOrgAdmin, nil, "")
	ctx := context.Background()

	_, err := svc.Create(ctx, identityOf(lead), acme.ID, newMemberInput("x@acme.io"), "")
	requireKind(t, err, apierr.KindForbidden, "Insufficient permissions")

	_, err = svc.Create(ctx, identityOf(otherAdmin), acme.ID, newMemberInput("x@acme.io"), "")
	requireKind(t, err, apierr.KindForbidden, "Insufficient permissions")

	// acme already holds two users, its ceiling
	_, err = svc.Create(ctx, identityOf(admin), acme.ID, newMemberInput("x@acme.io"), "")
	requireKind(t, err, apierr.KindCapacityExceeded, "User limit reached")

	_, err = svc.Create(ctx, identityOf(otherAdmin), other.ID, newMemberInput("a@other.io"), "")
	requireKind(t, err, apierr.KindConflict, "Email already exists in this organization")

	// the same email in a different organization is fine
	_, err = svc.Create(ctx, identityOf(otherAdmin), other.ID, newMemberInput("lead@acme.io"), "")
	require.NoError(t, err)
}

func TestUserList(t *testing.T) {
	w, svc, _ := newUserFixture()
	acme := w.addOrg("Acme", "acme", 5, 3)
	other := w.addOrg("Other", "other", 5, 3)
	admin := w.addUser(t, acme.ID, "a@acme.io", auth.RoleOrgAdmin, nil, "")
	lead := w.addUser(t, acme.ID, "lead@acme.io", auth.RoleProjectLead, nil, "")
	w.addUser(t, other.ID, "a@other.io", auth.RoleOrgAdmin, nil, "")

	list, err := svc.List(context.Background(), identityOf(admin), acme.ID, ListUsersQuery{Role: "project_lead"})
	require.NoError(t, err)
	require.Len(t, list.Users, 1)
	assert.Equal(t, "lead@acme.io", list.Users[0].Email)
	assert.Equal(t, 1, list.Pagination.Total)
	assert.Equal(t, DefaultUserPageSize, list.Pagination.Limit)

	_, err = svc.List(context.Background(), identityOf(admin), other.ID, ListUsersQuery{})
	requireKind(t, err, apierr.KindForbidden, "Unauthorized access")

	// members of the organization cannot enumerate its accounts
	_, err = svc.List(context.Background(), identityOf(lead), acme.ID, ListUsersQuery{})
	requireKind(t, err, apierr.KindForbidden, "Insufficient permissions")
}

func TestUserUpdate(t *testing.T) {
	w, svc, rec := newUserFixture()
	acme := w.addOrg("Acme", "acme", 5, 3)
	other := w.addOrg("Other", "other", 5, 3)
	admin := w.addUser(t, acme.ID, "a@acme.io", auth.RoleOrgAdmin, nil, "")
	member := w.addUser(t, acme.ID, "m@acme.io", auth.RoleUser, nil, "")
	stranger := w.addUser(t, other.ID, "s@other.io", auth.RoleUser, nil, "")
	ctx := context.Background()

	updated, err := svc.Update(ctx, identityOf(admin), member.ID, UpdateUserInput{
		Role:     stringPtr("project_lead"),
		IsActive: boolPtr(false),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "project_lead", updated.Role)
	assert.False(t, updated.IsActive)
	assert.Equal(t, audit.ActionUpdateUser, rec.last().Action)

	_, err = svc.Update(ctx, identityOf(admin), stranger.ID, UpdateUserInput{FullName: stringPtr("x")}, "")
	requireKind(t, err, apierr.KindNotFound, "User not found")

	_, err = svc.Update(ctx, identityOf(member), admin.ID, UpdateUserInput{FullName: stringPtr("x")}, "")
	requireKind(t, err, apierr.KindForbidden, "Insufficient permissions")

	_, err = svc.Update(ctx, identityOf(admin), member.ID, UpdateUserInput{}, "")
	requireKind(t, err, apierr.KindValidation, "No valid fields to update")
}

func TestUserUpdate_CannotDemoteSelf(t *testing.T) {
	w, svc, _ := newUserFixture()
	acme := w.addOrg("Acme", "acme", 5, 3)
	admin := w.addUser(t, acme.ID, "a@acme.io", auth.RoleOrgAdmin, nil, "")
	ctx := context.Background()

	_, err := svc.Update(ctx, identityOf(admin), admin.ID, UpdateUserInput{Role: stringPtr("user")}, "")
	requireKind(t, err, apierr.KindForbidden, "")

	_, err = svc.Update(ctx, identityOf(admin), admin.ID, UpdateUserInput{IsActive: boolPtr(false)}, "")
	requireKind(t, err, apierr.KindForbidden, "")

	updated, err := svc.Update(ctx, identityOf(admin), admin.ID, UpdateUserInput{FullName: stringPtr("Ada A.")}, "")
	require.NoError(t, err)
	assert.Equal(t, "Ada A.", updated.FullName)
	assert.Equal(t, "org_admin", updated.Role)
}

func TestUserDelete(t *testing.T) {
	w, svc, rec := newUserFixture()
	acme := w.addOrg("Acme", "acme", 5, 3)
	other := w.addOrg("Other", "other", 5, 3)
	admin := w.addUser(t, acme.ID, "a@acme.io", auth.RoleOrgAdmin, nil, "")
	member := w.addUser(t, acme.ID, "m@acme.io", auth.RoleUser, nil, "")
	stranger := w.addUser(t, other.ID, "s@other.io", auth.RoleUser, nil, "")
	p := w.addProject(acme.ID, "Launch", admin.ID)
	task := w.addTask(p, "Plan", stringPtr(member.ID))
	ctx := context.Background()

	err := svc.Delete(ctx, identityOf(admin), admin.ID, "")
	requireKind(t, err, apierr.KindForbidden, "Cannot delete yourself")

	err = svc.Delete(ctx, identityOf(admin), stranger.ID, "")
	requireKind(t, err, apierr.KindNotFound, "User not found")

	require.NoError(t, svc.Delete(ctx, identityOf(admin), member.ID, ""))
	assert.Nil(t, w.tasks[task.ID].AssignedTo, "assignments are cleared")
	assert.Equal(t, audit.ActionDeleteUser, rec.last().Action)

	err = svc.Delete(ctx, identityOf(admin), member.ID, "")
	requireKind(t, err, apierr.KindNotFound, "User not found")
}

func TestUserDelete_MemberForbidden(t *testing.T) {
	w, svc, _ := newUserFixture()
	acme := w.addOrg("Acme", "acme", 5, 3)
	admin := w.addUser(t, acme.ID, "a@acme.io", auth.RoleOrgAdmin, nil, "")
	member := w.addUser(t, acme.ID, "m@acme.io", auth.RoleUser, nil, "")

	err := svc.Delete(context.Background(), identityOf(member), admin.ID, "")
	requireKind(t, err, apierr.KindForbidden, "Insufficient permissions")
	assert.Contains(t, w.users, admin.ID)
}

func boolPtr(b bool) *bool { return &b }

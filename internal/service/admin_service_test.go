package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/repository"
	"blgu-assess-go/internal/testutil"
)

func TestAdminService_GovernanceAreas(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAdminService(repository.NewGovernanceAreaRepository(db), repository.NewUserRepository(db))

	fa, err := svc.CreateGovernanceArea(GovernanceAreaInput{Code: " fa ", Name: "Financial Administration"}, mlgoo)
	require.NoError(t, err)
	assert.Equal(t, "FA", fa.Code)
	assert.Equal(t, model.AreaCore, fa.AreaType)

	_, err = svc.CreateGovernanceArea(GovernanceAreaInput{Code: "FA", Name: "Again"}, mlgoo)
	assert.ErrorIs(t, err, ErrAreaCodeTaken)
	_, err = svc.CreateGovernanceArea(GovernanceAreaInput{Code: "X", Name: "X", AreaType: "optional"}, mlgoo)
	assert.ErrorIs(t, err, ErrInvalidAreaType)

	ye, err := svc.CreateGovernanceArea(GovernanceAreaInput{Code: "YE", Name: "Youth Empowerment", AreaType: "Essential"}, mlgoo)
	require.NoError(t, err)
	assert.Equal(t, model.AreaEssential, ye.AreaType)

	_, err = svc.UpdateGovernanceArea(ye.ID, GovernanceAreaInput{Code: "FA", Name: "clash"})
	assert.ErrorIs(t, err, ErrAreaCodeTaken)
	updated, err := svc.UpdateGovernanceArea(ye.ID, GovernanceAreaInput{Code: "YE", Name: "Youth and Sports", AreaType: "essential"})
	require.NoError(t, err)
	assert.Equal(t, "Youth and Sports", updated.Name)

	areas, err := svc.ListGovernanceAreas()
	require.NoError(t, err)
	assert.Len(t, areas, 2)

	require.NoError(t, svc.DeleteGovernanceArea(fa.ID))
	assert.ErrorIs(t, svc.DeleteGovernanceArea(fa.ID), ErrAreaNotFound)
	_, err = svc.UpdateGovernanceArea(fa.ID, GovernanceAreaInput{Code: "FA", Name: "gone"})
	assert.ErrorIs(t, err, ErrAreaNotFound)
}

func TestAdminService_UsersAndRoles(t *testing.T) {
	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	svc := NewAdminService(repository.NewGovernanceAreaRepository(db), users)

	area, err := svc.CreateGovernanceArea(GovernanceAreaInput{Code: "DP", Name: "Disaster Preparedness"}, mlgoo)
	require.NoError(t, err)
	for _, name := range []string{"u1", "u2", "u3"} {
		require.NoError(t, users.Create(&model.User{Username: name, Password: "x", Role: model.RoleBLGU}))
	}

	u2, err := users.FindByUsername("u2")
	require.NoError(t, err)
	require.NoError(t, svc.AssignRole(u2.ID, model.RoleAssessor, &area.ID))
	assert.ErrorIs(t, svc.AssignRole(u2.ID, "ROOT", nil), ErrInvalidRole)
	missing := uint(999)
	assert.ErrorIs(t, svc.AssignRole(u2.ID, model.RoleAssessor, &missing), ErrAreaNotFound)

	page, err := svc.ListUsers(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Content, 2)
	assert.Nil(t, page.Content[0].GovernanceArea)
	require.NotNil(t, page.Content[1].GovernanceArea)
	assert.Equal(t, "DP", page.Content[1].GovernanceArea.Code)
	assert.Equal(t, model.RoleAssessor, page.Content[1].Role)

	last, err := svc.ListUsers(2, 2)
	require.NoError(t, err)
	assert.Len(t, last.Content, 1)

	// out-of-range paging falls back to sane defaults
	first, err := svc.ListUsers(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 20, first.Size)
}

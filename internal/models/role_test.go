package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoles(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Roles
		wantErr bool
	}{
		{name: "single", input: "USER", want: Roles{RoleUser}},
		{name: "several", input: "USER,ADMIN", want: Roles{RoleUser, RoleAdmin}},
		{name: "lowercase and spaces", input: " user , admin ", want: Roles{RoleUser, RoleAdmin}},
		{name: "duplicates dropped", input: "ADMIN,ADMIN,USER", want: Roles{RoleAdmin, RoleUser}},
		{name: "empty", input: "", wantErr: true},
		{name: "only commas", input: ",,", wantErr: true},
		{name: "unknown role", input: "USER,ROOT", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRoles(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRoles_AlwaysHasUser(t *testing.T) {
	assert.Equal(t, Roles{RoleUser}, NewRoles())
	assert.Equal(t, Roles{RoleUser, RoleAdmin}, NewRoles(RoleAdmin, RoleUser, RoleAdmin))
	assert.Equal(t, "USER,ADMIN", NewRoles(RoleAdmin).String())
}

func TestRoles_HasAnyHasAll(t *testing.T) {
	user := NewRoles()
	admin := NewRoles(RoleAdmin)

	tests := []struct {
		name     string
		have     Roles
		required []Role
		wantAny  bool
		wantAll  bool
	}{
		{name: "no requirement", have: user, wantAny: true, wantAll: true},
		{name: "user needs user", have: user, required: []Role{RoleUser}, wantAny: true, wantAll: true},
		{name: "user needs admin", have: user, required: []Role{RoleAdmin}, wantAny: false, wantAll: false},
		{name: "user needs user or admin", have: user, required: []Role{RoleUser, RoleAdmin}, wantAny: true, wantAll: false},
		{name: "admin needs both", have: admin, required: []Role{RoleUser, RoleAdmin}, wantAny: true, wantAll: true},
		{name: "empty set", have: nil, required: []Role{RoleUser}, wantAny: false, wantAll: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAny, tt.have.HasAny(tt.required...))
			assert.Equal(t, tt.wantAll, tt.have.HasAll(tt.required...))
		})
	}
}

func TestUser_Identity(t *testing.T) {
	u := &User{ID: 7, Email: "a@example.com", Username: "a", Roles: NewRoles(RoleAdmin), IsActive: true}

	assert.Equal(t, &Identity{ID: 7, Email: "a@example.com", Username: "a", Roles: Roles{RoleUser, RoleAdmin}}, u.Identity())
}

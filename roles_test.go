package users

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPolicyCan(t *testing.T) {
	admin := &User{ID: uuid.New(), Role: RoleAdmin}
	member := &User{ID: uuid.New(), Role: RoleUser}
	other := &User{ID: uuid.New(), Role: RoleUser}
	self := &User{ID: member.ID}

	tests := []struct {
		name     string
		policy   Policy
		actor    *User
		action   Action
		resource *User
		want     bool
	}{
		{"admin index", BrowserPolicy, admin, ActionIndex, nil, true},
		{"admin read other", BrowserPolicy, admin, ActionRead, other, true},
		{"admin create", BrowserPolicy, admin, ActionCreate, nil, true},
		{"admin update other", BrowserPolicy, admin, ActionUpdate, other, true},
		{"admin impersonate", BrowserPolicy, admin, ActionImpersonate, other, true},
		{"admin assign role", BrowserPolicy, admin, ActionAssignRole, other, true},
		{"admin browser destroy", BrowserPolicy, admin, ActionDestroy, other, false},
		{"admin api destroy", APIPolicy, admin, ActionDestroy, other, true},
		{"member index", BrowserPolicy, member, ActionIndex, nil, false},
		{"member create", APIPolicy, member, ActionCreate, nil, false},
		{"member read self", APIPolicy, member, ActionRead, self, true},
		{"member update self", APIPolicy, member, ActionUpdate, self, true},
		{"member read other", APIPolicy, member, ActionRead, other, false},
		{"member update other", APIPolicy, member, ActionUpdate, other, false},
		{"member destroy self", APIPolicy, member, ActionDestroy, self, false},
		{"member impersonate", BrowserPolicy, member, ActionImpersonate, other, false},
		{"member assign role self", APIPolicy, member, ActionAssignRole, self, false},
		{"member update nil resource", APIPolicy, member, ActionUpdate, nil, false},
		{"nil actor", APIPolicy, nil, ActionRead, other, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Can(tt.actor, tt.action, tt.resource))
		})
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "impersonate", ActionImpersonate.String())
	assert.Equal(t, "assign_role", ActionAssignRole.String())
	assert.Equal(t, "unknown", Action(99).String())
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("owner")
	assert.False(t, ok)

	assert.Equal(t, []UserRole{RoleUser, RoleAdmin}, ValidRoles())
}

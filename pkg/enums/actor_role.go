package enums

import "fmt"

// ActorRole identifies the marketplace role of the party performing an action.
type ActorRole string

const (
	ActorRoleCustomer   ActorRole = "customer"
	ActorRoleOwner      ActorRole = "owner"
	ActorRoleCourier    ActorRole = "courier"
	ActorRoleSupervisor ActorRole = "supervisor"
	ActorRoleAdmin      ActorRole = "admin"
	ActorRoleSystem     ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleCustomer,
	ActorRoleOwner,
	ActorRoleCourier,
	ActorRoleSupervisor,
	ActorRoleAdmin,
	ActorRoleSystem,
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}

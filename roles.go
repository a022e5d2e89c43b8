package users

// Action is an operation guarded by a Policy
type Action int

const (
	ActionIndex Action = iota
	ActionRead
	ActionCreate
	ActionUpdate
	ActionDestroy
	ActionImpersonate
	ActionAssignRole
)

func (a Action) String() string {
	switch a {
	case ActionIndex:
		return "index"
	case ActionRead:
		return "read"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDestroy:
		return "destroy"
	case ActionImpersonate:
		return "impersonate"
	case ActionAssignRole:
		return "assign_role"
	default:
		return "unknown"
	}
}

// Policy decides which actions a principal may perform on a user record.
// Can is a pure function of its arguments.
type Policy struct {
	// AllowAdminDestroy lets admins delete users
	AllowAdminDestroy bool
}

// BrowserPolicy guards the admin UI: admins manage users but never destroy them
var BrowserPolicy = Policy{}

// APIPolicy guards the JSON API, where admins may also destroy users
var APIPolicy = Policy{AllowAdminDestroy: true}

// Can reports whether actor may perform action on resource. resource may be
// nil for collection actions (index, create).
func (p Policy) Can(actor *User, action Action, resource *User) bool {
	if actor == nil {
		return false
	}

	if actor.IsAdmin() {
		switch action {
		case ActionIndex, ActionRead, ActionCreate, ActionUpdate, ActionImpersonate, ActionAssignRole:
			return true
		case ActionDestroy:
			return p.AllowAdminDestroy
		default:
			return false
		}
	}

	switch action {
	case ActionRead, ActionUpdate:
		return isSelf(actor, resource)
	default:
		return false
	}
}

func isSelf(actor, resource *User) bool {
	if actor == nil || resource == nil {
		return false
	}
	return actor.ID == resource.ID
}

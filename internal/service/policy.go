package service

import "github.com/zhejian/shortlink/internal/model"

// Action is an operation subject to the authorization policy. Redirects are
// not actions: resolution needs no actor.
type Action int

const (
	ActionCreate Action = iota
	ActionEdit
	ActionDelete
	ActionChangeStatus
	ActionReport
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionEdit:
		return "edit"
	case ActionDelete:
		return "delete"
	case ActionChangeStatus:
		return "change_status"
	case ActionReport:
		return "report"
	}
	return "unknown"
}

// Decision is the outcome of Authorize.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// ScopeFor returns the set of mappings actor may apply action to. The scope
// is what the store filters on, so existence and ownership are checked in the
// same query. ok is false when the action is denied outright.
func ScopeFor(actor model.Actor, action Action) (scope model.Scope, ok bool) {
	switch action {
	case ActionCreate:
		return model.Scope{OwnerID: actor.ID}, true
	case ActionEdit, ActionDelete, ActionChangeStatus:
		if actor.IsAdmin {
			return model.Scope{AnyOwner: true}, true
		}
		return model.Scope{OwnerID: actor.ID}, true
	case ActionReport:
		if actor.IsAdmin {
			return model.Scope{AnyOwner: true}, true
		}
	}
	return model.Scope{}, false
}

// Authorize decides whether actor may apply action to m. m is ignored for
// create and report, which do not target a single existing mapping.
func Authorize(actor model.Actor, m *model.URLMapping, action Action) Decision {
	scope, ok := ScopeFor(actor, action)
	if !ok {
		return Deny
	}
	switch action {
	case ActionCreate, ActionReport:
		return Allow
	}
	if scope.Permits(m) {
		return Allow
	}
	return Deny
}

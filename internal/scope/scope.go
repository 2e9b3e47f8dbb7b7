package scope

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ChatLister returns the ids of chats assigned to an agent.
type ChatLister interface {
	AssignedChatIDs(
		ctx context.Context, orgID, agentID string,
	) ([]string, error)
}

// Scope is the visibility applied to every analytics query of a
// request.
type Scope struct {
	OrgID    string `json:"organization_id"`
	CallerID string `json:"caller_id"`
	Role     Role   `json:"role"`
	// AgentID is set when results are narrowed to one agent,
	// either because the caller is one or because an org-wide
	// caller asked for a single agent.
	AgentID string `json:"agent_id,omitempty"`

	chatIDs []string
	empty   bool
}

// Restricted reports whether rows must be filtered by the chat
// allow-list.
func (s Scope) Restricted() bool { return s.AgentID != "" || s.empty }

// Empty reports whether the scope can never match any row.
func (s Scope) Empty() bool { return s.empty }

// ChatIDs returns the allow-list for a restricted scope.
func (s Scope) ChatIDs() []string { return s.chatIDs }

// AllowsChat reports whether a chat is visible.
func (s Scope) AllowsChat(chatID string) bool {
	if s.empty {
		return false
	}
	if !s.Restricted() {
		return true
	}
	return slices.Contains(s.chatIDs, chatID)
}

// AllowsAgent reports whether an agent's profile and metrics are
// visible.
func (s Scope) AllowsAgent(agentID string) bool {
	if s.empty {
		return false
	}
	return s.AgentID == "" || s.AgentID == agentID
}

// ErrMissingOrganization is returned when no organization id was
// supplied.
var ErrMissingOrganization = errors.New("organization id is required")

// ErrMissingCaller is returned when no caller id was supplied.
var ErrMissingCaller = errors.New("caller id is required")

// Request is the input to Build.
type Request struct {
	OrgID    string
	CallerID string
	// AgentFilter optionally narrows org-wide callers to one
	// agent.
	AgentFilter string
}

// Build resolves the caller's role and computes the scope. Agent
// and unknown-role callers only see chats assigned to them; an
// agent with no assigned chats, or one asking for another agent,
// gets an empty scope.
func Build(
	ctx context.Context,
	roles RoleResolver, chats ChatLister, req Request,
) (Scope, error) {
	if req.OrgID == "" {
		return Scope{}, ErrMissingOrganization
	}
	if req.CallerID == "" {
		return Scope{}, ErrMissingCaller
	}

	role, err := roles.ResolveRole(ctx, req.OrgID, req.CallerID)
	if err != nil {
		return Scope{}, err
	}

	s := Scope{
		OrgID: req.OrgID, CallerID: req.CallerID, Role: role,
	}
	if role.OrgWide() {
		if req.AgentFilter == "" {
			return s, nil
		}
		s.AgentID = req.AgentFilter
	} else {
		s.AgentID = req.CallerID
		if req.AgentFilter != "" &&
			req.AgentFilter != req.CallerID {
			s.empty = true
			return s, nil
		}
	}

	ids, err := chats.AssignedChatIDs(ctx, req.OrgID, s.AgentID)
	if err != nil {
		return Scope{}, fmt.Errorf(
			"listing assigned chats: %w", err,
		)
	}
	s.chatIDs = ids
	s.empty = len(ids) == 0
	return s, nil
}

// Denied returns an empty scope for the caller. Used when the
// scope cannot be computed safely.
func Denied(orgID, callerID string) Scope {
	return Scope{
		OrgID: orgID, CallerID: callerID,
		Role: RoleUnknown, AgentID: callerID, empty: true,
	}
}

// ABOUTME: Workspace-scope resolution: finds the request's workspace and the caller's membership in it.
// ABOUTME: Never fails; lookup errors degrade to "no workspace" so global roles apply.
package authz

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Membership is one (workspace, user) row with its workspace-scoped role.
type Membership struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	UserID      uuid.UUID `json:"user_id"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// Scope is the workspace context of one request. A zero Scope means the
// request is not scoped to any workspace.
type Scope struct {
	WorkspaceID   *uuid.UUID
	WorkspaceRole Role
	Membership    *Membership
}

// InWorkspace reports whether the request carries a resolved workspace.
func (s Scope) InWorkspace() bool { return s.WorkspaceID != nil }

// ScopeHints are the raw identifiers found on a request, by source.
type ScopeHints struct {
	BodyWorkspaceID   string
	QueryWorkspaceID  string
	PathWorkspaceID   string
	HeaderWorkspaceID string

	BodyProjectID  string
	QueryProjectID string
	PathProjectID  string

	PathMemberID string
}

// Hint kinds, named after the field that carries them.
const (
	HintWorkspace = "workspace_id"
	HintProject   = "project_id"
	HintMember    = "member_id"
)

// winner returns the kind and value of the identifier that decides the
// workspace: the first non-empty direct workspace id, else the first project
// id, else the path member id.
func (h ScopeHints) winner() (kind, raw string) {
	groups := []struct {
		kind string
		vals []string
	}{
		{HintWorkspace, []string{h.BodyWorkspaceID, h.QueryWorkspaceID, h.PathWorkspaceID, h.HeaderWorkspaceID}},
		{HintProject, []string{h.BodyProjectID, h.QueryProjectID, h.PathProjectID}},
		{HintMember, []string{h.PathMemberID}},
	}
	for _, g := range groups {
		for _, v := range g.vals {
			if v = strings.TrimSpace(v); v != "" {
				return g.kind, v
			}
		}
	}
	return "", ""
}

// Malformed returns the kind of the deciding identifier when it is not a
// UUID, or "" when it parses or there is none. Identifiers that lose to a
// higher-precedence source are not inspected.
func (h ScopeHints) Malformed() string {
	kind, raw := h.winner()
	if raw == "" {
		return ""
	}
	if _, err := uuid.Parse(raw); err != nil {
		return kind
	}
	return ""
}

// ScopeStore is the storage the resolver reads. Every lookup returns
// (nil, nil) when nothing is found.
type ScopeStore interface {
	// ProjectWorkspaceID returns the workspace a project belongs to, or nil for
	// a missing project or a global project.
	ProjectWorkspaceID(ctx context.Context, projectID uuid.UUID) (*uuid.UUID, error)
	// MemberWorkspaceID does the same for a member directory entry.
	MemberWorkspaceID(ctx context.Context, memberID uuid.UUID) (*uuid.UUID, error)
	GetWorkspaceMembership(ctx context.Context, workspaceID, userID uuid.UUID) (*Membership, error)
}

// ScopeResolver turns ScopeHints into a Scope for one caller.
type ScopeResolver struct {
	store ScopeStore
	log   *slog.Logger
}

// NewScopeResolver returns a resolver reading from s.
func NewScopeResolver(s ScopeStore) *ScopeResolver {
	return &ScopeResolver{store: s, log: slog.Default()}
}

// Resolve determines the workspace for the request and the caller's membership
// in it. The first non-empty source wins: body, query, path, header, then a
// project id (body, query, path), then a member id from the path. Project and
// member ids are looked up to find their workspace. A malformed identifier in
// the winning source means no workspace.
func (r *ScopeResolver) Resolve(ctx context.Context, userID uuid.UUID, h ScopeHints) Scope {
	wsID, ok := r.workspaceID(ctx, h)
	if !ok {
		return Scope{}
	}

	m, err := r.store.GetWorkspaceMembership(ctx, wsID, userID)
	if err != nil {
		r.log.WarnContext(ctx, "scope: membership lookup failed, continuing without workspace",
			"workspace_id", wsID, "user_id", userID, "error", err)
		return Scope{}
	}

	s := Scope{WorkspaceID: &wsID}
	if m != nil {
		s.WorkspaceRole = m.Role
		s.Membership = m
	}
	return s
}

func (r *ScopeResolver) workspaceID(ctx context.Context, h ScopeHints) (uuid.UUID, bool) {
	kind, raw := h.winner()
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	if kind == HintWorkspace {
		return id, true
	}

	var wsID *uuid.UUID
	if kind == HintProject {
		wsID, err = r.store.ProjectWorkspaceID(ctx, id)
	} else {
		wsID, err = r.store.MemberWorkspaceID(ctx, id)
	}
	if err != nil {
		r.log.WarnContext(ctx, "scope: workspace lookup failed, continuing without workspace",
			"source", kind, "id", id, "error", err)
		return uuid.Nil, false
	}
	if wsID == nil {
		return uuid.Nil, false
	}
	return *wsID, true
}

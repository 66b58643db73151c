// Package authz is the authorization core: the closed role vocabulary, the
// precedence between global and workspace roles, the named permission gates,
// workspace-scope resolution, resource-ownership checks, and the membership
// side effect of creating a member record.
//
// Request pipeline order is fixed: identity → [ScopeResolver.Resolve] →
// [Authorize] with a [Gate] → [CanMutateAuthored] / [CheckWorkspaceScope] →
// mutation. Everything except the resolver and the [Linker] is pure.
package authz

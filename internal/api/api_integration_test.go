// ABOUTME: Integration tests for the HTTP API against a real Postgres via testutil.NewTestDB.
// ABOUTME: Drives the full srv.Handler() stack: auth, workspace scoping, gates, ownership, auto-link.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/config"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/notify"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/store"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/testutil"
)

// apiEnv is one server over one fresh database.
type apiEnv struct {
	t     *testing.T
	store *store.Store
	ts    *httptest.Server
}

func newAPIEnv(t *testing.T, mutate func(*config.Config)) *apiEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	cfg := &config.Config{ //nolint:exhaustruct // test: only relevant fields set
		JWTSecret:           "api-integration-secret-32-bytes-long",
		RegistrationMode:    "open",
		Argon2MaxConcurrent: 5,
		OwnershipPolicy:     config.OwnershipPolicyStrict,
		NotifyEnabled:       true,
	}
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := NewServer(db, cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &apiEnv{t: t, store: db, ts: ts}
}

// call sends a JSON request with an optional bearer token and workspace header.
func (e *apiEnv) call(method, path, token string, ws *uuid.UUID, body any) (int, []byte) {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.ts.URL+"/api/v1"+path, rd)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if ws != nil {
		req.Header.Set(workspaceHeader, ws.String())
	}
	resp, err := e.ts.Client().Do(req) //nolint:gosec // G704 false positive: ts.URL is httptest.Server
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck,gosec // G104
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

// must is call that fails the test unless the status matches, then decodes
// the data field into v (when v is non-nil).
func (e *apiEnv) must(want int, method, path, token string, ws *uuid.UUID, body, v any) {
	e.t.Helper()
	got, raw := e.call(method, path, token, ws, body)
	if got != want {
		e.t.Fatalf("%s %s: got %d, want %d: %s", method, path, got, want, raw)
	}
	if v == nil {
		return
	}
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		e.t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	if !env.Success {
		e.t.Fatalf("%s %s: success=false: %s", method, path, raw)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		e.t.Fatalf("%s %s: decode data: %v", method, path, err)
	}
}

// message returns the message of an error body.
func message(t *testing.T, raw []byte) string {
	t.Helper()
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		t.Fatalf("decode error body: %v: %s", err, raw)
	}
	if eb.Success {
		t.Fatalf("error body has success=true: %s", raw)
	}
	return eb.Message
}

type loginData struct {
	AccessToken string   `json:"access_token"`
	User        userBody `json:"user"`
}

// signup registers email and logs in, returning the user id and token.
func (e *apiEnv) signup(email string) (uuid.UUID, string) {
	e.t.Helper()
	var reg userBody
	e.must(http.StatusCreated, http.MethodPost, "/auth/register", "", nil,
		map[string]string{"email": email, "password": "correct horse battery"}, &reg)
	var login loginData
	e.must(http.StatusOK, http.MethodPost, "/auth/login", "", nil,
		map[string]string{"email": email, "password": "correct horse battery"}, &login)
	id, err := uuid.Parse(login.User.ID)
	if err != nil {
		e.t.Fatalf("parse user id: %v", err)
	}
	return id, login.AccessToken
}

type idOnly struct {
	ID uuid.UUID `json:"id"`
}

func (e *apiEnv) createWorkspace(token, name string) uuid.UUID {
	e.t.Helper()
	var ws idOnly
	e.must(http.StatusCreated, http.MethodPost, "/workspaces", token, nil, map[string]string{"name": name}, &ws)
	return ws.ID
}

func (e *apiEnv) setRole(token string, ws, user uuid.UUID, role string) {
	e.t.Helper()
	e.must(http.StatusOK, http.MethodPut, fmt.Sprintf("/workspaces/%s/members/%s", ws, user), token, &ws,
		map[string]string{"role": role}, nil)
}

func TestAuth_RegisterLoginAndMe(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, nil)

	var first, second userBody
	e.must(http.StatusCreated, http.MethodPost, "/auth/register", "", nil,
		map[string]string{"email": "first@example.com", "password": "password-one"}, &first)
	e.must(http.StatusCreated, http.MethodPost, "/auth/register", "", nil,
		map[string]string{"email": "second@example.com", "password": "password-two", "display_name": "Second"}, &second)
	if first.GlobalRole != "admin" {
		t.Errorf("first user role: got %q, want admin", first.GlobalRole)
	}
	if second.GlobalRole != "member" || second.DisplayName != "Second" {
		t.Errorf("second user: got %+v", second)
	}

	code, raw := e.call(http.MethodPost, "/auth/register", "", nil,
		map[string]string{"email": "FIRST@example.com", "password": "password-x"})
	if code != http.StatusConflict {
		t.Fatalf("duplicate register: got %d, want 409: %s", code, raw)
	}
	if msg := message(t, raw); msg != "email already registered" {
		t.Errorf("duplicate register message: %q", msg)
	}

	code, _ = e.call(http.MethodPost, "/auth/login", "", nil,
		map[string]string{"email": "first@example.com", "password": "wrong-password"})
	if code != http.StatusUnauthorized {
		t.Errorf("wrong password: got %d, want 401", code)
	}
	code, _ = e.call(http.MethodPost, "/auth/login", "", nil,
		map[string]string{"email": "nobody@example.com", "password": "whatever1"})
	if code != http.StatusUnauthorized {
		t.Errorf("unknown email: got %d, want 401", code)
	}

	// Login sets the cookie and returns the same token in the body.
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, e.ts.URL+"/api/v1/auth/login",
		bytes.NewBufferString(`{"email":"second@example.com","password":"password-two"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.ts.Client().Do(req) //nolint:gosec // G704 false positive
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck,gosec // G104
	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == accessCookie {
			cookie = c.Value
		}
	}
	if cookie == "" {
		t.Fatal("login: no access_token cookie")
	}

	meReq, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, e.ts.URL+"/api/v1/me", nil)
	meReq.AddCookie(&http.Cookie{Name: accessCookie, Value: cookie})
	meResp, err := e.ts.Client().Do(meReq) //nolint:gosec // G704 false positive
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer meResp.Body.Close() //nolint:errcheck,gosec // G104
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("me via cookie: got %d, want 200", meResp.StatusCode)
	}

	code, raw = e.call(http.MethodGet, "/me", "", nil, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("me without credential: got %d, want 401", code)
	}
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	if eb.Code != codeCredentialMissing {
		t.Errorf("me without credential code: got %q", eb.Code)
	}
}

func TestAuth_RegistrationClosed(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, func(c *config.Config) { c.RegistrationMode = "closed" })
	code, raw := e.call(http.MethodPost, "/auth/register", "", nil,
		map[string]string{"email": "x@example.com", "password": "password-x"})
	if code != http.StatusForbidden {
		t.Fatalf("got %d, want 403: %s", code, raw)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, nil)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, e.ts.URL+"/healthz", nil)
	resp, err := e.ts.Client().Do(req) //nolint:gosec // G704 false positive
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck,gosec // G104
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: got %d, want 200", resp.StatusCode)
	}
}

// A global member who is team lead of W1 can create projects in W1 but not
// outside any workspace.
func TestWorkspaceRoleGovernsGate(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, nil)
	_, adminTok := e.signup("owner@example.com")
	leadID, leadTok := e.signup("lead@example.com")

	w1 := e.createWorkspace(adminTok, "W1")
	e.setRole(adminTok, w1, leadID, "team-lead")

	var p idOnly
	e.must(http.StatusCreated, http.MethodPost, "/projects", leadTok, &w1, map[string]string{"name": "Apollo"}, &p)

	code, raw := e.call(http.MethodPost, "/projects", leadTok, nil, map[string]string{"name": "Global"})
	if code != http.StatusForbidden {
		t.Fatalf("global member creating project: got %d, want 403: %s", code, raw)
	}

	// Deriving the workspace from the project path gives the same role.
	e.must(http.StatusOK, http.MethodPatch, "/projects/"+p.ID.String(), leadTok, nil,
		map[string]string{"description": "moon"}, nil)

	// The global admin is only a project manager inside W1, so admin-only
	// user administration is still decided by the global role.
	e.must(http.StatusOK, http.MethodGet, "/users", adminTok, nil, nil, nil)
	code, _ = e.call(http.MethodGet, "/users", leadTok, nil, nil)
	if code != http.StatusForbidden {
		t.Errorf("member listing users: got %d, want 403", code)
	}
}

func TestWorkspace_NonMemberDenied(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, nil)
	_, adminTok := e.signup("a@example.com")
	_, outsiderTok := e.signup("b@example.com")
	w := e.createWorkspace(adminTok, "Private")

	code, raw := e.call(http.MethodGet, "/workspaces/"+w.String(), outsiderTok, nil, nil)
	if code != http.StatusForbidden {
		t.Fatalf("outsider get workspace: got %d, want 403", code)
	}
	if msg := message(t, raw); msg != "you are not a member of this workspace" {
		t.Errorf("message: %q", msg)
	}
}

func TestWorkspace_OwnerCannotBeRemovedOrDemoted(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, nil)
	ownerID, ownerTok := e.signup("o@example.com")
	w := e.createWorkspace(ownerTok, "Keep")
	code, _ := e.call(http.MethodDelete, fmt.Sprintf("/workspaces/%s/members/%s", w, ownerID), ownerTok, nil, nil)
	if code != http.StatusConflict {
		t.Fatalf("remove owner: got %d, want 409", code)
	}

	path := fmt.Sprintf("/workspaces/%s/members/%s", w, ownerID)
	code, raw := e.call(http.MethodPut, path, ownerTok, nil, map[string]string{"role": "client"})
	if code != http.StatusConflict {
		t.Fatalf("demote owner: got %d, want 409", code)
	}
	if msg := message(t, raw); msg != "the workspace owner must remain project-manager" {
		t.Errorf("message: %q", msg)
	}
	e.must(http.StatusOK, http.MethodPut, path, ownerTok, nil, map[string]string{"role": "project-manager"}, nil)
}

// A project looked up under another workspace's context is forbidden, not missing.
func TestProject_CrossWorkspaceIsForbidden(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, nil)
	_, tok := e.signup("pm@example.com")
	w1 := e.createWorkspace(tok, "W1")
	w2 := e.createWorkspace(tok, "W2")

	var p idOnly
	e.must(http.StatusCreated, http.MethodPost, "/projects", tok, &w1, map[string]string{"name": "In W1"}, &p)

	code, raw := e.call(http.MethodGet, "/projects/"+p.ID.String(), tok, &w2, nil)
	if code != http.StatusForbidden {
		t.Fatalf("cross-workspace get: got %d, want 403: %s", code, raw)
	}
	if msg := message(t, raw); msg != "resource does not belong to the active workspace" {
		t.Errorf("message: %q", msg)
	}

	code, _ = e.call(http.MethodGet, "/projects/"+uuid.NewString(), tok, &w1, nil)
	if code != http.StatusNotFound {
		t.Errorf("missing project: got %d, want 404", code)
	}

	e.must(http.StatusOK, http.MethodGet, "/projects/"+p.ID.String(), tok, &w1, nil, nil)
}

func TestComment_NonAuthorCannotModify(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, nil)
	_, pmTok := e.signup("pm@example.com")
	authorID, authorTok := e.signup("author@example.com")
	otherID, otherTok := e.signup("other@example.com")

	w := e.createWorkspace(pmTok, "Team")
	e.setRole(pmTok, w, authorID, "member")
	e.setRole(pmTok, w, otherID, "team-lead")

	var p idOnly
	e.must(http.StatusCreated, http.MethodPost, "/projects", pmTok, &w, map[string]string{"name": "P"}, &p)
	base := "/projects/" + p.ID.String() + "/comments"

	var c idOnly
	e.must(http.StatusCreated, http.MethodPost, base, authorTok, nil, map[string]string{"body": "original"}, &c)

	for _, tok := range []string{otherTok, pmTok} {
		code, raw := e.call(http.MethodPatch, base+"/"+c.ID.String(), tok, nil, map[string]string{"body": "hijacked"})
		if code != http.StatusForbidden {
			t.Fatalf("non-author edit: got %d, want 403: %s", code, raw)
		}
		code, _ = e.call(http.MethodDelete, base+"/"+c.ID.String(), tok, nil, nil)
		if code != http.StatusForbidden {
			t.Fatalf("non-author delete: got %d, want 403", code)
		}
	}

	var list []struct {
		ID   uuid.UUID `json:"id"`
		Body string    `json:"body"`
	}
	e.must(http.StatusOK, http.MethodGet, base, authorTok, nil, nil, &list)
	if len(list) != 1 || list[0].Body != "original" {
		t.Fatalf("comment after denied edits: %+v", list)
	}

	e.must(http.StatusOK, http.MethodPatch, base+"/"+c.ID.String(), authorTok, nil, map[string]string{"body": "edited"}, nil)
	e.must(http.StatusNoContent, http.MethodDelete, base+"/"+c.ID.String(), authorTok, nil, nil, nil)
}

// Creating a member record whose email matches a user admits that user once
// as a member and never demotes them afterwards.
func TestMember_AutoLinkIsIdempotentAndNeverDemotes(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, nil)
	_, pmTok := e.signup("pm@example.com")
	userID, userTok := e.signup("dana@example.com")
	w := e.createWorkspace(pmTok, "Crew")

	member := map[string]string{"name": "Dana", "email": "dana@example.com", "position": "QA"}
	e.must(http.StatusCreated, http.MethodPost, "/members", pmTok, &w, member, nil)

	type wsMember struct {
		UserID uuid.UUID `json:"user_id"`
		Role   string    `json:"role"`
	}
	roster := func() map[uuid.UUID]string {
		var list []wsMember
		e.must(http.StatusOK, http.MethodGet, "/workspaces/"+w.String()+"/members", pmTok, nil, nil, &list)
		out := make(map[uuid.UUID]string, len(list))
		for _, m := range list {
			out[m.UserID] = m.Role
		}
		return out
	}
	if got := roster()[userID]; got != "member" {
		t.Fatalf("after auto-link: role %q, want member", got)
	}

	e.setRole(pmTok, w, userID, "team-lead")
	e.must(http.StatusCreated, http.MethodPost, "/members", pmTok, &w, member, nil)

	r := roster()
	if len(r) != 2 {
		t.Fatalf("roster size: got %d, want 2", len(r))
	}
	if r[userID] != "team-lead" {
		t.Fatalf("after second create: role %q, want team-lead", r[userID])
	}

	// The linked user now sees the workspace's directory.
	var dir []idOnly
	e.must(http.StatusOK, http.MethodGet, "/members/search?q=dan", userTok, &w, nil, &dir)
	if len(dir) != 2 {
		t.Errorf("search: got %d entries, want 2", len(dir))
	}
}

func TestTaskAssignmentNotifiesAssignee(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, nil)
	_, pmTok := e.signup("pm@example.com")
	devID, devTok := e.signup("dev@example.com")
	w := e.createWorkspace(pmTok, "Build")
	e.setRole(pmTok, w, devID, "member")

	var p idOnly
	e.must(http.StatusCreated, http.MethodPost, "/projects", pmTok, &w, map[string]string{"name": "P"}, &p)
	var task idOnly
	tasks := "/projects/" + p.ID.String() + "/tasks"
	e.must(http.StatusCreated, http.MethodPost, tasks, pmTok, nil,
		map[string]string{"title": "Ship it", "priority": "high", "due_date": "2026-12-01"}, &task)

	assign := fmt.Sprintf("%s/%s/assignees/%s", tasks, task.ID, devID)
	e.must(http.StatusOK, http.MethodPut, assign, pmTok, nil, nil, nil)
	e.must(http.StatusOK, http.MethodPut, assign, pmTok, nil, nil, nil) // no second job

	// A member cannot assign.
	code, _ := e.call(http.MethodPut, assign, devTok, nil, nil)
	if code != http.StatusForbidden {
		t.Errorf("member assigning: got %d, want 403", code)
	}

	var filtered []idOnly
	e.must(http.StatusOK, http.MethodGet, tasks+"?assignee="+devID.String(), devTok, nil, nil, &filtered)
	if len(filtered) != 1 {
		t.Errorf("tasks assigned to dev: got %d, want 1", len(filtered))
	}
	e.must(http.StatusOK, http.MethodGet, tasks+"?status=done", devTok, nil, nil, &filtered)
	if len(filtered) != 0 {
		t.Errorf("done tasks: got %d, want 0", len(filtered))
	}

	ctx := context.Background()
	job, err := e.store.ClaimJob(ctx, notify.Queue, "test-worker")
	if err != nil || job == nil {
		t.Fatalf("claim notify job: job=%v err=%v", job, err)
	}
	if err := notify.NewHandler(e.store, nil, "").Handle(ctx, job.Payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := e.store.CompleteJob(ctx, job.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if again, _ := e.store.ClaimJob(ctx, notify.Queue, "test-worker"); again != nil {
		t.Error("repeat assignment enqueued a second job")
	}

	var mine []idOnly
	e.must(http.StatusOK, http.MethodGet, "/notifications?unread=true", devTok, nil, nil, &mine)
	if len(mine) != 1 {
		t.Fatalf("assignee notifications: got %d, want 1", len(mine))
	}
	var pmList []idOnly
	e.must(http.StatusOK, http.MethodGet, "/notifications", pmTok, nil, nil, &pmList)
	if len(pmList) != 0 {
		t.Errorf("actor notifications: got %d, want 0", len(pmList))
	}

	code, _ = e.call(http.MethodPost, "/notifications/"+mine[0].ID.String()+"/read", pmTok, nil, nil)
	if code != http.StatusNotFound {
		t.Errorf("marking another user's notification: got %d, want 404", code)
	}
	e.must(http.StatusNoContent, http.MethodPost, "/notifications/"+mine[0].ID.String()+"/read", devTok, nil, nil, nil)
}

func TestTask_WrongParentIsNotFound(t *testing.T) {
	t.Parallel()
	e := newAPIEnv(t, nil)
	_, tok := e.signup("pm@example.com")
	w := e.createWorkspace(tok, "W")

	var p1, p2, task idOnly
	e.must(http.StatusCreated, http.MethodPost, "/projects", tok, &w, map[string]string{"name": "P1"}, &p1)
	e.must(http.StatusCreated, http.MethodPost, "/projects", tok, &w, map[string]string{"name": "P2"}, &p2)
	e.must(http.StatusCreated, http.MethodPost, "/projects/"+p1.ID.String()+"/tasks", tok, nil,
		map[string]string{"title": "T"}, &task)

	code, _ := e.call(http.MethodGet, "/projects/"+p2.ID.String()+"/tasks/"+task.ID.String(), tok, nil, nil)
	if code != http.StatusNotFound {
		t.Fatalf("task under wrong project: got %d, want 404", code)
	}
	code, _ = e.call(http.MethodPatch, "/projects/"+p1.ID.String()+"/tasks/"+task.ID.String(), tok, nil,
		map[string]string{"status": "blocked"})
	if code != http.StatusBadRequest {
		t.Errorf("invalid status: got %d, want 400", code)
	}
}

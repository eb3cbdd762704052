package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/noteservice"
	"github.com/starford/quire/internal/sse"
	"github.com/starford/quire/internal/testutil"
	"github.com/starford/quire/internal/workspace"
)

type testEnv struct {
	notes  *noteservice.Service
	ws     *workspace.Workspace
	router http.Handler
}

func newEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	return newEnvWithSSE(t, authToken != "", authToken, nil)
}

func newEnvWithSSE(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) *testEnv {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	logger := testutil.Logger()

	notes := noteservice.NewService(store, db, logger)
	if err := notes.EnsureLayout(context.Background()); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}

	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	ws := workspace.New(notes, nil, broker, logger, workspace.Config{AutoSave: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = ws.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testEnv{
		notes:  notes,
		ws:     ws,
		router: NewRouter(notes, ws, authEnabled, authToken, sseHandler),
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		req = httptest.NewRequest(method, target, bytes.NewReader(data))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) save(t *testing.T, p, content string) {
	t.Helper()
	if err := e.notes.Save(context.Background(), p, content); err != nil {
		t.Fatalf("Save(%s): %v", p, err)
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetNote(t *testing.T) {
	e := newEnv(t, "")

	w := e.do(t, http.MethodPost, "/notes", CreateNoteRequest{Dir: ".", Name: "Hello World"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[PathResponse](t, w).Path; got != "Hello_World.md" {
		t.Errorf("path = %q", got)
	}

	w = e.do(t, http.MethodGet, "/notes/Hello_World.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	note := decode[NoteResponse](t, w)
	if note.Path != "Hello_World.md" || note.Content != "" {
		t.Errorf("note = %+v", note)
	}
	if note.Backlinks == nil || note.Outgoing == nil {
		t.Error("link lists should be empty, not null")
	}
}

func TestCreateDuplicate(t *testing.T) {
	e := newEnv(t, "")

	body := CreateNoteRequest{Name: "dup"}
	if w := e.do(t, http.MethodPost, "/notes", body); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/notes", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateNote_Invalid(t *testing.T) {
	e := newEnv(t, "")

	if w := e.do(t, http.MethodPost, "/notes", CreateNoteRequest{Name: "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty name = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/notes", CreateNoteRequest{Dir: ".trash", Name: "x"}); w.Code != http.StatusForbidden {
		t.Errorf("create in trash = %d, want 403", w.Code)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	e := newEnv(t, "")
	if w := e.do(t, http.MethodGet, "/notes/nope.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestTree(t *testing.T) {
	e := newEnv(t, "")
	if w := e.do(t, http.MethodPost, "/dirs", CreateDirRequest{Parent: ".", Name: "projects"}); w.Code != http.StatusCreated {
		t.Fatalf("mkdir = %d, body = %s", w.Code, w.Body.String())
	}
	e.save(t, "projects/plan.md", "plan")

	w := e.do(t, http.MethodGet, "/tree", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tree = %d", w.Code)
	}
	items := decode[TreeResponse](t, w).Items
	var paths []string
	for _, it := range items {
		paths = append(paths, it.Path)
	}
	want := []string{"projects", "projects/plan.md", "home.md", ".journal", ".trash"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
	if items[4].Kind != models.KindTrash {
		t.Errorf("trash kind = %q", items[4].Kind)
	}
}

func TestDeleteDir(t *testing.T) {
	e := newEnv(t, "")
	e.save(t, "full/a.md", "a")
	_ = e.do(t, http.MethodPost, "/dirs", CreateDirRequest{Name: "empty"})

	if w := e.do(t, http.MethodDelete, "/dirs/full", nil); w.Code != http.StatusConflict {
		t.Errorf("delete non-empty = %d, want 409", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/dirs/empty", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete empty = %d, want 204", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/dirs/.journal", nil); w.Code != http.StatusForbidden {
		t.Errorf("delete journal = %d, want 403", w.Code)
	}
}

func TestRenameRewritesLinksInOpenNote(t *testing.T) {
	e := newEnv(t, "")
	e.save(t, "a.md", "see [[b]]")
	e.save(t, "b.md", "bee")

	if w := e.do(t, http.MethodPost, "/session/open", OpenRequest{Path: "a.md"}); w.Code != http.StatusOK {
		t.Fatalf("open = %d", w.Code)
	}
	_ = e.do(t, http.MethodPost, "/session/insert", InsertRequest{Pos: 9, Text: "!"})

	w := e.do(t, http.MethodPost, "/rename", RenameRequest{Path: "b.md", Name: "c"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[RelocateResponse](t, w)
	if res.Path != "c.md" || len(res.Changed) != 1 || res.Changed[0] != "a.md" {
		t.Errorf("rename result = %+v", res)
	}

	snap := decode[workspace.Snapshot](t, e.do(t, http.MethodGet, "/session", nil))
	if snap.Text != "see [[c]]!" || snap.Dirty {
		t.Errorf("session = %+v", snap)
	}
}

func TestMoveOpenNote(t *testing.T) {
	e := newEnv(t, "")
	e.save(t, "inbox/idea.md", "idea")
	_ = e.do(t, http.MethodPost, "/dirs", CreateDirRequest{Name: "projects"})
	_ = e.do(t, http.MethodPost, "/session/open", OpenRequest{Path: "inbox/idea.md"})

	w := e.do(t, http.MethodPost, "/move", MoveRequest{Path: "inbox", Target: "projects"})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	snap := decode[workspace.Snapshot](t, e.do(t, http.MethodGet, "/session", nil))
	if snap.Path != "projects/inbox/idea.md" {
		t.Errorf("session path = %q", snap.Path)
	}

	if w := e.do(t, http.MethodPost, "/move", MoveRequest{Path: "projects", Target: "projects/inbox"}); w.Code != http.StatusConflict {
		t.Errorf("move into own subtree = %d, want 409", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/move", MoveRequest{Path: "projects", Target: ".journal"}); w.Code != http.StatusForbidden {
		t.Errorf("move into journal = %d, want 403", w.Code)
	}
}

func TestTrashClosesOpenNote(t *testing.T) {
	e := newEnv(t, "")
	e.save(t, "a.md", "")
	_ = e.do(t, http.MethodPost, "/session/open", OpenRequest{Path: "a.md"})
	_ = e.do(t, http.MethodPost, "/session/insert", InsertRequest{Pos: 0, Text: "keep me"})

	w := e.do(t, http.MethodPost, "/trash", PathRequest{Path: "a.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("trash = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[PathResponse](t, w).Path; got != ".trash/a.md" {
		t.Errorf("trash path = %q", got)
	}
	snap := decode[workspace.Snapshot](t, e.do(t, http.MethodGet, "/session", nil))
	if snap.Open {
		t.Error("trashed note still open")
	}
	content, err := e.notes.Read(context.Background(), ".trash/a.md")
	if err != nil || content != "keep me" {
		t.Errorf("trashed content = %q, %v", content, err)
	}

	if w := e.do(t, http.MethodPost, "/session/open", OpenRequest{Path: ".trash/a.md"}); w.Code != http.StatusForbidden {
		t.Errorf("open trashed = %d, want 403", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/trash", PathRequest{Path: ".journal"}); w.Code != http.StatusForbidden {
		t.Errorf("trash journal = %d, want 403", w.Code)
	}
}

func TestSessionEditFlow(t *testing.T) {
	e := newEnv(t, "")
	e.save(t, "a.md", "ab")
	_ = e.do(t, http.MethodPost, "/session/open", OpenRequest{Path: "a.md"})

	_ = e.do(t, http.MethodPost, "/session/cursor", PosRequest{Pos: 1})
	snap := decode[workspace.Snapshot](t, e.do(t, http.MethodPost, "/session/key", KeyRequest{Key: "Enter"}))
	if snap.Text != "a\nb" || !snap.Dirty {
		t.Fatalf("after enter = %+v", snap)
	}
	snap = decode[workspace.Snapshot](t, e.do(t, http.MethodPost, "/session/undo", nil))
	if snap.Text != "ab" || !snap.CanRedo {
		t.Fatalf("after undo = %+v", snap)
	}
	snap = decode[workspace.Snapshot](t, e.do(t, http.MethodPost, "/session/redo", nil))
	if snap.Text != "a\nb" {
		t.Fatalf("after redo = %q", snap.Text)
	}
	snap = decode[workspace.Snapshot](t, e.do(t, http.MethodPost, "/session/delete", DeleteRequest{Start: 0, End: 2}))
	if snap.Text != "b" {
		t.Fatalf("after delete = %q", snap.Text)
	}
	snap = decode[workspace.Snapshot](t, e.do(t, http.MethodPost, "/session/save", nil))
	if snap.Dirty {
		t.Error("dirty after save")
	}
	note := decode[NoteResponse](t, e.do(t, http.MethodGet, "/notes/a.md", nil))
	if note.Content != "b" {
		t.Errorf("stored = %q", note.Content)
	}

	if w := e.do(t, http.MethodPost, "/session/key", KeyRequest{Key: "f1"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown key = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/session/close", nil); w.Code != http.StatusNoContent {
		t.Errorf("close = %d", w.Code)
	}
}

func TestSessionWithoutDocument(t *testing.T) {
	e := newEnv(t, "")
	if w := e.do(t, http.MethodPost, "/session/insert", InsertRequest{Text: "x"}); w.Code != http.StatusConflict {
		t.Errorf("insert without note = %d, want 409", w.Code)
	}
	snap := decode[workspace.Snapshot](t, e.do(t, http.MethodGet, "/session", nil))
	if snap.Open || snap.Jobs == nil {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSessionReadOnly(t *testing.T) {
	e := newEnv(t, "")
	e.save(t, "a.md", "go to [[b]]")
	_ = e.do(t, http.MethodPost, "/session/open", OpenRequest{Path: "a.md"})

	snap := decode[workspace.Snapshot](t, e.do(t, http.MethodPost, "/session/readonly", ReadOnlyRequest{Enabled: true}))
	if snap.Display == nil || snap.Display.Text != "go to b" {
		t.Fatalf("display = %+v", snap.Display)
	}
	if w := e.do(t, http.MethodPost, "/session/insert", InsertRequest{Pos: 0, Text: "x"}); w.Code != http.StatusLocked {
		t.Errorf("insert in read-only = %d, want 423", w.Code)
	}
	hover := decode[HoverResponse](t, e.do(t, http.MethodGet, "/session/hover?pos=6", nil))
	if !hover.Hit || hover.Link != "b" {
		t.Errorf("hover = %+v", hover)
	}
	if w := e.do(t, http.MethodGet, "/session/hover?pos=x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad hover pos = %d", w.Code)
	}
}

func TestSessionClickCreatesTarget(t *testing.T) {
	e := newEnv(t, "")
	e.save(t, "a.md", "[[New Note]]")
	_ = e.do(t, http.MethodPost, "/session/open", OpenRequest{Path: "a.md"})

	w := e.do(t, http.MethodPost, "/session/click", PosRequest{Pos: 3})
	if w.Code != http.StatusOK {
		t.Fatalf("click = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[ClickResponse](t, w)
	if !res.Hit || res.Snapshot.Path != "New_Note.md" {
		t.Errorf("click = %+v", res)
	}
	if w := e.do(t, http.MethodGet, "/backlinks/New_Note.md", nil); w.Code != http.StatusOK {
		t.Errorf("backlinks = %d", w.Code)
	} else if bl := decode[BacklinksResponse](t, w).Backlinks; len(bl) != 1 || bl[0] != "a.md" {
		t.Errorf("backlinks = %v", bl)
	}

	snap := decode[workspace.Snapshot](t, e.do(t, http.MethodPost, "/session/link", LinkRequest{Text: "[[home]]"}))
	if snap.Path != "home.md" {
		t.Errorf("activate link path = %q", snap.Path)
	}
}

func TestPromptsWithoutModel(t *testing.T) {
	e := newEnv(t, "")
	e.save(t, "a.md", "text @#sum")
	_ = e.do(t, http.MethodPost, "/session/open", OpenRequest{Path: "a.md"})

	if got := decode[PromptsResponse](t, e.do(t, http.MethodGet, "/prompts", nil)).Prompts; len(got) != 0 {
		t.Errorf("prompts = %v", got)
	}
	if w := e.do(t, http.MethodPost, "/session/prompts", PosRequest{Pos: 10}); w.Code != http.StatusNotFound {
		t.Errorf("run prompt = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/session/prompts/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("cancel unknown = %d, want 404", w.Code)
	}
}

func TestJournal(t *testing.T) {
	e := newEnv(t, "")

	w := e.do(t, http.MethodPost, "/journal", JournalRequest{Date: "2025-05-29"})
	if w.Code != http.StatusOK {
		t.Fatalf("journal = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[ResolveResponse](t, w)
	if res.Path != ".journal/2025/05/29.md" || !res.Created {
		t.Errorf("journal = %+v", res)
	}
	note := decode[NoteResponse](t, e.do(t, http.MethodGet, "/notes/.journal/2025/05/29.md", nil))
	if note.Content != "# Thursday 29th May 2025\n\n" {
		t.Errorf("content = %q", note.Content)
	}
	if res := decode[ResolveResponse](t, e.do(t, http.MethodPost, "/journal", JournalRequest{Date: "2025-05-29"})); res.Created {
		t.Error("second resolve should not create")
	}
	if w := e.do(t, http.MethodPost, "/journal", JournalRequest{Date: "29/05/2025"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", w.Code)
	}
	snap := decode[workspace.Snapshot](t, e.do(t, http.MethodPost, "/session/today", nil))
	if !snap.Open {
		t.Error("today not opened")
	}
}

func TestResolveLink(t *testing.T) {
	e := newEnv(t, "")

	w := e.do(t, http.MethodPost, "/links/resolve", LinkRequest{Text: "Area/Sub Note"})
	if w.Code != http.StatusCreated {
		t.Fatalf("resolve = %d, body = %s", w.Code, w.Body.String())
	}
	if res := decode[ResolveResponse](t, w); res.Path != "Area/Sub_Note.md" {
		t.Errorf("path = %q", res.Path)
	}
	if w := e.do(t, http.MethodPost, "/links/resolve", LinkRequest{Text: "[[Area/Sub Note]]"}); w.Code != http.StatusOK {
		t.Errorf("second resolve = %d, want 200", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/links/resolve", LinkRequest{Text: " "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty link = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := newEnv(t, "")
	e.save(t, "find.md", "uniquetoken here")

	w := e.do(t, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	if n := len(decode[SearchResponse](t, w).Results); n != 1 {
		t.Errorf("search results = %d, want 1", n)
	}
	if w := e.do(t, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestQuickOpen(t *testing.T) {
	e := newEnv(t, "")
	e.save(t, "Weekly_Review.md", "")
	e.save(t, "projects/roadmap.md", "")

	w := e.do(t, http.MethodGet, "/quick-open?q=Review", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("quick open = %d", w.Code)
	}
	matches := decode[QuickOpenResponse](t, w).Matches
	if len(matches) == 0 || matches[0].Path != "Weekly_Review.md" {
		t.Errorf("matches = %+v", matches)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := newEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tree", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed tree = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := newEnv(t, "secret123")
	if w := e.do(t, http.MethodGet, "/tree", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := newEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := newEnv(t, "")
	if w := e.do(t, http.MethodGet, "/tree", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := newEnvWithSSE(t, true, "secret", blockingSSE)
	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	e := newEnvWithSSE(t, false, "", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := newEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	e := newEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("EventSource clients pass the token as a query parameter")
	}

	req = httptest.NewRequest(http.MethodGet, "/events?token=nope", nil)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong query token = %d, want 401", w.Code)
	}
}

func TestRequestValidation(t *testing.T) {
	e := newEnv(t, "")
	_ = e.do(t, http.MethodPost, "/notes", CreateNoteRequest{Name: "a"})
	_ = e.do(t, http.MethodPost, "/session/open", OpenRequest{Path: "a.md"})

	cases := []struct {
		name, path string
		body       any
		field      string
	}{
		{"rename without path", "/rename", RenameRequest{Name: "b"}, "path"},
		{"move without target", "/move", MoveRequest{Path: "a.md"}, "target"},
		{"trash without path", "/trash", PathRequest{}, "path"},
		{"open without path", "/session/open", OpenRequest{}, "path"},
		{"negative cursor", "/session/cursor", PosRequest{Pos: -1}, "pos"},
		{"negative insert", "/session/insert", InsertRequest{Pos: -3, Text: "x"}, "pos"},
		{"empty insert", "/session/insert", InsertRequest{Pos: 0}, "text"},
		{"negative delete", "/session/delete", DeleteRequest{Start: -1, End: 1}, "start"},
		{"negative fold line", "/session/fold", FoldRequest{Line: -2}, "line"},
		{"missing key", "/session/key", KeyRequest{}, "key"},
		{"bad journal date", "/journal", JournalRequest{Date: "May 29"}, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, tc.path, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
			if msg := decode[errResponse](t, w).Error; !strings.Contains(msg, tc.field) {
				t.Errorf("error %q does not name %s", msg, tc.field)
			}
		})
	}

	snap := decode[workspace.Snapshot](t, e.do(t, http.MethodGet, "/session", nil))
	if snap.Path != "a.md" || snap.Text != "" {
		t.Errorf("rejected requests changed the session: %+v", snap)
	}
}

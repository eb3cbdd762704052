package noteservice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/storage"
	"github.com/starford/quire/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) notify(kind, p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+p)
}

func (r *recorder) has(e string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.events {
		if got == e {
			return true
		}
	}
	return false
}

func newService(t *testing.T) (*Service, *storage.FS, *recorder) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	rec := &recorder{}
	svc := NewService(store, db, testutil.Logger(), WithNotifier(rec.notify))
	return svc, store, rec
}

func read(t *testing.T, store storage.Provider, p string) string {
	t.Helper()
	data, err := store.Read(p)
	if err != nil {
		t.Fatalf("Read(%s): %v", p, err)
	}
	return string(data)
}

func TestEnsureLayout(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	if err := svc.EnsureLayout(ctx); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	if !store.IsDir(models.TrashDir) || !store.IsDir(models.JournalDir) || !store.Exists(HomeNote) {
		t.Fatal("layout incomplete")
	}
	_ = store.Write(HomeNote, []byte("keep me"))
	if err := svc.EnsureLayout(ctx); err != nil {
		t.Fatalf("second EnsureLayout: %v", err)
	}
	if read(t, store, HomeNote) != "keep me" {
		t.Error("home note overwritten")
	}
}

func TestResolveLinkTargetCreates(t *testing.T) {
	svc, store, rec := newService(t)
	ctx := context.Background()

	p, created, err := svc.ResolveLinkTarget(ctx, "projects/Road Map")
	if err != nil {
		t.Fatalf("ResolveLinkTarget: %v", err)
	}
	if p != "projects/Road_Map.md" || !created {
		t.Errorf("got %q created=%v", p, created)
	}
	if read(t, store, p) != "" {
		t.Error("new note should be empty")
	}
	if !rec.has("created:projects/Road_Map.md") {
		t.Errorf("events = %v", rec.events)
	}

	_ = store.Write(p, []byte("content"))
	p2, created, err := svc.ResolveLinkTarget(ctx, "[[projects/Road Map]]")
	if err != nil || p2 != p || created {
		t.Errorf("second resolve = %q, %v, %v", p2, created, err)
	}
	if read(t, store, p) != "content" {
		t.Error("existing note modified")
	}
}

func TestResolveLinkTargetRejectsDirectory(t *testing.T) {
	svc, store, _ := newService(t)
	_ = store.Mkdir("taken.md")
	if _, _, err := svc.ResolveLinkTarget(context.Background(), "taken"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v", err)
	}
}

func TestRenameRewritesLinks(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	_ = store.Write("old.md", []byte("target"))
	_ = store.Write("a.md", []byte("See [[old]] here"))
	_ = store.Write("b.md", []byte("untouched [[other]]"))
	_ = store.Write(".trash/c.md", []byte("[[old]]"))

	dst, changed, err := svc.Rename(ctx, "old.md", "new")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if dst != "new.md" {
		t.Errorf("dst = %q", dst)
	}
	if len(changed) != 1 || changed[0] != "a.md" {
		t.Errorf("changed = %v", changed)
	}
	if got := read(t, store, "a.md"); got != "See [[new]] here" {
		t.Errorf("a.md = %q", got)
	}
	if got := read(t, store, "b.md"); got != "untouched [[other]]" {
		t.Errorf("b.md = %q", got)
	}
	if got := read(t, store, ".trash/c.md"); got != "[[old]]" {
		t.Errorf("trash note rewritten: %q", got)
	}
	bl, _ := svc.Backlinks(ctx, "new.md")
	if len(bl) != 1 || bl[0] != "a.md" {
		t.Errorf("backlinks = %v", bl)
	}
}

func TestRenameSpacesBecomeUnderscores(t *testing.T) {
	svc, store, _ := newService(t)
	_ = store.Write("x.md", []byte(""))
	_ = store.Write("a.md", []byte("[[x]]"))
	dst, _, err := svc.Rename(context.Background(), "x.md", "Big Idea")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if dst != "Big_Idea.md" {
		t.Errorf("dst = %q", dst)
	}
	if got := read(t, store, "a.md"); got != "[[Big Idea]]" {
		t.Errorf("a.md = %q", got)
	}
}

func TestRenameRefusals(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	_ = store.Write("a.md", nil)
	_ = store.Write("b.md", nil)
	_ = store.Mkdir(models.TrashDir)

	if _, _, err := svc.Rename(ctx, "a.md", "b"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("rename onto existing err = %v", err)
	}
	if _, _, err := svc.Rename(ctx, models.TrashDir, "bin"); !errors.Is(err, apperr.ErrProtected) {
		t.Errorf("rename trash err = %v", err)
	}
	if _, _, err := svc.Rename(ctx, "nope.md", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("rename missing err = %v", err)
	}
}

func TestRenameDirectoryRewritesNestedLinks(t *testing.T) {
	svc, store, _ := newService(t)
	_ = store.Write("proj/plan.md", nil)
	_ = store.Write("proj/deep/todo.md", nil)
	_ = store.Write("index.md", []byte("[[proj/plan]] and [[proj/deep/todo]] and [[plan]]"))

	dst, changed, err := svc.Rename(context.Background(), "proj", "work")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if dst != "work" || len(changed) != 1 {
		t.Errorf("dst = %q changed = %v", dst, changed)
	}
	want := "[[work/plan]] and [[work/deep/todo]] and [[plan]]"
	if got := read(t, store, "index.md"); got != want {
		t.Errorf("index.md = %q", got)
	}
}

func TestMove(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	_ = store.Write("note.md", nil)
	_ = store.Mkdir("archive")
	_ = store.Mkdir(models.JournalDir)
	_ = store.Write("ref.md", []byte("- [[note]]\n"))

	dst, changed, err := svc.Move(ctx, "note.md", "archive")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if dst != "archive/note.md" || len(changed) != 1 {
		t.Errorf("dst = %q changed = %v", dst, changed)
	}
	if got := read(t, store, "ref.md"); got != "- [[archive/note]]\n" {
		t.Errorf("ref.md = %q", got)
	}

	if _, _, err := svc.Move(ctx, "archive/note.md", "archive"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("same-location move err = %v", err)
	}
	if _, _, err := svc.Move(ctx, "archive", "archive"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("move into itself err = %v", err)
	}
	if _, _, err := svc.Move(ctx, "ref.md", models.JournalDir); !errors.Is(err, apperr.ErrProtected) {
		t.Errorf("move into journal err = %v", err)
	}
	if _, _, err := svc.Move(ctx, "ref.md", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("move into missing dir err = %v", err)
	}
}

func TestTrash(t *testing.T) {
	svc, store, rec := newService(t)
	ctx := context.Background()
	_ = svc.Save(ctx, "n.md", "one")

	dst, err := svc.Trash(ctx, "n.md")
	if err != nil {
		t.Fatalf("Trash: %v", err)
	}
	if dst != ".trash/n.md" || store.Exists("n.md") {
		t.Errorf("dst = %q", dst)
	}
	_ = svc.Save(ctx, "n.md", "two")
	dst, _ = svc.Trash(ctx, "n.md")
	if dst != ".trash/n_1.md" {
		t.Errorf("second dst = %q", dst)
	}
	if !rec.has("deleted:n.md") {
		t.Errorf("events = %v", rec.events)
	}
	if _, err := svc.Trash(ctx, dst); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("trashing trash item err = %v", err)
	}
	if _, err := svc.Trash(ctx, models.TrashDir); !errors.Is(err, apperr.ErrProtected) {
		t.Errorf("trashing trash err = %v", err)
	}
}

func TestCreateNoteAndDirectory(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	p, err := svc.CreateNote(ctx, "ideas", "Fresh Thought")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if p != "ideas/Fresh_Thought.md" || !store.Exists(p) {
		t.Errorf("p = %q", p)
	}
	if _, err := svc.CreateNote(ctx, "ideas", "Fresh Thought.md"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate note err = %v", err)
	}
	if _, err := svc.CreateNote(ctx, models.TrashDir, "x"); !errors.Is(err, apperr.ErrProtected) {
		t.Errorf("note in trash err = %v", err)
	}

	d, err := svc.CreateDirectory(ctx, ".", "sub dir")
	if err != nil || d != "sub_dir" || !store.IsDir(d) {
		t.Fatalf("CreateDirectory = %q, %v", d, err)
	}
	if _, err := svc.CreateDirectory(ctx, ".", "sub dir"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate dir err = %v", err)
	}
	if err := svc.DeleteDirectory(ctx, "ideas"); !errors.Is(err, apperr.ErrNotEmpty) {
		t.Errorf("delete non-empty err = %v", err)
	}
	if err := svc.DeleteDirectory(ctx, d); err != nil {
		t.Errorf("DeleteDirectory: %v", err)
	}
	if err := svc.DeleteDirectory(ctx, models.JournalDir); !errors.Is(err, apperr.ErrProtected) {
		t.Errorf("delete journal err = %v", err)
	}
}

func TestReadAndSave(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	if _, err := svc.Read(ctx, "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing read err = %v", err)
	}
	if err := svc.Save(ctx, "n.md", "# Title\nlinks [[other]]"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := svc.Read(ctx, "n.md")
	if err != nil || !strings.HasPrefix(got, "# Title") {
		t.Errorf("Read = %q, %v", got, err)
	}
	if err := svc.Save(ctx, "n.md", "changed"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !rec.has("created:n.md") || !rec.has("updated:n.md") {
		t.Errorf("events = %v", rec.events)
	}
	res, _ := svc.Search(ctx, "changed", 10)
	if len(res) != 1 {
		t.Errorf("search = %+v", res)
	}
}

func TestResolveJournalEntry(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	date := time.Date(2025, time.May, 29, 8, 0, 0, 0, time.UTC)

	p, created, err := svc.ResolveJournalEntry(ctx, date)
	if err != nil {
		t.Fatalf("ResolveJournalEntry: %v", err)
	}
	if p != ".journal/2025/05/29.md" || !created {
		t.Errorf("p = %q created = %v", p, created)
	}
	if got := read(t, store, p); got != "# Thursday 29th May 2025\n\n" {
		t.Errorf("content = %q", got)
	}

	_ = store.Write(p, []byte("my day"))
	if _, created, _ := svc.ResolveJournalEntry(ctx, date); created {
		t.Error("existing entry recreated")
	}
	if got := read(t, store, p); got != "my day" {
		t.Errorf("existing entry modified: %q", got)
	}
}

func TestToday(t *testing.T) {
	_, store := testutil.TestVault(t)
	fixed := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(store, testutil.TestDB(t), testutil.Logger(), WithClock(func() time.Time { return fixed }))
	p, _, err := svc.Today(context.Background())
	if err != nil || p != ".journal/2024/01/01.md" {
		t.Errorf("Today = %q, %v", p, err)
	}
}

func TestQuickOpen(t *testing.T) {
	svc, store, _ := newService(t)
	for _, p := range []string{"Project_Plan.md", "work/Daily_Log.md", "recipes.md", ".trash/Project_Old.md"} {
		_ = store.Write(p, nil)
	}
	ctx := context.Background()

	got, err := svc.QuickOpen(ctx, "proj", 10)
	if err != nil {
		t.Fatalf("QuickOpen: %v", err)
	}
	if len(got) != 1 || got[0].Path != "Project_Plan.md" || got[0].LinkText != "Project Plan" {
		t.Errorf("matches = %+v", got)
	}

	all, _ := svc.QuickOpen(ctx, "", 2)
	if len(all) != 2 || all[0].LinkText != "Project Plan" || all[1].LinkText != "recipes" {
		t.Errorf("all = %+v", all)
	}
}

func TestIsSpecialAndInTrash(t *testing.T) {
	if !IsSpecial(".trash") || !IsSpecial(".journal/") || IsSpecial(".journal/2025") {
		t.Error("IsSpecial")
	}
	if !InTrash(".trash/x.md") || InTrash(".trashy/x.md") || InTrash("x.md") {
		t.Error("InTrash")
	}
}

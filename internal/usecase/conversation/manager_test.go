package conversation

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/kailas-cloud/matsearch/internal/domain"
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
)

func TestGetOrCreate_NewSession(t *testing.T) {
	m := newTestManager(t, newMemRepo())

	c, created := m.GetOrCreate(context.Background(), "")
	if !created {
		t.Error("expected a fresh session")
	}
	if c.SessionID == "" {
		t.Fatal("expected minted session id")
	}
	if len(c.History) != 1 || c.History[0].Role != domconv.RoleSystem || c.History[0].Content != domconv.WelcomeMessage {
		t.Errorf("history = %+v, want welcome message", c.History)
	}

	other, _ := m.GetOrCreate(context.Background(), "")
	if other.SessionID == c.SessionID {
		t.Error("expected distinct session ids")
	}
}

func TestGetOrCreate_UnknownIDKeepsID(t *testing.T) {
	m := newTestManager(t, newMemRepo())

	c, created := m.GetOrCreate(context.Background(), "s-42")
	if !created || c.SessionID != "s-42" {
		t.Errorf("got %q created=%v", c.SessionID, created)
	}
}

func TestGetOrCreate_RepoFailureStartsFresh(t *testing.T) {
	repo := newMemRepo()
	repo.getErr = errors.New("connection refused")
	m := newTestManager(t, repo)

	c, created := m.GetOrCreate(context.Background(), "s1")
	if !created || c.SessionID != "s1" {
		t.Errorf("got %q created=%v", c.SessionID, created)
	}
}

func TestSaveLoad_CacheAvoidsRoundTrip(t *testing.T) {
	repo := newMemRepo()
	m := newTestManager(t, repo)
	ctx := context.Background()

	c, _ := m.GetOrCreate(ctx, "s1")
	m.Append(c, domconv.Message{Role: domconv.RoleUser, Content: "oak flooring"})
	c.LastQuery = "oak flooring"
	if err := m.Save(ctx, c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reads := repo.gets

	got, err := m.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastQuery != "oak flooring" || len(got.History) != 2 {
		t.Errorf("loaded = %+v", got)
	}
	if repo.gets != reads {
		t.Errorf("repository reads = %d, want %d", repo.gets, reads)
	}

	// Loaded contexts are private copies.
	got.LastQuery = "changed"
	again, _ := m.Load(ctx, "s1")
	if again.LastQuery != "oak flooring" {
		t.Errorf("cache entry mutated through a loaded copy")
	}
}

func TestSave_PersistFailureStillCaches(t *testing.T) {
	repo := newMemRepo()
	repo.upsertErr = errors.New("redis down")
	m := newTestManager(t, repo)
	ctx := context.Background()

	c, _ := m.GetOrCreate(ctx, "s1")
	c.LastQuery = "slate"
	err := m.Save(ctx, c)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("err = %v, want persistence kind", err)
	}

	got, created := m.GetOrCreate(ctx, "s1")
	if created || got.LastQuery != "slate" {
		t.Errorf("got %+v created=%v, want cached session", got, created)
	}
}

func TestLoad_FromRepository(t *testing.T) {
	repo := newMemRepo()
	stored := domconv.New("s9", testTime)
	stored.LastQuery = "terrazzo"
	repo.sessions["s9"] = stored
	m := newTestManager(t, repo)

	got, err := m.Load(context.Background(), "s9")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastQuery != "terrazzo" {
		t.Errorf("LastQuery = %q", got.LastQuery)
	}

	if _, err := m.Load(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestClear(t *testing.T) {
	repo := newMemRepo()
	m := newTestManager(t, repo)
	ctx := context.Background()

	c, _ := m.GetOrCreate(ctx, "s1")
	if err := m.Save(ctx, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ok, err := m.Clear(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("Clear = %v, %v", ok, err)
	}
	if _, err := m.Load(ctx, "s1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want not found after clear", err)
	}

	ok, err = m.Clear(ctx, "s1")
	if err != nil || ok {
		t.Errorf("second Clear = %v, %v, want false", ok, err)
	}
}

func TestAppend_CapsHistory(t *testing.T) {
	m := newTestManager(t, newMemRepo())
	c := domconv.New("s1", testTime)

	for i := range 25 {
		m.Append(c, domconv.Message{Role: domconv.RoleUser, Content: strconv.Itoa(i)})
	}

	if len(c.History) != domconv.MaxHistory {
		t.Fatalf("len = %d, want %d", len(c.History), domconv.MaxHistory)
	}
	for i, msg := range c.History {
		if msg.Content != strconv.Itoa(i+5) {
			t.Errorf("History[%d] = %q, want %q", i, msg.Content, strconv.Itoa(i+5))
		}
		if msg.ID == "" || msg.Timestamp.IsZero() {
			t.Errorf("History[%d] missing id or timestamp", i)
		}
	}
}

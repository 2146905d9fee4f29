package team

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tmarchal/taskdeck/internal/rest"
	"github.com/tmarchal/taskdeck/internal/wire"
)

type noTokens struct{}

func (noTokens) Token() string { return "" }

func newTestStore(t *testing.T, handler http.Handler) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStore(rest.NewClient(srv.URL, 5*time.Second, 1<<20, noTokens{}))
}

func TestFetchCachesCollection(t *testing.T) {
	var listCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teams", func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		w.Write([]byte(`{"teams":[{"id":1,"name":"Core","members":[{"id":1,"name":"Ada","email":"a@x","role":"ADMIN"}]}]}`))
	})
	store := newTestStore(t, mux)
	ctx := context.Background()

	first := store.Fetch(ctx, false)
	if len(first) != 1 || first[0].Name != "Core" {
		t.Fatalf("unexpected teams: %+v", first)
	}

	// Second fetch serves from cache.
	store.Fetch(ctx, false)
	if listCalls.Load() != 1 {
		t.Errorf("expected 1 network call, got %d", listCalls.Load())
	}

	// force bypasses the cache.
	store.Fetch(ctx, true)
	if listCalls.Load() != 2 {
		t.Errorf("expected force to refetch, got %d calls", listCalls.Load())
	}
}

func TestFetchFailureEmptiesCache(t *testing.T) {
	var fail atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teams", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"id":1,"name":"Core","members":[]}]`))
	})
	store := newTestStore(t, mux)
	ctx := context.Background()

	store.Fetch(ctx, false)
	fail.Store(true)

	if got := store.Fetch(ctx, true); len(got) != 0 {
		t.Errorf("expected empty collection on failure, got %+v", got)
	}
	if store.Err() == nil {
		t.Error("expected lastErr recorded")
	}

	// The failed fetch unloads the cache, so the next read retries the
	// network instead of serving the empty result.
	fail.Store(false)
	if got := store.Fetch(ctx, false); len(got) != 1 {
		t.Errorf("expected recovery on next fetch, got %+v", got)
	}
}

func TestFetchFailureEmptyCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teams", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	store := newTestStore(t, mux)

	if got := store.Fetch(context.Background(), false); len(got) != 0 {
		t.Errorf("expected empty collection, got %+v", got)
	}
}

func TestGetNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teams/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"team not found"}`))
	})
	store := newTestStore(t, mux)

	got, err := store.Get(context.Background(), 99)
	if err != nil {
		t.Fatalf("expected 404 to be an answer, got error %v", err)
	}
	if got != nil {
		t.Errorf("expected nil team, got %+v", got)
	}
}

func TestGetOtherFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teams/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	store := newTestStore(t, mux)

	if _, err := store.Get(context.Background(), 1); err == nil {
		t.Error("expected error for 500")
	}
	if _, err := store.Get(context.Background(), 0); !errors.Is(err, ErrInvalidTeamID) {
		t.Errorf("expected ErrInvalidTeamID, got %v", err)
	}
}

func TestCreateRefetchesCollection(t *testing.T) {
	// The create response reports no members; the refetched collection is
	// authoritative and carries the creator.
	mux := http.NewServeMux()
	var created atomic.Bool
	mux.HandleFunc("POST /teams", func(w http.ResponseWriter, r *http.Request) {
		created.Store(true)
		w.Write([]byte(`{"team":{"id":7,"name":"New","members":[]}}`))
	})
	mux.HandleFunc("GET /teams", func(w http.ResponseWriter, r *http.Request) {
		if !created.Load() {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"id":7,"name":"New","members":[{"id":1,"name":"Ada","email":"a@x","role":"ADMIN"}]}]`))
	})
	store := newTestStore(t, mux)

	got, err := store.Create(context.Background(), CreateTeamInput{Name: "New"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if got.ID != 7 {
		t.Fatalf("unexpected team: %+v", got)
	}
	if len(got.Members) != 1 {
		t.Errorf("expected membership from refetched collection, got %+v", got.Members)
	}
	if store.Loading() {
		t.Error("expected loading cleared")
	}
}

func TestCreateRequiresName(t *testing.T) {
	store := newTestStore(t, http.NewServeMux())

	if _, err := store.Create(context.Background(), CreateTeamInput{Name: "   "}); !errors.Is(err, ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
}

func TestCreateFailureRecordsErr(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /teams", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"duplicate name"}`))
	})
	store := newTestStore(t, mux)

	if _, err := store.Create(context.Background(), CreateTeamInput{Name: "Core"}); err == nil {
		t.Fatal("expected error")
	}
	if store.Err() == nil {
		t.Error("expected lastErr recorded")
	}
	if store.Loading() {
		t.Error("expected loading cleared after failure")
	}
}

type fakeCascader struct {
	teamID  wire.ID
	cleared int
}

func (f *fakeCascader) ClearTeamRefs(teamID wire.ID) int {
	f.teamID = teamID
	f.cleared = 3
	return 3
}

func TestDeleteCascades(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teams", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"name":"Core","members":[]},{"id":2,"name":"Edge","members":[]}]`))
	})
	mux.HandleFunc("DELETE /teams/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	store := newTestStore(t, mux)
	cascade := &fakeCascader{}
	store.SetTaskCascader(cascade)
	ctx := context.Background()

	store.Fetch(ctx, false)
	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	teams := store.Teams()
	if len(teams) != 1 || teams[0].ID != 2 {
		t.Errorf("expected team 1 removed, got %+v", teams)
	}
	if cascade.teamID != 1 {
		t.Errorf("expected cascade for team 1, got %d", cascade.teamID)
	}
}

func TestAddMembersReplacesCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teams", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"name":"Core","members":[]}]`))
	})
	mux.HandleFunc("POST /teams/{id}/members", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"team":{"id":1,"name":"Core","members":[{"id":5,"name":"Eve","email":"e@x","role":"MEMBER"}]}}`))
	})
	store := newTestStore(t, mux)
	ctx := context.Background()

	store.Fetch(ctx, false)
	got, err := store.AddMembers(ctx, 1, []wire.ID{5, 0})
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if len(got.Members) != 1 || got.Members[0].ID != 5 {
		t.Errorf("unexpected members: %+v", got.Members)
	}

	cached := store.Teams()
	if len(cached) != 1 || len(cached[0].Members) != 1 {
		t.Errorf("cache not replaced: %+v", cached)
	}
}

func TestRemoveMember(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teams", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"name":"Core","members":[{"id":5,"name":"Eve","email":"e@x","role":"MEMBER"}]}]`))
	})
	mux.HandleFunc("DELETE /teams/{id}/members/{uid}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"team":{"id":1,"name":"Core","members":[]}}`))
	})
	store := newTestStore(t, mux)
	ctx := context.Background()

	store.Fetch(ctx, false)
	got, err := store.RemoveMember(ctx, 1, 5)
	if err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if len(got.Members) != 0 {
		t.Errorf("expected empty members, got %+v", got.Members)
	}

	cached := store.Teams()
	if len(cached[0].Members) != 0 {
		t.Errorf("cache not replaced: %+v", cached)
	}
}

func TestTeamHasMember(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teams", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"name":"Core","members":[{"id":5,"name":"Eve","email":"e@x","role":"MEMBER"}]}]`))
	})
	store := newTestStore(t, mux)
	ctx := context.Background()

	if !store.TeamHasMember(ctx, 1, 5) {
		t.Error("expected user 5 in team 1")
	}
	if store.TeamHasMember(ctx, 1, 6) {
		t.Error("did not expect user 6 in team 1")
	}
	if store.TeamHasMember(ctx, 2, 5) {
		t.Error("did not expect membership in unknown team")
	}
}

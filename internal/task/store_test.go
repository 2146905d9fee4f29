package task

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tmarchal/taskdeck/internal/rest"
	"github.com/tmarchal/taskdeck/internal/wire"
)

type noTokens struct{}

func (noTokens) Token() string { return "" }

func newTestStore(t *testing.T, handler http.Handler, opts Options) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStore(rest.NewClient(srv.URL, 5*time.Second, 1<<20, noTokens{}), opts)
}

func listBody(tasks string) string {
	return `{"data":{"data":{"tasks":[` + tasks + `]}}}`
}

const taskOne = `{"id":1,"title":"Ship it","status":"PENDING","priority":"HIGH","teamId":3,"assignedTo":[{"id":5,"name":"Eve","email":"e@x","role":"MEMBER"}]}`

func TestFetchReplacesCollection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listBody(taskOne)))
	})
	store := newTestStore(t, mux, Options{})

	got := store.Fetch(context.Background())
	if len(got) != 1 || got[0].Title != "Ship it" {
		t.Fatalf("unexpected tasks: %+v", got)
	}
	if got[0].AssignedTo[0].ID != 5 {
		t.Errorf("unexpected assignees: %+v", got[0].AssignedTo)
	}
	if store.Loading() {
		t.Error("expected loading cleared")
	}
}

func TestFetchDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"wrong envelope", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"tasks":[` + taskOne + `]}`))
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html></html>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, tt.handler, Options{})

			if got := store.Fetch(context.Background()); len(got) != 0 {
				t.Errorf("expected empty collection, got %+v", got)
			}
			if store.Err() == nil {
				t.Error("expected lastErr recorded")
			}
		})
	}
}

func TestFetchFailureEmptiesPreviousCache(t *testing.T) {
	var fail bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(listBody(taskOne)))
	})
	store := newTestStore(t, mux, Options{})
	ctx := context.Background()

	if got := store.Fetch(ctx); len(got) != 1 {
		t.Fatalf("seed fetch failed: %+v", got)
	}

	fail = true
	if got := store.Fetch(ctx); len(got) != 0 {
		t.Errorf("expected collection emptied on failure, got %+v", got)
	}
}

func TestCreate(t *testing.T) {
	var gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Write([]byte(`{"task":{"id":8,"title":"New","status":"PENDING","assignedTo":[2]}}`))
	})
	store := newTestStore(t, mux, Options{})

	in := CreateTaskInput{Title: "New", AssignedTo: []wire.ID{2, 0, -1}}
	thin, err := store.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if thin.ID != 8 {
		t.Errorf("unexpected thin task: %+v", thin)
	}
	// Invalid assignee ids are filtered and the status defaults to PENDING.
	if gotBody != `{"title":"New","description":"","status":"PENDING","assignedTo":[2]}` {
		t.Errorf("unexpected payload: %s", gotBody)
	}

	cached := store.Tasks()
	if len(cached) != 1 || cached[0].ID != 8 {
		t.Errorf("expected created task appended, got %+v", cached)
	}
	if store.Loading() {
		t.Error("expected loading cleared after create")
	}
}

func TestCreateSurvivesResync(t *testing.T) {
	// The backend remembers the created task; a later fetch must return it
	// with the same id it was created under.
	var mu sync.Mutex
	var created bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		tasks := taskOne
		if created {
			tasks += `,{"id":8,"title":"New","status":"PENDING","assignedTo":[]}`
		}
		w.Write([]byte(listBody(tasks)))
	})
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		created = true
		mu.Unlock()
		w.Write([]byte(`{"task":{"id":8,"title":"New","status":"PENDING","assignedTo":[]}}`))
	})
	store := newTestStore(t, mux, Options{})
	ctx := context.Background()

	store.Fetch(ctx)
	thin, err := store.Create(ctx, CreateTaskInput{Title: "New"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	resynced := store.Fetch(ctx)
	var matches int
	for _, task := range resynced {
		if task.ID == thin.ID {
			matches++
		}
	}
	if matches != 1 {
		t.Errorf("expected created task %s exactly once after resync, found %d in %+v", thin.ID, matches, resynced)
	}
}

func TestCreateWithDueDate(t *testing.T) {
	var gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Write([]byte(`{"task":{"id":9,"title":"Dated","status":"PENDING","assignedTo":[]}}`))
	})
	store := newTestStore(t, mux, Options{})

	due := time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC)
	_, err := store.Create(context.Background(), CreateTaskInput{Title: "Dated", DueDate: &due})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if gotBody != `{"title":"Dated","description":"","status":"PENDING","dueDate":"2026-09-01T08:30:00Z","assignedTo":[]}` {
		t.Errorf("unexpected payload: %s", gotBody)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	store := newTestStore(t, http.NewServeMux(), Options{})

	if _, err := store.Create(context.Background(), CreateTaskInput{Title: " "}); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("expected ErrTitleRequired, got %v", err)
	}
	if !errors.Is(store.Err(), ErrTitleRequired) {
		t.Errorf("expected lastErr recorded, got %v", store.Err())
	}
	if store.Loading() {
		t.Error("expected loading cleared after rejected create")
	}
}

func TestUpdateReplacesCachedEntry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listBody(taskOne)))
	})
	mux.HandleFunc("PUT /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"task":{"id":1,"title":"Shipped","status":"COMPLETED","teamId":3,"assignedTo":[]}}`))
	})
	store := newTestStore(t, mux, Options{})
	ctx := context.Background()

	store.Fetch(ctx)
	status := StatusCompleted
	thin, err := store.Update(ctx, 1, UpdateTaskInput{Status: &status})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if thin.Status != StatusCompleted {
		t.Errorf("unexpected thin task: %+v", thin)
	}

	cached := store.Tasks()
	if cached[0].Title != "Shipped" || cached[0].Status != StatusCompleted {
		t.Errorf("cache not replaced: %+v", cached[0])
	}
}

func TestDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listBody(taskOne)))
	})
	mux.HandleFunc("DELETE /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	store := newTestStore(t, mux, Options{})
	ctx := context.Background()

	store.Fetch(ctx)
	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := store.Tasks(); len(got) != 0 {
		t.Errorf("expected task dropped from cache, got %+v", got)
	}

	if err := store.Delete(ctx, 0); !errors.Is(err, ErrInvalidTaskID) {
		t.Errorf("expected ErrInvalidTaskID, got %v", err)
	}
}

type fakeMembers map[wire.ID][]wire.ID

func (f fakeMembers) TeamHasMember(_ context.Context, teamID, userID wire.ID) bool {
	for _, id := range f[teamID] {
		if id == userID {
			return true
		}
	}
	return false
}

func assignBackend() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listBody(taskOne)))
	})
	mux.HandleFunc("PUT /tasks/{id}/assign", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"task":{"id":1,"title":"Ship it","status":"PENDING","teamId":3,"assignedTo":[{"id":6,"name":"Fay","email":"f@x","role":"MEMBER"}]}}`))
	})
	return mux
}

func TestAssign(t *testing.T) {
	store := newTestStore(t, assignBackend(), Options{EnforceTeamMembership: true})
	store.SetMembershipChecker(fakeMembers{3: {5, 6}})
	ctx := context.Background()

	store.Fetch(ctx)
	got, err := store.Assign(ctx, 1, []wire.ID{6})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if len(got.AssignedTo) != 1 || got.AssignedTo[0].ID != 6 {
		t.Errorf("unexpected assignees: %+v", got.AssignedTo)
	}

	cached := store.Tasks()
	if cached[0].AssignedTo[0].ID != 6 {
		t.Errorf("cache not replaced: %+v", cached[0])
	}
}

func TestAssignValidation(t *testing.T) {
	store := newTestStore(t, assignBackend(), Options{})
	ctx := context.Background()

	if _, err := store.Assign(ctx, 1, nil); !errors.Is(err, ErrNoAssignees) {
		t.Errorf("expected ErrNoAssignees, got %v", err)
	}
	if _, err := store.Assign(ctx, 1, []wire.ID{0, -2}); !errors.Is(err, ErrNoAssignees) {
		t.Errorf("expected ErrNoAssignees for all-invalid ids, got %v", err)
	}

	// Task 99 is not cached.
	store.Fetch(ctx)
	if _, err := store.Assign(ctx, 99, []wire.ID{5}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestAssignMembershipEnforced(t *testing.T) {
	store := newTestStore(t, assignBackend(), Options{EnforceTeamMembership: true})
	store.SetMembershipChecker(fakeMembers{3: {5}})
	ctx := context.Background()

	store.Fetch(ctx)
	if _, err := store.Assign(ctx, 1, []wire.ID{6}); !errors.Is(err, ErrAssigneeNotInTeam) {
		t.Errorf("expected ErrAssigneeNotInTeam, got %v", err)
	}
}

func TestAssignMembershipDisabled(t *testing.T) {
	store := newTestStore(t, assignBackend(), Options{EnforceTeamMembership: false})
	store.SetMembershipChecker(fakeMembers{3: {5}})
	ctx := context.Background()

	store.Fetch(ctx)
	if _, err := store.Assign(ctx, 1, []wire.ID{6}); err != nil {
		t.Errorf("expected assignment allowed with enforcement off, got %v", err)
	}
}

func TestSelectors(t *testing.T) {
	tasks := taskOne + `,{"id":2,"title":"Other","status":"PENDING","teamId":4,"assignedTo":[{"id":7,"name":"Gil","email":"g@x","role":"MEMBER"}]}`
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listBody(tasks)))
	})
	store := newTestStore(t, mux, Options{})

	store.Fetch(context.Background())

	if got := store.ForTeam(3); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("ForTeam(3) = %+v", got)
	}
	if got := store.ForTeam(0); len(got) != 0 {
		t.Errorf("ForTeam(0) should be empty, got %+v", got)
	}
	if got := store.ForUser(7); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("ForUser(7) = %+v", got)
	}
	if got := store.ForUser(99); len(got) != 0 {
		t.Errorf("ForUser(99) should be empty, got %+v", got)
	}
}

func TestClearTeamRefs(t *testing.T) {
	tasks := taskOne + `,{"id":2,"title":"Other","status":"PENDING","teamId":4,"assignedTo":[]}`
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listBody(tasks)))
	})
	store := newTestStore(t, mux, Options{})

	store.Fetch(context.Background())

	if cleared := store.ClearTeamRefs(3); cleared != 1 {
		t.Errorf("expected 1 cleared, got %d", cleared)
	}
	for _, task := range store.Tasks() {
		if task.ID == 1 && task.EffectiveTeamID().Valid() {
			t.Errorf("team ref not cleared: %+v", task)
		}
		if task.ID == 2 && task.EffectiveTeamID() != 4 {
			t.Errorf("unrelated task touched: %+v", task)
		}
	}
}

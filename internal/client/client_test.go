package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/router-for-me/StationPortal/internal/assignment"
	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodToken = "token-alice"

func alice() schema.User {
	return schema.User{
		ID:       1,
		Username: "alice",
		IsActive: true,
		Role: &schema.Role{ID: 2, Name: "area", Permissions: []schema.Permission{
			{ID: 10, Name: authz.PermViewReports},
		}},
	}
}

// fakeAPI answers the handful of endpoints the session needs.
type fakeAPI struct {
	logouts     atomic.Int32
	searches    atomic.Int32
	areaUpdates atomic.Int32
	lastBody    sync.Map
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "alice" || r.FormValue("password") != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Incorrect username or password", "detail": "Incorrect username or password"})
			return
		}
		writeJSON(w, http.StatusOK, schema.Token{AccessToken: goodToken, TokenType: "bearer"})
	})
	mux.HandleFunc("GET /api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		writeJSON(w, http.StatusOK, alice())
	})
	mux.HandleFunc("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logouts.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	})
	mux.HandleFunc("GET /api/stations/search", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		writeJSON(w, http.StatusOK, []StationSuggestion{{StationID: "F601", StationName: r.URL.Query().Get("q")}})
	})
	mux.HandleFunc("POST /api/admin/roles/{id}/permissions", func(w http.ResponseWriter, r *http.Request) {
		var body assignment.RolePermissionsPayload
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastBody.Store("permissions", body.PermissionIDs)
		role := schema.Role{ID: 2, Name: "area"}
		for _, id := range body.PermissionIDs {
			role.Permissions = append(role.Permissions, schema.Permission{ID: id, Name: "p"})
		}
		writeJSON(w, http.StatusOK, role)
	})
	mux.HandleFunc("PUT /api/admin/areas/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.areaUpdates.Add(1)
		var body assignment.AreaPayload
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastBody.Store("area", body)
		f.lastBody.Store("area_path", r.URL.Path)
		writeJSON(w, http.StatusOK, schema.Area{ID: 1, Name: "North"})
	})
	mux.HandleFunc("GET /api/admin/areas/details", func(w http.ResponseWriter, r *http.Request) {
		area := schema.Area{ID: 1, Name: "North"}
		if saved, ok := f.lastBody.Load("area"); ok {
			for _, id := range saved.(assignment.AreaPayload).StationIDs {
				area.Stations = append(area.Stations, schema.StationRef{ID: id, StationID: "F60" + strconv.FormatUint(id, 10)})
			}
			for _, id := range saved.(assignment.AreaPayload).ManagerIDs {
				area.Managers = append(area.Managers, schema.UserRef{ID: id, Username: "bob"})
			}
		}
		writeJSON(w, http.StatusOK, []schema.Area{area})
	})
	mux.HandleFunc("/api/admin/assignments/", func(w http.ResponseWriter, r *http.Request) {
		f.lastBody.Store("assignments", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unexpected"})
	})
	mux.HandleFunc("GET /api/admin/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Access denied"})
	})
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, errRead := os.ReadFile(path)
	require.NoError(t, errRead)
	return data
}

func TestLoginFailureLeavesSessionEmpty(t *testing.T) {
	srv := (&fakeAPI{}).server(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	sess := NewSession(New(srv.URL), store)
	require.NoError(t, sess.Restore(context.Background()))

	user, errLogin := sess.Login(context.Background(), "alice", "wrong")
	require.Error(t, errLogin)
	assert.Nil(t, user)
	assert.True(t, IsStatus(errLogin, http.StatusUnauthorized))
	assert.Equal(t, "Incorrect username or password", Message(errLogin))
	assert.Nil(t, sess.CurrentUser())
	assert.Empty(t, sess.Client().Token())

	stored, errLoad := store.Load()
	require.NoError(t, errLoad)
	assert.Nil(t, stored)
	assert.Equal(t, authz.DecisionRedirect, sess.Guard(authz.PermViewReports))
}

func TestLoginPersistsAndRestores(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	sess := NewSession(New(srv.URL), NewFileStore(path))
	assert.Equal(t, authz.DecisionLoading, sess.Guard())
	user, errLogin := sess.Login(context.Background(), "alice", "secret")
	require.NoError(t, errLogin)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, sess.Loading())
	assert.Equal(t, authz.DecisionAllow, sess.Guard(authz.PermViewReports))
	assert.Equal(t, authz.DecisionDenied, sess.Guard(authz.PermAccessAdmin))

	var doc map[string]StoredSession
	raw := readFile(t, path)
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Contains(t, doc, "user")
	assert.Equal(t, goodToken, doc["user"].AccessToken)

	restored := NewSession(New(srv.URL), NewFileStore(path))
	require.NoError(t, restored.Restore(context.Background()))
	require.NotNil(t, restored.CurrentUser())
	assert.Equal(t, uint64(1), restored.CurrentUser().ID)

	require.NoError(t, restored.Logout(context.Background()))
	assert.Equal(t, int32(1), api.logouts.Load())
	assert.Nil(t, restored.CurrentUser())
	stored, errLoad := NewFileStore(path).Load()
	require.NoError(t, errLoad)
	assert.Nil(t, stored)
}

func TestRestoreClearsRejectedToken(t *testing.T) {
	srv := (&fakeAPI{}).server(t)
	store := &MemoryStore{}
	require.NoError(t, store.Save(&StoredSession{AccessToken: "stale"}))

	sess := NewSession(New(srv.URL), store)
	require.NoError(t, sess.Restore(context.Background()))
	assert.Nil(t, sess.CurrentUser())
	assert.False(t, sess.Loading())
	stored, _ := store.Load()
	assert.Nil(t, stored)
}

func TestAPIErrorMessageFallbacks(t *testing.T) {
	srv := (&fakeAPI{}).server(t)
	api := New(srv.URL)

	_, errUsers := api.Users(context.Background())
	require.Error(t, errUsers)
	assert.Equal(t, "Access denied", Message(errUsers))
	assert.True(t, IsStatus(errUsers, http.StatusForbidden))

	_, errConfig := api.Config(context.Background())
	require.Error(t, errConfig)
	assert.Equal(t, GenericErrorMessage, Message(errConfig))
}

func TestNotificationsURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8000/api/ws/notifications", New("http://localhost:8000/").NotificationsURL())
	assert.Equal(t, "wss://portal.example/api/ws/notifications", New("https://portal.example").NotificationsURL())
}

func TestRoleEditorSavesFullSet(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	c := New(srv.URL)

	editor := NewRoleEditor(schema.Role{ID: 2, Name: "area", Permissions: []schema.Permission{{ID: 10}, {ID: 11}}})
	assert.False(t, editor.Dirty())
	editor.Toggle(11)
	editor.Toggle(12)
	assert.True(t, editor.Dirty())

	require.NoError(t, editor.Save(context.Background(), c))
	sent, _ := api.lastBody.Load("permissions")
	assert.Equal(t, []uint64{10, 12}, sent)
	assert.False(t, editor.Dirty())
	assert.True(t, editor.Selected(12))
	assert.Len(t, editor.Role.Permissions, 2)
}

func TestAreaEditorFromAPIRejectsCrossArea(t *testing.T) {
	stations := []schema.Station{
		{StationRef: schema.StationRef{ID: 1, StationID: "F601"}},
		{StationRef: schema.StationRef{ID: 2, StationID: "F602"}},
		{StationRef: schema.StationRef{ID: 3, StationID: "G700"}},
	}
	areas := []schema.Area{
		{ID: 1, Name: "North", Stations: []schema.StationRef{{ID: 1}}, Managers: []schema.UserRef{{ID: 5}}},
		{ID: 2, Name: "South", Stations: []schema.StationRef{{ID: 3}}},
	}
	editor, errNew := NewAreaEditor(areas, stations, 1)
	require.NoError(t, errNew)
	manager, ok := editor.Manager()
	assert.True(t, ok)
	assert.Equal(t, uint64(5), manager)

	assert.ErrorIs(t, editor.Toggle(3), assignment.ErrStationInOtherArea)
	require.NoError(t, editor.Toggle(2))
	assert.Equal(t, []uint64{1, 2}, editor.Payload().StationIDs)
}

func TestSaveAreaSendsOneRequestAndRefetches(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	c := New(srv.URL)

	stations := []schema.Station{
		{StationRef: schema.StationRef{ID: 1, StationID: "F601"}},
		{StationRef: schema.StationRef{ID: 2, StationID: "F602"}},
	}
	areas := []schema.Area{{ID: 1, Name: "North", Stations: []schema.StationRef{{ID: 1}}}}
	editor, errNew := NewAreaEditor(areas, stations, 1)
	require.NoError(t, errNew)
	require.NoError(t, editor.Toggle(2))
	manager := uint64(7)
	editor.SetManager(&manager)

	saved, errSave := c.SaveArea(context.Background(), 1, editor.Payload())
	require.NoError(t, errSave)
	assert.Equal(t, int32(1), api.areaUpdates.Load())
	path, _ := api.lastBody.Load("area_path")
	assert.Equal(t, "/api/admin/areas/1", path)
	sent, _ := api.lastBody.Load("area")
	assert.Equal(t, assignment.AreaPayload{StationIDs: []uint64{1, 2}, ManagerIDs: []uint64{7}}, sent)
	_, touched := api.lastBody.Load("assignments")
	assert.False(t, touched)

	assert.Len(t, saved.Stations, 2)
	require.Len(t, saved.Managers, 1)
	assert.Equal(t, uint64(7), saved.Managers[0].ID)
}

func TestOwnerEditorIgnoresNonOwners(t *testing.T) {
	stations := []schema.Station{{StationRef: schema.StationRef{ID: 1, StationID: "F601"}}}
	users := []schema.User{
		{ID: 1, Username: "boss", Role: &schema.Role{Name: "admin"}, OwnedStations: []schema.StationRef{{ID: 1}}},
		{ID: 2, Username: "olive", Role: &schema.Role{Name: "Owner"}},
	}
	editor, errNew := NewOwnerEditor(users, stations, 2)
	require.NoError(t, errNew)
	assert.False(t, editor.Disabled(1))

	_, errMissing := NewOwnerEditor(users, stations, 1)
	assert.ErrorIs(t, errMissing, assignment.ErrUnknownOwner)
}

func TestDebouncerFiresLastInputOnly(t *testing.T) {
	var (
		mu      sync.Mutex
		fired   []string
		cleared atomic.Int32
	)
	done := make(chan struct{}, 4)
	d := NewDebouncer(40*time.Millisecond, func(_ context.Context, text string) {
		mu.Lock()
		fired = append(fired, text)
		mu.Unlock()
		done <- struct{}{}
	}, func() { cleared.Add(1) })
	defer d.Stop()

	d.Input("F")
	assert.Equal(t, int32(1), cleared.Load())
	d.Input("F6")
	d.Input("F60")
	d.Input("F601")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced search did not fire")
	}
	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"F601"}, fired)
}

func TestDebouncerFlushRunsPendingInput(t *testing.T) {
	var fired []string
	d := NewDebouncer(time.Hour, func(_ context.Context, text string) {
		fired = append(fired, text)
	}, nil)
	defer d.Stop()

	d.Flush()
	require.Empty(t, fired)
	d.Input("F60")
	d.Input("F601")
	d.Flush()
	require.Equal(t, []string{"F601"}, fired)
	d.Flush()
	require.Len(t, fired, 1)
}

func TestStationSearchSkipsShortInput(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	results := make(chan []StationSuggestion, 2)
	search := NewStationSearch(New(srv.URL), 10*time.Millisecond, func(hits []StationSuggestion, errSearch error) {
		assert.NoError(t, errSearch)
		results <- hits
	})
	defer search.Stop()

	search.Input("F")
	assert.Empty(t, <-results)
	assert.Equal(t, int32(0), api.searches.Load())

	search.Input("F6")
	select {
	case hits := <-results:
		require.Len(t, hits, 1)
		assert.Equal(t, "F6", hits[0].StationName)
	case <-time.After(2 * time.Second):
		t.Fatal("search did not complete")
	}
	assert.Equal(t, int32(1), api.searches.Load())
}

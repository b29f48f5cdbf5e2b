package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/db"
	"github.com/AdamBeresnev/courtside/internal/middleware"
	"github.com/AdamBeresnev/courtside/internal/service"
	"github.com/AdamBeresnev/courtside/internal/store"
	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("routes-test-secret")

type testServer struct {
	t       *testing.T
	handler http.Handler
	userDB  *store.UserStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	require.NoError(t, db.RunMigrations(database.DB))
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := newApplication(database, scs.New(), testSecret, logger)
	return &testServer{t: t, handler: app.routes([]string{"*"}), userDB: store.NewUserStore(database)}
}

// login creates a user and returns a bearer token for it.
func (s *testServer) login(name string) string {
	s.t.Helper()
	u := &users.User{ID: uuid.New(), Email: name + "@courtside.test", Username: name}
	require.NoError(s.t, s.userDB.CreateUser(context.Background(), u))
	token, err := middleware.IssueToken(testSecret, u.ID, time.Hour)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path, token string, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(s.t, json.NewDecoder(rec.Body).Decode(out), rec.Body.String())
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCORSCredentials(t *testing.T) {
	wildcard := corsOptions([]string{"*"})
	assert.False(t, wildcard.AllowCredentials)

	empty := corsOptions(nil)
	assert.False(t, empty.AllowCredentials)
	assert.Equal(t, []string{"*"}, empty.AllowedOrigins)

	named := corsOptions([]string{"https://scores.example"})
	assert.True(t, named.AllowCredentials)

	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"), "no credentials for a wildcard origin")
}

func TestRequestRejections(t *testing.T) {
	s := newTestServer(t)
	token := s.login("owner")

	var errBody struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/teams", "", map[string]string{"name": "x"}, &errBody))
	assert.Equal(t, "authentication", errBody.Kind)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/matches/not-a-uuid", "", nil, &errBody))
	assert.Equal(t, "validation", errBody.Kind)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/matches/"+uuid.NewString(), "", nil, &errBody))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/tournaments/"+uuid.NewString(), "", nil, &errBody))

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/teams", token, map[string]string{"nmae": "x"}, &errBody),
		"unknown fields are rejected")
}

func TestMatchLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	owner := s.login("owner")
	stranger := s.login("stranger")

	var teamIDs []uuid.UUID
	for i := 1; i <= 2; i++ {
		var team bracket.Team
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/teams", owner, map[string]string{"name": fmt.Sprintf("Team %d", i)}, &team))
		teamIDs = append(teamIDs, team.ID)
	}

	var data service.TournamentData
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tournaments", owner, map[string]any{
		"name":     "Club Night",
		"team_ids": teamIDs,
	}, &data))
	require.Len(t, data.Matches, 1)
	require.Len(t, data.Entries, 2)
	assert.Equal(t, bracket.UmpireFree, data.Tournament.UmpireMode)

	tournamentPath := "/tournaments/" + data.Tournament.ID.String()
	var tournament bracket.Tournament
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, tournamentPath+"/publish", owner, nil, &tournament))
	assert.Equal(t, bracket.TournamentPublished, tournament.Status)

	var checkin service.CheckinResult
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, tournamentPath+"/entries/"+data.Entries[0].ID.String()+"/checkin", owner, nil, &checkin))
	assert.Len(t, checkin.DayToken, 6)

	match := data.Matches[0]
	matchPath := "/matches/" + match.ID.String()

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, matchPath+"/status", stranger, map[string]any{
		"status": bracket.MatchInProgress, "expected_version": match.Version,
	}, nil))

	var started bracket.Match
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, matchPath+"/status", owner, map[string]any{
		"status": bracket.MatchInProgress, "expected_version": match.Version,
	}, &started))

	point := map[string]string{"side": "A", "client_key": "court-1:1"}
	var agg bracket.AggregateScore
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, matchPath+"/points", owner, point, &agg))
	assert.Equal(t, 1, agg.GameCountA)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, matchPath+"/points", owner, point, &agg), "a retry is not a new point")
	assert.True(t, agg.Duplicate)

	var points []bracket.Point
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, matchPath+"/points", "", nil, &points))
	assert.Len(t, points, 1)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, matchPath+"/finish", owner, map[string]any{
		"expected_version": started.Version - 1,
	}, nil), "stale version")

	var finished struct {
		Match *bracket.Match      `json:"match"`
		Score *bracket.MatchScore `json:"score"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, matchPath+"/finish", owner, map[string]any{
		"expected_version": started.Version,
	}, &finished))
	assert.Equal(t, bracket.MatchFinished, finished.Match.Status)
	assert.Equal(t, started.Version+1, finished.Match.Version)
	require.NotNil(t, finished.Score.WinnerID)
	assert.Equal(t, teamIDs[0], *finished.Score.WinnerID)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, matchPath+"/points", owner, map[string]string{"side": "B"}, nil),
		"a finished match takes no points")

	var view service.MatchView
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, matchPath, "", nil, &view))
	assert.Equal(t, bracket.MatchFinished, view.Match.Status)
}

func TestPermissionsAndNotificationsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	owner := s.login("owner")
	umpireToken := s.login("umpire")

	var me users.User
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/me", umpireToken, nil, &me))
	assert.Equal(t, "umpire", me.Username)

	var teamIDs []uuid.UUID
	for i := 1; i <= 2; i++ {
		var team bracket.Team
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/teams", owner, map[string]string{"name": fmt.Sprintf("Team %d", i)}, &team))
		teamIDs = append(teamIDs, team.ID)
	}
	var data service.TournamentData
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tournaments", owner, map[string]any{
		"name": "Assigned", "umpire_mode": bracket.UmpireAssigned, "team_ids": teamIDs,
	}, &data))
	match := data.Matches[0]

	var assigned bracket.Match
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/matches/"+match.ID.String()+"/umpire", owner, map[string]any{
		"user_id": me.ID, "expected_version": match.Version,
	}, &assigned))
	require.NotNil(t, assigned.UmpireID)
	assert.Equal(t, me.ID, *assigned.UmpireID)

	var notices []store.Notification
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/notifications", umpireToken, nil, &notices))
	require.Len(t, notices, 1)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/notifications/"+notices[0].ID.String()+"/read", umpireToken, nil, nil))

	var grants []users.Permission
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/permissions", umpireToken, nil, &grants))
	require.Len(t, grants, 1)
	assert.Equal(t, users.RoleUmpire, grants[0].RoleType)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/permissions/"+grants[0].ID.String(), umpireToken, nil, nil))
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/permissions/"+grants[0].ID.String(), owner, nil, nil))
}

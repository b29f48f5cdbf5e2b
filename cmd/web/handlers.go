package main

import (
	"context"
	"net/http"
	"time"

	"github.com/AdamBeresnev/courtside/internal/apperr"
	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/httputil"
	"github.com/AdamBeresnev/courtside/internal/middleware"
	"github.com/AdamBeresnev/courtside/internal/service"
	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/markbates/goth/gothic"
)

const bearerTokenTTL = 12 * time.Hour

// actor returns the authenticated user, or uuid.Nil for anonymous requests.
// The services reject uuid.Nil where an actor is required.
func actor(r *http.Request) uuid.UUID {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindValidation, "invalid "+name, err)
	}
	return id, nil
}

// versionRequest carries the optional expected match version. Omitting it
// skips the staleness check.
type versionRequest struct {
	ExpectedVersion *int `json:"expected_version"`
}

func (app *application) health(w http.ResponseWriter, r *http.Request) {
	if err := app.db.PingContext(r.Context()); err != nil {
		httputil.WriteError(w, apperr.Wrap(apperr.KindDependency, "database unavailable", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *application) authCallback(w http.ResponseWriter, r *http.Request) {
	gothUser, err := gothic.CompleteUserAuth(w, withProvider(r))
	if err != nil {
		httputil.WriteError(w, apperr.Wrap(apperr.KindAuthentication, "authentication failure", err))
		return
	}

	user, err := app.users.FindOrCreateUserByProvider(r.Context(), gothUser)
	if err != nil {
		httputil.InternalServerError(w, "failed to find or create user", err)
		return
	}

	if err := app.sessionManager.RenewToken(r.Context()); err != nil {
		httputil.InternalServerError(w, "failed to renew session", err)
		return
	}
	app.sessionManager.Put(r.Context(), middleware.SessionUserKey, user.ID.String())
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	if err := app.sessionManager.Destroy(r.Context()); err != nil {
		httputil.InternalServerError(w, "failed to destroy session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) me(w http.ResponseWriter, r *http.Request) {
	user, err := app.users.GetUser(r.Context(), actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// issueToken hands a session user a bearer token for a scoring device.
func (app *application) issueToken(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.IssueToken(app.jwtSecret, actor(r), bearerTokenTTL)
	if err != nil {
		httputil.WriteError(w, apperr.Wrap(apperr.KindStateViolation, "cannot issue token", err))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"expires_in": int(bearerTokenTTL.Seconds()),
	})
}

func (app *application) createTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string     `json:"name"`
		ManagerID *uuid.UUID `json:"manager_id"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	team, err := app.tournaments.CreateTeam(r.Context(), actor(r), req.Name, req.ManagerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, team)
}

func (app *application) listTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := app.tournaments.GetTournamentsForUser(r.Context(), actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournaments)
}

func (app *application) createTournament(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string             `json:"name"`
		UmpireMode bracket.UmpireMode `json:"umpire_mode"`
		IsPublic   bool               `json:"is_public"`
		TeamIDs    []uuid.UUID        `json:"team_ids"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	id, err := app.tournaments.CreateTournament(r.Context(), actor(r), service.CreateTournamentInput{
		Name:       req.Name,
		UmpireMode: req.UmpireMode,
		IsPublic:   req.IsPublic,
		TeamIDs:    req.TeamIDs,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	data, err := app.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, data)
}

func (app *application) getTournament(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	data, err := app.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (app *application) publishTournament(w http.ResponseWriter, r *http.Request) {
	app.advanceTournament(w, r, app.tournaments.Publish)
}

func (app *application) finishTournament(w http.ResponseWriter, r *http.Request) {
	app.advanceTournament(w, r, app.tournaments.FinishTournament)
}

func (app *application) advanceTournament(w http.ResponseWriter, r *http.Request, advance func(ctx context.Context, actorID, tournamentID uuid.UUID) error) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := advance(r.Context(), actor(r), id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	data, err := app.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data.Tournament)
}

func (app *application) checkIn(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entryID, err := pathID(r, "entryID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := app.checkin.CheckIn(r.Context(), tournamentID, entryID, actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (app *application) setEntryActive(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entryID, err := pathID(r, "entryID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry, err := app.entries.SetActive(r.Context(), actor(r), tournamentID, entryID, req.Active)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (app *application) getMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := app.matches.GetMatch(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (app *application) updateMatchStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		Status          bracket.MatchStatus `json:"status"`
		ExpectedVersion *int                `json:"expected_version"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	match, err := app.matches.UpdateStatus(r.Context(), id, actor(r), req.Status, req.ExpectedVersion)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (app *application) submitPoint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		Side      bracket.Side `json:"side"`
		ClientKey string       `json:"client_key"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	agg, err := app.scoring.SubmitPoint(r.Context(), service.SubmitPointInput{
		MatchID:   id,
		ActorID:   actor(r),
		Side:      req.Side,
		ClientKey: req.ClientKey,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if agg.Duplicate {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, agg)
}

func (app *application) listPoints(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	points, err := app.scoring.ListPoints(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, points)
}

func (app *application) undoPoint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req versionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	agg, err := app.scoring.UndoPoint(r.Context(), id, actor(r), req.ExpectedVersion)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agg)
}

func (app *application) overrideScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		GameCountA      int  `json:"game_count_a"`
		GameCountB      int  `json:"game_count_b"`
		ExpectedVersion *int `json:"expected_version"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	agg, err := app.scoring.OverrideScore(r.Context(), service.OverrideInput{
		MatchID:         id,
		ActorID:         actor(r),
		GameCountA:      req.GameCountA,
		GameCountB:      req.GameCountB,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agg)
}

func (app *application) listAudits(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audits, err := app.scoring.ListAudits(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, audits)
}

// finishMatch answers 200 even when propagation failed: the finish itself
// is committed and the failure is reported alongside it.
func (app *application) finishMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		ExpectedVersion *int   `json:"expected_version"`
		Reason          string `json:"reason"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := app.matches.Finish(r.Context(), service.FinishInput{
		MatchID:         id,
		ActorID:         actor(r),
		ExpectedVersion: req.ExpectedVersion,
		Reason:          req.Reason,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := struct {
		*service.FinishResult
		PropagationError string `json:"propagation_error,omitempty"`
	}{FinishResult: result}
	if result.PropagationErr != nil {
		resp.PropagationError = result.PropagationErr.Error()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (app *application) confirmMatch(w http.ResponseWriter, r *http.Request) {
	app.versionedMatchAction(w, r, app.matches.Confirm)
}

func (app *application) revertMatch(w http.ResponseWriter, r *http.Request) {
	app.versionedMatchAction(w, r, app.matches.Revert)
}

func (app *application) versionedMatchAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, matchID, actorID uuid.UUID, expectedVersion *int) (*bracket.Match, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req versionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	match, err := action(r.Context(), id, actor(r), req.ExpectedVersion)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (app *application) assignUmpire(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		UserID          uuid.UUID `json:"user_id"`
		ExpectedVersion *int      `json:"expected_version"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.UserID == uuid.Nil {
		httputil.BadRequest(w, "user_id is required", nil)
		return
	}

	match, err := app.matches.AssignUmpire(r.Context(), id, actor(r), req.UserID, req.ExpectedVersion)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (app *application) assignCourt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		Court           int  `json:"court"`
		ExpectedVersion *int `json:"expected_version"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	match, err := app.matches.AssignCourt(r.Context(), id, actor(r), req.Court, req.ExpectedVersion)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (app *application) submitOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		TeamID          uuid.UUID  `json:"team_id"`
		Player1ID       *uuid.UUID `json:"player1_id"`
		Player2ID       *uuid.UUID `json:"player2_id"`
		ExpectedVersion *int       `json:"expected_version"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	pair, err := app.matches.SubmitOrder(r.Context(), service.OrderInput{
		MatchID:         id,
		ActorID:         actor(r),
		TeamID:          req.TeamID,
		Player1ID:       req.Player1ID,
		Player2ID:       req.Player2ID,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pair)
}

func (app *application) listPermissions(w http.ResponseWriter, r *http.Request) {
	grants, err := app.permissions.ListForUser(r.Context(), actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, grants)
}

func (app *application) grantPermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       uuid.UUID      `json:"user_id"`
		RoleType     users.RoleType `json:"role_type"`
		TournamentID *uuid.UUID     `json:"tournament_id"`
		TeamID       *uuid.UUID     `json:"team_id"`
		MatchID      *uuid.UUID     `json:"match_id"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.UserID == uuid.Nil {
		httputil.BadRequest(w, "user_id is required", nil)
		return
	}

	grant, err := app.permissions.Grant(r.Context(), actor(r), service.GrantInput{
		UserID:   req.UserID,
		RoleType: req.RoleType,
		Scope: users.Scope{
			TournamentID: req.TournamentID,
			TeamID:       req.TeamID,
			MatchID:      req.MatchID,
		},
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, grant)
}

func (app *application) revokePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := app.permissions.Revoke(r.Context(), actor(r), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) listNotifications(w http.ResponseWriter, r *http.Request) {
	notices, err := app.notifications.List(r.Context(), actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, notices)
}

func (app *application) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := app.notifications.MarkRead(r.Context(), actor(r), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

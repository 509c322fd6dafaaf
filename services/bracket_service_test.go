package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adilp/bhmhockey/models"
)

type bracketEnv struct {
	tournaments *fakeTournamentRepo
	teams       *fakeTeamRepo
	matches     *fakeMatchRepo
	standings   *fakeStandingRepo
	audit       *fakeAuditRepo
	broadcaster *fakeBroadcaster
	svc         BracketService
}

func newBracketEnv() *bracketEnv {
	env := &bracketEnv{
		tournaments: newFakeTournamentRepo(),
		teams:       newFakeTeamRepo(),
		matches:     newFakeMatchRepo(),
		standings:   newFakeStandingRepo(),
		audit:       &fakeAuditRepo{},
		broadcaster: newFakeBroadcaster(),
	}
	env.svc = NewBracketService(
		env.tournaments, env.teams, env.matches, env.standings, env.audit,
		fakeTxRunner{}, &fakeLocker{}, env.broadcaster, testLogger(),
	)
	return env
}

func (env *bracketEnv) addTournament(format models.TournamentFormat, status models.TournamentStatus) *models.Tournament {
	t := &models.Tournament{
		Name:        "City Open",
		OrganizerID: 1,
		Format:      format,
		Status:      status,
		StartDate:   time.Now().Add(24 * time.Hour),
		EndDate:     time.Now().Add(72 * time.Hour),
		MaxTeams:    16,
		PointsWin:   2,
		PointsTie:   1,
	}
	env.tournaments.add(t)
	return t
}

func (env *bracketEnv) addTeams(tournamentID, n int) []*models.TournamentTeam {
	names := []string{"Avalanche", "Bruins", "Canucks", "Devils", "Eagles", "Flames", "Gulls", "Hawks"}
	teams := make([]*models.TournamentTeam, 0, n)
	for i := 0; i < n; i++ {
		team := &models.TournamentTeam{TournamentID: tournamentID, Name: names[i], Status: models.TeamRegistered}
		env.teams.add(team)
		teams = append(teams, team)
	}
	return teams
}

func TestGenerateBracketSingleElimination(t *testing.T) {
	env := newBracketEnv()
	tournament := env.addTournament(models.FormatSingleElimination, models.TournamentRegistrationClosed)
	teams := env.addTeams(tournament.ID, 4)

	full, err := env.svc.GenerateBracket(context.Background(), organizer(), tournament.ID)
	require.NoError(t, err)

	require.Len(t, full.Matches, 3)
	require.Len(t, full.Teams, 4)

	// Teams are seeded in roster order and become active.
	for i, team := range teams {
		stored, err := env.teams.GetByID(context.Background(), nil, team.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.Seed)
		assert.Equal(t, i+1, *stored.Seed)
		assert.Equal(t, models.TeamActive, stored.Status)
	}

	matches, err := env.matches.ListByTournament(context.Background(), nil, tournament.ID)
	require.NoError(t, err)

	var final *models.TournamentMatch
	semis := make([]*models.TournamentMatch, 0, 2)
	for _, m := range matches {
		if m.Round == 2 {
			final = m
		} else {
			semis = append(semis, m)
		}
	}
	require.NotNil(t, final)
	require.Len(t, semis, 2)

	// Successor pointers reference the stored final by its database id.
	for _, semi := range semis {
		require.NotNil(t, semi.NextMatchID)
		assert.Equal(t, final.ID, *semi.NextMatchID)
		require.NotNil(t, semi.NextMatchSlot)
	}
	assert.Nil(t, final.NextMatchID)

	assert.Len(t, env.audit.byAction(models.AuditActionBracketGenerated), 1)
	assert.NotEmpty(t, env.broadcaster.messages[tournamentRoom(tournament.ID)])
}

func TestGenerateBracketPersistsByes(t *testing.T) {
	env := newBracketEnv()
	tournament := env.addTournament(models.FormatSingleElimination, models.TournamentRegistrationClosed)
	teams := env.addTeams(tournament.ID, 3)

	_, err := env.svc.GenerateBracket(context.Background(), organizer(), tournament.ID)
	require.NoError(t, err)

	matches, err := env.matches.ListByTournament(context.Background(), nil, tournament.ID)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	byes := 0
	for _, m := range matches {
		if m.Status == models.MatchBye {
			byes++
			require.NotNil(t, m.WinnerTeamID)
			assert.Equal(t, teams[0].ID, *m.WinnerTeamID, "top seed takes the bye")
		}
	}
	assert.Equal(t, 1, byes)

	// Byes are already decided, so only the playable matches block completion.
	unfinished, err := env.matches.CountUnfinished(context.Background(), nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unfinished)

	// The bye winner is waiting in the final already.
	var final *models.TournamentMatch
	for _, m := range matches {
		if m.Round == 2 {
			final = m
		}
	}
	require.NotNil(t, final)
	occupied := 0
	for _, slot := range []int{models.SlotHome, models.SlotAway} {
		if teamID := final.TeamInSlot(slot); teamID != nil {
			occupied++
			assert.Equal(t, teams[0].ID, *teamID)
		}
	}
	assert.Equal(t, 1, occupied)
}

func TestGenerateBracketRoundRobin(t *testing.T) {
	env := newBracketEnv()
	tournament := env.addTournament(models.FormatRoundRobin, models.TournamentRegistrationClosed)
	env.addTeams(tournament.ID, 4)

	full, err := env.svc.GenerateBracket(context.Background(), organizer(), tournament.ID)
	require.NoError(t, err)

	// Everyone plays everyone once.
	require.Len(t, full.Matches, 6)
	for _, m := range full.Matches {
		assert.NotNil(t, m.HomeTeamID)
		assert.NotNil(t, m.AwayTeamID)
		assert.Nil(t, m.NextMatchID)
	}
}

func TestGenerateBracketAllowedWhileOpen(t *testing.T) {
	env := newBracketEnv()
	tournament := env.addTournament(models.FormatSingleElimination, models.TournamentOpen)
	env.addTeams(tournament.ID, 4)

	full, err := env.svc.GenerateBracket(context.Background(), organizer(), tournament.ID)
	require.NoError(t, err)
	assert.Len(t, full.Matches, 3)
}

func TestGenerateBracketRequiresOpenOrClosedRegistration(t *testing.T) {
	for _, status := range []models.TournamentStatus{
		models.TournamentDraft, models.TournamentInProgress, models.TournamentCompleted,
	} {
		env := newBracketEnv()
		tournament := env.addTournament(models.FormatSingleElimination, status)
		env.addTeams(tournament.ID, 4)

		_, err := env.svc.GenerateBracket(context.Background(), organizer(), tournament.ID)
		assert.ErrorIs(t, err, ErrInvalidTournamentForStep, "status %s", status)
	}
}

func TestGenerateBracketRequiresTwoTeams(t *testing.T) {
	env := newBracketEnv()
	tournament := env.addTournament(models.FormatSingleElimination, models.TournamentRegistrationClosed)
	env.addTeams(tournament.ID, 1)

	_, err := env.svc.GenerateBracket(context.Background(), organizer(), tournament.ID)
	assert.ErrorIs(t, err, ErrNotEnoughTeams)
}

func TestGenerateBracketSkipsInactiveTeams(t *testing.T) {
	env := newBracketEnv()
	tournament := env.addTournament(models.FormatSingleElimination, models.TournamentRegistrationClosed)
	teams := env.addTeams(tournament.ID, 4)
	require.NoError(t, env.teams.UpdateStatus(context.Background(), nil, teams[3].ID, models.TeamWaitlisted))

	full, err := env.svc.GenerateBracket(context.Background(), organizer(), tournament.ID)
	require.NoError(t, err)

	for _, team := range full.Teams {
		if team.ID == teams[3].ID {
			assert.Equal(t, models.TeamWaitlisted, team.Status)
			assert.Nil(t, team.Seed)
		}
	}
	// 3 entrants: one bye plus two playable matches.
	require.Len(t, full.Matches, 3)
}

func TestGenerateBracketRegenerationReplaces(t *testing.T) {
	env := newBracketEnv()
	tournament := env.addTournament(models.FormatSingleElimination, models.TournamentRegistrationClosed)
	teams := env.addTeams(tournament.ID, 4)

	_, err := env.svc.GenerateBracket(context.Background(), organizer(), tournament.ID)
	require.NoError(t, err)

	// Dirty a team's stats to prove regeneration resets derived data.
	dirty, err := env.teams.GetByID(context.Background(), nil, teams[0].ID)
	require.NoError(t, err)
	dirty.Wins, dirty.Points = 3, 6
	require.NoError(t, env.teams.UpdateStats(context.Background(), nil, dirty))

	full, err := env.svc.GenerateBracket(context.Background(), organizer(), tournament.ID)
	require.NoError(t, err)

	require.Len(t, full.Matches, 3, "old matches replaced, not appended")
	reset, err := env.teams.GetByID(context.Background(), nil, teams[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reset.Wins)
	assert.Equal(t, 0, reset.Points)
}

func TestGenerateBracketAuthorization(t *testing.T) {
	env := newBracketEnv()
	tournament := env.addTournament(models.FormatSingleElimination, models.TournamentRegistrationClosed)
	env.addTeams(tournament.ID, 4)

	_, err := env.svc.GenerateBracket(context.Background(), &models.User{ID: 99, Role: models.RolePlayer}, tournament.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

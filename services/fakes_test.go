package services

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/repositories"
	"github.com/adilp/bhmhockey/storage"
)

// In-memory repository fakes. Get methods hand out copies so a service that
// forgets to call the matching Update method fails its assertions.

type fakeTxRunner struct{}

func (fakeTxRunner) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakeLocker struct {
	acquired []repositories.LockClass
}

func (l *fakeLocker) Acquire(ctx context.Context, exec repositories.SQLExecutor, class repositories.LockClass, key int) error {
	l.acquired = append(l.acquired, class)
	return nil
}

type fakeBroadcaster struct {
	messages map[string][]interface{}
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{messages: make(map[string][]interface{})}
}

func (b *fakeBroadcaster) BroadcastToRoom(roomID string, message interface{}) {
	b.messages[roomID] = append(b.messages[roomID], message)
}

type sentNotification struct {
	UserID int
	Type   models.NotificationType
	Title  string
	Body   string
}

type fakeNotifier struct {
	sent []sentNotification
}

func (n *fakeNotifier) Notify(ctx context.Context, userID int, typ models.NotificationType, title, body string, data interface{}) {
	n.sent = append(n.sent, sentNotification{UserID: userID, Type: typ, Title: title, Body: body})
}

type fakeUploader struct{}

func (fakeUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key}, nil
}
func (fakeUploader) Delete(ctx context.Context, key string) error { return nil }
func (fakeUploader) GetPublicURL(key string) string               { return "https://cdn.test/" + key }

// --- tournaments ---

type fakeTournamentRepo struct {
	byID   map[int]*models.Tournament
	nextID int
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{byID: make(map[int]*models.Tournament), nextID: 1}
}

func (r *fakeTournamentRepo) add(t *models.Tournament) *models.Tournament {
	if t.ID == 0 {
		t.ID = r.nextID
		r.nextID++
	} else if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
	cp := *t
	r.byID[t.ID] = &cp
	return t
}

func (r *fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	t.CreatedAt = time.Now()
	r.add(t)
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	out := make([]models.Tournament, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) Update(ctx context.Context, t *models.Tournament) error {
	if _, ok := r.byID[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	cp := *t
	r.byID[t.ID] = &cp
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus, prior *models.TournamentStatus) error {
	t, ok := r.byID[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	t.PriorStatus = prior
	return nil
}

func (r *fakeTournamentRepo) SetWinner(ctx context.Context, exec repositories.SQLExecutor, id int, winnerTeamID *int) error {
	t, ok := r.byID[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.WinnerTeamID = winnerTeamID
	return nil
}

func (r *fakeTournamentRepo) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	t, ok := r.byID[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (r *fakeTournamentRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.byID[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.byID, id)
	return nil
}

// --- teams ---

type fakeTeamRepo struct {
	byID   map[int]*models.TournamentTeam
	nextID int
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{byID: make(map[int]*models.TournamentTeam), nextID: 1}
}

func (r *fakeTeamRepo) add(t *models.TournamentTeam) *models.TournamentTeam {
	if t.ID == 0 {
		t.ID = r.nextID
		r.nextID++
	} else if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
	cp := *t
	r.byID[t.ID] = &cp
	return t
}

func (r *fakeTeamRepo) Create(ctx context.Context, exec repositories.SQLExecutor, team *models.TournamentTeam) error {
	team.CreatedAt = time.Now()
	r.add(team)
	return nil
}

func (r *fakeTeamRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.TournamentTeam, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTeamRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.TournamentTeam, error) {
	out := make([]*models.TournamentTeam, 0)
	for _, t := range r.byID {
		if t.TournamentID == tournamentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Seed != nil && b.Seed != nil {
			return *a.Seed < *b.Seed
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *fakeTeamRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TeamStatus) error {
	t, ok := r.byID[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTeamRepo) UpdateSeed(ctx context.Context, exec repositories.SQLExecutor, id int, seed *int) error {
	t, ok := r.byID[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.Seed = seed
	return nil
}

func (r *fakeTeamRepo) UpdateStats(ctx context.Context, exec repositories.SQLExecutor, team *models.TournamentTeam) error {
	t, ok := r.byID[team.ID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.Wins, t.Losses, t.Ties = team.Wins, team.Losses, team.Ties
	t.Points, t.GoalsFor, t.GoalsAgainst = team.Points, team.GoalsFor, team.GoalsAgainst
	return nil
}

func (r *fakeTeamRepo) ResetStats(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	for _, t := range r.byID {
		if t.TournamentID == tournamentID {
			t.Wins, t.Losses, t.Ties, t.Points, t.GoalsFor, t.GoalsAgainst = 0, 0, 0, 0, 0, 0
		}
	}
	return nil
}

func (r *fakeTeamRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.byID[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.byID, id)
	return nil
}

// --- matches ---

type fakeMatchRepo struct {
	byID   map[int]*models.TournamentMatch
	nextID int
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{byID: make(map[int]*models.TournamentMatch), nextID: 1}
}

func (r *fakeMatchRepo) add(m *models.TournamentMatch) *models.TournamentMatch {
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	} else if m.ID >= r.nextID {
		r.nextID = m.ID + 1
	}
	cp := *m
	r.byID[m.ID] = &cp
	return m
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.TournamentMatch) error {
	m.CreatedAt = time.Now()
	r.add(m)
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.TournamentMatch, error) {
	m, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.TournamentMatch, error) {
	out := make([]*models.TournamentMatch, 0)
	for _, m := range r.byID {
		if m.TournamentID == tournamentID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].MatchNumber < out[j].MatchNumber
	})
	return out, nil
}

func (r *fakeMatchRepo) UpdateSuccessors(ctx context.Context, exec repositories.SQLExecutor, id int, nextID, nextSlot, loserNextID, loserNextSlot *int) error {
	m, ok := r.byID[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.NextMatchID, m.NextMatchSlot = nextID, nextSlot
	m.LoserNextMatchID, m.LoserNextSlot = loserNextID, loserNextSlot
	return nil
}

func (r *fakeMatchRepo) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, match *models.TournamentMatch) error {
	m, ok := r.byID[match.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.HomeScore, m.AwayScore = match.HomeScore, match.AwayScore
	m.Status = match.Status
	m.WinnerTeamID = match.WinnerTeamID
	m.ForfeitTeamID, m.ForfeitReason = match.ForfeitTeamID, match.ForfeitReason
	return nil
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.MatchStatus) error {
	m, ok := r.byID[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = status
	return nil
}

func (r *fakeMatchRepo) AssignTeamSlot(ctx context.Context, exec repositories.SQLExecutor, matchID, slot, teamID int) error {
	m, ok := r.byID[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if slot == models.SlotHome {
		if m.HomeTeamID != nil {
			return repositories.ErrMatchSlotOccupied
		}
		m.HomeTeamID = &teamID
	} else {
		if m.AwayTeamID != nil {
			return repositories.ErrMatchSlotOccupied
		}
		m.AwayTeamID = &teamID
	}
	return nil
}

func (r *fakeMatchRepo) CountUnfinished(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	count := 0
	for _, m := range r.byID {
		if m.TournamentID != tournamentID {
			continue
		}
		if !m.Status.Decided() && m.Status != models.MatchCancelled {
			count++
		}
	}
	return count, nil
}

func (r *fakeMatchRepo) DeleteByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	for id, m := range r.byID {
		if m.TournamentID == tournamentID {
			delete(r.byID, id)
		}
	}
	return nil
}

// --- registrations ---

type fakeRegistrationRepo struct {
	byID   map[int]*models.Registration
	nextID int
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{byID: make(map[int]*models.Registration), nextID: 1}
}

func (r *fakeRegistrationRepo) Create(ctx context.Context, exec repositories.SQLExecutor, reg *models.Registration) error {
	for _, existing := range r.byID {
		if existing.ParentKind == reg.ParentKind && existing.ParentID == reg.ParentID &&
			existing.UserID == reg.UserID && existing.Status != models.RegistrationCancelled {
			return repositories.ErrRegistrationConflict
		}
	}
	reg.ID = r.nextID
	r.nextID++
	reg.CreatedAt = time.Now()
	cp := *reg
	r.byID[reg.ID] = &cp
	return nil
}

func (r *fakeRegistrationRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Registration, error) {
	reg, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r *fakeRegistrationRepo) GetActiveByUser(ctx context.Context, exec repositories.SQLExecutor, parent models.ParentRef, userID int) (*models.Registration, error) {
	for _, reg := range r.byID {
		if reg.ParentKind == parent.Kind && reg.ParentID == parent.ID &&
			reg.UserID == userID && reg.Status != models.RegistrationCancelled {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, repositories.ErrRegistrationNotFound
}

func (r *fakeRegistrationRepo) ListByParent(ctx context.Context, exec repositories.SQLExecutor, parent models.ParentRef) ([]*models.Registration, error) {
	out := make([]*models.Registration, 0)
	for _, reg := range r.byID {
		if reg.ParentKind == parent.Kind && reg.ParentID == parent.ID {
			cp := *reg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRegistrationRepo) ListWaitlisted(ctx context.Context, exec repositories.SQLExecutor, parent models.ParentRef) ([]*models.Registration, error) {
	out := make([]*models.Registration, 0)
	for _, reg := range r.byID {
		if reg.ParentKind == parent.Kind && reg.ParentID == parent.ID && reg.Status == models.RegistrationWaitlisted {
			cp := *reg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].WaitlistPosition < *out[j].WaitlistPosition })
	return out, nil
}

func (r *fakeRegistrationRepo) CountActive(ctx context.Context, exec repositories.SQLExecutor, parent models.ParentRef) (int, error) {
	count := 0
	for _, reg := range r.byID {
		if reg.ParentKind == parent.Kind && reg.ParentID == parent.ID && reg.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (r *fakeRegistrationRepo) MaxWaitlistPosition(ctx context.Context, exec repositories.SQLExecutor, parent models.ParentRef) (int, error) {
	max := 0
	for _, reg := range r.byID {
		if reg.ParentKind == parent.Kind && reg.ParentID == parent.ID &&
			reg.Status == models.RegistrationWaitlisted && reg.WaitlistPosition != nil && *reg.WaitlistPosition > max {
			max = *reg.WaitlistPosition
		}
	}
	return max, nil
}

func (r *fakeRegistrationRepo) MarkPromoted(ctx context.Context, exec repositories.SQLExecutor, id int, promotedAt time.Time, paymentDeadline *time.Time) error {
	reg, ok := r.byID[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = models.RegistrationRegistered
	reg.WaitlistPosition = nil
	reg.PromotedAt = &promotedAt
	reg.PaymentDeadlineAt = paymentDeadline
	return nil
}

func (r *fakeRegistrationRepo) MarkDemoted(ctx context.Context, exec repositories.SQLExecutor, id int, position int) error {
	reg, ok := r.byID[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = models.RegistrationWaitlisted
	reg.WaitlistPosition = &position
	reg.PromotedAt = nil
	reg.PaymentDeadlineAt = nil
	return nil
}

func (r *fakeRegistrationRepo) MarkPaid(ctx context.Context, exec repositories.SQLExecutor, id int, paidAt time.Time) error {
	reg, ok := r.byID[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.PaidAt = &paidAt
	return nil
}

func (r *fakeRegistrationRepo) Cancel(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	reg, ok := r.byID[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = models.RegistrationCancelled
	reg.WaitlistPosition = nil
	return nil
}

func (r *fakeRegistrationRepo) DecrementPositionsAfter(ctx context.Context, exec repositories.SQLExecutor, parent models.ParentRef, position int) error {
	for _, reg := range r.byID {
		if reg.ParentKind == parent.Kind && reg.ParentID == parent.ID &&
			reg.Status == models.RegistrationWaitlisted && reg.WaitlistPosition != nil && *reg.WaitlistPosition > position {
			next := *reg.WaitlistPosition - 1
			reg.WaitlistPosition = &next
		}
	}
	return nil
}

func (r *fakeRegistrationRepo) ListOverduePromotions(ctx context.Context, exec repositories.SQLExecutor, now time.Time) ([]*models.Registration, error) {
	out := make([]*models.Registration, 0)
	for _, reg := range r.byID {
		if reg.Status == models.RegistrationRegistered && reg.PaidAt == nil &&
			reg.PaymentDeadlineAt != nil && reg.PaymentDeadlineAt.Before(now) {
			cp := *reg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- events ---

type fakeEventRepo struct {
	byID   map[int]*models.Event
	nextID int
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{byID: make(map[int]*models.Event), nextID: 1}
}

func (r *fakeEventRepo) add(e *models.Event) *models.Event {
	if e.ID == 0 {
		e.ID = r.nextID
		r.nextID++
	} else if e.ID >= r.nextID {
		r.nextID = e.ID + 1
	}
	cp := *e
	r.byID[e.ID] = &cp
	return e
}

func (r *fakeEventRepo) Create(ctx context.Context, e *models.Event) error {
	e.CreatedAt = time.Now()
	r.add(e)
	return nil
}

func (r *fakeEventRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Event, error) {
	e, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEventRepo) List(ctx context.Context, filter repositories.ListEventsFilter) ([]models.Event, error) {
	out := make([]models.Event, 0)
	for _, e := range r.byID {
		if e.Status != models.EventDeleted {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *fakeEventRepo) Update(ctx context.Context, e *models.Event) error {
	if _, ok := r.byID[e.ID]; !ok {
		return repositories.ErrEventNotFound
	}
	cp := *e
	r.byID[e.ID] = &cp
	return nil
}

func (r *fakeEventRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.EventStatus) error {
	e, ok := r.byID[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.Status = status
	return nil
}

func (r *fakeEventRepo) ListNeedingReminder(ctx context.Context, now time.Time, window time.Duration) ([]*models.Event, error) {
	out := make([]*models.Event, 0)
	for _, e := range r.byID {
		if e.Status == models.EventActive && e.ReminderSentAt == nil &&
			e.StartsAt.After(now) && !e.StartsAt.After(now.Add(window)) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeEventRepo) MarkReminderSent(ctx context.Context, id int, at time.Time) error {
	e, ok := r.byID[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.ReminderSentAt = &at
	return nil
}

// --- audit ---

type fakeAuditRepo struct {
	entries []models.TournamentAuditLog
}

func (r *fakeAuditRepo) Append(ctx context.Context, exec repositories.SQLExecutor, entry *models.TournamentAuditLog) error {
	entry.ID = int64(len(r.entries) + 1)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) ListByTournament(ctx context.Context, tournamentID int, limit, offset int) ([]models.TournamentAuditLog, error) {
	out := make([]models.TournamentAuditLog, 0)
	for _, e := range r.entries {
		if e.TournamentID != nil && *e.TournamentID == tournamentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) byAction(action string) []models.TournamentAuditLog {
	out := make([]models.TournamentAuditLog, 0)
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// --- standings ---

type fakeStandingRepo struct {
	rows map[int]map[int]*models.TeamStanding
}

func newFakeStandingRepo() *fakeStandingRepo {
	return &fakeStandingRepo{rows: make(map[int]map[int]*models.TeamStanding)}
}

func (r *fakeStandingRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, s *models.TeamStanding) error {
	if r.rows[s.TournamentID] == nil {
		r.rows[s.TournamentID] = make(map[int]*models.TeamStanding)
	}
	s.UpdatedAt = time.Now()
	cp := *s
	r.rows[s.TournamentID][s.TeamID] = &cp
	return nil
}

func (r *fakeStandingRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]models.TeamStanding, error) {
	out := make([]models.TeamStanding, 0)
	for _, s := range r.rows[tournamentID] {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (r *fakeStandingRepo) DeleteByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	delete(r.rows, tournamentID)
	return nil
}

// --- users ---

type fakeUserRepo struct {
	byID   map[int]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[int]*models.User), nextID: 1}
}

func (r *fakeUserRepo) Create(ctx context.Context, u *models.User) error {
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	u.ID = r.nextID
	r.nextID++
	u.CreatedAt = time.Now()
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) ListByIDs(ctx context.Context, ids []int) ([]*models.User, error) {
	out := make([]*models.User, 0)
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

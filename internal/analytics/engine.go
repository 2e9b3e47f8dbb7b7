package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zapdesk/zapmetrics/internal/db"
	"github.com/zapdesk/zapmetrics/internal/scope"
	"github.com/zapdesk/zapmetrics/internal/timeutil"
)

// Source is the row source the engine reads from.
type Source interface {
	scope.ChatLister
	FetchMessages(
		ctx context.Context, q db.MessageQuery, mode db.FetchMode,
	) (db.PagedFetch, error)
	ListChats(ctx context.Context, q db.ChatQuery) ([]db.Chat, error)
	ListAgents(ctx context.Context, orgID string) ([]db.Profile, error)
	GetStats(ctx context.Context, q db.StatsQuery) (db.Stats, error)
}

// Observer receives engine timings and degradations.
type Observer interface {
	ObserveCompute(kind string, elapsed time.Duration)
	SectionDegraded(section string)
}

// defaultRecentLimit is the size of the latest-messages preview.
const defaultRecentLimit = 20

// Engine computes analytics reports. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	src         Source
	roles       scope.RoleResolver
	lex         *LexiconStore
	log         logrus.FieldLogger
	obs         Observer
	now         func() time.Time
	recentLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLexicon sets the lexicon store.
func WithLexicon(s *LexiconStore) Option {
	return func(e *Engine) { e.lex = s }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.obs = o }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecentLimit sets how many messages the recent preview
// holds.
func WithRecentLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.recentLimit = n
		}
	}
}

// New creates an Engine.
func New(
	src Source, roles scope.RoleResolver, opts ...Option,
) *Engine {
	e := &Engine{
		src:         src,
		roles:       roles,
		now:         time.Now,
		recentLimit: defaultRecentLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.lex == nil {
		e.lex = NewLexiconStore(nil)
	}
	if e.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		e.log = l
	}
	return e
}

// Request describes one report computation.
type Request struct {
	OrgID    string
	CallerID string
	// AgentID optionally narrows an org-wide caller to a single
	// agent.
	AgentID string
	Window  timeutil.WindowInput
	// Fallback is the window used when Window is unusable.
	Fallback timeutil.Fallback
	// Location is the timezone of the heatmap; nil means UTC.
	Location *time.Location
}

// fetched holds the fan-out results. Each field is written by a
// single goroutine.
type fetched struct {
	messages    db.PagedFetch
	messagesErr error
	chats       []db.Chat
	chatsErr    error
	agents      []db.Profile
	agentsErr   error
	recent      db.PagedFetch
	recentErr   error
}

// Compute builds the report for req. Only missing identifiers
// are returned as errors. Source failures zero-fill the
// affected sections and list them in Report.Degraded.
func (e *Engine) Compute(ctx context.Context, req Request) (Report, error) {
	started := e.now()
	if req.OrgID == "" {
		return Report{}, scope.ErrMissingOrganization
	}
	if req.CallerID == "" {
		return Report{}, scope.ErrMissingCaller
	}

	w := timeutil.ResolveWindow(req.Window, req.Fallback, started)
	log := e.log.WithFields(logrus.Fields{
		"organization_id": req.OrgID,
		"caller_id":       req.CallerID,
	})

	sc, err := scope.Build(ctx, e.roles, e.src, scope.Request{
		OrgID: req.OrgID, CallerID: req.CallerID,
		AgentFilter: req.AgentID,
	})
	var degraded []string
	if err != nil {
		if errors.Is(err, scope.ErrMissingOrganization) ||
			errors.Is(err, scope.ErrMissingCaller) {
			return Report{}, err
		}
		degraded = e.degrade(log, degraded, SectionScope, err)
		sc = scope.Denied(req.OrgID, req.CallerID)
	}

	rep := emptyReport(w, sc)
	rep.GeneratedAt = started.UTC()
	if sc.Empty() {
		rep.Degraded = append(rep.Degraded, degraded...)
		e.observe(req, started)
		return rep, nil
	}

	f := e.fetch(ctx, w, sc)
	lex := e.lex.Load()

	if f.messagesErr != nil {
		degraded = e.degrade(log, degraded, SectionMessages, f.messagesErr)
		f.messages = db.PagedFetch{}
	}
	if f.chatsErr != nil {
		degraded = e.degrade(log, degraded, SectionChats, f.chatsErr)
		f.chats = nil
	}
	if f.agentsErr != nil {
		degraded = e.degrade(log, degraded, SectionAgents, f.agentsErr)
		f.agents = nil
	}
	if f.recentErr != nil {
		degraded = e.degrade(log, degraded, SectionRecent, f.recentErr)
		f.recent = db.PagedFetch{}
	}

	msgs := visibleMessages(f.messages.Sample, sc)
	f.messages.Sample = msgs
	chats := make(map[string]db.Chat, len(f.chats))
	for _, c := range f.chats {
		if sc.AllowsChat(c.ID) {
			chats[c.ID] = c
		}
	}

	convs := Aggregate(msgs, chats, log)
	if f.chatsErr != nil && sc.AgentID != "" {
		// Every visible chat is assigned to the scoped agent.
		for i := range convs {
			convs[i].AssignedAgentID = sc.AgentID
		}
	}
	tallies := make([]SentimentTally, len(convs))
	for i := range convs {
		tallies[i] = lex.TallyMessages(convs[i].messages)
	}
	byAgent, overall := ResponseTimes(convs)

	users := buildUsers(
		f.agents, f.agentsErr == nil, convs, tallies,
		byAgent, lex, sc,
	)
	rep.Global = buildGlobal(f.messages, convs, tallies, overall, users)
	rep.Users = users
	rep.Productivity = Summarize(users)
	rep.Trends = BuildTrends(w, msgs)
	rep.Heatmap = BuildHeatmap(msgs, req.Location)
	rep.Departments = buildDepartments(convs, f.agents)
	rep.Recent = buildRecent(f.recent, chats, lex, sc)
	rep.Degraded = append(rep.Degraded, degraded...)

	e.observe(req, started)
	return rep, nil
}

// fetch runs the independent source reads concurrently.
func (e *Engine) fetch(
	ctx context.Context, w timeutil.Window, sc scope.Scope,
) fetched {
	mq := db.MessageQuery{
		OrgID:      sc.OrgID,
		From:       w.Start,
		To:         w.End,
		Restricted: sc.Restricted(),
		ChatIDs:    sc.ChatIDs(),
	}

	var f fetched
	var wg sync.WaitGroup
	wg.Go(func() {
		f.messages, f.messagesErr = e.src.FetchMessages(
			ctx, mq, db.FetchAll,
		)
	})
	wg.Go(func() {
		f.chats, f.chatsErr = e.src.ListChats(ctx, db.ChatQuery{
			OrgID:         sc.OrgID,
			CreatedBefore: w.End,
			Restricted:    sc.Restricted(),
			IDs:           sc.ChatIDs(),
		})
	})
	wg.Go(func() {
		f.agents, f.agentsErr = e.src.ListAgents(ctx, sc.OrgID)
	})
	wg.Go(func() {
		f.recent, f.recentErr = e.src.FetchMessages(
			ctx, mq, db.FetchSample(e.recentLimit),
		)
	})
	wg.Wait()
	return f
}

func visibleMessages(msgs []db.Message, sc scope.Scope) []db.Message {
	if !sc.Restricted() {
		return msgs
	}
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.ChatID != "" && sc.AllowsChat(m.ChatID) {
			out = append(out, m)
		}
	}
	return out
}

func (e *Engine) degrade(
	log logrus.FieldLogger, degraded []string,
	section string, err error,
) []string {
	log.WithError(err).WithField("section", section).
		Warn("analytics section degraded")
	if e.obs != nil {
		e.obs.SectionDegraded(section)
	}
	return append(degraded, section)
}

func (e *Engine) observe(req Request, started time.Time) {
	if e.obs == nil {
		return
	}
	kind := "report"
	if req.Fallback == timeutil.FallbackLast24h {
		kind = "dashboard"
	}
	e.obs.ObserveCompute(kind, e.now().Sub(started))
}

// Dashboard computes the dashboard view; unusable windows fall
// back to the last 24 hours.
func (e *Engine) Dashboard(ctx context.Context, req Request) (Report, error) {
	req.Fallback = timeutil.FallbackLast24h
	return e.Compute(ctx, req)
}

// Metrics computes the report view; unusable windows fall back to
// the last 30 days.
func (e *Engine) Metrics(ctx context.Context, req Request) (Report, error) {
	req.Fallback = timeutil.FallbackLast30Days
	return e.Compute(ctx, req)
}

// ProductivityReport is the per-agent productivity view.
type ProductivityReport struct {
	Window       timeutil.Window     `json:"window"`
	Scope        scope.Scope         `json:"scope"`
	Users        []AgentMetrics      `json:"users"`
	Productivity ProductivitySummary `json:"productivity"`
	Degraded     []string            `json:"degraded"`
}

// ProductivityReport computes agent scores over the report window.
func (e *Engine) ProductivityReport(
	ctx context.Context, req Request,
) (ProductivityReport, error) {
	rep, err := e.Metrics(ctx, req)
	if err != nil {
		return ProductivityReport{}, err
	}
	return ProductivityReport{
		Window:       rep.Window,
		Scope:        rep.Scope,
		Users:        rep.Users,
		Productivity: rep.Productivity,
		Degraded:     rep.Degraded,
	}, nil
}

// Stats returns the row counts visible to the caller. Unlike
// Compute, a store failure is returned as an error since there is
// no section to degrade.
func (e *Engine) Stats(ctx context.Context, req Request) (db.Stats, error) {
	sc, err := scope.Build(ctx, e.roles, e.src, scope.Request{
		OrgID: req.OrgID, CallerID: req.CallerID,
		AgentFilter: req.AgentID,
	})
	if err != nil {
		return db.Stats{}, err
	}
	return e.src.GetStats(ctx, db.StatsQuery{
		OrgID:      sc.OrgID,
		Restricted: sc.Restricted(),
		ChatIDs:    sc.ChatIDs(),
		AgentID:    sc.AgentID,
	})
}

package analytics

import (
	"sort"
	"time"

	"github.com/zapdesk/zapmetrics/internal/db"
	"github.com/zapdesk/zapmetrics/internal/scope"
	"github.com/zapdesk/zapmetrics/internal/timeutil"
)

// Report sections, as named in Report.Degraded.
const (
	SectionScope    = "scope"
	SectionMessages = "messages"
	SectionChats    = "chats"
	SectionAgents   = "agents"
	SectionRecent   = "recent"
)

// Report is the full analytics payload for one request. Every
// section is computed under the same Scope.
type Report struct {
	Window       timeutil.Window     `json:"window"`
	Scope        scope.Scope         `json:"scope"`
	Global       Global              `json:"global"`
	Users        []AgentMetrics      `json:"users"`
	Productivity ProductivitySummary `json:"productivity"`
	Trends       []TrendPoint        `json:"trends"`
	Heatmap      []HeatmapCell       `json:"heatmap"`
	Departments  []DepartmentMetrics `json:"departments"`
	Recent       RecentActivity      `json:"recent"`
	// Degraded lists sections whose source failed and were
	// zero-filled.
	Degraded    []string  `json:"degraded"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Global holds totals across every visible conversation.
type Global struct {
	// TotalMessages is the store's authoritative count, not the
	// number of rows fetched.
	TotalMessages         int            `json:"total_messages"`
	SentMessages          int            `json:"sent_messages"`
	ReceivedMessages      int            `json:"received_messages"`
	TotalConversations    int            `json:"total_conversations"`
	ActiveConversations   int            `json:"active_conversations"`
	FinishedConversations int            `json:"finished_conversations"`
	ResolvedConversations int            `json:"resolved_conversations"`
	ResolutionRate        float64        `json:"resolution_rate"`
	CustomerSatisfaction  float64        `json:"customer_satisfaction"`
	AvgResponseTime       *float64       `json:"avg_response_time_seconds"`
	BestResponseTime      *float64       `json:"best_response_time_seconds"`
	Sentiment             SentimentTally `json:"sentiment"`
	ActiveAgents          int            `json:"active_agents"`
	OnlineAgents          int            `json:"online_agents"`
	// Complete is false when fewer rows were fetched than the
	// count reported, e.g. rows written mid-request.
	Complete bool `json:"complete"`
}

// AgentMetrics is one agent's activity and score in the window.
type AgentMetrics struct {
	AgentID    string `json:"agent_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	IsOnline   bool   `json:"is_online"`
	Role       string `json:"role"`

	SentMessages     int `json:"sent_messages"`
	ReceivedMessages int `json:"received_messages"`
	TotalMessages    int `json:"total_messages"`

	AvgResponseTime  *float64 `json:"avg_response_time_seconds"`
	BestResponseTime *float64 `json:"best_response_time_seconds"`

	ResolutionRate       float64 `json:"resolution_rate"`
	CustomerSatisfaction float64 `json:"customer_satisfaction"`
	ResponseTimeScore    float64 `json:"response_time_score"`
	ActivityScore        float64 `json:"activity_score"`
	ProductivityScore    int     `json:"productivity_score"`

	TotalConversations    int `json:"total_conversations"`
	ActiveConversations   int `json:"active_conversations"`
	FinishedConversations int `json:"finished_conversations"`

	// Scored is false for agents without activity and for
	// non-agent assignees; they are listed but left out of the
	// organization score.
	Scored bool `json:"scored"`
}

// DepartmentMetrics groups visible conversations by department.
type DepartmentMetrics struct {
	Department    string `json:"department"`
	Conversations int    `json:"conversations"`
	Messages      int    `json:"messages"`
	Agents        int    `json:"agents"`
}

// RecentMessage is one entry of the latest-messages preview.
type RecentMessage struct {
	ID         int64     `json:"id"`
	ChatID     string    `json:"chat_id"`
	ChatName   string    `json:"chat_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	IsFromMe   bool      `json:"is_from_me"`
	SenderName string    `json:"sender_name"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
}

// RecentActivity is a newest-first sample of messages with the
// true number of messages in the window.
type RecentActivity struct {
	Total    int             `json:"total"`
	Messages []RecentMessage `json:"messages"`
}

// agentAcc collects one agent's conversations before scoring.
type agentAcc struct {
	m        AgentMetrics
	eligible bool
	resolved int
	ratings  []float64
	tally    SentimentTally
}

func (a *agentAcc) addConversation(c *Conversation, t SentimentTally) {
	a.m.TotalConversations++
	a.m.SentMessages += c.SentMessages
	a.m.ReceivedMessages += c.ReceivedMessages
	a.m.TotalMessages += c.TotalMessages
	if c.Finished() {
		a.m.FinishedConversations++
	} else {
		a.m.ActiveConversations++
	}
	if c.Resolved {
		a.resolved++
	}
	a.ratings = append(a.ratings, c.ratings...)
	a.tally.merge(t)
}

func (a *agentAcc) finish(resp *ResponseStats) AgentMetrics {
	var rs ResponseStats
	if resp != nil {
		rs = *resp
	}
	in := ScoreInput{
		TotalConversations:    a.m.TotalConversations,
		ResolvedConversations: a.resolved,
		SentMessages:          a.m.SentMessages,
		Satisfaction:          Satisfaction(a.ratings, a.tally),
		Response:              rs,
	}
	m := a.m
	m.AvgResponseTime = optRound2(rs.Average())
	m.BestResponseTime = optRound2(rs.Best())
	if !a.eligible || !in.Active() {
		m.CustomerSatisfaction = neutralSatisfaction
		return m
	}
	s := ScoreAgent(in)
	m.Scored = true
	m.ResolutionRate = round2(s.ResolutionRate)
	m.CustomerSatisfaction = round2(s.Satisfaction)
	m.ResponseTimeScore = round2(s.ResponseTimeScore)
	m.ActivityScore = s.ActivityScore
	m.ProductivityScore = s.Productivity
	return m
}

// buildUsers returns metrics for every visible profile that is
// an agent or handled a conversation in the window. When
// profiles are unavailable, assignees seen in conversations are
// listed by id.
func buildUsers(
	profiles []db.Profile, profilesOK bool,
	convs []Conversation, tallies []SentimentTally,
	resp map[string]*ResponseStats, lex *Lexicon, sc scope.Scope,
) []AgentMetrics {
	accs := make(map[string]*agentAcc)
	var order []string
	for _, p := range profiles {
		if !sc.AllowsAgent(p.ID) {
			continue
		}
		role := scope.Classify(p.RoleName, lex.AgentRoleAliases)
		accs[p.ID] = &agentAcc{
			m: AgentMetrics{
				AgentID: p.ID, Name: p.Name, Email: p.Email,
				Department: p.Department, IsOnline: p.IsOnline,
				Role: string(role),
			},
			eligible: role == scope.RoleAgent,
		}
		order = append(order, p.ID)
	}

	for i := range convs {
		c := &convs[i]
		id := c.AssignedAgentID
		if id == "" || !sc.AllowsAgent(id) {
			continue
		}
		a := accs[id]
		if a == nil {
			if profilesOK {
				// Deleted or foreign profile.
				continue
			}
			// Role cannot be checked without profiles.
			a = &agentAcc{
				m: AgentMetrics{
					AgentID: id, Role: string(scope.RoleUnknown),
				},
				eligible: true,
			}
			accs[id] = a
			order = append(order, id)
		}
		a.addConversation(c, tallies[i])
	}

	out := make([]AgentMetrics, 0, len(order))
	for _, id := range order {
		a := accs[id]
		if a.m.Role != string(scope.RoleAgent) &&
			a.m.TotalConversations == 0 {
			continue
		}
		out = append(out, a.finish(resp[id]))
	}
	return out
}

func buildGlobal(
	fetch db.PagedFetch, convs []Conversation,
	tallies []SentimentTally, overall ResponseStats,
	users []AgentMetrics,
) Global {
	g := Global{
		TotalMessages:      fetch.AuthoritativeCount,
		TotalConversations: len(convs),
		Complete:           len(fetch.Sample) >= fetch.AuthoritativeCount,
	}
	var ratings []float64
	for i := range convs {
		c := &convs[i]
		g.SentMessages += c.SentMessages
		g.ReceivedMessages += c.ReceivedMessages
		if c.Finished() {
			g.FinishedConversations++
		} else {
			g.ActiveConversations++
		}
		if c.Resolved {
			g.ResolvedConversations++
		}
		ratings = append(ratings, c.ratings...)
		g.Sentiment.merge(tallies[i])
	}
	// Orphan messages have no conversation but still count.
	for _, m := range fetch.Sample {
		if m.ChatID != "" {
			continue
		}
		if m.IsFromMe {
			g.SentMessages++
		} else {
			g.ReceivedMessages++
		}
	}
	g.ResolutionRate = round2(
		ResolutionRate(g.ResolvedConversations, g.TotalConversations),
	)
	g.CustomerSatisfaction = round2(Satisfaction(ratings, g.Sentiment))
	g.AvgResponseTime = optRound2(overall.Average())
	g.BestResponseTime = optRound2(overall.Best())
	for _, u := range users {
		if u.Scored {
			g.ActiveAgents++
		}
		if u.IsOnline {
			g.OnlineAgents++
		}
	}
	return g
}

const unassignedDepartment = "unassigned"

func buildDepartments(
	convs []Conversation, profiles []db.Profile,
) []DepartmentMetrics {
	profileDept := make(map[string]string, len(profiles))
	for _, p := range profiles {
		profileDept[p.ID] = p.Department
	}

	type acc struct {
		DepartmentMetrics
		agents map[string]struct{}
	}
	byName := make(map[string]*acc)
	for i := range convs {
		c := &convs[i]
		name := c.Department
		if name == "" {
			name = profileDept[c.AssignedAgentID]
		}
		if name == "" {
			name = unassignedDepartment
		}
		a := byName[name]
		if a == nil {
			a = &acc{
				DepartmentMetrics: DepartmentMetrics{Department: name},
				agents:            make(map[string]struct{}),
			}
			byName[name] = a
		}
		a.Conversations++
		a.Messages += c.TotalMessages
		if c.AssignedAgentID != "" {
			a.agents[c.AssignedAgentID] = struct{}{}
		}
	}

	out := make([]DepartmentMetrics, 0, len(byName))
	for _, a := range byName {
		a.Agents = len(a.agents)
		out = append(out, a.DepartmentMetrics)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Conversations != out[j].Conversations {
			return out[i].Conversations > out[j].Conversations
		}
		return out[i].Department < out[j].Department
	})
	return out
}

func buildRecent(
	fetch db.PagedFetch, chats map[string]db.Chat,
	lex *Lexicon, sc scope.Scope,
) RecentActivity {
	r := RecentActivity{
		Total:    fetch.AuthoritativeCount,
		Messages: []RecentMessage{},
	}
	for i := len(fetch.Sample) - 1; i >= 0; i-- {
		m := fetch.Sample[i]
		if m.ChatID == "" || !sc.AllowsChat(m.ChatID) {
			continue
		}
		rm := RecentMessage{
			ID: m.ID, ChatID: m.ChatID,
			ChatName: chats[m.ChatID].Name,
			Content:  m.Content, CreatedAt: m.CreatedAt,
			IsFromMe: m.IsFromMe, SenderName: m.SenderName,
		}
		if !m.IsFromMe {
			rm.Sentiment = lex.Classify(m.Content)
		}
		r.Messages = append(r.Messages, rm)
	}
	return r
}

// emptyReport is the zero-valued payload for w: zero totals,
// zero-filled trend buckets and all 168 heatmap cells.
func emptyReport(w timeutil.Window, sc scope.Scope) Report {
	return Report{
		Window:       w,
		Scope:        sc,
		Global:       Global{CustomerSatisfaction: neutralSatisfaction, Complete: true},
		Users:        []AgentMetrics{},
		Productivity: Summarize(nil),
		Trends:       BuildTrends(w, nil),
		Heatmap:      BuildHeatmap(nil, time.UTC),
		Departments:  []DepartmentMetrics{},
		Recent:       RecentActivity{Messages: []RecentMessage{}},
		Degraded:     []string{},
	}
}

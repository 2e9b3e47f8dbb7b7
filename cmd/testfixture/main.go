package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/zapdesk/zapmetrics/internal/db"
)

type agentSpec struct {
	id         string
	name       string
	department string
	chats      int
	// replyDelay is the first response time for this agent's
	// chats.
	replyDelay time.Duration
}

var agents = []agentSpec{
	{"agent-ana", "Ana Souza", "Sales", 4, 45 * time.Second},
	{"agent-bruno", "Bruno Lima", "Sales", 12, 3 * time.Minute},
	{"agent-carla", "Carla Dias", "Support", 30, 90 * time.Second},
	{"agent-davi", "Davi Rocha", "Support", 0, 0},
}

var customerLines = []string{
	"Olá, preciso de ajuda com meu pedido",
	"The delivery is late and I am frustrated",
	"Obrigado, excelente atendimento!",
	"Can you check the invoice?",
	"Ainda estou esperando uma resposta",
}

const (
	orgID        = "org-demo"
	msgsPerChat  = 40
	fixtureOwner = "owner-1"
)

func main() {
	out := flag.String("out", "", "output database path")
	days := flag.Int("days", 7, "days of history to generate")
	flag.Parse()
	if *out == "" {
		fmt.Fprintln(os.Stderr, "usage: testfixture -out <path> [-days N]")
		os.Exit(1)
	}
	if *days < 1 {
		*days = 1
	}

	if err := os.Remove(*out); err != nil &&
		!errors.Is(err, os.ErrNotExist) {
		log.Fatalf("removing existing db: %v", err)
	}

	database, err := db.Open(*out)
	if err != nil {
		log.Fatalf("opening db: %v", err)
	}
	defer database.Close()

	if err := seedPeople(database); err != nil {
		log.Fatalf("seeding people: %v", err)
	}

	end := time.Now().UTC().Truncate(time.Hour)
	start := end.AddDate(0, 0, -*days)
	total := 0
	for i, a := range agents {
		n, err := seedAgentChats(database, a, i, start, *days)
		if err != nil {
			log.Fatalf("seeding chats for %s: %v", a.id, err)
		}
		fmt.Printf("  %s: %d chats, %d messages\n", a.name, a.chats, n)
		total += n
	}

	fmt.Printf("Fixture DB written to %s (%d messages, org %s)\n",
		*out, total, orgID)
}

func seedPeople(database *db.DB) error {
	roles := []db.Role{
		{ID: "role-agent", OrganizationID: orgID, Name: "Atendente"},
		{ID: "role-admin", OrganizationID: orgID, Name: "Administrador"},
	}
	for _, r := range roles {
		if err := database.UpsertRole(r); err != nil {
			return err
		}
	}
	for i, a := range agents {
		if err := database.UpsertProfile(db.Profile{
			ID:             a.id,
			OrganizationID: orgID,
			Name:           a.name,
			Email:          fmt.Sprintf("%s@example.com", a.id),
			Department:     a.department,
			IsOnline:       i%2 == 0,
			RoleID:         "role-agent",
		}); err != nil {
			return err
		}
	}
	if err := database.UpsertProfile(db.Profile{
		ID:             fixtureOwner,
		OrganizationID: orgID,
		Name:           "Owner",
		RoleID:         "role-admin",
	}); err != nil {
		return err
	}
	// A supervisor known only through the membership table.
	return database.UpsertMember(orgID, "supervisor-1", "manager")
}

// seedAgentChats creates the agent's chats spread across the
// window and returns the number of messages written.
func seedAgentChats(
	database *db.DB, a agentSpec, agentIdx int,
	start time.Time, days int,
) (int, error) {
	written := 0
	for c := range a.chats {
		chatID := fmt.Sprintf("chat-%s-%03d", a.id, c)
		opened := start.Add(
			time.Duration(c%days)*24*time.Hour +
				time.Duration(8+c%10)*time.Hour,
		)
		status := "open"
		if c%3 == 0 {
			status = "finished"
		}
		var ratings []float64
		if c%4 == 0 {
			ratings = []float64{float64(3 + (c+agentIdx)%3)}
		}
		if err := database.UpsertChat(db.Chat{
			ID:              chatID,
			OrganizationID:  orgID,
			Name:            fmt.Sprintf("Customer %d", c+1),
			Platform:        "whatsapp",
			Status:          status,
			Priority:        "normal",
			Department:      a.department,
			AssignedAgentID: a.id,
			CreatedAt:       opened,
			LastMessageAt:   opened.Add(msgsPerChat * time.Minute),
			Analytics:       db.ChatAnalytics(status == "finished", ratings...),
		}); err != nil {
			return written, err
		}

		msgs := make([]db.Message, msgsPerChat)
		ts := opened
		for i := range msgsPerChat {
			fromMe := i%2 == 1
			if fromMe && i == 1 {
				ts = ts.Add(a.replyDelay)
			} else {
				ts = ts.Add(time.Minute)
			}
			m := db.Message{
				ChatID:         chatID,
				OrganizationID: orgID,
				CreatedAt:      ts,
				IsFromMe:       fromMe,
			}
			if fromMe {
				m.Content = "Claro, vou verificar para você"
				m.SenderName = a.name
			} else {
				m.Content = customerLines[(c+i)%len(customerLines)]
				m.SenderName = fmt.Sprintf("Customer %d", c+1)
			}
			msgs[i] = m
		}
		if err := database.InsertMessages(msgs); err != nil {
			return written, err
		}
		written += len(msgs)
	}
	return written, nil
}

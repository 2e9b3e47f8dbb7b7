package analytics

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/zapdesk/zapmetrics/internal/scope"
)

// Lexicon holds the sentiment keywords and the role names that
// mark a user as an agent. Entries are lower case.
type Lexicon struct {
	Positive         []string `json:"positive"`
	Negative         []string `json:"negative"`
	AgentRoleAliases []string `json:"agent_role_aliases"`
}

// DefaultLexicon returns the built-in English and Portuguese
// keyword lists.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Positive: []string{
			"obrigad", "agradeço", "valeu", "ótimo", "otimo",
			"excelente", "perfeito", "maravilh", "adorei",
			"parabéns", "parabens", "resolvido", "funcionou",
			"thank", "great", "excellent", "perfect", "awesome",
			"love", "amazing", "solved", "helpful",
		},
		Negative: []string{
			"ruim", "péssimo", "pessimo", "horrível", "horrivel",
			"problema", "demora", "reclama", "cancelar",
			"insatisfeito", "absurdo", "não funciona",
			"nao funciona", "reembolso", "bad", "terrible",
			"awful", "problem", "slow", "complaint", "cancel",
			"refund", "disappointed", "not working",
		},
		AgentRoleAliases: append([]string(nil),
			scope.DefaultAgentAliases...),
	}
}

// LoadLexicon reads a JSON lexicon file. Lists missing from the
// file keep their defaults.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon: %w", err)
	}
	var file Lexicon
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing lexicon %s: %w", path, err)
	}

	lex := DefaultLexicon()
	if len(file.Positive) > 0 {
		lex.Positive = normalizeWords(file.Positive)
	}
	if len(file.Negative) > 0 {
		lex.Negative = normalizeWords(file.Negative)
	}
	if len(file.AgentRoleAliases) > 0 {
		lex.AgentRoleAliases = normalizeWords(file.AgentRoleAliases)
	}
	return lex, nil
}

func normalizeWords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, w := range in {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// LexiconStore holds the active lexicon. Readers never block;
// reloads swap the whole value.
type LexiconStore struct {
	cur atomic.Pointer[Lexicon]
}

// NewLexiconStore returns a store holding lex, or the default
// lexicon when lex is nil.
func NewLexiconStore(lex *Lexicon) *LexiconStore {
	if lex == nil {
		lex = DefaultLexicon()
	}
	s := &LexiconStore{}
	s.cur.Store(lex)
	return s
}

// Load returns the active lexicon.
func (s *LexiconStore) Load() *Lexicon { return s.cur.Load() }

// Store replaces the active lexicon.
func (s *LexiconStore) Store(lex *Lexicon) { s.cur.Store(lex) }

// Reload reads path and swaps it in. The active lexicon is kept
// when the file cannot be read.
func (s *LexiconStore) Reload(path string) error {
	lex, err := LoadLexicon(path)
	if err != nil {
		return err
	}
	s.cur.Store(lex)
	return nil
}

// AgentAliases returns the active agent role aliases. It fits
// scope.NewResolver's alias callback.
func (s *LexiconStore) AgentAliases() []string {
	return s.Load().AgentRoleAliases
}

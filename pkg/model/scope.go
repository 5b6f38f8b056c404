package model

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

type ScopeKind string

const (
	ScopeUser  ScopeKind = "user"
	ScopeAgent ScopeKind = "agent"
	ScopeRun   ScopeKind = "run"
)

// Scope is the partition a record belongs to. Exactly one of user, agent or run.
type Scope struct {
	Kind ScopeKind `json:"kind" yaml:"kind" firestore:"kind"`
	ID   string    `json:"id" yaml:"id" firestore:"id"`
}

func UserScope(id string) Scope  { return Scope{Kind: ScopeUser, ID: id} }
func AgentScope(id string) Scope { return Scope{Kind: ScopeAgent, ID: id} }
func RunScope(id string) Scope   { return Scope{Kind: ScopeRun, ID: id} }

// Validate checks if the scope kind is known and the id is set
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeUser, ScopeAgent, ScopeRun:
	default:
		return goerr.Wrap(ErrInvalidScope, "unknown scope kind", goerr.V("kind", s.Kind))
	}
	if s.ID == "" {
		return goerr.Wrap(ErrInvalidScope, "scope id is empty", goerr.V("kind", s.Kind))
	}
	return nil
}

func (s Scope) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.ID)
}

// ParseScope parses "kind:id", e.g. "run:standup-2024-01-02"
func ParseScope(v string) (Scope, error) {
	kind, id, ok := strings.Cut(v, ":")
	if !ok {
		return Scope{}, goerr.Wrap(ErrInvalidScope, "scope must be kind:id", goerr.V("scope", v))
	}

	s := Scope{Kind: ScopeKind(kind), ID: id}
	if err := s.Validate(); err != nil {
		return Scope{}, err
	}
	return s, nil
}

package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidScope = goerr.New("invalid session scope")
	ErrEmptyContent = goerr.New("record content is empty")
)

// UnknownActor is substituted when a record carries no actor
const UnknownActor = "Unknown"

// TimestampLayout is the fixed-width layout used when a record is created.
// Fixed width keeps lexicographic order equal to chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

type RecordID string

// NewRecordID generates a new unique RecordID
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Record is an attributed memory record belonging to exactly one session scope
type Record struct {
	ID        RecordID       `json:"id" yaml:"id"`
	Content   string         `json:"content" yaml:"content"`
	ActorID   string         `json:"actor_id,omitempty" yaml:"actor_id"`
	Role      Role           `json:"role,omitempty" yaml:"role"`
	Scope     Scope          `json:"scope" yaml:"scope"`
	CreatedAt string         `json:"created_at,omitempty" yaml:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata"`

	Embedding firestore.Vector32 `json:"-" yaml:"-"`
}

// Actor returns ActorID, or UnknownActor when the record is unattributed
func (r *Record) Actor() string {
	if r.ActorID == "" {
		return UnknownActor
	}
	return r.ActorID
}

// Draft is the input of a write-back. ID and CreatedAt are assigned by the store.
type Draft struct {
	Content  string
	ActorID  string
	Role     Role
	Scope    Scope
	Metadata map[string]any
}

// Validate checks if the draft can be persisted
func (d *Draft) Validate() error {
	if d.Content == "" {
		return ErrEmptyContent
	}
	if err := d.Scope.Validate(); err != nil {
		return err
	}
	return nil
}

// NewRecord builds a Record from the draft with a fresh ID and creation time
func (d *Draft) NewRecord(now time.Time) *Record {
	var metadata map[string]any
	if d.Metadata != nil {
		metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			metadata[k] = v
		}
	}

	return &Record{
		ID:        NewRecordID(),
		Content:   d.Content,
		ActorID:   d.ActorID,
		Role:      d.Role,
		Scope:     d.Scope,
		CreatedAt: now.UTC().Format(TimestampLayout),
		Metadata:  metadata,
	}
}

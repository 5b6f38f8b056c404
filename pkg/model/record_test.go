package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestRecordActor(t *testing.T) {
	gt.Equal(t, (&model.Record{ActorID: "alice"}).Actor(), "alice")
	gt.Equal(t, (&model.Record{}).Actor(), model.UnknownActor)
}

func TestParseScope(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    model.Scope
		wantErr bool
	}{
		{"user", "user:alice", model.UserScope("alice"), false},
		{"agent", "agent:planner", model.AgentScope("planner"), false},
		{"run with colon in id", "run:2024:standup", model.RunScope("2024:standup"), false},
		{"no separator", "alice", model.Scope{}, true},
		{"unknown kind", "team:x", model.Scope{}, true},
		{"empty id", "run:", model.Scope{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := model.ParseScope(tc.input)
			if tc.wantErr {
				gt.Error(t, err)
				gt.True(t, errors.Is(err, model.ErrInvalidScope))
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, got, tc.want)
			gt.Equal(t, got.String(), tc.input)
		})
	}
}

func TestDraftValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		d := &model.Draft{Content: "hello", Scope: model.RunScope("r1")}
		gt.NoError(t, d.Validate())
	})

	t.Run("empty content", func(t *testing.T) {
		d := &model.Draft{Scope: model.RunScope("r1")}
		gt.True(t, errors.Is(d.Validate(), model.ErrEmptyContent))
	})

	t.Run("invalid scope", func(t *testing.T) {
		d := &model.Draft{Content: "hello"}
		gt.True(t, errors.Is(d.Validate(), model.ErrInvalidScope))
	})
}

func TestDraftNewRecord(t *testing.T) {
	meta := map[string]any{"topic": "planning"}
	d := &model.Draft{
		Content:  "ship on friday",
		ActorID:  "alice",
		Role:     model.RoleUser,
		Scope:    model.RunScope("r1"),
		Metadata: meta,
	}

	now := time.Date(2024, 1, 2, 9, 0, 0, 5000, time.FixedZone("JST", 9*60*60))
	rec := d.NewRecord(now)

	gt.NotEqual(t, rec.ID, model.RecordID(""))
	gt.Equal(t, rec.Content, "ship on friday")
	gt.Equal(t, rec.ActorID, "alice")
	gt.Equal(t, rec.Role, model.RoleUser)
	gt.Equal(t, rec.Scope, model.RunScope("r1"))
	gt.Equal(t, rec.CreatedAt, "2024-01-02T00:00:00.000005Z")

	// metadata is copied, not shared
	meta["topic"] = "changed"
	gt.Equal(t, rec.Metadata["topic"], any("planning"))
}

func TestTimestampLayoutOrdersLexicographically(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	a := base.Format(model.TimestampLayout)
	b := base.Add(100 * time.Millisecond).Format(model.TimestampLayout)
	c := base.Add(time.Second).Format(model.TimestampLayout)

	gt.True(t, a < b)
	gt.True(t, b < c)
}

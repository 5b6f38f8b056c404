// Package reporter renders the full record set of a session as a flat
// chronological listing or grouped by speaker.
package reporter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/utils/timestamp"
)

// NoRecordsNotice is rendered for an empty record set
const NoRecordsNotice = "No memories found."

type Options struct {
	// SortByTime orders records oldest first before grouping
	SortByTime bool
	// GroupByActor renders one block per speaker in first-seen order
	GroupByActor bool
}

// Group is the records of one speaker in report order
type Group struct {
	Actor   string
	Records []*model.Record
}

// Render produces the report text. records is not modified.
func Render(records []*model.Record, opts Options) string {
	if len(records) == 0 {
		return NoRecordsNotice
	}

	ordered := records
	if opts.SortByTime {
		ordered = SortChronological(records)
	}

	if opts.GroupByActor {
		return renderGroups(GroupByActor(ordered))
	}
	return renderFlat(ordered)
}

// SortChronological returns a copy ordered by CreatedAt ascending; missing
// timestamps come first and ties keep input order.
func SortChronological(records []*model.Record) []*model.Record {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *model.Record) int {
		return strings.Compare(a.CreatedAt, b.CreatedAt)
	})
	return sorted
}

// GroupByActor partitions records by speaker, preserving first-seen group
// order and the relative order of records inside each group.
func GroupByActor(records []*model.Record) []*Group {
	var groups []*Group
	index := make(map[string]*Group)

	for _, rec := range records {
		actor := rec.Actor()
		g, ok := index[actor]
		if !ok {
			g = &Group{Actor: actor}
			index[actor] = g
			groups = append(groups, g)
		}
		g.Records = append(g.Records, rec)
	}

	return groups
}

func renderFlat(records []*model.Record) string {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, fmt.Sprintf("[%s][%s] %s", timestamp.Format(rec.CreatedAt), rec.Actor(), rec.Content))
	}
	return strings.Join(lines, "\n")
}

func renderGroups(groups []*Group) string {
	blocks := make([]string, 0, len(groups))
	for _, g := range groups {
		lines := []string{fmt.Sprintf("=== Speaker: %s ===", g.Actor)}
		for _, rec := range g.Records {
			lines = append(lines, fmt.Sprintf("[%s] %s", timestamp.Format(rec.CreatedAt), rec.Content))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// Package assembler turns a retrieved candidate set of memory records into an
// attributed, recency-ordered context block for a generation call.
package assembler

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/utils/logging"
	"github.com/m-mizutani/chorus/pkg/utils/timestamp"
	"github.com/m-mizutani/goerr/v2"
)

// FetchPadding is the number of extra candidates requested when role
// exclusion is active. The padded fetch is issued once; it is not retried
// with a larger pad when filtering still under-fills the context.
const FetchPadding = 5

var ErrInvalidLimit = goerr.New("desired record count must be positive")

// RetrieveFunc fetches up to limit unordered candidates for a single scope
type RetrieveFunc func(ctx context.Context, limit int) ([]*model.Record, error)

// Input contains parameters for assembling a context
type Input struct {
	Query        string
	Scope        model.Scope
	Limit        int
	ExcludeRoles []model.Role
}

// Result is the assembled context
type Result struct {
	// Text is the rendered context, one line per kept record
	Text string
	// Records are the kept records in recency order
	Records []*model.Record
	// Requested is the fetch size passed to the retriever
	Requested int
}

// FetchSize returns how many candidates to request for the desired count
func FetchSize(limit int, excludeRoles []model.Role) int {
	if len(excludeRoles) > 0 {
		return limit + FetchPadding
	}
	return limit
}

// Assemble fetches candidates, orders them most recent first, drops excluded
// roles and renders at most input.Limit lines.
func Assemble(ctx context.Context, input Input, retrieve RetrieveFunc) (*Result, error) {
	if input.Limit <= 0 {
		return nil, goerr.Wrap(ErrInvalidLimit, "failed to assemble context", goerr.V("limit", input.Limit))
	}

	logger := logging.From(ctx)
	fetchSize := FetchSize(input.Limit, input.ExcludeRoles)

	candidates, err := retrieve(ctx, fetchSize)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve candidates",
			goerr.V("scope", input.Scope.String()),
			goerr.V("fetch_size", fetchSize),
		)
	}

	kept := selectRecent(candidates, input.Limit, input.ExcludeRoles)

	logger.Debug("assembled context",
		"scope", input.Scope.String(),
		"requested", fetchSize,
		"retrieved", len(candidates),
		"kept", len(kept),
	)

	return &Result{
		Text:      renderLines(kept),
		Records:   kept,
		Requested: fetchSize,
	}, nil
}

// SortByRecency returns a copy of records ordered by CreatedAt descending.
// Missing timestamps compare as the smallest value; ties keep input order.
func SortByRecency(records []*model.Record) []*model.Record {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *model.Record) int {
		return strings.Compare(b.CreatedAt, a.CreatedAt)
	})
	return sorted
}

func selectRecent(candidates []*model.Record, limit int, excludeRoles []model.Role) []*model.Record {
	sorted := SortByRecency(candidates)

	if len(excludeRoles) == 0 {
		if len(sorted) > limit {
			sorted = sorted[:limit]
		}
		return sorted
	}

	kept := make([]*model.Record, 0, limit)
	for _, rec := range sorted {
		if len(kept) >= limit {
			break
		}
		if slices.Contains(excludeRoles, rec.Role) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// FormatLine renders one context line: "- <content> (by <actor> at <time>)"
func FormatLine(rec *model.Record) string {
	return fmt.Sprintf("- %s (by %s at %s)", rec.Content, rec.Actor(), timestamp.FormatWithZone(rec.CreatedAt))
}

func renderLines(records []*model.Record) string {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, FormatLine(rec))
	}
	return strings.Join(lines, "\n")
}

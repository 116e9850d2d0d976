package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// planningCatalog serves reads from the real catalog and records every
// mutation as an Action instead of applying it.
type planningCatalog struct {
	reader  Catalog
	actions []Action
}

func newPlanningCatalog(reader Catalog) *planningCatalog {
	return &planningCatalog{reader: reader}
}

func (p *planningCatalog) Query(ctx context.Context, datasourceID uint, kind Kind) ([]Entry, error) {
	return p.reader.Query(ctx, datasourceID, kind)
}

func (p *planningCatalog) Create(_ context.Context, entry *Entry) error {
	p.record(ActionCreate, entry.Kind, entry.Key, "not in catalog")
	return nil
}

func (p *planningCatalog) Update(_ context.Context, entry *Entry, fields Fields) error {
	action := ActionUpdate
	key := entry.Key
	if newKey, ok := fields[FieldKey].(string); ok {
		key = newKey
		if entry.Kind == KindFile {
			action = ActionMerge
		}
	}
	p.record(action, entry.Kind, key, describeFields(entry, fields))
	return nil
}

func (p *planningCatalog) MarkOrphan(_ context.Context, entry *Entry) error {
	p.record(ActionOrphan, entry.Kind, entry.Key, "not observed on remote")
	return nil
}

func (p *planningCatalog) record(t ActionType, kind Kind, key, reason string) {
	p.actions = append(p.actions, Action{Type: t, Kind: kind, Key: key, Reason: reason})
}

// describeFields renders the changed columns in a stable order.
func describeFields(entry *Entry, fields Fields) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		switch name {
		case FieldKey:
			parts = append(parts, fmt.Sprintf("key: %s -> %v", entry.Key, fields[name]))
		case FieldContentHash:
			parts = append(parts, fmt.Sprintf("content_hash: %s -> %v", entry.ContentHash, fields[name]))
		default:
			parts = append(parts, fmt.Sprintf("%s: %v", name, fields[name]))
		}
	}
	return strings.Join(parts, ", ")
}

// PlanSummary counts the actions of a dry run by type.
func PlanSummary(actions []Action) map[ActionType]int {
	summary := make(map[ActionType]int)
	for _, a := range actions {
		summary[a.Type]++
	}
	return summary
}

// Package invalidation defines the catalog change events that evict cached
// collection metadata.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event reports a change to a catalog concept. Collection events ("C"
// concept ids) evict the collection itself; granule events ("G" concept ids)
// evict their parent collection, whose hit count is now stale.
type Event struct {
	Version             int       `json:"version"`
	Op                  string    `json:"op"`
	ConceptID           string    `json:"concept_id"`
	RevisionID          uint64    `json:"revision_id,omitempty"`
	CollectionConceptID string    `json:"collection_concept_id,omitempty"`
	Provider            string    `json:"provider,omitempty"`
	TS                  time.Time `json:"ts"`
}

func (e Event) IsGranule() bool { return strings.HasPrefix(e.ConceptID, "G") }

// CollectionID is the cached collection the event evicts.
func (e Event) CollectionID() string {
	if e.IsGranule() {
		return e.CollectionConceptID
	}
	return e.ConceptID
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return errors.New("version must be 1")
	}
	switch e.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("op must be %s|%s|%s", OpInsert, OpUpdate, OpDelete)
	}
	id := strings.TrimSpace(e.ConceptID)
	switch {
	case id == "":
		return errors.New("concept_id is required")
	case strings.HasPrefix(id, "C"):
	case strings.HasPrefix(id, "G"):
		if !strings.HasPrefix(e.CollectionConceptID, "C") {
			return errors.New("granule events need a collection_concept_id")
		}
	default:
		return fmt.Errorf("concept_id %q is neither a collection nor a granule", id)
	}
	if e.TS.IsZero() {
		return errors.New("ts is required")
	}
	return nil
}

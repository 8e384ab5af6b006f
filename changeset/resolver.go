package changeset

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/models"
)

// Placeholder is the label rendered for an id that no longer resolves
func Placeholder(id int64) string {
	return fmt.Sprintf("Unknown (id: %d)", id)
}

// Resolver maps reference ids to labels using one ReferenceSet. Create one
// per render pass; each unresolved (kind, id) is logged once.
type Resolver struct {
	refs   *models.ReferenceSet
	logger logrus.FieldLogger

	mu     sync.Mutex
	missed map[models.ReferenceUnresolvedWarning]struct{}
}

// NewResolver creates a resolver over refs. A nil set resolves everything to placeholders.
func NewResolver(refs *models.ReferenceSet, logger logrus.FieldLogger) *Resolver {
	if refs == nil {
		refs = models.NewReferenceSet()
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Resolver{
		refs:   refs,
		logger: logger,
		missed: make(map[models.ReferenceUnresolvedWarning]struct{}),
	}
}

// Resolve returns the current label of kind/id, or a placeholder containing the id
func (r *Resolver) Resolve(kind models.ReferenceKind, id int64) string {
	if label, ok := r.refs.Lookup(kind, id); ok {
		return label
	}

	w := models.ReferenceUnresolvedWarning{Kind: kind, ID: id}
	r.mu.Lock()
	_, seen := r.missed[w]
	if !seen {
		r.missed[w] = struct{}{}
	}
	r.mu.Unlock()

	if !seen {
		r.logger.WithFields(logrus.Fields{
			"kind": kind,
			"id":   id,
		}).Warn(w.Error())
	}
	return Placeholder(id)
}

// ResolveValue resolves a raw foreign key value. Null stays null and values
// that are not ids are rendered as-is.
func (r *Resolver) ResolveValue(kind models.ReferenceKind, v models.Value) models.Value {
	if v.IsNull() {
		return models.Null()
	}
	id, ok := v.Int64()
	if !ok {
		return models.String(v.Display())
	}
	return models.String(r.Resolve(kind, id))
}

// Unresolved lists the references that could not be resolved so far
func (r *Resolver) Unresolved() []models.ReferenceUnresolvedWarning {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ReferenceUnresolvedWarning, 0, len(r.missed))
	for w := range r.missed {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

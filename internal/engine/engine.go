// Package engine ties flattening, the mapping table and output building
// into the operations the server and CLI expose.
package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgallion1/fieldmap/internal/config"
	"github.com/dgallion1/fieldmap/internal/jsondoc"
	"github.com/dgallion1/fieldmap/internal/mapping"
	"github.com/dgallion1/fieldmap/internal/metrics"
	"github.com/dgallion1/fieldmap/internal/proptree"
	"github.com/dgallion1/fieldmap/internal/resolve"
	"github.com/dgallion1/fieldmap/internal/session"
)

// Options bundle flattening and resolution settings.
type Options struct {
	Flatten proptree.Options
	Resolve resolve.Options
}

// DefaultOptions indexes arrays and resolves by path with name fallback.
func DefaultOptions() Options {
	return Options{
		Flatten: proptree.DefaultOptions(),
		Resolve: resolve.DefaultOptions(),
	}
}

// OptionsFromConfig maps the service configuration onto engine options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Flatten: proptree.Options{
			IndexArrays: cfg.IndexArrays,
			MaxDepth:    cfg.MaxDepth,
		},
		Resolve: resolve.Options{
			Mode:          cfg.Mode(),
			NameFallback:  cfg.NameFallback,
			PreserveTypes: cfg.PreserveTypes,
			MaxDepth:      cfg.MaxDepth,
		},
	}
}

// Engine runs mapping operations. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	opts    Options
	log     *slog.Logger
	metrics *metrics.Collector
}

// New creates an engine. m may be nil.
func New(opts Options, log *slog.Logger, m *metrics.Collector) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{opts: opts, log: log, metrics: m}
}

// KeyMode is the node field mapping keys refer to.
func (e *Engine) KeyMode() proptree.KeyMode {
	return e.opts.Resolve.Mode
}

// Flatten converts a decoded document into property nodes.
func (e *Engine) Flatten(doc any) ([]*proptree.Node, error) {
	nodes, err := proptree.Flatten(doc, e.opts.Flatten)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveFlatten(proptree.Count(nodes))
	return nodes, nil
}

// Targets lists the candidate target keys of a schema.
func (e *Engine) Targets(schema any) ([]string, error) {
	nodes, err := e.Flatten(schema)
	if err != nil {
		return nil, err
	}
	return proptree.Keys(nodes, e.KeyMode()), nil
}

// Seed returns a table with an empty entry for every key of schema.
func (e *Engine) Seed(schema any) (*mapping.Store, error) {
	nodes, err := e.Flatten(schema)
	if err != nil {
		return nil, err
	}
	store := mapping.NewStore()
	store.Seed(nodes, e.KeyMode())
	return store, nil
}

// Apply flattens doc and builds the output document from store.
func (e *Engine) Apply(doc any, store *mapping.Store) (jsondoc.Object, resolve.Stats, error) {
	nodes, err := e.Flatten(doc)
	if err != nil {
		return nil, resolve.Stats{}, err
	}
	out, stats, err := resolve.BuildWithStats(store, nodes, e.opts.Resolve)
	if err != nil {
		return nil, resolve.Stats{}, err
	}
	e.metrics.ObserveResolve(stats.Applied, stats.Dropped, stats.Collided, stats.Unmatched)
	e.log.Debug("output built",
		"nodes", proptree.Count(nodes),
		"applied", stats.Applied,
		"carried", stats.Carried,
		"dropped", stats.Dropped,
		"collided", stats.Collided,
		"unmatched", stats.Unmatched,
	)
	return out, stats, nil
}

// FormEntry is one row of the mapping form.
type FormEntry struct {
	Field  string `json:"field"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Form is everything a client needs to render the mapping page.
type Form struct {
	SessionID        string           `json:"session_id"`
	KeyMode          proptree.KeyMode `json:"-"`
	Mode             string           `json:"key_mode"`
	SourceProperties []*proptree.Node `json:"source_properties"`
	TargetProperties []*proptree.Node `json:"target_properties"`
	TargetKeys       []string         `json:"target_keys"`
	Entries          []FormEntry      `json:"mappings"`
	Seeded           int              `json:"seeded"`
	Suggested        int              `json:"suggested"`
}

// Form flattens the session schemas and seeds the session table from the
// source schema when it is still empty. With suggest set, empty entries are
// filled with the closest target key.
func (e *Engine) Form(sess *session.Session, suggest bool) (*Form, error) {
	docs := sess.Documents()

	source, err := e.Flatten(docs.SourceSchema)
	if err != nil {
		return nil, fmt.Errorf("source schema: %w", err)
	}
	target, err := e.Flatten(docs.TargetSchema)
	if err != nil {
		return nil, fmt.Errorf("target schema: %w", err)
	}

	mode := e.KeyMode()
	form := &Form{
		SessionID:        sess.ID,
		KeyMode:          mode,
		Mode:             mode.String(),
		SourceProperties: source,
		TargetProperties: target,
		TargetKeys:       proptree.Keys(target, mode),
	}

	sess.WithMapping(func(m *mapping.Store) {
		if m.Len() == 0 {
			form.Seeded = m.Seed(source, mode)
		}
		if suggest {
			form.Suggested = mapping.Suggest(m, form.TargetKeys, mapping.DefaultSuggestThreshold)
		}
		for _, entry := range m.Entries() {
			form.Entries = append(form.Entries, FormEntry{
				Field:  mapping.WrapKey(entry.Source),
				Source: entry.Source,
				Target: entry.Target,
			})
		}
	})
	if form.Entries == nil {
		form.Entries = []FormEntry{}
	}

	e.log.Info("mapping form built",
		"session_id", sess.ID,
		"source_nodes", proptree.Count(source),
		"target_keys", len(form.TargetKeys),
		"seeded", form.Seeded,
		"suggested", form.Suggested,
	)
	return form, nil
}

// Submit replaces the session table with a form submission, builds the
// output from the session's source data and stores it on the session.
func (e *Engine) Submit(sess *session.Session, form map[string][]string) (jsondoc.Object, resolve.Stats, error) {
	var store *mapping.Store
	sess.WithMapping(func(m *mapping.Store) {
		m.ReplaceFromSubmission(form)
		store = m.Clone()
	})

	out, stats, err := e.Apply(sess.Documents().SourceData, store)
	if err != nil {
		return nil, resolve.Stats{}, err
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, resolve.Stats{}, fmt.Errorf("encode output: %w", err)
	}
	sess.SetOutput(encoded)

	e.log.Info("mapping submitted",
		"session_id", sess.ID,
		"entries", store.Len(),
		"mapped", store.Mapped(),
		"applied", stats.Applied,
	)
	return out, stats, nil
}

package activitypub

import (
	"encoding/json"
	"fmt"

	"github.com/deemkeen/mammut/domain"
)

// Activity is a parsed inbound ActivityPub activity. Object, Target and
// Instrument stay duck-typed (string URI or inlined map); handlers resolve
// them through References instead of re-inspecting the shapes ad hoc.
type Activity struct {
	Context    any    `json:"@context"`
	ID         string `json:"id"`
	Type       string `json:"type"`
	Actor      any    `json:"actor"`
	Object     any    `json:"object"`
	Target     any    `json:"target"`
	To         any    `json:"to"`
	Cc         any    `json:"cc"`
	Content    any    `json:"content"`
	Tag        any    `json:"tag"`
	Instrument any    `json:"instrument"`
	Published  string `json:"published"`
}

// ParseActivity unmarshals an inbound payload. The only hard requirement
// is a string `type`; everything else is tolerated.
func ParseActivity(body []byte) (*Activity, error) {
	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("failed to parse activity: %w", err)
	}
	if activity.Type == "" {
		return nil, fmt.Errorf("activity missing type")
	}
	return &activity, nil
}

// ActorURI returns the actor reference as a bare URI string.
func (a *Activity) ActorURI() string {
	return NewReference(a.Actor).ID()
}

// ContentString returns the content field when it is a plain string.
func (a *Activity) ContentString() string {
	if s, ok := a.Content.(string); ok {
		return s
	}
	return ""
}

// Reference models the duck-typed object position of an activity: either a
// bare URI string or an inlined object carrying its own id. The id remains
// authoritative for identity and dedup even when attributes are inlined.
type Reference struct {
	URI    string
	Inline map[string]any
}

// NewReference builds a Reference from a raw JSON value.
func NewReference(v any) Reference {
	switch obj := v.(type) {
	case string:
		return Reference{URI: obj}
	case map[string]any:
		ref := Reference{Inline: obj}
		if id, ok := obj["id"].(string); ok {
			ref.URI = id
		}
		return ref
	case []any:
		// Some servers wrap single objects in a one-element array
		if len(obj) == 1 {
			return NewReference(obj[0])
		}
	}
	return Reference{}
}

// IsZero reports whether the reference points at nothing.
func (r Reference) IsZero() bool {
	return r.URI == "" && r.Inline == nil
}

// ID returns the authoritative identifier of the referenced object.
func (r Reference) ID() string {
	return r.URI
}

// Type returns the inlined object type, if any.
func (r Reference) Type() string {
	if r.Inline == nil {
		return ""
	}
	t, _ := r.Inline["type"].(string)
	return t
}

// Str returns a string attribute of the inlined object.
func (r Reference) Str(key string) string {
	if r.Inline == nil {
		return ""
	}
	s, _ := r.Inline[key].(string)
	return s
}

// Get returns a raw attribute of the inlined object.
func (r Reference) Get(key string) any {
	if r.Inline == nil {
		return nil
	}
	return r.Inline[key]
}

// Echo returns the representation the reference arrived in, for reply
// activities that must preserve bare-URI vs. inlined shape.
func (r Reference) Echo() any {
	if r.Inline != nil {
		return r.Inline
	}
	return r.URI
}

// maxFetchDepth bounds re-entrant remote fetches during one processing
// call (a fetched quoted status referencing further unknown accounts).
const maxFetchDepth = 2

// Resolver resolves references to local or remotely-fetched entities.
// Within one activity-processing call, resolving the same URI twice
// returns the same instance.
type Resolver struct {
	deps     *Deps
	accounts map[string]*domain.Account
	statuses map[string]*domain.Status
	depth    int
}

// NewResolver creates a resolver scoped to one activity-processing call.
func NewResolver(deps *Deps) *Resolver {
	return &Resolver{
		deps:     deps,
		accounts: make(map[string]*domain.Account),
		statuses: make(map[string]*domain.Status),
	}
}

// Account resolves a reference to an account, fetching remotely on a local
// miss. Returns nil on any failure; callers treat absence per their
// individual no-op rules.
func (r *Resolver) Account(ref Reference) *domain.Account {
	if ref.IsZero() || ref.URI == "" {
		return nil
	}
	if cached, ok := r.accounts[ref.URI]; ok {
		return cached
	}

	err, acc := r.deps.Database.ReadAccountByURI(ref.URI)
	if err == nil && acc != nil {
		r.accounts[ref.URI] = acc
		return acc
	}

	if r.depth >= maxFetchDepth {
		return nil
	}
	r.depth++
	defer func() { r.depth-- }()

	acc, fetchErr := GetOrFetchActor(ref.URI, r.deps)
	if fetchErr != nil || acc == nil {
		return nil
	}
	r.accounts[ref.URI] = acc
	return acc
}

// Status resolves a reference to a status, fetching remotely on a local
// miss. Inlined attributes are preferred over a network round trip, but
// the id stays authoritative for dedup. Returns nil on any failure.
func (r *Resolver) Status(ref Reference) *domain.Status {
	if ref.IsZero() || ref.URI == "" {
		return nil
	}
	if cached, ok := r.statuses[ref.URI]; ok {
		return cached
	}

	err, status := r.deps.Database.ReadStatusByURI(ref.URI)
	if err == nil && status != nil {
		r.statuses[ref.URI] = status
		return status
	}

	if r.depth >= maxFetchDepth {
		return nil
	}
	r.depth++
	defer func() { r.depth-- }()

	status, fetchErr := fetchRemoteStatus(ref, r)
	if fetchErr != nil || status == nil {
		return nil
	}
	r.statuses[ref.URI] = status
	return status
}

package activitypub

import "github.com/deemkeen/mammut/domain"

// The ActivityStreams Public collection, in the spellings seen in the wild.
const PublicURI = "https://www.w3.org/ns/activitystreams#Public"

var publicAliases = map[string]bool{
	PublicURI:   true,
	"as:Public": true,
	"Public":    true,
}

// Audience is the resolved delivery scope of an object.
type Audience struct {
	Visibility string
	// Addressed holds the actor URIs explicitly listed in `to`, minus the
	// special collections. For limited visibility these become silent
	// mentions unless the body already mentions them.
	Addressed []string
}

// normalizeAudienceField flattens a to/cc value (absent, string, array of
// strings, or inlined Collection) into a URI list. Inlined collections
// contribute their id.
func normalizeAudienceField(v any) []string {
	var uris []string
	appendOne := func(item any) {
		switch x := item.(type) {
		case string:
			uris = append(uris, x)
		case map[string]any:
			if id, ok := x["id"].(string); ok {
				uris = append(uris, id)
			}
		}
	}

	switch x := v.(type) {
	case nil:
	case []any:
		for _, item := range x {
			appendOne(item)
		}
	default:
		appendOne(x)
	}
	return uris
}

// ResolveAudience computes the visibility of an object from its to/cc
// fields. Precedence is load-bearing: Public anywhere wins (to=public,
// cc-only=unlisted), then the author's followers collection (private),
// then any non-empty addressing (limited), then direct.
func ResolveAudience(to, cc any, followersURI string) Audience {
	toSet := normalizeAudienceField(to)
	ccSet := normalizeAudienceField(cc)

	toPublic := false
	for _, uri := range toSet {
		if publicAliases[uri] {
			toPublic = true
			break
		}
	}
	ccPublic := false
	for _, uri := range ccSet {
		if publicAliases[uri] {
			ccPublic = true
			break
		}
	}

	var addressed []string
	for _, uri := range toSet {
		if publicAliases[uri] || (followersURI != "" && uri == followersURI) {
			continue
		}
		addressed = append(addressed, uri)
	}

	if toPublic {
		return Audience{Visibility: domain.VisibilityPublic, Addressed: addressed}
	}
	if ccPublic {
		return Audience{Visibility: domain.VisibilityUnlisted, Addressed: addressed}
	}

	if followersURI != "" {
		for _, uri := range append(append([]string{}, toSet...), ccSet...) {
			if uri == followersURI {
				return Audience{Visibility: domain.VisibilityPrivate, Addressed: addressed}
			}
		}
	}

	if len(toSet)+len(ccSet) > 0 {
		return Audience{Visibility: domain.VisibilityLimited, Addressed: addressed}
	}

	return Audience{Visibility: domain.VisibilityDirect}
}

package agent

import (
	"regexp"
	"strings"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// artifactDownloadURLPattern matches the orchestrator's per-artifact
// download endpoint, used to backfill structured artifact references
// from section content that already embeds the URL.
var artifactDownloadURLPattern = regexp.MustCompile(`/api/artifacts/([^/\s"]+)/download`)

// imageLikeTypes is the closed set of artifact types a string reference
// may resolve to when nothing more specific matches.
var imageLikeTypes = map[domain.ArtifactType]bool{
	domain.ArtifactChart:         true,
	domain.ArtifactImage:         true,
	domain.ArtifactPNG:           true,
	domain.ArtifactVisualization: true,
}

// catalogEntry is one artifact available to a designer invocation,
// normalized from either a cataloged ArtifactRow or a payload-embedded
// reference so resolution doesn't need to special-case the source.
type catalogEntry struct {
	ID   string
	Type domain.ArtifactType
	Role string
	// StorageKey is empty for payload-embedded entries that carry no
	// fetchable bytes (those resolve but downgrade to text on fetch).
	StorageKey string
}

// artifactCatalog is materialized once per designer invocation: an
// index keyed by (type, role) for the common case and a flat list for
// the fallback scans. No mutable shared graph persists beyond the call.
type artifactCatalog struct {
	byTypeRole map[[2]string]catalogEntry
	all        []catalogEntry
}

// buildCatalog merges cataloged job artifacts with payload-embedded
// ones, catalog rows first, in that order (step 2 of §4.5.7).
func buildCatalog(rows []domain.ArtifactRow, embedded []map[string]any) artifactCatalog {
	cat := artifactCatalog{byTypeRole: make(map[[2]string]catalogEntry)}

	for _, r := range rows {
		e := catalogEntry{ID: r.ID, Type: r.Type, Role: r.Role, StorageKey: r.StorageKey}
		cat.all = append(cat.all, e)
		key := [2]string{string(e.Type), e.Role}
		if _, exists := cat.byTypeRole[key]; !exists {
			cat.byTypeRole[key] = e
		}
	}
	for _, m := range embedded {
		id, _ := asString(m["id"])
		typ, _ := asString(m["type"])
		role, _ := asString(m["role"])
		storageKey, _ := asString(m["storage_key"])
		e := catalogEntry{ID: id, Type: domain.ArtifactType(typ), Role: role, StorageKey: storageKey}
		cat.all = append(cat.all, e)
		key := [2]string{string(e.Type), e.Role}
		if _, exists := cat.byTypeRole[key]; !exists {
			cat.byTypeRole[key] = e
		}
	}
	return cat
}

// backfillSectionArtifact implements step 3: when a section has no
// artifact reference but its content embeds a download URL whose id is
// in the catalog, rewrite the section to reference that artifact with
// blanked content.
func backfillSectionArtifact(content string, cat artifactCatalog) (artifactRef any, newContent string, backfilled bool) {
	m := artifactDownloadURLPattern.FindStringSubmatch(content)
	if m == nil {
		return nil, content, false
	}
	id := m[1]
	for _, e := range cat.all {
		if e.ID == id {
			return map[string]any{"type": string(e.Type), "role": e.Role}, "", true
		}
	}
	return nil, content, false
}

// isUnresolvedArtifactRef reports whether a section's artifact field is
// one of the designated "no artifact" sentinels: nil, the strings
// "null"/"undefined", or an unresolved template string.
func isUnresolvedArtifactRef(artifact any) bool {
	if artifact == nil {
		return true
	}
	if s, ok := artifact.(string); ok {
		switch s {
		case "null", "undefined":
			return true
		}
		return isUnresolvedTemplateString(s)
	}
	return false
}

// resolveArtifactForSection implements resolve_artifact_for_section
// (§4.5.7 step 4). A nil return means "render as text".
func resolveArtifactForSection(artifact any, cat artifactCatalog) *catalogEntry {
	if artifact == nil || isUnresolvedArtifactRef(artifact) {
		return nil
	}

	switch v := artifact.(type) {
	case map[string]any:
		reqType, _ := asString(v["type"])
		reqRole, _ := asString(v["role"])
		return resolveStructuredRef(reqType, reqRole, cat)
	case string:
		return resolveStringRef(v, cat)
	default:
		return nil
	}
}

func resolveStructuredRef(reqType, reqRole string, cat artifactCatalog) *catalogEntry {
	// a. exact (type, role) match
	if e, ok := cat.byTypeRole[[2]string{reqType, reqRole}]; ok {
		return &e
	}
	// b. match by role alone
	for _, e := range cat.all {
		if reqRole != "" && e.Role == reqRole {
			return &e
		}
	}
	// c. match by type with role substring inclusion
	if reqRole != "" {
		for _, e := range cat.all {
			if string(e.Type) == reqType && strings.Contains(e.Role, reqRole) {
				return &e
			}
		}
	}
	// d. requested type == chart: any chart artifact
	if reqType == string(domain.ArtifactChart) {
		for _, e := range cat.all {
			if e.Type == domain.ArtifactChart {
				return &e
			}
		}
	}
	// e. any artifact whose role contains the requested role as substring
	if reqRole != "" {
		for _, e := range cat.all {
			if strings.Contains(e.Role, reqRole) {
				return &e
			}
		}
	}
	// f. none
	return nil
}

func resolveStringRef(ref string, cat artifactCatalog) *catalogEntry {
	// 1. substring match of artifact id in the string
	for _, e := range cat.all {
		if e.ID != "" && strings.Contains(ref, e.ID) {
			return &e
		}
	}
	// 2. first artifact whose type is image-like
	for _, e := range cat.all {
		if imageLikeTypes[e.Type] {
			return &e
		}
	}
	// 3. the first available artifact
	if len(cat.all) > 0 {
		return &cat.all[0]
	}
	return nil
}

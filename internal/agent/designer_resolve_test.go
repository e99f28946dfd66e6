package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

func TestBuildCatalog_CatalogBeforeEmbedded(t *testing.T) {
	rows := []domain.ArtifactRow{
		{ID: "r1", Type: domain.ArtifactChart, Role: "latency_p95"},
	}
	embedded := []map[string]any{
		{"id": "e1", "type": "chart", "role": "throughput"},
	}
	cat := buildCatalog(rows, embedded)
	require.Len(t, cat.all, 2)
	require.Equal(t, "r1", cat.all[0].ID)
	require.Equal(t, "e1", cat.all[1].ID)
}

func TestResolveArtifactForSection_NoArtifact(t *testing.T) {
	cat := buildCatalog(nil, nil)
	require.Nil(t, resolveArtifactForSection(nil, cat))
}

func TestResolveArtifactForSection_NullSentinels(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{{ID: "r1", Type: domain.ArtifactChart, Role: "x"}}, nil)
	require.Nil(t, resolveArtifactForSection("null", cat))
	require.Nil(t, resolveArtifactForSection("undefined", cat))
	require.Nil(t, resolveArtifactForSection("{{tasks.a.outputs.b}}", cat))
}

func TestResolveArtifactForSection_ExactMatch(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{
		{ID: "r1", Type: domain.ArtifactChart, Role: "latency_p95"},
		{ID: "r2", Type: domain.ArtifactChart, Role: "throughput"},
	}, nil)
	e := resolveArtifactForSection(map[string]any{"type": "chart", "role": "latency_p95"}, cat)
	require.NotNil(t, e)
	require.Equal(t, "r1", e.ID)
}

func TestResolveArtifactForSection_RoleOnlyFallback(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{
		{ID: "r1", Type: domain.ArtifactImage, Role: "latency_p95"},
	}, nil)
	e := resolveArtifactForSection(map[string]any{"type": "chart", "role": "latency_p95"}, cat)
	require.NotNil(t, e)
	require.Equal(t, "r1", e.ID)
}

func TestResolveArtifactForSection_TypeWithRoleSubstring(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{
		{ID: "r1", Type: domain.ArtifactChart, Role: "latency_p95_rolling"},
	}, nil)
	e := resolveArtifactForSection(map[string]any{"type": "chart", "role": "latency_p95"}, cat)
	require.NotNil(t, e)
	require.Equal(t, "r1", e.ID)
}

func TestResolveArtifactForSection_AnyChartFallback(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{
		{ID: "r1", Type: domain.ArtifactChart, Role: "throughput"},
	}, nil)
	e := resolveArtifactForSection(map[string]any{"type": "chart", "role": "nonexistent"}, cat)
	require.NotNil(t, e)
	require.Equal(t, "r1", e.ID)
}

func TestResolveArtifactForSection_RoleSubstringAnywhere(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{
		{ID: "r1", Type: domain.ArtifactImage, Role: "daily_latency_p95_snapshot"},
	}, nil)
	e := resolveArtifactForSection(map[string]any{"type": "pdf", "role": "latency_p95"}, cat)
	require.NotNil(t, e)
	require.Equal(t, "r1", e.ID)
}

func TestResolveArtifactForSection_NoneRendersAsText(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{
		{ID: "r1", Type: domain.ArtifactText, Role: "summary"},
	}, nil)
	e := resolveArtifactForSection(map[string]any{"type": "chart", "role": "latency_p95"}, cat)
	require.Nil(t, e)
}

func TestResolveArtifactForSection_StringRefByIDSubstring(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{
		{ID: "abc123", Type: domain.ArtifactChart, Role: "x"},
	}, nil)
	e := resolveArtifactForSection("/api/artifacts/abc123/download", cat)
	require.NotNil(t, e)
	require.Equal(t, "abc123", e.ID)
}

func TestResolveArtifactForSection_StringRefFirstImageLike(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{
		{ID: "r0", Type: domain.ArtifactText, Role: "x"},
		{ID: "r1", Type: domain.ArtifactPNG, Role: "y"},
	}, nil)
	e := resolveArtifactForSection("some opaque reference", cat)
	require.NotNil(t, e)
	require.Equal(t, "r1", e.ID)
}

func TestResolveArtifactForSection_StringRefFirstAvailable(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{
		{ID: "r0", Type: domain.ArtifactText, Role: "x"},
	}, nil)
	e := resolveArtifactForSection("some opaque reference", cat)
	require.NotNil(t, e)
	require.Equal(t, "r0", e.ID)
}

func TestBackfillSectionArtifact(t *testing.T) {
	cat := buildCatalog([]domain.ArtifactRow{
		{ID: "abc123", Type: domain.ArtifactChart, Role: "latency_p95"},
	}, nil)
	ref, content, ok := backfillSectionArtifact("See /api/artifacts/abc123/download for details", cat)
	require.True(t, ok)
	require.Empty(t, content)
	m, ok := ref.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "chart", m["type"])
	require.Equal(t, "latency_p95", m["role"])
}

func TestBackfillSectionArtifact_NoMatchLeavesContentUntouched(t *testing.T) {
	cat := buildCatalog(nil, nil)
	ref, content, ok := backfillSectionArtifact("plain prose", cat)
	require.False(t, ok)
	require.Nil(t, ref)
	require.Equal(t, "plain prose", content)
}

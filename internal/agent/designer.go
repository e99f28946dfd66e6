package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

const designerDownloadURLFormat = "/api/jobs/%s/artifacts?type=pdf&role=report&download=1"

// renderedSection is a section after artifact-reference backfill and
// resolution, ready to hand to a PDFCompiler.
type renderedSection struct {
	Heading    string
	Content    string
	Caption    string
	ImageBytes []byte
	ImageEmbed bool
}

// PDFCompiler renders a title and an ordered list of sections into PDF
// bytes. gofpdf backs the default implementation; an external
// pdflatex/tectonic pipeline backs the alternate one, selectable via
// DESIGNER_PDF_ENGINE.
type PDFCompiler interface {
	Render(title string, style map[string]any, sections []renderedSection) ([]byte, error)
}

// DesignerAgent assembles a PDF report from sections that each render
// either as prose or as an embedded figure resolved from the job's
// artifact catalog.
type DesignerAgent struct {
	Storage   domain.Storage
	TaskStore domain.TaskStore
	compiler  PDFCompiler
}

func NewDesignerAgent(storage domain.Storage, taskStore domain.TaskStore) *DesignerAgent {
	var compiler PDFCompiler = newGofpdfCompiler()
	if os.Getenv("DESIGNER_PDF_ENGINE") == "latex" {
		compiler = newLatexCompiler()
	}
	return &DesignerAgent{Storage: storage, TaskStore: taskStore, compiler: compiler}
}

func (a *DesignerAgent) Run(ctx context.Context, task domain.TaskRow) (Outcome, error) {
	if hasUnresolvedTemplates(task.Payload) {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "payload contains unresolved templates"}, nil
	}

	rawSections, ok := task.Payload["sections"].([]any)
	if !ok || len(rawSections) == 0 {
		return Outcome{Kind: OutcomeValidationFailed, FailMessage: "sections is required"}, nil
	}
	title := stringOr(task.Payload["title"], "Report")
	style, _ := task.Payload["style"].(map[string]any)

	rows, err := a.TaskStore.ListJobArtifacts(ctx, task.JobID)
	if err != nil {
		return Outcome{}, fmt.Errorf("op=designer_run job_id=%s: %w: %w", task.JobID, domain.ErrAgentExecution, err)
	}
	embedded := embeddedArtifacts(task.Payload["artifacts"])
	cat := buildCatalog(rows, embedded)

	sections := make([]renderedSection, 0, len(rawSections))
	embeddedCount := 0
	for _, raw := range rawSections {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		heading := stringOr(m["heading"], "")
		content := stringOr(m["content"], "")
		caption := stringOr(m["caption"], "")
		artifact := m["artifact"]

		if artifact == nil {
			if ref, newContent, ok := backfillSectionArtifact(content, cat); ok {
				artifact = ref
				content = newContent
			}
		}

		rs := renderedSection{Heading: heading, Content: content, Caption: caption}
		if entry := resolveArtifactForSection(artifact, cat); entry != nil && imageLikeTypes[entry.Type] && entry.StorageKey != "" {
			if bytes, err := a.Storage.Get(ctx, entry.StorageKey); err == nil {
				rs.ImageBytes = bytes
				rs.ImageEmbed = true
				embeddedCount++
			}
			// Fetch failure downgrades to text (§4.7 Safety); rs keeps
			// its heading/content, never aborting the PDF.
		}
		sections = append(sections, rs)
	}

	pdfBytes, err := a.compiler.Render(title, style, sections)
	if err != nil {
		return Outcome{}, fmt.Errorf("op=designer_run job_id=%s: %w: %w", task.JobID, domain.ErrAgentExecution, err)
	}

	result := map[string]any{
		"role":          "report",
		"section_count": len(sections),
		"download_url":  fmt.Sprintf(designerDownloadURLFormat, task.JobID),
		"metadata": map[string]any{
			"embedded_artifacts": embeddedCount,
		},
	}
	artifactUpload := &domain.ArtifactUpload{
		Type:        domain.ArtifactPDF,
		Filename:    task.ID + ".pdf",
		ContentType: "application/pdf",
		Bytes:       pdfBytes,
		Role:        "report",
		Metadata: map[string]any{
			"embedded_artifacts": embeddedCount,
			"section_count":      len(sections),
		},
	}
	return Outcome{Kind: OutcomeSuccess, Result: result, Artifact: artifactUpload}, nil
}

// embeddedArtifacts normalizes the payload's optional artifacts[] into
// the []map[string]any shape buildCatalog expects.
func embeddedArtifacts(raw any) []map[string]any {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

var _ Agent = (*DesignerAgent)(nil)

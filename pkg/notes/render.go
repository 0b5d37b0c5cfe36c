// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package notes

import (
	"fmt"
	"strings"
)

// Render produces the full Markdown bytes for a note from scratch: a
// frontmatter block derived from ctx plus a rendered body. The template
// grammar itself is an external-collaborator concern (spec §1); this is
// the concrete stand-in the engine calls.
func Render(ctx BuilderContext) ([]byte, error) {
	fm := frontmatterFromContext(ctx)

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n", nonEmpty(ctx.Title, ctx.Citekey))
	if len(ctx.Authors) > 0 {
		fmt.Fprintf(&body, "**Authors:** %s\n\n", strings.Join(ctx.Authors, ", "))
	}
	if ctx.Venue != "" || ctx.Year != "" {
		fmt.Fprintf(&body, "**Venue:** %s %s\n\n", ctx.Venue, ctx.Year)
	}
	if ctx.DOI != "" {
		fmt.Fprintf(&body, "**DOI:** %s\n\n", ctx.DOI)
	}
	if ctx.Abstract != "" {
		fmt.Fprintf(&body, "## Abstract\n\n%s\n\n", ctx.Abstract)
	}
	if ctx.GeneratedSummary != "" {
		fmt.Fprintf(&body, "## Summary\n\n%s\n\n", ctx.GeneratedSummary)
	}
	if len(ctx.Highlights) > 0 {
		body.WriteString("## Highlights\n\n")
		for _, h := range ctx.Highlights {
			fmt.Fprintf(&body, "- %s\n", h)
		}
		body.WriteString("\n")
	}

	return renderDocument(&document{frontmatter: fm, body: body.String()})
}

// RewritePDFPath rewrites only the pdf_local field of an existing note's
// frontmatter, leaving the rest of the document untouched (spec §4.9
// "path drift").
func RewritePDFPath(existing []byte, newPath string) ([]byte, error) {
	doc, err := parseDocument(existing)
	if err != nil {
		return nil, err
	}
	doc.frontmatter[fieldPDFLocal] = newPath
	return renderDocument(doc)
}

// RewriteStatuses rewrites the summary/tag status fields (and, when
// provided, the generated content) of an existing note and refreshes
// zotomatic_last_updated, leaving title/body prose untouched. Used by
// the "pending resume" path of spec §4.9.
func RewriteStatuses(existing []byte, ctx BuilderContext) ([]byte, error) {
	doc, err := parseDocument(existing)
	if err != nil {
		return nil, err
	}

	doc.frontmatter[fieldSummaryStatus] = ctx.SummaryStatus
	doc.frontmatter[fieldSummaryMode] = ctx.SummaryMode
	doc.frontmatter[fieldTagStatus] = ctx.TagStatus
	doc.frontmatter[fieldLastUpdated] = ctx.LastUpdated
	if len(ctx.GeneratedTags) > 0 {
		doc.frontmatter[fieldTags] = mergeTags(ctx.Tags, ctx.GeneratedTags)
	}

	if ctx.GeneratedSummary != "" && !strings.Contains(doc.body, ctx.GeneratedSummary) {
		doc.body = appendSummarySection(doc.body, ctx.GeneratedSummary)
	}

	return renderDocument(doc)
}

func appendSummarySection(body, summary string) string {
	var out strings.Builder
	out.WriteString(body)
	if !strings.HasSuffix(body, "\n\n") {
		out.WriteString("\n\n")
	}
	fmt.Fprintf(&out, "## Summary\n\n%s\n\n", summary)
	return out.String()
}

func frontmatterFromContext(ctx BuilderContext) map[string]any {
	fm := map[string]any{
		fieldCitekey:       ctx.Citekey,
		fieldPDFLocal:      ctx.PDFPath,
		fieldTags:          mergeTags(ctx.Tags, ctx.GeneratedTags),
		fieldSummaryStatus: ctx.SummaryStatus,
		fieldSummaryMode:   ctx.SummaryMode,
		fieldTagStatus:     ctx.TagStatus,
		fieldLastUpdated:   ctx.LastUpdated,
	}
	return fm
}

func mergeTags(resolverTags, generatedTags []string) []string {
	seen := make(map[string]bool, len(resolverTags)+len(generatedTags))
	out := make([]string, 0, len(resolverTags)+len(generatedTags))
	for _, t := range append(append([]string{}, resolverTags...), generatedTags...) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

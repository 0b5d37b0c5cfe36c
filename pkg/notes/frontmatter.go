// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package notes

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// document is a parsed Markdown note: frontmatter plus body.
type document struct {
	frontmatter map[string]any
	body        string
}

// parseDocument splits a note into frontmatter and body. A document with
// no frontmatter delimiter is returned with an empty frontmatter map
// rather than an error, matching the permissive on-disk contract of §6.
func parseDocument(content []byte) (*document, error) {
	str := string(content)

	if !strings.HasPrefix(str, frontmatterDelimiter) {
		return &document{frontmatter: map[string]any{}, body: str}, nil
	}

	rest := str[len(frontmatterDelimiter):]
	idx := strings.Index(rest, "\n"+frontmatterDelimiter)
	if idx == -1 {
		return nil, fmt.Errorf("unclosed frontmatter")
	}

	fmYAML := rest[:idx]
	body := strings.TrimPrefix(rest[idx+len("\n"+frontmatterDelimiter):], "\n")

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(fmYAML), &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm == nil {
		fm = map[string]any{}
	}

	return &document{frontmatter: fm, body: body}, nil
}

// renderDocument combines frontmatter and body into a note's bytes.
func renderDocument(doc *document) ([]byte, error) {
	var buf bytes.Buffer

	if len(doc.frontmatter) > 0 {
		buf.WriteString(frontmatterDelimiter)
		buf.WriteString("\n")

		fmBytes, err := yaml.Marshal(doc.frontmatter)
		if err != nil {
			return nil, fmt.Errorf("marshal frontmatter: %w", err)
		}
		buf.Write(fmBytes)

		buf.WriteString(frontmatterDelimiter)
		buf.WriteString("\n")
	}

	buf.WriteString(doc.body)

	return buf.Bytes(), nil
}

func fmString(fm map[string]any, key string) string {
	v, ok := fm[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func fmStringSlice(fm map[string]any, key string) []string {
	v, ok := fm[key]
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// contextFromFrontmatter decodes the frontmatter fields the note
// workflow inspects (spec §3/§4.9): citekey, pdf_local, tags, and the
// three zotomatic_* status fields.
func contextFromFrontmatter(fm map[string]any) BuilderContext {
	return BuilderContext{
		Citekey:       fmString(fm, fieldCitekey),
		PDFPath:       fmString(fm, fieldPDFLocal),
		Tags:          fmStringSlice(fm, fieldTags),
		SummaryStatus: fmString(fm, fieldSummaryStatus),
		SummaryMode:   fmString(fm, fieldSummaryMode),
		TagStatus:     fmString(fm, fieldTagStatus),
		LastUpdated:   fmString(fm, fieldLastUpdated),
	}
}

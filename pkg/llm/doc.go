// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm provides a unified interface for Large Language Model providers.
//
// This package abstracts the differences between various LLM APIs, providing
// a consistent interface for text generation and chat completions. Client
// builds on top of Provider to produce PDF summaries and topical tags for
// the note workflow.
//
// # Supported Providers
//
// The following LLM providers are supported:
//   - Ollama: Local models, no API key required (default)
//   - OpenAI: GPT-4, GPT-4o-mini, and OpenAI-compatible APIs
//   - Anthropic: Claude models
//   - Mock: For testing without real API calls
//
// # Quick Start
//
// Create a client explicitly:
//
//	client, err := llm.NewClient(llm.ClientConfig{
//	    Provider: llm.ProviderConfig{Type: "openai", APIKey: os.Getenv("OPENAI_API_KEY")},
//	})
//	if err != nil {
//	    // construction failure is an LLMConfigError; the caller degrades
//	    // gracefully rather than treating it as fatal.
//	}
//	defer client.Close()
//
//	result := client.GenerateSummary(ctx, llm.SummaryContext{
//	    Mode:    llm.ModeStandard,
//	    PDFPath: "/library/paper.pdf",
//	    Abstract: "...",
//	})
//
// # Summary modes
//
// GenerateSummary supports three modes (ModeQuick, ModeStandard,
// ModeDeep) described in [SummaryContext]. GenerateSummary and
// GenerateTags never return an error to the note workflow: provider
// failures are caught internally and surfaced as an empty result, which
// the workflow treats as "leave status pending".
//
// # Error Handling
//
// NewClient fails only for an unknown provider name, returning an
// *errors.UserError built with NewLLMConfigError. A missing API key is not
// detected at construction; it surfaces as a call-time failure. Call-time
// failures are logged and absorbed inside GenerateSummary/GenerateTags;
// they never propagate.
package llm

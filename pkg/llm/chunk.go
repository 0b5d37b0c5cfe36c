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

package llm

import "strings"

// defaultChunkRunes is the target window size, in runes, for the deep
// summary map phase. PDF text extraction is an external collaborator
// (spec §1); ChunkText operates on whatever plain text it is handed.
const defaultChunkRunes = 4000

// ChunkText splits text into non-overlapping windows of approximately
// size runes, breaking on paragraph boundaries where possible so a
// chunk summary is not cut mid-sentence. Returns nil for empty input.
func ChunkText(text string, size int) []string {
	if size <= 0 {
		size = defaultChunkRunes
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > size {
			flush()
		}
		if len(p) > size {
			// A single paragraph larger than the window; split it
			// directly by rune count rather than dropping it.
			flush()
			runes := []rune(p)
			for len(runes) > 0 {
				n := size
				if n > len(runes) {
					n = len(runes)
				}
				chunks = append(chunks, string(runes[:n]))
				runes = runes[n:]
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}

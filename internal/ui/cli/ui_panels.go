package cli

import (
	"fmt"
	"strings"

	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/resolver"
)

func renderHelp(m model) string {
	keys := "Keys: tab panel | / filter | enter impact | esc back | j/k importer cursor | m mark origin | c trace chain | o open source | q quit"
	if m.mode == panelCalls {
		keys = "Keys: tab panel | / filter | o open source | q quit"
	}
	return statusStyle.Render(keys)
}

func renderChunkPanel(m model) string {
	summary := m.chunkList.View()
	details := renderChunkSummary(m)
	if m.hasImpact {
		details = renderImpact(m)
	}
	if chain := renderChain(m); chain != "" {
		details += "\n\n" + chain
	}
	return summary + "\n\n" + details
}

func renderChunkSummary(m model) string {
	id, ok := selectedChunk(m)
	if !ok {
		return statusStyle.Render("No chunks available.")
	}
	c, ok := m.result.Chunks.Get(id)
	if !ok {
		return statusStyle.Render("No chunks available.")
	}
	lines := []string{
		"Selected Chunk",
		fmt.Sprintf("  ID: %s", c.ID),
		fmt.Sprintf("  File: %s:%d", c.File, c.Line),
		fmt.Sprintf("  Imports (%d): %s", len(c.Imports), strings.Join(c.Imports, ", ")),
		fmt.Sprintf("  Exports (%d): %s", len(c.Exports), strings.Join(c.Exports, ", ")),
	}
	if c.Description != "" {
		lines = append(lines, "  Description: "+c.Description)
	}
	lines = append(lines, "  Press enter for impact drill-down.")
	return strings.Join(lines, "\n")
}

func renderImpact(m model) string {
	if m.impactErr != "" {
		return cycleStyle.Render("Impact error: " + m.impactErr)
	}
	r := m.impact
	lines := []string{
		fmt.Sprintf("Impact: chunk %s", r.Chunk),
		fmt.Sprintf("  File: %s", r.File),
		fmt.Sprintf("  Exports (%d): %s", len(r.Exports), strings.Join(r.Exports, ", ")),
		fmt.Sprintf("  Transitive importers (%d): %s", len(r.TransitiveImporters), strings.Join(r.TransitiveImporters, ", ")),
		fmt.Sprintf("  Direct importers (%d):", len(r.DirectImporters)),
	}
	for i, id := range r.DirectImporters {
		prefix := "   "
		if i == m.selectedImp {
			prefix = " ->"
		}
		lines = append(lines, fmt.Sprintf("%s chunk %s", prefix, id))
	}
	if len(r.DirectImporters) == 0 {
		lines = append(lines, "   none")
	}
	lines = append(lines, "  Press esc to exit details, o to open the highlighted importer.")
	return strings.Join(lines, "\n")
}

func renderChain(m model) string {
	switch {
	case m.chainErr != "":
		return cycleStyle.Render("Import chain: " + m.chainErr)
	case len(m.chain) > 0:
		return successStyle.Render("Import chain: " + strings.Join(m.chain, " -> "))
	case m.marked != "":
		return statusStyle.Render(fmt.Sprintf("Origin chunk %s marked. Select a target and press c.", m.marked))
	}
	return ""
}

func partialCalls(found []calls.DiscoveredAPICall) int {
	n := 0
	for _, c := range found {
		if resolver.ContainsUnresolved(c.URL) {
			n++
		}
	}
	return n
}

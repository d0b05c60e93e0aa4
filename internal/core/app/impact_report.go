package app

import (
	"fmt"
	"strings"

	"chunkmap/internal/engine/graph"
)

func FormatImpactReport(report graph.ImpactReport) string {
	var b strings.Builder

	b.WriteString("Impact Analysis\n")
	b.WriteString("==============\n")
	b.WriteString(fmt.Sprintf("Target chunk: %s\n", report.Chunk))
	if report.File != "" {
		b.WriteString(fmt.Sprintf("Bundle file: %s\n", report.File))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Direct importers (%d)\n", len(report.DirectImporters)))
	for _, id := range report.DirectImporters {
		b.WriteString(fmt.Sprintf("- %s\n", id))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Transitive impact (%d)\n", len(report.TransitiveImporters)))
	for _, id := range report.TransitiveImporters {
		b.WriteString(fmt.Sprintf("- %s\n", id))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Exports (%d)\n", len(report.Exports)))
	for _, name := range report.Exports {
		b.WriteString(fmt.Sprintf("- %s\n", name))
	}

	return b.String()
}

func FormatImportChain(chain []string) string {
	if len(chain) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Import chain: %s -> %s\n\n", chain[0], chain[len(chain)-1]))
	for i, id := range chain {
		b.WriteString(id)
		b.WriteString("\n")
		if i < len(chain)-1 {
			b.WriteString("  -> ")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

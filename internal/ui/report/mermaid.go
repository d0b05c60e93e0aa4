package report

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"chunkmap/internal/engine/graph"
)

// Importers are dropped once the diagram holds this many nodes.
const mermaidNodeLimit = 80

// NetworkDiagram draws the chunks issuing requests and the chunks importing
// them as a Mermaid flowchart. It returns "" when no chunk issues requests.
func NetworkDiagram(g *graph.Graph) string {
	if g == nil || g.Chunks() == nil {
		return ""
	}
	var network []string
	isFetch := make(map[string]bool)
	isAxios := make(map[string]bool)
	for _, c := range g.Chunks().All() {
		if !c.ContainsFetch && !c.IsAxiosClient {
			continue
		}
		network = append(network, c.ID)
		isFetch[c.ID] = c.ContainsFetch
		isAxios[c.ID] = c.IsAxiosClient
	}
	if len(network) == 0 {
		return ""
	}

	inNetwork := make(map[string]bool, len(network))
	for _, id := range network {
		inNetwork[id] = true
	}
	importerSet := make(map[string]bool)
	type edge struct{ from, to string }
	var edges []edge
	for _, id := range network {
		for _, imp := range g.Importers(id) {
			if !inNetwork[imp] && !importerSet[imp] {
				if len(network)+len(importerSet) >= mermaidNodeLimit {
					continue
				}
				importerSet[imp] = true
			}
			edges = append(edges, edge{from: imp, to: id})
		}
	}
	importers := make([]string, 0, len(importerSet))
	for id := range importerSet {
		importers = append(importers, id)
	}
	sort.Strings(importers)

	ids := makeIDs(append(append([]string{}, network...), importers...))

	var b strings.Builder
	b.WriteString("flowchart LR\n")
	for _, id := range network {
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", ids[id], escapeLabel(chunkLabel(id, isFetch[id], isAxios[id]))))
	}
	for _, id := range importers {
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", ids[id], escapeLabel("chunk "+id)))
	}

	b.WriteString("\n")
	var fetchIDs, axiosIDs, importerIDs []string
	for _, id := range network {
		if isAxios[id] {
			axiosIDs = append(axiosIDs, ids[id])
		} else {
			fetchIDs = append(fetchIDs, ids[id])
		}
	}
	for _, id := range importers {
		importerIDs = append(importerIDs, ids[id])
	}
	if len(fetchIDs) > 0 {
		b.WriteString("  classDef fetchNode fill:#eaf6ff,stroke:#1f6feb,stroke-width:2px,color:#000000;\n")
		b.WriteString("  class " + strings.Join(fetchIDs, ",") + " fetchNode;\n")
	}
	if len(axiosIDs) > 0 {
		b.WriteString("  classDef axiosNode fill:#fff4e5,stroke:#b35900,stroke-width:2px,color:#000000;\n")
		b.WriteString("  class " + strings.Join(axiosIDs, ",") + " axiosNode;\n")
	}
	if len(importerIDs) > 0 {
		b.WriteString("  classDef importerNode fill:#efefef,stroke:#808080,stroke-dasharray:4 3,color:#000000;\n")
		b.WriteString("  class " + strings.Join(importerIDs, ",") + " importerNode;\n")
	}

	if len(edges) > 0 {
		b.WriteString("\n")
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})
	for _, e := range edges {
		b.WriteString(fmt.Sprintf("  %s --> %s\n", ids[e.from], ids[e.to]))
	}
	return b.String()
}

func chunkLabel(id string, fetch, axios bool) string {
	var tags []string
	if fetch {
		tags = append(tags, "fetch")
	}
	if axios {
		tags = append(tags, "axios")
	}
	return fmt.Sprintf("chunk %s\\n(%s)", id, strings.Join(tags, ", "))
}

func sanitizeID(id string) string {
	if id == "" {
		return "c"
	}
	var b strings.Builder
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return "c_" + b.String()
}

func makeIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]int, len(names))
	for _, name := range names {
		base := sanitizeID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

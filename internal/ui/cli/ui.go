package cli

import (
	"fmt"
	"time"

	"chunkmap/internal/core/ports"
	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/graph"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	cycleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	partialStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	callList  list.Model
	chunkList list.Model
	mode      panelMode
	svc       ports.AnalysisService

	result     ports.AnalyzeResult
	chunkIDs   []string
	lastUpdate time.Time

	impact      graph.ImpactReport
	hasImpact   bool
	impactErr   string
	selectedImp int

	// marked is the origin chosen with 'm' for import-chain tracing.
	marked   string
	chain    []string
	chainErr string

	sourceJumpStatus string
}

type panelMode int

const (
	panelCalls panelMode = iota
	panelChunks
)

type updateMsg struct {
	result ports.AnalyzeResult
}

type sourceJumpResultMsg struct {
	target string
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKeyActions(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		width := msg.Width - h
		height := msg.Height - v - 8
		if height < 5 {
			height = 5
		}
		m.callList.SetSize(width, height)
		m.chunkList.SetSize(width, height)
	case updateMsg:
		m = m.applyResult(msg.result)
	case sourceJumpResultMsg:
		if msg.err != nil {
			m.sourceJumpStatus = statusStyle.Render(fmt.Sprintf("Source jump failed: %v", msg.err))
		} else {
			m.sourceJumpStatus = statusStyle.Render(fmt.Sprintf("Opened source: %s", msg.target))
		}
	}

	var cmd tea.Cmd
	if m.mode == panelCalls {
		m.callList, cmd = m.callList.Update(msg)
	} else {
		m.chunkList, cmd = m.chunkList.Update(msg)
	}
	return m, cmd
}

func (m model) applyResult(res ports.AnalyzeResult) model {
	m.result = res
	m.lastUpdate = time.Now()
	m.impactErr = ""

	callItems := make([]list.Item, 0, len(res.Calls))
	for _, c := range res.Calls {
		callItems = append(callItems, callItem(c))
	}
	m.callList.SetItems(callItems)

	m.chunkIDs = nil
	chunkItems := []list.Item{}
	if res.Chunks != nil {
		m.chunkIDs = res.Chunks.IDs()
		for _, id := range m.chunkIDs {
			c, _ := res.Chunks.Get(id)
			importers := 0
			if res.Graph != nil {
				importers = len(res.Graph.Importers(id))
			}
			chunkItems = append(chunkItems, item{
				title: "chunk " + id + chunkFlags(c.ContainsFetch, c.IsAxiosClient),
				desc:  fmt.Sprintf("%s imports=%d imported_by=%d", c.File, len(c.Imports), importers),
			})
		}
	}
	m.chunkList.SetItems(chunkItems)

	if m.hasImpact {
		m, _ = refreshImpact(m)
	}
	return m
}

func callItem(c calls.DiscoveredAPICall) item {
	desc := fmt.Sprintf("chunk %s (%s) %s:%d", c.ChunkID, c.Source, c.FunctionFile, c.FunctionFileLine)
	if c.CalledFrom != "" {
		desc += " via chunk " + c.CalledFrom
	}
	return item{title: c.Method + " " + c.URL, desc: desc}
}

func chunkFlags(fetch, axios bool) string {
	switch {
	case fetch && axios:
		return " [fetch, axios]"
	case fetch:
		return " [fetch]"
	case axios:
		return " [axios]"
	}
	return ""
}

func (m model) View() string {
	chunkCount, fetchChunks, axiosClients := m.result.Counts()
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d chunks | %d fetch | %d axios",
		m.lastUpdate.Format("15:04:05"), chunkCount, fetchChunks, axiosClients))

	summary := successStyle.Render(fmt.Sprintf("%d calls", len(m.result.Calls)))
	if len(m.result.Cycles) > 0 || partialCalls(m.result.Calls) > 0 {
		summary = fmt.Sprintf("%s | %s | %s",
			summary,
			cycleStyle.Render(fmt.Sprintf("%d cycles", len(m.result.Cycles))),
			partialStyle.Render(fmt.Sprintf("%d partial", partialCalls(m.result.Calls))))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Chunk Map Explorer"), status, summary)
	help := renderHelp(m)

	body := m.callList.View()
	if m.mode == panelChunks {
		body = renderChunkPanel(m)
	}
	if m.sourceJumpStatus != "" {
		body += "\n\n" + m.sourceJumpStatus
	}

	return docStyle.Render(header + "\n" + help + "\n\n" + body)
}

func initialModel(svc ports.AnalysisService) model {
	callList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	callList.Title = "Discovered API Calls"
	callList.SetShowStatusBar(false)
	callList.SetFilteringEnabled(true)

	chunkList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	chunkList.Title = "Chunk Explorer"
	chunkList.SetShowStatusBar(false)
	chunkList.SetFilteringEnabled(true)

	return model{
		callList:   callList,
		chunkList:  chunkList,
		mode:       panelCalls,
		svc:        svc,
		lastUpdate: time.Now(),
	}
}

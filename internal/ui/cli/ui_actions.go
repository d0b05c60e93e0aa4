package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

func handleKeyActions(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.mode == panelCalls {
			m.mode = panelChunks
		} else {
			m.mode = panelCalls
		}
		return m, nil
	}

	if m.mode != panelChunks {
		if msg.String() == "o" {
			return openSelectedCall(m)
		}
		var cmd tea.Cmd
		m.callList, cmd = m.callList.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter":
		return refreshImpact(m)
	case "esc", "backspace":
		m.hasImpact = false
		m.impactErr = ""
		m.selectedImp = 0
		return m, nil
	case "j":
		if m.hasImpact && len(m.impact.DirectImporters) > 0 {
			if m.selectedImp < len(m.impact.DirectImporters)-1 {
				m.selectedImp++
			}
			return m, nil
		}
	case "k":
		if m.hasImpact && len(m.impact.DirectImporters) > 0 {
			if m.selectedImp > 0 {
				m.selectedImp--
			}
			return m, nil
		}
	case "m":
		if id, ok := selectedChunk(m); ok {
			m.marked = id
			m.chain = nil
			m.chainErr = ""
		}
		return m, nil
	case "c":
		return traceChain(m)
	case "o":
		target, ok := selectedSourceTarget(m)
		if !ok {
			m.sourceJumpStatus = statusStyle.Render("No source target available.")
			return m, nil
		}
		return m, jumpToSourceCmd(target)
	}

	var cmd tea.Cmd
	m.chunkList, cmd = m.chunkList.Update(msg)
	return m, cmd
}

func selectedChunk(m model) (string, bool) {
	if len(m.chunkIDs) == 0 || m.result.Chunks == nil {
		return "", false
	}
	idx := m.chunkList.Index()
	if idx < 0 || idx >= len(m.chunkIDs) {
		idx = 0
	}
	return m.chunkIDs[idx], true
}

func refreshImpact(m model) (model, tea.Cmd) {
	id, ok := selectedChunk(m)
	if m.svc == nil || !ok {
		return m, nil
	}
	report, err := m.svc.AnalyzeImpact(context.Background(), id)
	if err != nil {
		m.impactErr = err.Error()
		m.hasImpact = false
		return m, nil
	}
	m.impact = report
	m.impactErr = ""
	m.hasImpact = true
	m.selectedImp = 0
	return m, nil
}

func traceChain(m model) (model, tea.Cmd) {
	to, ok := selectedChunk(m)
	if m.svc == nil || !ok {
		return m, nil
	}
	if m.marked == "" {
		m.chainErr = "mark an origin chunk with m first"
		return m, nil
	}
	chain, err := m.svc.TraceImportChain(context.Background(), m.marked, to)
	if err != nil {
		m.chain = nil
		m.chainErr = err.Error()
		return m, nil
	}
	m.chain = chain
	m.chainErr = ""
	return m, nil
}

type sourceTarget struct {
	file string
	line int
}

func openSelectedCall(m model) (model, tea.Cmd) {
	idx := m.callList.Index()
	if idx < 0 || idx >= len(m.result.Calls) {
		m.sourceJumpStatus = statusStyle.Render("No source target available.")
		return m, nil
	}
	c := m.result.Calls[idx]
	if c.FunctionFile == "" {
		m.sourceJumpStatus = statusStyle.Render("No source target available.")
		return m, nil
	}
	line := c.FunctionFileLine
	if line < 1 {
		line = 1
	}
	return m, jumpToSourceCmd(sourceTarget{file: c.FunctionFile, line: line})
}

func selectedSourceTarget(m model) (sourceTarget, bool) {
	id, ok := selectedChunk(m)
	if !ok {
		return sourceTarget{}, false
	}
	if m.hasImpact && len(m.impact.DirectImporters) > 0 {
		idx := m.selectedImp
		if idx < 0 {
			idx = 0
		}
		if idx >= len(m.impact.DirectImporters) {
			idx = len(m.impact.DirectImporters) - 1
		}
		id = m.impact.DirectImporters[idx]
	}
	c, ok := m.result.Chunks.Get(id)
	if !ok || c.File == "" {
		return sourceTarget{}, false
	}
	line := c.Line
	if line < 1 {
		line = 1
	}
	return sourceTarget{file: c.File, line: line}, true
}

func jumpToSourceCmd(target sourceTarget) tea.Cmd {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	args := []string{target.file}
	if strings.Contains(editor, "vim") || strings.Contains(editor, "nvim") || strings.HasSuffix(editor, "/vi") || editor == "vi" {
		args = []string{fmt.Sprintf("+%d", target.line), target.file}
	}
	cmd := exec.Command(editor, args...)
	label := fmt.Sprintf("%s:%d", target.file, target.line)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return sourceJumpResultMsg{target: label, err: err}
	})
}

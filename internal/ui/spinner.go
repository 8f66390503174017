package ui

// spinner.go shows live progress of a scraper run.
// Uses Bubble Tea spinner (white) fed by controller events.

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/thesavant42/wayback-scraper/internal/scraper"
)

// actionDoneMsg signals the action completed
type actionDoneMsg struct {
	err error
}

// progressEventMsg wraps a controller event for the Bubble Tea loop
type progressEventMsg scraper.Event

// progressModel runs a spinner while a scraper run executes
type progressModel struct {
	spinner    spinner.Model
	action     func() error
	cancel     func()
	generation int
	batch      int
	finished   int
	snapshots  int
	domain     string
	failures   int
	done       bool
	cancelled  bool
	err        error
}

// ProgressReporter forwards controller events into a running progress display
type ProgressReporter struct {
	program *tea.Program
}

// Report is safe to pass as scraper.Options.Progress
func (r *ProgressReporter) Report(ev scraper.Event) {
	if r == nil || r.program == nil {
		return
	}
	r.program.Send(progressEventMsg(ev))
}

// RunWithProgress executes action while displaying generation and domain progress.
// The action receives a reporter to hand to the controller. Pressing ctrl+c
// calls cancel and keeps the display up until the action returns.
//
// Example:
//
//	var result *scraper.Result
//	err := RunWithProgress(cancel, func(p *ProgressReporter) error {
//	    opts.Progress = p.Report
//	    var runErr error
//	    result, runErr = scraper.NewController(src, res, opts, logger).Run(ctx, domains)
//	    return runErr
//	})
func RunWithProgress(cancel func(), action func(*ProgressReporter) error) error {
	reporter := &ProgressReporter{}

	m := progressModel{
		spinner: NewAppSpinner(),
		action:  func() error { return action(reporter) },
		cancel:  cancel,
	}

	p := tea.NewProgram(m)
	reporter.program = p

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress program error: %w", err)
	}

	final := finalModel.(progressModel)
	return final.err
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.runAction(),
	)
}

func (m progressModel) runAction() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.action()}
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case actionDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progressEventMsg:
		m = m.apply(scraper.Event(msg))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		// Allow ctrl+c to cancel
		if msg.String() == "ctrl+c" && !m.cancelled {
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
		}
	}

	return m, nil
}

func (m progressModel) apply(ev scraper.Event) progressModel {
	switch ev.Kind {
	case scraper.EventGenerationStarted:
		m.generation = ev.Generation
		m.batch = ev.Domains
		m.finished = 0
	case scraper.EventDomainStarted:
		m.domain = ev.Domain
	case scraper.EventDomainFinished:
		m.finished++
		m.snapshots += ev.Snapshots
		if ev.Err != nil {
			m.failures++
		}
	}
	return m
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	if m.cancelled {
		return fmt.Sprintf("%s %s", m.spinner.View(), RenderNormal("Cancelling, waiting for in-flight requests..."))
	}
	if m.generation == 0 {
		return fmt.Sprintf("%s %s", m.spinner.View(), RenderNormal("Starting run..."))
	}

	status := fmt.Sprintf("Generation %d: %d/%d domains", m.generation, m.finished, m.batch)
	line := fmt.Sprintf("%s %s %s", m.spinner.View(), RenderNormal(status), ProgressStyle.Render(m.domain))
	stats := fmt.Sprintf("%d snapshots resolved", m.snapshots)
	if m.failures > 0 {
		stats += fmt.Sprintf(", %d failed", m.failures)
	}
	return line + "\n" + HintStyle.Render(stats) + "\n"
}

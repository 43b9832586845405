// Package notify sends run summaries to chat services.
package notify

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	NotifyAlways  NotifyOn = "always"
	NotifyFailure NotifyOn = "failure"
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends on every failure and on the first passing run after one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a --notify-on value.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(strings.ToLower(strings.TrimSpace(s))); on {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	default:
		return "", fmt.Errorf("unknown notify-on value %q (use always, failure, success or recovery)", s)
	}
}

// RunSummary represents the summary of a run for notifications
type RunSummary struct {
	TotalFiles    int           `json:"total_files"`
	TotalTests    int           `json:"total_tests"`
	PassedTests   int           `json:"passed_tests"`
	FailedTests   int           `json:"failed_tests"`
	SkippedTests  int           `json:"skipped_tests"`
	Duration      time.Duration `json:"duration"`
	FailedResults []FailedTest  `json:"failed_results,omitempty"`
	IsRecovery    bool          `json:"is_recovery,omitempty"`
}

type FailedTest struct {
	Name    string `json:"name"`
	File    string `json:"file"`
	Remarks string `json:"remarks"`
}

// NewRunSummary totals the file runs of one pass. Files that failed to parse
// count towards totalFiles only.
func NewRunSummary(totalFiles int, runs []*runner.RunResult, duration time.Duration) *RunSummary {
	s := &RunSummary{TotalFiles: totalFiles, Duration: duration}
	for _, run := range runs {
		s.PassedTests += run.Passed
		s.FailedTests += run.Failed
		s.SkippedTests += run.Skipped
		for _, r := range run.Results {
			if r.Passed {
				continue
			}
			ft := FailedTest{Name: r.Name, File: run.File}
			if r.Remarks != nil {
				ft.Remarks = r.Remarks.String()
			}
			s.FailedResults = append(s.FailedResults, ft)
		}
	}
	s.TotalTests = s.PassedTests + s.FailedTests + s.SkippedTests
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	Notify(summary *RunSummary) error
	Name() string
}

// Manager applies the NotifyOn policy and fans out to every notifier. It
// remembers the previous outcome so watch mode can report recoveries.
type Manager struct {
	mu        sync.Mutex
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// Notify sends notifications based on the configured policy. Every notifier
// is tried; their errors are joined.
func (m *Manager) Notify(summary *RunSummary) error {
	m.mu.Lock()
	currentSuccess := summary.FailedTests == 0
	shouldNotify := false

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}
	m.lastState = currentSuccess
	m.mu.Unlock()

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

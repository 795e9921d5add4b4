/*
job.go - Pay-day report job

PURPOSE:
  The downstream half of a pay day, run after the reconciliation
  pipeline:

    1. sweep the pay schedule, marking passed pay dates READY
    2. for every collaborator whose pay date is today, build their
       period report from COMPUTED ledger sessions
    3. write it to the report directory and email it to the address
       on the roster

  Each delivery is independent: one bad address or empty period never
  blocks the others. Everything that went wrong lands in the summary.
*/
package report

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/notify"
	"github.com/warp/attendance-engine/payroll"
	"github.com/warp/attendance-engine/tabular"
)

// Job wires the pay-day reporting flow.
type Job struct {
	Store  tabular.Store
	Tables attendance.Tables
	Mailer *notify.Mailer

	// OutDir, when set, receives a copy of every generated CSV.
	OutDir string

	WriterConfig tabular.WriterConfig
	Limiter      *rate.Limiter
	Logger       *log.Logger

	// Today is swapped out in tests.
	Today func() time.Time
}

func NewJob(store tabular.Store, tables attendance.Tables, mailer *notify.Mailer) *Job {
	return &Job{
		Store:        store,
		Tables:       tables,
		Mailer:       mailer,
		WriterConfig: tabular.DefaultWriterConfig(),
		Logger:       log.Default(),
		Today:        time.Now,
	}
}

// JobSummary reports one pay-day job run.
type JobSummary struct {
	MarkedReady   int
	Due           int
	Sent          int
	Saved         int
	EmptyPeriod   int
	NoEmail       int
	BatchesFailed int
	Errors        []string
}

// Success reports whether every due report was handled and every
// status update landed.
func (s *JobSummary) Success() bool { return s.BatchesFailed == 0 && len(s.Errors) == 0 }

// Run executes the job. The returned error is non-nil only for
// configuration failures (missing tables), before any write.
func (j *Job) Run(ctx context.Context) (*JobSummary, error) {
	sum := &JobSummary{}
	today := j.Today()

	sched, err := payroll.Load(ctx, j.Store, j.Tables.PaySchedule)
	if err != nil {
		return nil, err
	}

	// Readiness sweep.
	w := tabular.NewWriter(j.Store, j.WriterConfig)
	w.SetLimiter(j.Limiter)
	sum.MarkedReady = sched.MarkReady(today, w)
	flush := w.Flush(ctx)
	sum.BatchesFailed += len(flush.Failures)
	for _, f := range flush.Failures {
		sum.Errors = append(sum.Errors, f.Error())
	}

	due := sched.DueOn(today)
	sum.Due = len(due)
	if len(due) == 0 {
		j.Logger.Printf("[Reports] No pay dates due on %s", today.Format("2006-01-02"))
		return sum, nil
	}

	roster, err := payroll.LoadRoster(ctx, j.Store, j.Tables.Roster)
	if err != nil {
		return nil, err
	}
	ledger, err := attendance.LoadLedger(ctx, j.Store, j.Tables.Ledger)
	if err != nil {
		return nil, err
	}

	for _, entry := range due {
		if err := j.deliver(entry, roster, ledger, sum); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", entry.Collaborator, err))
			j.Logger.Printf("[Reports] %s: %v", entry.Collaborator, err)
		}
	}

	j.Logger.Printf("[Reports] %d due, %d sent, %d saved, %d empty, %d without email, %d errors",
		sum.Due, sum.Sent, sum.Saved, sum.EmptyPeriod, sum.NoEmail, len(sum.Errors))
	return sum, nil
}

func (j *Job) deliver(entry payroll.Entry, roster payroll.Roster, ledger *attendance.Ledger, sum *JobSummary) error {
	r := Build(entry.Collaborator, entry.PeriodStart, entry.PeriodEnd, ledger)
	if r.Empty() {
		sum.EmptyPeriod++
		j.Logger.Printf("[Reports] %s: no computed sessions in %s - %s",
			entry.Collaborator, tabular.FormatDate(entry.PeriodStart), tabular.FormatDate(entry.PeriodEnd))
		return nil
	}

	data, err := r.CSV()
	if err != nil {
		return err
	}

	if j.OutDir != "" {
		if err := os.MkdirAll(j.OutDir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(j.OutDir, r.Filename()), data, 0o644); err != nil {
			return err
		}
		sum.Saved++
	}

	if j.Mailer == nil || !j.Mailer.Enabled() {
		return nil
	}
	email, ok := roster[entry.Collaborator]
	if !ok {
		sum.NoEmail++
		j.Logger.Printf("[Reports] %s: no email on the roster", entry.Collaborator)
		return nil
	}

	payDate := tabular.FormatDate(entry.PayDate)
	subject := fmt.Sprintf("Attendance report - %s (%s)", entry.Collaborator, payDate)
	if err := j.Mailer.SendReport(email, subject, notify.ReportBody(entry.Collaborator, payDate), r.Filename(), data); err != nil {
		return err
	}
	sum.Sent++
	return nil
}

package main

import (
	"io"
	"path/filepath"
	"time"

	"causelist-backend/lib/portal"
	"causelist-backend/services/jobs"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderJudges(out io.Writer, list portal.CauseListResult) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("%s, %s, %s (%s)", list.Complex, list.District, list.State, list.Date)
	t.AppendHeader(table.Row{"#", "Judge", "Cause list PDF"})

	for i, judge := range list.Judges {
		pdf := "-"
		switch {
		case judge.DownloadedPdf != nil:
			pdf = filepath.Base(*judge.DownloadedPdf)
		case judge.DownloadError != nil:
			pdf = "failed: " + judge.DownloadError.Error()
		case judge.PdfLink != nil:
			pdf = *judge.PdfLink
		}
		t.AppendRow(table.Row{i + 1, judge.JudgeText, pdf})
	}
	if len(list.Judges) == 0 {
		t.AppendFooter(table.Row{"", "no cause list published", ""})
	} else if list.Omitted > 0 {
		t.AppendFooter(table.Row{"", "rows skipped", list.Omitted})
	}

	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
}

func renderJobs(out io.Writer, list []jobs.Job) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Id", "Status", "Complex", "Date", "PDFs", "Updated", "Error"})
	for _, job := range list {
		t.AppendRow(table.Row{
			job.Id,
			job.Status,
			job.Request.Complex,
			job.Request.Date,
			len(job.Pdfs),
			job.UpdatedAt.In(time.Local).Format(time.DateTime),
			job.Error,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

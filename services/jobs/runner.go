package jobs

import (
	"context"
	"path/filepath"

	"causelist-backend/lib/portal"
	"causelist-backend/lib/record"
	"causelist-backend/lib/timezone"
)

type Fetcher interface {
	FetchCauseList(ctx context.Context, req portal.LookupRequest) (portal.CauseListResult, error)
}

// LookupRunner runs a lookup and saves its record as web_<job id>_<ts>.json
// under OutputDir. PDFs are always archived for jobs.
type LookupRunner struct {
	Fetcher   Fetcher
	OutputDir string
}

func (r LookupRunner) Run(ctx context.Context, jobId string, req portal.LookupRequest) (Outcome, error) {
	req.DownloadPdf = true
	invokedAt := timezone.Now()

	result, err := r.Fetcher.FetchCauseList(ctx, req)
	var list *portal.CauseListResult
	if err == nil {
		list = &result
	}

	path, saveErr := record.Save(r.OutputDir, "web_"+jobId, record.New(invokedAt, req.Date, list))
	outcome := Outcome{}
	if saveErr == nil {
		outcome.OutputFile = filepath.Base(path)
	}
	if err != nil {
		return outcome, err
	}
	if saveErr != nil {
		return outcome, saveErr
	}

	outcome.Judges = len(result.Judges)
	for _, j := range result.Judges {
		if j.DownloadedPdf == nil {
			continue
		}
		rel, err := filepath.Rel(r.OutputDir, *j.DownloadedPdf)
		if err != nil || !filepath.IsLocal(rel) {
			rel = filepath.Base(*j.DownloadedPdf)
		}
		outcome.Pdfs = append(outcome.Pdfs, filepath.ToSlash(rel))
	}
	return outcome, nil
}

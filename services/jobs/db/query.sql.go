package db

import (
	"context"
)

const createJob = `-- name: CreateJob :exec
insert into jobs (id, status, request, created_at, updated_at)
values (?, ?, ?, ?, ?)
`

type CreateJobParams struct {
	ID        string
	Status    string
	Request   string
	CreatedAt int64
	UpdatedAt int64
}

func (q *Queries) CreateJob(ctx context.Context, arg CreateJobParams) error {
	_, err := q.db.ExecContext(ctx, createJob,
		arg.ID,
		arg.Status,
		arg.Request,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getJob = `-- name: GetJob :one
select id, status, request, output_file, pdfs, error, created_at, updated_at from jobs where id = ?
`

func (q *Queries) GetJob(ctx context.Context, id string) (Job, error) {
	row := q.db.QueryRowContext(ctx, getJob, id)
	var i Job
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.Request,
		&i.OutputFile,
		&i.Pdfs,
		&i.Error,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listJobs = `-- name: ListJobs :many
select id, status, request, output_file, pdfs, error, created_at, updated_at from jobs order by created_at desc, id limit ?
`

func (q *Queries) ListJobs(ctx context.Context, limit int64) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, listJobs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Job
	for rows.Next() {
		var i Job
		if err := rows.Scan(
			&i.ID,
			&i.Status,
			&i.Request,
			&i.OutputFile,
			&i.Pdfs,
			&i.Error,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setJobStatus = `-- name: SetJobStatus :execrows
update jobs set status = ?, updated_at = ?
where id = ? and status not in ('completed', 'failed', 'cancelled')
`

type SetJobStatusParams struct {
	Status    string
	UpdatedAt int64
	ID        string
}

func (q *Queries) SetJobStatus(ctx context.Context, arg SetJobStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setJobStatus, arg.Status, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const finishJob = `-- name: FinishJob :exec
update jobs set status = ?, output_file = ?, pdfs = ?, error = ?, updated_at = ?
where id = ?
`

type FinishJobParams struct {
	Status     string
	OutputFile string
	Pdfs       string
	Error      string
	UpdatedAt  int64
	ID         string
}

func (q *Queries) FinishJob(ctx context.Context, arg FinishJobParams) error {
	_, err := q.db.ExecContext(ctx, finishJob,
		arg.Status,
		arg.OutputFile,
		arg.Pdfs,
		arg.Error,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const failUnfinishedJobs = `-- name: FailUnfinishedJobs :execrows
update jobs set status = 'failed', error = ?, updated_at = ?
where status in ('pending', 'running')
`

type FailUnfinishedJobsParams struct {
	Error     string
	UpdatedAt int64
}

func (q *Queries) FailUnfinishedJobs(ctx context.Context, arg FailUnfinishedJobsParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, failUnfinishedJobs, arg.Error, arg.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

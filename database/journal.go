package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/mbolis/pozo-survey/model"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("submission not found")

// Journal records every submission attempt and its outcome.
type Journal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db}
}

// Queued stores a new attempt, or replaces the payload of an attempt that is
// still waiting in the queue. An attempt already sending or finished is kept.
func (j *Journal) Queued(ctx context.Context, s model.Submission) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO submission (id, session, pozo_numero, conexiones, fotos, status, data, queued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			pozo_numero = excluded.pozo_numero,
			conexiones = excluded.conexiones,
			fotos = excluded.fotos,
			status = excluded.status,
			data = excluded.data,
			queued_at = excluded.queued_at
		WHERE submission.status = 'queued'`,
		s.ID,
		s.Session,
		s.PozoNumero,
		s.Conexiones,
		s.Fotos,
		s.Status,
		s.Data,
		s.QueuedAt.UTC(),
	)
	return errors.Wrap(err, "journal.queued")
}

// Sending marks an attempt as picked up by the worker.
func (j *Journal) Sending(ctx context.Context, id string) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE submission SET status = ? WHERE id = ? AND status = ?`,
		model.StatusSending,
		id,
		model.StatusQueued,
	)
	if err != nil {
		return errors.Wrap(err, "journal.sending")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "journal.sending.verify")
	}
	if n < 1 {
		return errors.Wrapf(ErrNotFound, "journal.sending %s", id)
	}
	return nil
}

// Finished records the final state of an attempt.
func (j *Journal) Finished(ctx context.Context, s model.Submission) error {
	finishedAt := time.Now()
	if s.FinishedAt != nil {
		finishedAt = *s.FinishedAt
	}

	res, err := j.db.ExecContext(ctx, `
		UPDATE submission
		SET
			status = ?,
			http_status = ?,
			error = ?,
			finished_at = ?
		WHERE id = ?`,
		s.Status,
		s.HTTPStatus,
		s.Error,
		finishedAt.UTC(),
		s.ID,
	)
	if err != nil {
		return errors.Wrap(err, "journal.finished")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "journal.finished.verify")
	}
	if n < 1 {
		return errors.Wrapf(ErrNotFound, "journal.finished %s", s.ID)
	}
	return nil
}

func (j *Journal) Get(ctx context.Context, id string) (model.Submission, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT
			id, session, pozo_numero, conexiones, fotos,
			status, http_status, error, data,
			queued_at, finished_at
		FROM submission
		WHERE id = ?`,
		id,
	)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s, errors.Wrapf(ErrNotFound, "journal.get %s", id)
	}
	return s, errors.Wrap(err, "journal.get")
}

// List returns the attempts of a session, newest first.
func (j *Journal) List(ctx context.Context, session string) ([]model.Submission, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT
			id, session, pozo_numero, conexiones, fotos,
			status, http_status, error, '',
			queued_at, finished_at
		FROM submission
		WHERE session = ?
		ORDER BY queued_at DESC, rowid DESC`,
		session,
	)
	if err != nil {
		return nil, errors.Wrap(err, "journal.list")
	}
	defer rows.Close()

	submissions := []model.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, errors.Wrap(err, "journal.list.scan")
		}
		submissions = append(submissions, s)
	}
	return submissions, errors.Wrap(rows.Err(), "journal.list")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (s model.Submission, err error) {
	var finishedAt sql.NullTime
	err = row.Scan(
		&s.ID, &s.Session, &s.PozoNumero, &s.Conexiones, &s.Fotos,
		&s.Status, &s.HTTPStatus, &s.Error, &s.Data,
		&s.QueuedAt, &finishedAt,
	)
	if err != nil {
		return
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		s.FinishedAt = &t
	}
	return
}

package store

import (
	"context"

	"interview-scheduler/internal/model"
)

// DirectoryRepository reads employer, job and candidate records owned by other modules.
type DirectoryRepository struct {
	db DB
}

func NewDirectoryRepository(db DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) GetEmployer(ctx context.Context, id string) (*model.Employer, error) {
	var e model.Employer
	err := r.db.QueryRow(ctx,
		`SELECT id, company_name, contact_name, email FROM employers WHERE id = $1`, id,
	).Scan(&e.ID, &e.CompanyName, &e.ContactName, &e.Email)
	if err != nil {
		return nil, notFound(err, "employer")
	}
	return &e, nil
}

func (r *DirectoryRepository) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	err := r.db.QueryRow(ctx,
		`SELECT id, employer_id, title, location FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.EmployerID, &j.Title, &j.Location)
	if err != nil {
		return nil, notFound(err, "job")
	}
	return &j, nil
}

func (r *DirectoryRepository) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	var c model.Candidate
	err := r.db.QueryRow(ctx,
		`SELECT id, name, email, phone FROM candidates WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if err != nil {
		return nil, notFound(err, "candidate")
	}
	return &c, nil
}

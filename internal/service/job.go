package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/college-forum/internal/access"
	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/repository"
	"github.com/sakif/college-forum/internal/session"
	"github.com/sakif/college-forum/internal/subscription"
)

// JobInput is a job listing as submitted by an administrator.
type JobInput struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Link        string `json:"link"`
	TargetYear  string `json:"targetYear"`
}

// JobService runs the job board. Only administrators post or remove
// listings; everyone can read them.
type JobService struct {
	jobs   JobRepository
	policy *access.Policy
	logger *slog.Logger
}

func NewJobService(jobs JobRepository, policy *access.Policy, logger *slog.Logger) *JobService {
	return &JobService{jobs: jobs, policy: policy, logger: logger}
}

func (s *JobService) Create(ctx context.Context, in JobInput) (*model.JobListing, error) {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperror.AuthRequired("post a job listing")
	}
	if !s.policy.IsAdmin(ctx, p) {
		return nil, apperror.Forbidden("only administrators can post job listings")
	}

	job, err := validateJob(in)
	if err != nil {
		return nil, err
	}

	id, err := s.jobs.Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("creating job listing: %w", err)
	}
	s.logger.Info("job listing created",
		slog.String("id", id),
		slog.String("company", job.Company),
		slog.String("targetYear", string(job.TargetYear)),
	)
	return s.jobs.Get(ctx, id)
}

func validateJob(in JobInput) (repository.NewJob, error) {
	job := repository.NewJob{
		Title:       strings.TrimSpace(in.Title),
		Company:     strings.TrimSpace(in.Company),
		Location:    strings.TrimSpace(in.Location),
		Description: strings.TrimSpace(in.Description),
		Link:        strings.TrimSpace(in.Link),
	}

	switch {
	case job.Title == "":
		return job, apperror.ValidationFailed("title", "title is required")
	case job.Company == "":
		return job, apperror.ValidationFailed("company", "company is required")
	case job.Description == "":
		return job, apperror.ValidationFailed("description", "description is required")
	}

	year, err := model.ParseTargetYear(strings.TrimSpace(in.TargetYear))
	if err != nil {
		return job, apperror.ValidationFailed("targetYear", err.Error())
	}
	job.TargetYear = year

	if job.Link != "" {
		u, err := url.ParseRequestURI(job.Link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return job, apperror.ValidationFailed("link", "link must be an http or https URL")
		}
	}
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id string) (*model.JobListing, error) {
	return s.jobs.Get(ctx, id)
}

func (s *JobService) List(ctx context.Context, q repository.JobQuery) ([]model.JobListing, error) {
	return s.jobs.List(ctx, q)
}

// Delete removes a listing. Administrators only.
func (s *JobService) Delete(ctx context.Context, id string) error {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return apperror.AuthRequired("remove a job listing")
	}
	if !s.policy.IsAdmin(ctx, p) {
		return apperror.Forbidden("only administrators can remove job listings")
	}
	return s.jobs.Delete(ctx, id)
}

func (s *JobService) Subscribe(q repository.JobQuery) subscription.SubscribeFunc[model.JobListing] {
	return func(onChange func(repository.Snapshot[model.JobListing]), onError func(error)) (repository.Unsubscribe, error) {
		return s.jobs.Subscribe(q, onChange, onError)
	}
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/repository"
)

func validJob() JobInput {
	return JobInput{
		Title:       "Backend Intern",
		Company:     "Acme",
		Location:    "Remote",
		Description: "Go services",
		Link:        "https://acme.example/jobs/1",
		TargetYear:  "3rd",
	}
}

func TestJobService_CreateAdminOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.jobSvc.Create(context.Background(), validJob())
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)

	_, err = f.jobSvc.Create(as(alice), validJob())
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	job, err := f.jobSvc.Create(as(admin), validJob())
	require.NoError(t, err)
	assert.Equal(t, "Acme", job.Company)
	assert.Equal(t, model.TargetYear("3rd"), job.TargetYear)
	assert.Equal(t, "ops", job.PostedBy)
}

func TestValidateJob(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*JobInput)
		wantField string
	}{
		{"valid", func(*JobInput) {}, ""},
		{"no link is fine", func(in *JobInput) { in.Link = "" }, ""},
		{"missing title", func(in *JobInput) { in.Title = " " }, "title"},
		{"missing company", func(in *JobInput) { in.Company = "" }, "company"},
		{"missing description", func(in *JobInput) { in.Description = "" }, "description"},
		{"unknown year", func(in *JobInput) { in.TargetYear = "5th" }, "targetYear"},
		{"ftp link", func(in *JobInput) { in.Link = "ftp://acme.example" }, "link"},
		{"relative link", func(in *JobInput) { in.Link = "/jobs/1" }, "link"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validJob()
			tt.mutate(&in)
			_, err := validateJob(in)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}

func TestJobService_ListByTargetYear(t *testing.T) {
	f := newFixture(t)
	for _, year := range []string{"1st", "final", "final"} {
		in := validJob()
		in.TargetYear = year
		_, err := f.jobSvc.Create(as(admin), in)
		require.NoError(t, err)
	}

	finals, err := f.jobSvc.List(context.Background(), repository.JobQuery{TargetYear: model.TargetYear("final")})
	require.NoError(t, err)
	assert.Len(t, finals, 2)

	all, err := f.jobSvc.List(context.Background(), repository.JobQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestJobService_DeleteAdminOnly(t *testing.T) {
	f := newFixture(t)
	job, err := f.jobSvc.Create(as(admin), validJob())
	require.NoError(t, err)

	assert.ErrorIs(t, f.jobSvc.Delete(as(alice), job.ID), apperror.ErrForbidden)
	require.NoError(t, f.jobSvc.Delete(as(admin), job.ID))
	assert.ErrorIs(t, f.jobSvc.Delete(as(admin), job.ID), apperror.ErrNotFound)
}

package repository

import (
	"context"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/session"
	"github.com/sakif/college-forum/internal/store"
)

const (
	fieldCompany     = "company"
	fieldLocation    = "location"
	fieldDescription = "description"
	fieldLink        = "link"
	fieldTargetYear  = "targetYear"
	fieldPostedBy    = "postedBy"
)

type NewJob struct {
	Title       string
	Company     string
	Location    string
	Description string
	Link        string
	TargetYear  model.TargetYear
}

// JobQuery selects listings, newest first, optionally for one target year.
type JobQuery struct {
	TargetYear model.TargetYear
}

func (q JobQuery) storeQuery() store.Query {
	sq := store.Query{
		Collection: store.JobsCollection,
		OrderBy:    store.OrderBy{Field: fieldCreatedAt, Desc: true},
	}
	if q.TargetYear != "" {
		sq = sq.Where(fieldTargetYear, string(q.TargetYear))
	}
	return sq
}

type JobRepository struct {
	store store.Store
}

func NewJobRepository(s store.Store) *JobRepository {
	return &JobRepository{store: s}
}

func (r *JobRepository) Create(ctx context.Context, in NewJob) (string, error) {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return "", apperror.AuthRequired("post a job listing")
	}
	return r.store.Create(ctx, store.JobsCollection, store.Fields{
		fieldTitle:       in.Title,
		fieldCompany:     in.Company,
		fieldLocation:    in.Location,
		fieldDescription: in.Description,
		fieldLink:        in.Link,
		fieldTargetYear:  string(in.TargetYear),
		fieldPostedBy:    p.ID,
		fieldAuthor:      p.DisplayName,
		fieldCreatedAt:   store.ServerTimestamp(),
	})
}

func (r *JobRepository) Get(ctx context.Context, id string) (*model.JobListing, error) {
	doc, err := r.store.Get(ctx, store.JobsCollection, id)
	if err != nil {
		return nil, renameNotFound(err, "job listing", id)
	}
	j := decodeJob(*doc)
	return &j, nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	return renameNotFound(r.store.Delete(ctx, store.JobsCollection, id), "job listing", id)
}

func (r *JobRepository) List(ctx context.Context, q JobQuery) ([]model.JobListing, error) {
	docs, err := r.store.Query(ctx, q.storeQuery())
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, decodeJob), nil
}

func (r *JobRepository) Subscribe(
	q JobQuery,
	onChange func(Snapshot[model.JobListing]),
	onError func(error),
) (Unsubscribe, error) {
	return subscribe(r.store, q.storeQuery(), decodeJob, onChange, onError)
}

func decodeJob(doc store.Document) model.JobListing {
	f := doc.Fields
	return model.JobListing{
		ID:          doc.ID,
		Title:       f.String(fieldTitle),
		Company:     f.String(fieldCompany),
		Location:    f.String(fieldLocation),
		Description: f.String(fieldDescription),
		Link:        f.String(fieldLink),
		TargetYear:  model.TargetYear(f.String(fieldTargetYear)),
		PostedBy:    f.String(fieldPostedBy),
		AuthorName:  f.String(fieldAuthor),
		CreatedAt:   f.Time(fieldCreatedAt),
	}
}

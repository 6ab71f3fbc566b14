package repository

import (
	"context"

	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/store"
)

const (
	fieldDisplayName = "displayName"
	fieldEmail       = "email"
	fieldPhotoURL    = "photoURL"
	fieldDepartment  = "department"
	fieldYear        = "year"
	fieldBio         = "bio"
	fieldSkills      = "skills"
	fieldInterests   = "interests"
	fieldPremium     = "premium"
	fieldRoles       = "roles"
	fieldLastUpdated = "lastUpdated"
)

// ProfileUpdate names the fields to merge into a profile. Nil pointers and
// nil slices are left unchanged; an empty non-nil slice clears the list.
type ProfileUpdate struct {
	DisplayName *string
	Department  *string
	Year        *string
	Bio         *string
	Skills      []string
	Interests   []string
}

type ProfileRepository struct {
	store store.Store
}

func NewProfileRepository(s store.Store) *ProfileRepository {
	return &ProfileRepository{store: s}
}

// EnsureExists creates users/{p.ID} with defaults when it is missing and
// reports whether it did. An existing profile is never touched.
func (r *ProfileRepository) EnsureExists(ctx context.Context, p model.Principal) (bool, error) {
	return r.store.CreateIfAbsent(ctx, store.UsersCollection, p.ID, store.Fields{
		fieldUID:         p.ID,
		fieldDisplayName: p.DisplayName,
		fieldEmail:       p.Email,
		fieldPhotoURL:    p.AvatarURL,
		fieldDepartment:  "",
		fieldYear:        "",
		fieldBio:         "",
		fieldSkills:      []string{},
		fieldInterests:   []string{},
		fieldPremium:     false,
		fieldRoles:       []string{},
		fieldLastUpdated: store.ServerTimestamp(),
	})
}

// Save merges the named fields into the profile, creating it if needed.
func (r *ProfileRepository) Save(ctx context.Context, id string, u ProfileUpdate) error {
	fields := store.Fields{fieldLastUpdated: store.ServerTimestamp()}
	setString := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	setString(fieldDisplayName, u.DisplayName)
	setString(fieldDepartment, u.Department)
	setString(fieldYear, u.Year)
	setString(fieldBio, u.Bio)
	if u.Skills != nil {
		fields[fieldSkills] = u.Skills
	}
	if u.Interests != nil {
		fields[fieldInterests] = u.Interests
	}
	return r.store.SetMerge(ctx, store.UsersCollection, id, fields)
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (*model.Profile, error) {
	doc, err := r.store.Get(ctx, store.UsersCollection, id)
	if err != nil {
		return nil, renameNotFound(err, "profile", id)
	}
	p := decodeProfile(*doc)
	return &p, nil
}

func decodeProfile(doc store.Document) model.Profile {
	f := doc.Fields
	return model.Profile{
		ID:          doc.ID,
		DisplayName: f.String(fieldDisplayName),
		Email:       f.String(fieldEmail),
		PhotoURL:    f.String(fieldPhotoURL),
		Department:  f.String(fieldDepartment),
		Year:        f.String(fieldYear),
		Bio:         f.String(fieldBio),
		Skills:      f.Strings(fieldSkills),
		Interests:   f.Strings(fieldInterests),
		Premium:     f.Bool(fieldPremium),
		Roles:       f.Strings(fieldRoles),
		LastUpdated: f.Time(fieldLastUpdated),
	}
}

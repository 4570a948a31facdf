package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

func (repo *userRepository) CreateProfile(_ context.Context, usr user.User, prof user.Profile) (user.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, err := repo.createUser(usr)
	if err != nil {
		return user.Profile{}, err
	}
	prof.ID = uuid.New().String()
	prof.UserID = usr.ID
	prof.User = user.User{}
	repo.db.profiles[prof.ID] = &prof

	prof.User = usr
	return prof, nil
}

// withOwner returns a copy of prof carrying its owner.
func (repo *userRepository) withOwner(prof user.Profile) user.Profile {
	if usr, ok := repo.db.users[prof.UserID]; ok {
		prof.User = *usr
	}
	return prof
}

func (repo *userRepository) GetProfile(_ context.Context, filter user.ProfileFilter, _ ...core.DBExecutor) (user.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, prof := range repo.db.profiles {
		if prof.Kind != filter.Kind {
			continue
		}
		if (filter.ID != "" && prof.ID == filter.ID) || (filter.ID == "" && filter.UserID != "" && prof.UserID == filter.UserID) {
			return repo.withOwner(*prof), nil
		}
	}
	return user.Profile{}, user.ErrProfileNotFound
}

func (repo *userRepository) QueryProfiles(_ context.Context, kind user.ProfileKind, page *core.Page, _ ...core.DBExecutor) ([]user.Profile, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	profs := make([]user.Profile, 0)
	for _, prof := range repo.db.profiles {
		if prof.Kind == kind {
			profs = append(profs, repo.withOwner(*prof))
		}
	}
	sort.SliceStable(profs, func(i, j int) bool {
		if !profs[i].CreatedAt.Equal(profs[j].CreatedAt) {
			return profs[i].CreatedAt.After(profs[j].CreatedAt)
		}
		return profs[i].ID < profs[j].ID
	})

	start, end := paginate(len(profs), page)
	return profs[start:end], len(profs), nil
}

func (repo *userRepository) GetProfilesByIDs(_ context.Context, kind user.ProfileKind, ids []string, _ ...core.DBExecutor) ([]user.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	profs := make([]user.Profile, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		prof, ok := repo.db.profiles[id]
		if !ok || prof.Kind != kind || seen[id] {
			continue
		}
		seen[id] = true
		profs = append(profs, repo.withOwner(*prof))
	}
	sort.SliceStable(profs, func(i, j int) bool {
		if !profs[i].CreatedAt.Equal(profs[j].CreatedAt) {
			return profs[i].CreatedAt.After(profs[j].CreatedAt)
		}
		return profs[i].ID < profs[j].ID
	})
	return profs, nil
}

func (repo *userRepository) UpdateProfile(_ context.Context, prof user.Profile, _ ...core.DBExecutor) (user.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.profiles[prof.ID]
	if !ok {
		return user.Profile{}, user.ErrProfileNotFound
	}
	orig.Description = prof.Description
	orig.UpdatedAt = prof.UpdatedAt
	return repo.withOwner(*orig), nil
}

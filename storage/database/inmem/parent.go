package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/parent"
	"github.com/maktab-uz/maktab/core/user"
)

type parentRepository struct {
	db *DB
}

var _ parent.Repository = (*parentRepository)(nil) // interface compliance check

// NewParentRepository returns a parent.Repository over db.
func NewParentRepository(db *DB) parent.Repository {
	return &parentRepository{db: db}
}

// copyParent returns p with its own copy of the student ids.
func copyParent(p parent.Parent) parent.Parent {
	p.StudentIDs = append([]string{}, p.StudentIDs...)
	return p
}

func (repo *parentRepository) CreateParent(_ context.Context, p parent.Parent) (parent.Parent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p.ID = uuid.New().String()
	p = copyParent(p)
	stored := copyParent(p)
	repo.db.parents[p.ID] = &stored
	return p, nil
}

func (repo *parentRepository) QueryParents(_ context.Context, page *core.Page) ([]parent.Parent, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	parents := make([]parent.Parent, 0, len(repo.db.parents))
	for _, p := range repo.db.parents {
		parents = append(parents, copyParent(*p))
	}
	sort.SliceStable(parents, func(i, j int) bool {
		if !parents[i].CreatedAt.Equal(parents[j].CreatedAt) {
			return parents[i].CreatedAt.After(parents[j].CreatedAt)
		}
		return parents[i].ID < parents[j].ID
	})

	start, end := paginate(len(parents), page)
	return parents[start:end], len(parents), nil
}

func (repo *parentRepository) GetParent(_ context.Context, id string) (parent.Parent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	p, ok := repo.db.parents[id]
	if !ok {
		return parent.Parent{}, parent.ErrNotFound
	}
	return copyParent(*p), nil
}

func (repo *parentRepository) UpdateParent(_ context.Context, p parent.Parent) (parent.Parent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.parents[p.ID]; !ok {
		return parent.Parent{}, parent.ErrNotFound
	}
	p = copyParent(p)
	stored := copyParent(p)
	repo.db.parents[p.ID] = &stored
	return p, nil
}

func (repo *parentRepository) DeleteParent(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.parents[id]; !ok {
		return parent.ErrNotFound
	}
	delete(repo.db.parents, id)
	return nil
}

func (repo *parentRepository) CheckStudents(_ context.Context, ids []string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, id := range ids {
		prof, ok := repo.db.profiles[id]
		if !ok || prof.Kind != user.KindStudent {
			return parent.ErrUnknownStudents
		}
	}
	return nil
}

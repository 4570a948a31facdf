package inmemdb

import (
	"sync"

	"github.com/maktab-uz/maktab/core/parent"
	"github.com/maktab-uz/maktab/core/user"
)

// DB keeps the tables in memory. One lock guards every table so multi-table writes stay atomic.
type DB struct {
	sync.RWMutex
	users    map[string]*user.User
	profiles map[string]*user.Profile
	parents  map[string]*parent.Parent
}

func Open() *DB {
	return &DB{
		users:    make(map[string]*user.User),
		profiles: make(map[string]*user.Profile),
		parents:  make(map[string]*parent.Parent),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.users = make(map[string]*user.User)
	db.profiles = make(map[string]*user.Profile)
	db.parents = make(map[string]*parent.Parent)
}

// unlinkStudent drops the student profile of id from every parent. The caller holds the lock.
func (db *DB) unlinkStudent(id string) {
	for _, p := range db.parents {
		ids := p.StudentIDs[:0]
		for _, sid := range p.StudentIDs {
			if sid != id {
				ids = append(ids, sid)
			}
		}
		p.StudentIDs = ids
	}
}

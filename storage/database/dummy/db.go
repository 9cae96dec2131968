package dummydb

import (
	"sync"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/subject"
	"github.com/trezcool/mahudhurio/core/user"
)

type (
	DB struct {
		session *sessionTable
		mark    *markTable
		user    *userTable
		subject *subjectTable
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*attendance.Session
	}

	markTable struct {
		sync.RWMutex
		table map[string]*attendance.Mark // "<sessionID>/<studentID>" -> Mark
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	subjectTable struct {
		sync.RWMutex
		table map[string]*subject.Subject
	}
)

func Open() (*DB, error) {
	db := &DB{
		session: &sessionTable{table: make(map[string]*attendance.Session)},
		mark:    &markTable{table: make(map[string]*attendance.Mark)},
		user:    &userTable{table: make(map[string]*user.User)},
		subject: &subjectTable{table: make(map[string]*subject.Subject)},
	}
	return db, nil
}

// Package dummydb provides in-memory repository implementations for tests.
package dummydb

import (
	"fmt"
	"sync"

	"github.com/darasahub/darasa/core/course"
	"github.com/darasahub/darasa/core/submission"
	"github.com/darasahub/darasa/core/user"
)

type (
	DB struct {
		user       *userTable
		course     *courseTable
		submission *submissionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		sync.RWMutex
		courses     map[string]*course.Course
		assignments map[string]*course.Assignment
		enrollments []*course.Enrollment // insertion order == ascending enrollment ID
	}

	submissionTable struct {
		sync.RWMutex
		table  map[string]*submission.Submission
		grades map[string]*submission.Grade
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		course: &courseTable{
			courses:     make(map[string]*course.Course),
			assignments: make(map[string]*course.Assignment),
		},
		submission: &submissionTable{
			table:  make(map[string]*submission.Submission),
			grades: make(map[string]*submission.Grade),
		},
	}
	return db, nil
}

var pkCount int
var pkMutex sync.Mutex

// nextPK yields zero-padded sequential IDs so "order by ID ascending" matches
// insertion order in tests.
func nextPK() string {
	pkMutex.Lock()
	defer pkMutex.Unlock()
	pkCount++
	return fmt.Sprintf("%08d", pkCount)
}

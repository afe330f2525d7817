package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/trackle/core/classroom"
	"github.com/trezcool/trackle/core/user"
)

type tables struct {
	users           map[int64]user.User
	students        map[int64]bool
	subjects        map[int64]classroom.Subject
	studentSubjects map[int64][]int64 // {student_id: subject_ids}
	requirements    map[int64]classroom.Requirement
	questions       map[int64]classroom.Question
	answers         map[int64]classroom.Answer
	taken           map[int64]classroom.TakenRequirement
	studentAnswers  map[int64]classroom.StudentAnswer
}

// DB is an in-memory database, guarded by a single mutex. Transactions hold the mutex
// and restore a snapshot of the tables when rolled back.
type DB struct {
	mu    sync.Mutex
	pkSeq int64
	tables
}

func NewDB() *DB {
	return &DB{tables: tables{
		users:           make(map[int64]user.User),
		students:        make(map[int64]bool),
		subjects:        make(map[int64]classroom.Subject),
		studentSubjects: make(map[int64][]int64),
		requirements:    make(map[int64]classroom.Requirement),
		questions:       make(map[int64]classroom.Question),
		answers:         make(map[int64]classroom.Answer),
		taken:           make(map[int64]classroom.TakenRequirement),
		studentAnswers:  make(map[int64]classroom.StudentAnswer),
	}}
}

func (db *DB) nextPK() int64 {
	db.pkSeq++
	return db.pkSeq
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (db *DB) snapshot() (tables, int64) {
	ss := make(map[int64][]int64, len(db.studentSubjects))
	for k, ids := range db.studentSubjects {
		ss[k] = append([]int64(nil), ids...)
	}
	return tables{
		users:           cloneMap(db.users),
		students:        cloneMap(db.students),
		subjects:        cloneMap(db.subjects),
		studentSubjects: ss,
		requirements:    cloneMap(db.requirements),
		questions:       cloneMap(db.questions),
		answers:         cloneMap(db.answers),
		taken:           cloneMap(db.taken),
		studentAnswers:  cloneMap(db.studentAnswers),
	}, db.pkSeq
}

// conn is a repository's handle on the DB; a locked conn runs within a transaction already holding the mutex.
type conn struct {
	db     *DB
	locked bool
}

func (c conn) lock() func() {
	if c.locked {
		return func() {}
	}
	c.db.mu.Lock()
	return c.db.mu.Unlock
}

// runInTx runs fn with a locked conn, restoring the tables when fn fails.
func (c conn) runInTx(_ context.Context, fn func(c conn) error) error {
	if c.locked {
		return fn(c)
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	snap, seq := c.db.snapshot()
	if err := fn(conn{db: c.db, locked: true}); err != nil {
		c.db.tables = snap
		c.db.pkSeq = seq
		return err
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
	"github.com/stemsi/elearn-backend/internal/scoring"
)

var errStoreDown = errors.New("store unavailable")

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type pair struct{ student, item int }

// memEnrollments is a transactional in-memory EnrollmentStore: WithPairLock
// works on a copy and only publishes it when fn succeeds.
type memEnrollments struct {
	mu       sync.Mutex
	nextID   int
	active   map[pair]model.Enrollment
	finished map[pair]model.FinishedCourse

	failInsertFinished bool
	failFindFinished   bool
	failLock           bool
}

func newMemEnrollments() *memEnrollments {
	return &memEnrollments{
		active:   map[pair]model.Enrollment{},
		finished: map[pair]model.FinishedCourse{},
	}
}

func (m *memEnrollments) WithPairLock(ctx context.Context, studentID, courseID int, fn func(tx repository.EnrollmentTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLock {
		return errStoreDown
	}

	tx := &memEnrollmentTx{
		store:    m,
		nextID:   m.nextID,
		active:   make(map[pair]model.Enrollment, len(m.active)),
		finished: make(map[pair]model.FinishedCourse, len(m.finished)),
	}
	for k, v := range m.active {
		tx.active[k] = v
	}
	for k, v := range m.finished {
		tx.finished[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}
	m.nextID = tx.nextID
	m.active = tx.active
	m.finished = tx.finished
	return nil
}

func (m *memEnrollments) GetEnrollment(ctx context.Context, studentID, courseID int) (*model.EnrollmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.active[pair{studentID, courseID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &model.EnrollmentDetail{Enrollment: e}, nil
}

func (m *memEnrollments) GetFinishedCourse(ctx context.Context, studentID, courseID int) (*model.FinishedCourseDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.finished[pair{studentID, courseID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &model.FinishedCourseDetail{FinishedCourse: f}, nil
}

func (m *memEnrollments) ListInProgress(ctx context.Context, studentID int) ([]model.EnrollmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []model.EnrollmentDetail{}
	for k, e := range m.active {
		if k.student == studentID {
			list = append(list, model.EnrollmentDetail{Enrollment: e})
		}
	}
	return list, nil
}

func (m *memEnrollments) ListCompleted(ctx context.Context, studentID int) ([]model.FinishedCourseDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []model.FinishedCourseDetail{}
	for k, f := range m.finished {
		if k.student == studentID {
			list = append(list, model.FinishedCourseDetail{FinishedCourse: f})
		}
	}
	return list, nil
}

// states reports whether the pair has an enrollment and a finished record.
func (m *memEnrollments) states(studentID, courseID int) (enrolled, finished bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, enrolled = m.active[pair{studentID, courseID}]
	_, finished = m.finished[pair{studentID, courseID}]
	return enrolled, finished
}

func (m *memEnrollments) setProgress(studentID, courseID int, pct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.active[pair{studentID, courseID}]
	e.ProgressPercentage = pct
	m.active[pair{studentID, courseID}] = e
}

type memEnrollmentTx struct {
	store    *memEnrollments
	nextID   int
	active   map[pair]model.Enrollment
	finished map[pair]model.FinishedCourse
}

func (t *memEnrollmentTx) FindEnrollment(ctx context.Context, studentID, courseID int) (*model.Enrollment, error) {
	e, ok := t.active[pair{studentID, courseID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (t *memEnrollmentTx) FindFinished(ctx context.Context, studentID, courseID int) (*model.FinishedCourse, error) {
	if t.store.failFindFinished {
		return nil, errStoreDown
	}
	f, ok := t.finished[pair{studentID, courseID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &f, nil
}

func (t *memEnrollmentTx) InsertEnrollment(ctx context.Context, e *model.Enrollment) error {
	t.nextID++
	e.ID = t.nextID
	e.StartedAt = time.Now()
	e.UpdatedAt = e.StartedAt
	t.active[pair{e.StudentID, e.CourseID}] = *e
	return nil
}

func (t *memEnrollmentTx) UpdateProgress(ctx context.Context, enrollmentID int, pct float64) error {
	for k, e := range t.active {
		if e.ID == enrollmentID {
			e.ProgressPercentage = pct
			t.active[k] = e
		}
	}
	return nil
}

func (t *memEnrollmentTx) DeleteEnrollment(ctx context.Context, enrollmentID int) error {
	for k, e := range t.active {
		if e.ID == enrollmentID {
			delete(t.active, k)
		}
	}
	return nil
}

func (t *memEnrollmentTx) InsertFinished(ctx context.Context, f *model.FinishedCourse) error {
	if t.store.failInsertFinished {
		return errStoreDown
	}
	t.nextID++
	f.ID = t.nextID
	t.finished[pair{f.StudentID, f.CourseID}] = *f
	return nil
}

// memCourses serves a fixed set of courses.
type memCourses struct {
	courses map[int]*model.Course
}

func newMemCourses(cs ...model.Course) *memCourses {
	m := &memCourses{courses: map[int]*model.Course{}}
	for i := range cs {
		c := cs[i]
		m.courses[c.ID] = &c
	}
	return m
}

func (m *memCourses) ListPaginated(ctx context.Context, limit, offset int) ([]model.Course, int, error) {
	list := []model.Course{}
	for _, c := range m.courses {
		list = append(list, *c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	total := len(list)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return list[offset:end], total, nil
}

func (m *memCourses) GetByID(ctx context.Context, id int) (*model.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memCourses) Create(ctx context.Context, c *model.Course) error {
	c.ID = len(m.courses) + 100
	m.courses[c.ID] = c
	return nil
}

func (m *memCourses) Delete(ctx context.Context, id int) error {
	delete(m.courses, id)
	return nil
}

// memResults is an in-memory ResultStore honouring the pass lock.
type memResults struct {
	mu      sync.Mutex
	nextID  int
	rows    map[pair]model.TestResult
	writes  int
	failGet bool
}

func newMemResults() *memResults {
	return &memResults{rows: map[pair]model.TestResult{}}
}

func (m *memResults) Get(ctx context.Context, studentID, testID int) (*model.TestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errStoreDown
	}
	r, ok := m.rows[pair{studentID, testID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &r, nil
}

func (m *memResults) SaveUnlessPassed(ctx context.Context, res *model.TestResult, passingScore float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pair{res.StudentID, res.TestID}
	if prev, ok := m.rows[k]; ok {
		if prev.Score > passingScore {
			return repository.ErrResultLocked
		}
		res.ID = prev.ID
	} else {
		m.nextID++
		res.ID = m.nextID
	}
	res.SubmittedAt = time.Now()
	m.rows[k] = *res
	m.writes++
	return nil
}

func (m *memResults) ListByStudent(ctx context.Context, studentID int) ([]model.TestResultDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []model.TestResultDetail{}
	for k, r := range m.rows {
		if k.student == studentID {
			list = append(list, model.TestResultDetail{TestResult: r})
		}
	}
	return list, nil
}

func (m *memResults) ListByTest(ctx context.Context, testID int) ([]model.StudentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []model.StudentResult{}
	for k, r := range m.rows {
		if k.item == testID {
			list = append(list, model.StudentResult{TestResult: r})
		}
	}
	return list, nil
}

// memTests is an in-memory TestStore and AnswerKeySource.
type memTests struct {
	mu        sync.Mutex
	tests     map[int]*model.Test
	questions map[int][]model.Question
	nextQ     int
	keyLoads  int
}

func newMemTests() *memTests {
	return &memTests{tests: map[int]*model.Test{}, questions: map[int][]model.Question{}}
}

func (m *memTests) add(t model.Test, answers ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[t.ID] = &t
	for _, a := range answers {
		m.nextQ++
		m.questions[t.ID] = append(m.questions[t.ID], model.Question{ID: m.nextQ, TestID: t.ID, CorrectAnswer: a})
	}
}

func (m *memTests) questionIDs(testID int) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int{}
	for _, q := range m.questions[testID] {
		ids = append(ids, q.ID)
	}
	return ids
}

func (m *memTests) GetByID(ctx context.Context, id int) (*model.Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *memTests) Create(ctx context.Context, t *model.Test, questions []model.QuestionInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tests {
		if existing.CourseID == t.CourseID {
			return repository.ErrDuplicateTest
		}
	}
	t.ID = len(m.tests) + 1
	m.tests[t.ID] = t
	for _, q := range questions {
		m.nextQ++
		m.questions[t.ID] = append(m.questions[t.ID], toQuestion(m.nextQ, t.ID, q))
	}
	return nil
}

func (m *memTests) ListQuestions(ctx context.Context, testID int) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Question{}, m.questions[testID]...), nil
}

func (m *memTests) ReplaceQuestions(ctx context.Context, testID int, questions []model.QuestionInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := map[int]bool{}
	for _, q := range m.questions[testID] {
		stored[q.ID] = true
	}
	next := []model.Question{}
	for _, q := range questions {
		if q.ID != nil {
			if !stored[*q.ID] {
				return repository.ErrQuestionNotInTest
			}
			next = append(next, toQuestion(*q.ID, testID, q))
			continue
		}
		m.nextQ++
		next = append(next, toQuestion(m.nextQ, testID, q))
	}
	m.questions[testID] = next
	return nil
}

func (m *memTests) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tests, id)
	delete(m.questions, id)
	return nil
}

func (m *memTests) AnswerKey(ctx context.Context, testID int) ([]scoring.KeyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyLoads++
	key := []scoring.KeyEntry{}
	for _, q := range m.questions[testID] {
		key = append(key, scoring.KeyEntry{QuestionID: q.ID, Correct: q.CorrectAnswer})
	}
	return key, nil
}

func toQuestion(id, testID int, q model.QuestionInput) model.Question {
	return model.Question{
		ID:            id,
		TestID:        testID,
		Prompt:        q.Prompt,
		OptionA:       q.OptionA,
		OptionB:       q.OptionB,
		OptionC:       q.OptionC,
		OptionD:       q.OptionD,
		CorrectAnswer: q.CorrectAnswer,
	}
}

// memAccounts is an in-memory AccountStore.
type memAccounts struct {
	mu     sync.Mutex
	nextID int
	byRole map[model.Role]map[int]model.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byRole: map[model.Role]map[int]model.Account{
		model.RoleAdmin:   {},
		model.RoleTeacher: {},
		model.RoleStudent: {},
	}}
}

func (m *memAccounts) GetByEmail(ctx context.Context, role model.Role, email string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byRole[role] {
		if a.AccountEmail() == email {
			return a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memAccounts) GetByID(ctx context.Context, role model.Role, id int) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byRole[role][id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func (m *memAccounts) Create(ctx context.Context, account model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	role := account.AccountRole()
	for _, a := range m.byRole[role] {
		if a.AccountEmail() == account.AccountEmail() {
			return repository.ErrDuplicateEmail
		}
	}
	m.nextID++
	switch a := account.(type) {
	case *model.AdminAccount:
		a.ID = m.nextID
	case *model.TeacherAccount:
		a.ID = m.nextID
	case *model.StudentAccount:
		a.ID = m.nextID
	}
	m.byRole[role][m.nextID] = account
	return nil
}

func (m *memAccounts) SetActivation(ctx context.Context, role model.Role, id int, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch a := m.byRole[role][id].(type) {
	case *model.TeacherAccount:
		a.IsActivated = active
	case *model.StudentAccount:
		a.IsActivated = active
	default:
		return pgx.ErrNoRows
	}
	return nil
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }

// Package memstore is an in-memory store.Store used by tests and local runs
// without Postgres. It enforces the same keys, constraints and orderings as
// the SQL schema. A transaction holds the store lock from start to finish and
// works on a copy that replaces the live state on commit.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/patch"
	"github.com/JunoAX/familytasks-go/internal/store"
)

type state struct {
	users    map[int64]models.User
	families map[int64]models.Family
	tasks    map[int64]models.Task
	deps     map[int64]models.Dependency
	subtasks map[int64]models.Subtask
	links    map[int64]models.TaskLink
	nextID   map[string]int64
}

func newState() *state {
	return &state{
		users:    map[int64]models.User{},
		families: map[int64]models.Family{},
		tasks:    map[int64]models.Task{},
		deps:     map[int64]models.Dependency{},
		subtasks: map[int64]models.Subtask{},
		links:    map[int64]models.TaskLink{},
		nextID:   map[string]int64{},
	}
}

func (s *state) clone() *state {
	c := &state{
		users:    make(map[int64]models.User, len(s.users)),
		families: make(map[int64]models.Family, len(s.families)),
		tasks:    make(map[int64]models.Task, len(s.tasks)),
		deps:     make(map[int64]models.Dependency, len(s.deps)),
		subtasks: make(map[int64]models.Subtask, len(s.subtasks)),
		links:    make(map[int64]models.TaskLink, len(s.links)),
		nextID:   make(map[string]int64, len(s.nextID)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.families {
		c.families[k] = v
	}
	for k, v := range s.tasks {
		v.Tags = slices.Clone(v.Tags)
		c.tasks[k] = v
	}
	for k, v := range s.deps {
		c.deps[k] = v
	}
	for k, v := range s.subtasks {
		c.subtasks[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	for k, v := range s.nextID {
		c.nextID[k] = v
	}
	return c
}

func (s *state) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

// Store is safe for concurrent use.
type Store struct {
	queries
	mu *sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	mu := &sync.Mutex{}
	s := &Store{
		queries: queries{st: newState(), mu: mu, clock: &clock{now: time.Now}},
		mu:      mu,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUnavailable makes every call fail with store.ErrUnavailable, the way a
// pool that cannot hand out connections does.
func (s *Store) SetUnavailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.unavailable = v
}

// Tx runs fn against a snapshot. The isolation level is ignored: transactions
// never overlap, which is at least as strong as any level requested.
func (s *Store) Tx(ctx context.Context, _ store.Isolation, fn func(q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clock.unavailable {
		return store.ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.st.clone()
	if err := fn(&queries{st: snapshot, clock: s.clock}); err != nil {
		return err
	}
	s.st = snapshot
	return nil
}

type clock struct {
	now         func() time.Time
	unavailable bool
}

// queries implements store.Queries over one state. mu is nil inside a
// transaction, where the store lock is already held.
type queries struct {
	st    *state
	mu    *sync.Mutex
	clock *clock
}

func (q *queries) enter(ctx context.Context) (func(), error) {
	unlock := func() {}
	if q.mu != nil {
		q.mu.Lock()
		unlock = q.mu.Unlock
	}
	if q.clock.unavailable {
		unlock()
		return nil, store.ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		unlock()
		return nil, err
	}
	return unlock, nil
}

func (q *queries) now() time.Time {
	return q.clock.now().UTC()
}

// Users

func (q *queries) ListUsers(ctx context.Context) ([]models.User, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	users := make([]models.User, 0, len(q.st.users))
	for _, u := range q.st.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return newer(users[i].CreatedAt, users[i].ID, users[j].CreatedAt, users[j].ID)
	})
	return users, nil
}

func (q *queries) GetUser(ctx context.Context, id int64) (*models.User, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, ok := q.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (q *queries) GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	users := []models.User{}
	for _, id := range ids {
		if u, ok := q.st.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, u := range q.st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q *queries) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, u := range q.st.users {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q *queries) UserExists(ctx context.Context, id int64) (bool, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	_, ok := q.st.users[id]
	return ok, nil
}

func (q *queries) CreateUser(ctx context.Context, u *models.User) error {
	unlock, err := q.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := q.checkUser(*u, 0); err != nil {
		return err
	}
	now := q.now()
	u.ID = q.st.id("users")
	u.CreatedAt = now
	u.UpdatedAt = now
	q.st.users[u.ID] = *u
	return nil
}

func (q *queries) UpdateUser(ctx context.Context, id int64, p patch.Patch) (*models.User, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, ok := q.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := patch.Merge(&u, p); err != nil {
		return nil, err
	}
	if err := q.checkUser(u, id); err != nil {
		return nil, err
	}
	u.UpdatedAt = q.now()
	q.st.users[id] = u
	return &u, nil
}

// checkUser enforces the unique and foreign keys of the users table.
func (q *queries) checkUser(u models.User, self int64) error {
	for id, other := range q.st.users {
		if id == self {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) {
			return store.ErrDuplicate
		}
		if u.ExternalID != nil && other.ExternalID != nil && *u.ExternalID == *other.ExternalID {
			return store.ErrDuplicate
		}
	}
	if u.FamilyID != nil {
		if _, ok := q.st.families[*u.FamilyID]; !ok {
			return store.ErrForeignKey
		}
	}
	return nil
}

func (q *queries) DeleteUser(ctx context.Context, id int64) (bool, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, ok := q.st.users[id]; !ok {
		return false, nil
	}
	delete(q.st.users, id)
	for tid, t := range q.st.tasks {
		if t.AssignedUserID != nil && *t.AssignedUserID == id {
			t.AssignedUserID = nil
			q.st.tasks[tid] = t
		}
	}
	return true, nil
}

// Families

func (q *queries) GetFamily(ctx context.Context, id int64) (*models.Family, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, ok := q.st.families[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &f, nil
}

func (q *queries) CreateFamily(ctx context.Context, f *models.Family) error {
	unlock, err := q.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	now := q.now()
	f.ID = q.st.id("family_accounts")
	f.CreatedAt = now
	f.UpdatedAt = now
	q.st.families[f.ID] = *f
	return nil
}

// Tasks

func (q *queries) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	filter = filter.Normalize()
	tasks := []models.Task{}
	for _, t := range q.st.tasks {
		if matches(t, filter) {
			t.Tags = slices.Clone(t.Tags)
			tasks = append(tasks, t)
		}
	}
	sortTasks(tasks, filter.SortBy, filter.SortOrder)
	return tasks, nil
}

func matches(t models.Task, f models.TaskFilter) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.AssignedUserID != nil && (t.AssignedUserID == nil || *t.AssignedUserID != *f.AssignedUserID) {
		return false
	}
	if f.DueDateFrom != nil && (t.DueDate == nil || t.DueDate.Before(*f.DueDateFrom)) {
		return false
	}
	if f.DueDateTo != nil && (t.DueDate == nil || t.DueDate.After(*f.DueDateTo)) {
		return false
	}
	return true
}

// sortTasks mirrors the ORDER BY the repository generates: the sort key in
// the requested direction, missing due dates last, then id in the same direction.
func sortTasks(tasks []models.Task, sortBy, order string) {
	desc := order == models.SortDesc
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		var c int
		switch sortBy {
		case models.SortByDueDate:
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				c = 0
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			default:
				c = a.DueDate.Compare(*b.DueDate)
			}
		case models.SortByPriority:
			c = models.PriorityRank(a.Priority) - models.PriorityRank(b.Priority)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func (q *queries) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, ok := q.st.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.Tags = slices.Clone(t.Tags)
	return &t, nil
}

func (q *queries) TaskExists(ctx context.Context, id int64) (bool, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	_, ok := q.st.tasks[id]
	return ok, nil
}

func (q *queries) CreateTask(ctx context.Context, t *models.Task) error {
	unlock, err := q.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityNone
	}
	if t.TaskType == "" {
		t.TaskType = models.TaskTypeOther
	}
	if err := q.checkTask(*t); err != nil {
		return err
	}
	now := q.now()
	t.ID = q.st.id("tasks")
	t.CreatedAt = now
	t.UpdatedAt = now
	stored := *t
	stored.Tags = slices.Clone(t.Tags)
	q.st.tasks[t.ID] = stored
	return nil
}

func (q *queries) UpdateTask(ctx context.Context, id int64, p patch.Patch) (*models.Task, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, ok := q.st.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := patch.Merge(&t, p); err != nil {
		return nil, err
	}
	if err := q.checkTask(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = q.now()
	t.Tags = slices.Clone(t.Tags)
	q.st.tasks[id] = t
	return &t, nil
}

func (q *queries) checkTask(t models.Task) error {
	if !slices.Contains(models.Statuses, t.Status) ||
		!slices.Contains(models.Priorities, t.Priority) ||
		!slices.Contains(models.TaskTypes, t.TaskType) ||
		t.Title == "" {
		return store.ErrCheck
	}
	if t.AssignedUserID != nil {
		if _, ok := q.st.users[*t.AssignedUserID]; !ok {
			return store.ErrForeignKey
		}
	}
	return nil
}

func (q *queries) DeleteTask(ctx context.Context, id int64) (bool, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, ok := q.st.tasks[id]; !ok {
		return false, nil
	}
	delete(q.st.tasks, id)
	for did, d := range q.st.deps {
		if d.TaskID == id || d.DependsOnTaskID == id {
			delete(q.st.deps, did)
		}
	}
	for sid, s := range q.st.subtasks {
		if s.TaskID == id {
			delete(q.st.subtasks, sid)
		}
	}
	for lid, l := range q.st.links {
		if l.TaskID == id {
			delete(q.st.links, lid)
		}
	}
	return true, nil
}

// Dependencies

// LockDependencies is a no-op: a transaction already excludes every other caller.
func (q *queries) LockDependencies(ctx context.Context) error {
	unlock, err := q.enter(ctx)
	if err != nil {
		return err
	}
	unlock()
	return nil
}

func (q *queries) ListDependencies(ctx context.Context) ([]models.Dependency, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return q.collectDeps(func(models.Dependency) bool { return true }), nil
}

func (q *queries) ListDependenciesForTask(ctx context.Context, taskID int64) ([]models.Dependency, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return q.collectDeps(func(d models.Dependency) bool {
		return d.TaskID == taskID || d.DependsOnTaskID == taskID
	}), nil
}

func (q *queries) ListDependenciesTouching(ctx context.Context, taskIDs []int64) ([]models.Dependency, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return q.collectDeps(func(d models.Dependency) bool {
		return slices.Contains(taskIDs, d.TaskID) || slices.Contains(taskIDs, d.DependsOnTaskID)
	}), nil
}

// collectDeps returns matching edges newest first.
func (q *queries) collectDeps(keep func(models.Dependency) bool) []models.Dependency {
	deps := []models.Dependency{}
	for _, d := range q.st.deps {
		if keep(d) {
			deps = append(deps, d)
		}
	}
	sort.Slice(deps, func(i, j int) bool {
		return newer(deps[i].CreatedAt, deps[i].ID, deps[j].CreatedAt, deps[j].ID)
	})
	return deps
}

func (q *queries) DependencyExists(ctx context.Context, taskID, dependsOnTaskID int64) (bool, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	for _, d := range q.st.deps {
		if d.TaskID == taskID && d.DependsOnTaskID == dependsOnTaskID {
			return true, nil
		}
	}
	return false, nil
}

func (q *queries) Prerequisites(ctx context.Context, taskID int64) ([]int64, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ids := []int64{}
	for _, d := range q.st.deps {
		if d.TaskID == taskID {
			ids = append(ids, d.DependsOnTaskID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (q *queries) CreateDependency(ctx context.Context, d *models.Dependency) error {
	unlock, err := q.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if d.TaskID == d.DependsOnTaskID {
		return store.ErrCheck
	}
	if _, ok := q.st.tasks[d.TaskID]; !ok {
		return store.ErrForeignKey
	}
	if _, ok := q.st.tasks[d.DependsOnTaskID]; !ok {
		return store.ErrForeignKey
	}
	for _, existing := range q.st.deps {
		if existing.TaskID == d.TaskID && existing.DependsOnTaskID == d.DependsOnTaskID {
			return store.ErrDuplicate
		}
	}
	d.ID = q.st.id("dependencies")
	d.CreatedAt = q.now()
	q.st.deps[d.ID] = *d
	return nil
}

func (q *queries) DeleteDependency(ctx context.Context, id int64) (bool, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, ok := q.st.deps[id]; !ok {
		return false, nil
	}
	delete(q.st.deps, id)
	return true, nil
}

// Subtasks

func (q *queries) ListSubtasks(ctx context.Context, taskID int64) ([]models.Subtask, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	subtasks := []models.Subtask{}
	for _, s := range q.st.subtasks {
		if s.TaskID == taskID {
			subtasks = append(subtasks, s)
		}
	}
	sort.Slice(subtasks, func(i, j int) bool {
		return newer(subtasks[j].CreatedAt, subtasks[j].ID, subtasks[i].CreatedAt, subtasks[i].ID)
	})
	return subtasks, nil
}

func (q *queries) GetSubtask(ctx context.Context, id int64) (*models.Subtask, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, ok := q.st.subtasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (q *queries) CreateSubtask(ctx context.Context, s *models.Subtask) error {
	unlock, err := q.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := q.st.tasks[s.TaskID]; !ok {
		return store.ErrForeignKey
	}
	now := q.now()
	s.ID = q.st.id("subtasks")
	s.CreatedAt = now
	s.UpdatedAt = now
	q.st.subtasks[s.ID] = *s
	return nil
}

func (q *queries) UpdateSubtask(ctx context.Context, id int64, p patch.Patch) (*models.Subtask, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, ok := q.st.subtasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := patch.Merge(&s, p); err != nil {
		return nil, err
	}
	if s.Title == "" {
		return nil, store.ErrCheck
	}
	s.UpdatedAt = q.now()
	q.st.subtasks[id] = s
	return &s, nil
}

func (q *queries) DeleteSubtask(ctx context.Context, id int64) (bool, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, ok := q.st.subtasks[id]; !ok {
		return false, nil
	}
	delete(q.st.subtasks, id)
	return true, nil
}

// Links

func (q *queries) ListLinks(ctx context.Context, taskID int64) ([]models.TaskLink, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	links := []models.TaskLink{}
	for _, l := range q.st.links {
		if l.TaskID == taskID {
			links = append(links, l)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		return newer(links[j].CreatedAt, links[j].ID, links[i].CreatedAt, links[i].ID)
	})
	return links, nil
}

func (q *queries) CreateLink(ctx context.Context, l *models.TaskLink) error {
	unlock, err := q.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := q.st.tasks[l.TaskID]; !ok {
		return store.ErrForeignKey
	}
	l.ID = q.st.id("task_links")
	l.CreatedAt = q.now()
	q.st.links[l.ID] = *l
	return nil
}

func (q *queries) DeleteLink(ctx context.Context, id int64) (bool, error) {
	unlock, err := q.enter(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, ok := q.st.links[id]; !ok {
		return false, nil
	}
	delete(q.st.links, id)
	return true, nil
}

// newer orders by created_at descending, then id descending.
func newer(at time.Time, id int64, otherAt time.Time, otherID int64) bool {
	if !at.Equal(otherAt) {
		return at.After(otherAt)
	}
	return id > otherID
}

var _ store.Store = (*Store)(nil)

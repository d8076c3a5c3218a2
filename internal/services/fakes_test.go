package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/projecthub/projecthub/internal/audit"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// world is an in-memory stand-in for the database shared by the fake stores.
type world struct {
	mu       sync.Mutex
	orgs     map[string]*models.Organization
	users    map[string]*models.User
	projects map[string]*models.Project
	tasks    map[string]*models.Task
	err      error
}

func newWorld() *world {
	return &world{
		orgs:     map[string]*models.Organization{},
		users:    map[string]*models.User{},
		projects: map[string]*models.Project{},
		tasks:    map[string]*models.Task{},
	}
}

var errStore = errors.New("connection refused")

func (w *world) addOrg(name, subdomain string, maxUsers, maxProjects int) *models.Organization {
	w.mu.Lock()
	defer w.mu.Unlock()
	o := &models.Organization{
		ID:               uuid.NewString(),
		Name:             name,
		Subdomain:        subdomain,
		Status:           models.OrganizationActive,
		SubscriptionTier: models.TierFree,
		MaxUsers:         maxUsers,
		MaxProjects:      maxProjects,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	w.orgs[o.ID] = o
	return o
}

func (w *world) addUser(t *testing.T, orgID, email string, role auth.Role, hasher *auth.PasswordHasher, password string) *models.User {
	t.Helper()
	hash := ""
	if hasher != nil {
		var err error
		hash, err = hasher.Hash(password)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.Split(email, "@")[0],
		Role:         string(role),
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if orgID != "" {
		u.OrganizationID = stringPtr(orgID)
	}
	w.users[u.ID] = u
	return u
}

func (w *world) addProject(orgID, name, createdBy string) *models.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := &models.Project{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Name:           name,
		Status:         models.ProjectActive,
		Priority:       models.PriorityMedium,
		CreatedBy:      stringPtr(createdBy),
		CreatedAt:      time.Now(),
	}
	w.projects[p.ID] = p
	return p
}

func (w *world) addTask(p *models.Project, title string, assignee *string) *models.Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := &models.Task{
		ID:             uuid.NewString(),
		ProjectID:      p.ID,
		OrganizationID: p.OrganizationID,
		Title:          title,
		Status:         models.TaskTodo,
		Priority:       models.PriorityMedium,
		AssignedTo:     assignee,
		CreatedAt:      time.Now(),
	}
	w.tasks[t.ID] = t
	return t
}

func identityOf(u *models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, OrganizationID: u.OrganizationID, Role: auth.Role(u.Role)}
}

// ---------------------------------------------------------------------------
// OrganizationStore
// ---------------------------------------------------------------------------

type fakeOrgs struct{ *world }

func (f fakeOrgs) GetByID(_ context.Context, id string) (*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if o, ok := f.orgs[id]; ok {
		c := *o
		return &c, nil
	}
	return nil, nil
}

func (f fakeOrgs) GetBySubdomain(_ context.Context, subdomain string) (*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, o := range f.orgs {
		if o.Subdomain == subdomain {
			c := *o
			return &c, nil
		}
	}
	return nil, nil
}

func (f fakeOrgs) CreateWithAdmin(_ context.Context, org *models.Organization, admin *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, o := range f.orgs {
		if o.Subdomain == org.Subdomain {
			return repositories.ErrSubdomainTaken
		}
	}
	for _, u := range f.users {
		if u.Email == admin.Email {
			return repositories.ErrEmailTaken
		}
	}
	org.ID = uuid.NewString()
	admin.ID = uuid.NewString()
	admin.OrganizationID = stringPtr(org.ID)
	o, u := *org, *admin
	f.orgs[o.ID] = &o
	f.users[u.ID] = &u
	return nil
}

func (f fakeOrgs) Update(_ context.Context, id string, upd repositories.OrganizationUpdate) (*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.orgs[id]
	if !ok {
		return nil, nil
	}
	if upd.Name != nil {
		o.Name = *upd.Name
	}
	if upd.Status != nil {
		o.Status = *upd.Status
	}
	if upd.SubscriptionTier != nil {
		o.SubscriptionTier = *upd.SubscriptionTier
	}
	if upd.MaxUsers != nil {
		o.MaxUsers = *upd.MaxUsers
	}
	if upd.MaxProjects != nil {
		o.MaxProjects = *upd.MaxProjects
	}
	c := *o
	return &c, nil
}

func (f fakeOrgs) List(_ context.Context, filter repositories.OrganizationFilter) ([]*models.OrganizationWithCounts, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []*models.OrganizationWithCounts
	for _, o := range f.orgs {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.SubscriptionTier != "" && o.SubscriptionTier != filter.SubscriptionTier {
			continue
		}
		out = append(out, &models.OrganizationWithCounts{
			Organization:  *o,
			TotalUsers:    f.countUsers(o.ID),
			TotalProjects: f.countProjects(o.ID),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (w *world) countUsers(orgID string) int {
	n := 0
	for _, u := range w.users {
		if u.OrgID() == orgID && u.Role != string(auth.RoleSuperAdmin) {
			n++
		}
	}
	return n
}

func (w *world) countProjects(orgID string) int {
	n := 0
	for _, p := range w.projects {
		if p.OrganizationID == orgID {
			n++
		}
	}
	return n
}

func (f fakeOrgs) CountUsers(_ context.Context, orgID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countUsers(orgID), f.err
}

func (f fakeOrgs) CountProjects(_ context.Context, orgID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countProjects(orgID), f.err
}

func (f fakeOrgs) CountTasks(_ context.Context, orgID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tasks {
		if t.OrganizationID == orgID {
			n++
		}
	}
	return n, f.err
}

// ---------------------------------------------------------------------------
// UserStore
// ---------------------------------------------------------------------------

type fakeUsers struct{ *world }

func (f fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (f fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f fakeUsers) GetInOrganization(_ context.Context, orgID, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id && u.OrgID() == orgID })
}

func (f fakeUsers) GetByEmailInOrganization(_ context.Context, orgID, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email && u.OrgID() == orgID })
}

func (f fakeUsers) GetSuperAdminByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email && u.OrganizationID == nil })
}

func (f fakeUsers) CreateInOrganization(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	org, ok := f.orgs[user.OrgID()]
	if !ok {
		return repositories.ErrNotFound
	}
	if f.countUsers(org.ID) >= org.MaxUsers {
		return repositories.ErrCapacityExceeded
	}
	for _, u := range f.users {
		if u.OrgID() == org.ID && u.Email == user.Email {
			return repositories.ErrEmailTaken
		}
	}
	user.ID = uuid.NewString()
	c := *user
	f.users[c.ID] = &c
	return nil
}

func (f fakeUsers) List(_ context.Context, filter repositories.UserFilter) ([]*models.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []*models.User
	for _, u := range f.users {
		if u.OrgID() != filter.OrganizationID {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Search != "" && !strings.Contains(u.Email+" "+u.FullName, filter.Search) {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	return out, len(out), nil
}

func (f fakeUsers) Update(_ context.Context, orgID, id string, upd repositories.UserUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok || u.OrgID() != orgID {
		return nil, nil
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	c := *u
	return &c, nil
}

func (f fakeUsers) Delete(_ context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, t := range f.tasks {
		if t.AssignedTo != nil && *t.AssignedTo == id && t.OrganizationID == orgID {
			t.AssignedTo = nil
		}
	}
	u, ok := f.users[id]
	if !ok || u.OrgID() != orgID {
		return repositories.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f fakeUsers) UpdateLastLogin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		now := time.Now()
		u.LastLogin = &now
	}
	return f.err
}

// ---------------------------------------------------------------------------
// ProjectStore
// ---------------------------------------------------------------------------

type fakeProjects struct{ *world }

func (f fakeProjects) CreateWithinCapacity(_ context.Context, p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	org, ok := f.orgs[p.OrganizationID]
	if !ok {
		return repositories.ErrNotFound
	}
	if f.countProjects(org.ID) >= org.MaxProjects {
		return repositories.ErrCapacityExceeded
	}
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now()
	c := *p
	f.projects[c.ID] = &c
	return nil
}

func (f fakeProjects) GetInOrganization(_ context.Context, orgID, id string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.projects[id]; ok && p.OrganizationID == orgID {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (f fakeProjects) List(_ context.Context, filter repositories.ProjectFilter) ([]*models.ProjectListItem, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []*models.ProjectListItem
	for _, p := range f.projects {
		if p.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		item := &models.ProjectListItem{Project: *p}
		if p.CreatedBy != nil {
			if u, ok := f.users[*p.CreatedBy]; ok {
				item.CreatorName = stringPtr(u.FullName)
			}
		}
		for _, t := range f.tasks {
			if t.ProjectID == p.ID {
				item.TaskCount++
				if t.Status == models.TaskCompleted {
					item.CompletedTaskCount++
				}
			}
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (f fakeProjects) Update(_ context.Context, orgID, id string, upd repositories.ProjectUpdate) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.projects[id]
	if !ok || p.OrganizationID != orgID {
		return nil, nil
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description.Set {
		p.Description = upd.Description.Value
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.Priority != nil {
		p.Priority = *upd.Priority
	}
	c := *p
	return &c, nil
}

func (f fakeProjects) Delete(_ context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	p, ok := f.projects[id]
	if !ok || p.OrganizationID != orgID {
		return repositories.ErrNotFound
	}
	delete(f.projects, id)
	for tid, t := range f.tasks {
		if t.ProjectID == id {
			delete(f.tasks, tid)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// TaskStore
// ---------------------------------------------------------------------------

type fakeTasks struct{ *world }

func (f fakeTasks) Create(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	task.ID = uuid.NewString()
	task.CreatedAt = time.Now()
	c := *task
	f.tasks[c.ID] = &c
	return nil
}

func (f fakeTasks) GetInProject(_ context.Context, orgID, projectID, id string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if t, ok := f.tasks[id]; ok && t.OrganizationID == orgID && t.ProjectID == projectID {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (f fakeTasks) List(_ context.Context, filter repositories.TaskFilter) ([]*models.TaskListItem, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []*models.TaskListItem
	for _, t := range f.tasks {
		if t.OrganizationID != filter.OrganizationID || t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		item := &models.TaskListItem{Task: *t}
		if t.AssignedTo != nil {
			if u, ok := f.users[*t.AssignedTo]; ok {
				item.AssigneeName = stringPtr(u.FullName)
				item.AssigneeEmail = stringPtr(u.Email)
			}
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (f fakeTasks) Update(_ context.Context, orgID, projectID, id string, upd repositories.TaskUpdate) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[id]
	if !ok || t.OrganizationID != orgID || t.ProjectID != projectID {
		return nil, nil
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description.Set {
		t.Description = upd.Description.Value
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.AssignedTo.Set {
		t.AssignedTo = upd.AssignedTo.Value
	}
	if upd.DueDate.Set {
		t.DueDate = upd.DueDate.Value
	}
	c := *t
	return &c, nil
}

func (f fakeTasks) Delete(_ context.Context, orgID, projectID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	t, ok := f.tasks[id]
	if !ok || t.OrganizationID != orgID || t.ProjectID != projectID {
		return repositories.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditor) Record(_ context.Context, ev audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingAuditor) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Action)
	}
	return out
}

func (r *recordingAuditor) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return audit.Event{}
	}
	return r.events[len(r.events)-1]
}

type fakeAuditLogs struct {
	got  repositories.AuditFilter
	rows []*models.AuditLog
	err  error
}

func (f *fakeAuditLogs) List(_ context.Context, filter repositories.AuditFilter) ([]*models.AuditLog, int, error) {
	f.got = filter
	return f.rows, len(f.rows), f.err
}

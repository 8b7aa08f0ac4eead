package jsonfile

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/core/content"
)

// subjectsDoc is the on-disk shape of data/subjects.json. Domain structs
// already carry the persisted field names, so they are stored as-is.
type subjectsDoc struct {
	Subjects []content.Subject `json:"subjects"`
}

type subjectRepository struct {
	db *DB
}

var _ content.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *DB) *subjectRepository {
	return &subjectRepository{db: db}
}

func (repo subjectRepository) CreateSubject(ctx context.Context, sub content.Subject) (content.Subject, error) {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.Subject{}, err
	}

	sub.ID = uuid.New().String()
	doc.Subjects = append(doc.Subjects, sub)
	if err := repo.db.subjects.save(&doc); err != nil {
		return content.Subject{}, err
	}
	return sub, nil
}

func (repo subjectRepository) QuerySubjects(ctx context.Context, filter *content.QueryFilter, ordering []core.DBOrdering) ([]content.Subject, error) {
	repo.db.subjects.mu.RLock()
	defer repo.db.subjects.mu.RUnlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return nil, err
	}

	subjects := make([]content.Subject, 0, len(doc.Subjects))
	for _, sub := range doc.Subjects {
		if repo.match(sub, filter) {
			subjects = append(subjects, sub)
		}
	}
	repo.sort(subjects, ordering)
	return subjects, nil
}

func (repo subjectRepository) GetSubject(ctx context.Context, id string) (content.Subject, error) {
	repo.db.subjects.mu.RLock()
	defer repo.db.subjects.mu.RUnlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.Subject{}, err
	}

	sub := findSubject(&doc, id)
	if sub == nil {
		return content.Subject{}, content.ErrSubjectNotFound
	}
	return *sub, nil
}

func (repo subjectRepository) UpdateSubject(ctx context.Context, sub content.Subject) (content.Subject, error) {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.Subject{}, err
	}

	cur := findSubject(&doc, sub.ID)
	if cur == nil {
		return content.Subject{}, content.ErrSubjectNotFound
	}

	if sub.Name != "" {
		cur.Name = sub.Name
	}
	if sub.Description != "" {
		cur.Description = sub.Description
	}
	if sub.Category != "" {
		cur.Category = sub.Category
	}
	if sub.Level != "" {
		cur.Level = sub.Level
	}
	if sub.Status != "" {
		cur.Status = sub.Status
	}
	if !sub.UpdatedAt.IsZero() {
		cur.UpdatedAt = sub.UpdatedAt.UTC()
	}

	if err := repo.db.subjects.save(&doc); err != nil {
		return content.Subject{}, err
	}
	return *cur, nil
}

// DeleteSubject removes the subject; nested sections, topics, blocks and
// enrollments go with it.
func (repo subjectRepository) DeleteSubject(ctx context.Context, id string) error {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return err
	}

	for i, sub := range doc.Subjects {
		if sub.ID == id {
			doc.Subjects = append(doc.Subjects[:i], doc.Subjects[i+1:]...)
			return repo.db.subjects.save(&doc)
		}
	}
	return content.ErrSubjectNotFound
}

func (repo subjectRepository) CountSubjects(ctx context.Context) (int, error) {
	repo.db.subjects.mu.RLock()
	defer repo.db.subjects.mu.RUnlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return 0, err
	}
	return len(doc.Subjects), nil
}

func (repo subjectRepository) CreateSection(ctx context.Context, subjectID string, sec content.Section) (content.Section, error) {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.Section{}, err
	}

	sub := findSubject(&doc, subjectID)
	if sub == nil {
		return content.Section{}, content.ErrSubjectNotFound
	}

	sec.ID = uuid.New().String()
	if sec.Order < 0 {
		sec.Order = nextOrder(len(sub.Sections), func(i int) int { return sub.Sections[i].Order })
	}
	sub.Sections = append(sub.Sections, sec)
	sortSections(sub.Sections)

	if err := repo.db.subjects.save(&doc); err != nil {
		return content.Section{}, err
	}
	return sec, nil
}

func (repo subjectRepository) UpdateSection(ctx context.Context, subjectID string, sec content.Section) (content.Section, error) {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.Section{}, err
	}

	sub := findSubject(&doc, subjectID)
	if sub == nil {
		return content.Section{}, content.ErrSubjectNotFound
	}
	cur := findSection(sub, sec.ID)
	if cur == nil {
		return content.Section{}, content.ErrSectionNotFound
	}

	if sec.Name != "" {
		cur.Name = sec.Name
	}
	if sec.Description != "" {
		cur.Description = sec.Description
	}
	if sec.Order >= 0 {
		cur.Order = sec.Order
	}
	if !sec.UpdatedAt.IsZero() {
		cur.UpdatedAt = sec.UpdatedAt.UTC()
	}
	updated := *cur
	sortSections(sub.Sections)

	if err := repo.db.subjects.save(&doc); err != nil {
		return content.Section{}, err
	}
	return updated, nil
}

func (repo subjectRepository) DeleteSection(ctx context.Context, subjectID, sectionID string) error {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return err
	}

	sub := findSubject(&doc, subjectID)
	if sub == nil {
		return content.ErrSubjectNotFound
	}
	for i, sec := range sub.Sections {
		if sec.ID == sectionID {
			sub.Sections = append(sub.Sections[:i], sub.Sections[i+1:]...)
			return repo.db.subjects.save(&doc)
		}
	}
	return content.ErrSectionNotFound
}

func (repo subjectRepository) CreateTopic(ctx context.Context, subjectID, sectionID string, top content.Topic) (content.Topic, error) {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.Topic{}, err
	}

	sec, err := navSection(&doc, subjectID, sectionID)
	if err != nil {
		return content.Topic{}, err
	}

	top.ID = uuid.New().String()
	if top.Order < 0 {
		top.Order = nextOrder(len(sec.Topics), func(i int) int { return sec.Topics[i].Order })
	}
	sec.Topics = append(sec.Topics, top)
	sortTopics(sec.Topics)

	if err := repo.db.subjects.save(&doc); err != nil {
		return content.Topic{}, err
	}
	return top, nil
}

func (repo subjectRepository) GetTopic(ctx context.Context, subjectID, sectionID, topicID string) (content.Topic, error) {
	repo.db.subjects.mu.RLock()
	defer repo.db.subjects.mu.RUnlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.Topic{}, err
	}

	top, err := navTopic(&doc, subjectID, sectionID, topicID)
	if err != nil {
		return content.Topic{}, err
	}
	return *top, nil
}

// UpdateTopic touches only the topic's own updated_at; parent section and
// subject timestamps are left alone.
func (repo subjectRepository) UpdateTopic(ctx context.Context, subjectID, sectionID string, top content.Topic) (content.Topic, error) {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.Topic{}, err
	}

	sec, err := navSection(&doc, subjectID, sectionID)
	if err != nil {
		return content.Topic{}, err
	}
	cur := findTopic(sec, top.ID)
	if cur == nil {
		return content.Topic{}, content.ErrTopicNotFound
	}

	if top.Name != "" {
		cur.Name = top.Name
	}
	if top.Description != "" {
		cur.Description = top.Description
	}
	if top.ContentType != "" {
		cur.ContentType = top.ContentType
	}
	if top.Order >= 0 {
		cur.Order = top.Order
	}
	if !top.UpdatedAt.IsZero() {
		cur.UpdatedAt = top.UpdatedAt.UTC()
	}
	updated := *cur
	sortTopics(sec.Topics)

	if err := repo.db.subjects.save(&doc); err != nil {
		return content.Topic{}, err
	}
	return updated, nil
}

func (repo subjectRepository) DeleteTopic(ctx context.Context, subjectID, sectionID, topicID string) error {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return err
	}

	sec, err := navSection(&doc, subjectID, sectionID)
	if err != nil {
		return err
	}
	for i, top := range sec.Topics {
		if top.ID == topicID {
			sec.Topics = append(sec.Topics[:i], sec.Topics[i+1:]...)
			return repo.db.subjects.save(&doc)
		}
	}
	return content.ErrTopicNotFound
}

func (repo subjectRepository) CreateBlock(ctx context.Context, subjectID, sectionID, topicID string, blk content.ContentBlock) (content.ContentBlock, error) {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.ContentBlock{}, err
	}

	top, err := navTopic(&doc, subjectID, sectionID, topicID)
	if err != nil {
		return content.ContentBlock{}, err
	}

	blk.ID = uuid.New().String()
	top.Blocks = append(top.Blocks, blk) // blocks keep insertion order

	if err := repo.db.subjects.save(&doc); err != nil {
		return content.ContentBlock{}, err
	}
	return blk, nil
}

func (repo subjectRepository) GetBlock(ctx context.Context, subjectID, sectionID, topicID, blockID string) (content.ContentBlock, error) {
	repo.db.subjects.mu.RLock()
	defer repo.db.subjects.mu.RUnlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.ContentBlock{}, err
	}

	top, err := navTopic(&doc, subjectID, sectionID, topicID)
	if err != nil {
		return content.ContentBlock{}, err
	}
	blk := findBlock(top, blockID)
	if blk == nil {
		return content.ContentBlock{}, content.ErrBlockNotFound
	}
	return *blk, nil
}

func (repo subjectRepository) UpdateBlock(ctx context.Context, subjectID, sectionID, topicID string, blk content.ContentBlock) (content.ContentBlock, error) {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.ContentBlock{}, err
	}

	top, err := navTopic(&doc, subjectID, sectionID, topicID)
	if err != nil {
		return content.ContentBlock{}, err
	}
	cur := findBlock(top, blk.ID)
	if cur == nil {
		return content.ContentBlock{}, content.ErrBlockNotFound
	}

	cur.Type = blk.Type
	cur.Value = blk.Value
	if !blk.UpdatedAt.IsZero() {
		cur.UpdatedAt = blk.UpdatedAt.UTC()
	}

	if err := repo.db.subjects.save(&doc); err != nil {
		return content.ContentBlock{}, err
	}
	return *cur, nil
}

func (repo subjectRepository) DeleteBlock(ctx context.Context, subjectID, sectionID, topicID, blockID string) error {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return err
	}

	top, err := navTopic(&doc, subjectID, sectionID, topicID)
	if err != nil {
		return err
	}
	for i, blk := range top.Blocks {
		if blk.ID == blockID {
			top.Blocks = append(top.Blocks[:i], top.Blocks[i+1:]...)
			return repo.db.subjects.save(&doc)
		}
	}
	return content.ErrBlockNotFound
}

func (repo subjectRepository) GetEnrollment(ctx context.Context, subjectID, userID string) (content.Enrollment, error) {
	repo.db.subjects.mu.RLock()
	defer repo.db.subjects.mu.RUnlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.Enrollment{}, err
	}

	sub := findSubject(&doc, subjectID)
	if sub == nil {
		return content.Enrollment{}, content.ErrSubjectNotFound
	}
	for _, enr := range sub.Enrollments {
		if enr.UserID == userID {
			return enr, nil
		}
	}
	return content.Enrollment{}, content.ErrEnrollmentNotFound
}

func (repo subjectRepository) UpsertEnrollment(ctx context.Context, subjectID string, enr content.Enrollment) (content.Enrollment, error) {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return content.Enrollment{}, err
	}

	sub := findSubject(&doc, subjectID)
	if sub == nil {
		return content.Enrollment{}, content.ErrSubjectNotFound
	}

	replaced := false
	for i, cur := range sub.Enrollments {
		if cur.UserID == enr.UserID {
			sub.Enrollments[i] = enr
			replaced = true
			break
		}
	}
	if !replaced {
		sub.Enrollments = append(sub.Enrollments, enr)
	}

	if err := repo.db.subjects.save(&doc); err != nil {
		return content.Enrollment{}, err
	}
	return enr, nil
}

func (repo subjectRepository) DeleteEnrollment(ctx context.Context, subjectID, userID string) error {
	repo.db.subjects.mu.Lock()
	defer repo.db.subjects.mu.Unlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return err
	}

	sub := findSubject(&doc, subjectID)
	if sub == nil {
		return content.ErrSubjectNotFound
	}
	for i, enr := range sub.Enrollments {
		if enr.UserID == userID {
			sub.Enrollments = append(sub.Enrollments[:i], sub.Enrollments[i+1:]...)
			return repo.db.subjects.save(&doc)
		}
	}
	return content.ErrEnrollmentNotFound
}

func (repo subjectRepository) QueryUserEnrollments(ctx context.Context, userID string) ([]content.UserEnrollment, error) {
	repo.db.subjects.mu.RLock()
	defer repo.db.subjects.mu.RUnlock()

	var doc subjectsDoc
	if err := repo.db.subjects.load(&doc); err != nil {
		return nil, err
	}

	enrollments := make([]content.UserEnrollment, 0)
	for _, sub := range doc.Subjects {
		for _, enr := range sub.Enrollments {
			if enr.UserID == userID {
				enrollments = append(enrollments, content.UserEnrollment{Subject: sub, Enrollment: enr})
				break
			}
		}
	}
	return enrollments, nil
}

func (repo subjectRepository) match(sub content.Subject, filter *content.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(sub.Name), s) &&
			!strings.Contains(strings.ToLower(sub.Description), s) &&
			!strings.Contains(strings.ToLower(sub.Category), s) {
			return false
		}
	}
	if filter.Category != "" && !strings.EqualFold(sub.Category, filter.Category) {
		return false
	}
	if filter.Level != "" && !strings.EqualFold(sub.Level, filter.Level) {
		return false
	}
	if filter.Status != "" && sub.Status != filter.Status {
		return false
	}
	return true
}

func (repo subjectRepository) sort(subjects []content.Subject, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	cmpTime := func(x, y time.Time) int {
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	}
	compare := func(a, b content.Subject, field string) int {
		switch field {
		case "name":
			return strings.Compare(a.Name, b.Name)
		case "category":
			return strings.Compare(a.Category, b.Category)
		case "level":
			return strings.Compare(a.Level, b.Level)
		case "updated_at":
			return cmpTime(a.UpdatedAt, b.UpdatedAt)
		default:
			return cmpTime(a.CreatedAt, b.CreatedAt)
		}
	}
	sort.SliceStable(subjects, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(subjects[i], subjects[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

// tree navigation

func findSubject(doc *subjectsDoc, id string) *content.Subject {
	for i := range doc.Subjects {
		if doc.Subjects[i].ID == id {
			return &doc.Subjects[i]
		}
	}
	return nil
}

func findSection(sub *content.Subject, id string) *content.Section {
	for i := range sub.Sections {
		if sub.Sections[i].ID == id {
			return &sub.Sections[i]
		}
	}
	return nil
}

func findTopic(sec *content.Section, id string) *content.Topic {
	for i := range sec.Topics {
		if sec.Topics[i].ID == id {
			return &sec.Topics[i]
		}
	}
	return nil
}

func findBlock(top *content.Topic, id string) *content.ContentBlock {
	for i := range top.Blocks {
		if top.Blocks[i].ID == id {
			return &top.Blocks[i]
		}
	}
	return nil
}

func navSection(doc *subjectsDoc, subjectID, sectionID string) (*content.Section, error) {
	sub := findSubject(doc, subjectID)
	if sub == nil {
		return nil, content.ErrSubjectNotFound
	}
	sec := findSection(sub, sectionID)
	if sec == nil {
		return nil, content.ErrSectionNotFound
	}
	return sec, nil
}

func navTopic(doc *subjectsDoc, subjectID, sectionID, topicID string) (*content.Topic, error) {
	sec, err := navSection(doc, subjectID, sectionID)
	if err != nil {
		return nil, err
	}
	top := findTopic(sec, topicID)
	if top == nil {
		return nil, content.ErrTopicNotFound
	}
	return top, nil
}

func nextOrder(n int, orderAt func(i int) int) int {
	next := 0
	for i := 0; i < n; i++ {
		if ord := orderAt(i); ord >= next {
			next = ord + 1
		}
	}
	return next
}

func sortSections(sections []content.Section) {
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })
}

func sortTopics(topics []content.Topic) {
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Order < topics[j].Order })
}

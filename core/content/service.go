package content

import (
	"context"
	"errors"
	"time"

	"github.com/mwinyimoha/darasa/core"
)

var (
	// errors
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrSectionNotFound    = errors.New("section not found")
	ErrTopicNotFound      = errors.New("topic not found")
	ErrBlockNotFound      = errors.New("content block not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrNotPublished       = errors.New("subject is not published")
)

type (
	Repository interface {
		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		// QuerySubjects applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Subject.Name, Subject.Description or Subject.Category.
		QuerySubjects(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		// UpdateSubject applies sub's non-zero fields.
		UpdateSubject(ctx context.Context, sub Subject) (Subject, error)
		// DeleteSubject removes the subject and everything nested under it.
		DeleteSubject(ctx context.Context, id string) error
		CountSubjects(ctx context.Context) (int, error)

		CreateSection(ctx context.Context, subjectID string, sec Section) (Section, error)
		UpdateSection(ctx context.Context, subjectID string, sec Section) (Section, error)
		DeleteSection(ctx context.Context, subjectID, sectionID string) error

		CreateTopic(ctx context.Context, subjectID, sectionID string, top Topic) (Topic, error)
		GetTopic(ctx context.Context, subjectID, sectionID, topicID string) (Topic, error)
		// UpdateTopic touches only the topic's own updated_at.
		UpdateTopic(ctx context.Context, subjectID, sectionID string, top Topic) (Topic, error)
		DeleteTopic(ctx context.Context, subjectID, sectionID, topicID string) error

		CreateBlock(ctx context.Context, subjectID, sectionID, topicID string, blk ContentBlock) (ContentBlock, error)
		GetBlock(ctx context.Context, subjectID, sectionID, topicID, blockID string) (ContentBlock, error)
		UpdateBlock(ctx context.Context, subjectID, sectionID, topicID string, blk ContentBlock) (ContentBlock, error)
		DeleteBlock(ctx context.Context, subjectID, sectionID, topicID, blockID string) error

		GetEnrollment(ctx context.Context, subjectID, userID string) (Enrollment, error)
		UpsertEnrollment(ctx context.Context, subjectID string, enr Enrollment) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, subjectID, userID string) error
		QueryUserEnrollments(ctx context.Context, userID string) ([]UserEnrollment, error)
	}

	Service interface {
		CreateSubject(ctx context.Context, ns NewSubject) (Subject, error)
		QuerySubjects(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		UpdateSubject(ctx context.Context, id string, us UpdateSubject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error
		CountSubjects(ctx context.Context) (int, error)

		AddSection(ctx context.Context, subjectID string, ns NewSection) (Section, error)
		UpdateSection(ctx context.Context, subjectID, sectionID string, us UpdateSection) (Section, error)
		RemoveSection(ctx context.Context, subjectID, sectionID string) error

		AddTopic(ctx context.Context, subjectID, sectionID string, nt NewTopic) (Topic, error)
		UpdateTopic(ctx context.Context, subjectID, sectionID, topicID string, ut UpdateTopic) (Topic, error)
		RemoveTopic(ctx context.Context, subjectID, sectionID, topicID string) error

		AddBlock(ctx context.Context, subjectID, sectionID, topicID string, nb NewContentBlock) (ContentBlock, error)
		GetBlock(ctx context.Context, subjectID, sectionID, topicID, blockID string) (ContentBlock, error)
		UpdateBlock(ctx context.Context, subjectID, sectionID, topicID, blockID string, ub UpdateContentBlock) (ContentBlock, error)
		RemoveBlock(ctx context.Context, subjectID, sectionID, topicID, blockID string) error

		Enroll(ctx context.Context, subjectID, userID string) (Enrollment, error)
		Unenroll(ctx context.Context, subjectID, userID string) error
		SetProgress(ctx context.Context, subjectID, userID string, sp SetProgress) (Enrollment, error)
		UserEnrollments(ctx context.Context, userID string) ([]UserEnrollment, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	now := time.Now().UTC()
	sub := Subject{
		Name:        ns.Name,
		Description: ns.Description,
		Category:    ns.Category,
		Level:       ns.Level,
		Status:      ns.Status,
		Sections:    []Section{},
		Enrollments: []Enrollment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sub.Status == "" {
		sub.Status = StatusDraft
	}
	return svc.repo.CreateSubject(ctx, sub)
}

func (svc *service) QuerySubjects(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Subject, error) {
	if filter != nil {
		filter.Clean()
		if filter.IsEmpty() {
			filter = nil
		}
	}
	return svc.repo.QuerySubjects(ctx, filter, ordering)
}

func (svc *service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *service) UpdateSubject(ctx context.Context, id string, us UpdateSubject) (Subject, error) {
	sub := Subject{
		ID:          id,
		Name:        us.Name,
		Description: us.Description,
		Category:    us.Category,
		Level:       us.Level,
		Status:      us.Status,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateSubject(ctx, sub)
}

func (svc *service) DeleteSubject(ctx context.Context, id string) error {
	return svc.repo.DeleteSubject(ctx, id)
}

func (svc *service) CountSubjects(ctx context.Context) (int, error) {
	return svc.repo.CountSubjects(ctx)
}

func (svc *service) AddSection(ctx context.Context, subjectID string, ns NewSection) (Section, error) {
	now := time.Now().UTC()
	sec := Section{
		Name:        ns.Name,
		Description: ns.Description,
		Topics:      []Topic{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ns.Order != nil {
		sec.Order = *ns.Order
	} else {
		sec.Order = -1 // repo appends at the end
	}
	return svc.repo.CreateSection(ctx, subjectID, sec)
}

func (svc *service) UpdateSection(ctx context.Context, subjectID, sectionID string, us UpdateSection) (Section, error) {
	sec := Section{
		ID:          sectionID,
		Name:        us.Name,
		Description: us.Description,
		Order:       -1, // untouched unless provided
		UpdatedAt:   time.Now().UTC(),
	}
	if us.Order != nil {
		sec.Order = *us.Order
	}
	return svc.repo.UpdateSection(ctx, subjectID, sec)
}

func (svc *service) RemoveSection(ctx context.Context, subjectID, sectionID string) error {
	return svc.repo.DeleteSection(ctx, subjectID, sectionID)
}

func (svc *service) AddTopic(ctx context.Context, subjectID, sectionID string, nt NewTopic) (Topic, error) {
	now := time.Now().UTC()
	top := Topic{
		Name:        nt.Name,
		Description: nt.Description,
		ContentType: nt.ContentType,
		Blocks:      []ContentBlock{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nt.Order != nil {
		top.Order = *nt.Order
	} else {
		top.Order = -1
	}
	return svc.repo.CreateTopic(ctx, subjectID, sectionID, top)
}

func (svc *service) UpdateTopic(ctx context.Context, subjectID, sectionID, topicID string, ut UpdateTopic) (Topic, error) {
	top := Topic{
		ID:          topicID,
		Name:        ut.Name,
		Description: ut.Description,
		ContentType: ut.ContentType,
		Order:       -1,
		UpdatedAt:   time.Now().UTC(),
	}
	if ut.Order != nil {
		top.Order = *ut.Order
	}
	return svc.repo.UpdateTopic(ctx, subjectID, sectionID, top)
}

func (svc *service) RemoveTopic(ctx context.Context, subjectID, sectionID, topicID string) error {
	return svc.repo.DeleteTopic(ctx, subjectID, sectionID, topicID)
}

func (svc *service) AddBlock(ctx context.Context, subjectID, sectionID, topicID string, nb NewContentBlock) (ContentBlock, error) {
	now := time.Now().UTC()
	blk := ContentBlock{
		Type:      nb.Type,
		Value:     nb.Value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateBlock(ctx, subjectID, sectionID, topicID, blk)
}

func (svc *service) GetBlock(ctx context.Context, subjectID, sectionID, topicID, blockID string) (ContentBlock, error) {
	return svc.repo.GetBlock(ctx, subjectID, sectionID, topicID, blockID)
}

// UpdateBlock applies a block update; changing the type without providing a
// new value converts the stored value to the new type's shape.
func (svc *service) UpdateBlock(ctx context.Context, subjectID, sectionID, topicID, blockID string, ub UpdateContentBlock) (ContentBlock, error) {
	orig, err := svc.repo.GetBlock(ctx, subjectID, sectionID, topicID, blockID)
	if err != nil {
		return ContentBlock{}, err
	}

	blk := ContentBlock{
		ID:        blockID,
		Type:      orig.Type,
		Value:     orig.Value,
		UpdatedAt: time.Now().UTC(),
	}
	if ub.Type != "" {
		blk.Type = ub.Type
	}
	switch {
	case ub.Value != nil:
		blk.Value = ub.Value
	case blk.Type != orig.Type:
		blk.Value = ConvertBlockValue(blk.Type, orig.Value)
	}
	return svc.repo.UpdateBlock(ctx, subjectID, sectionID, topicID, blk)
}

func (svc *service) RemoveBlock(ctx context.Context, subjectID, sectionID, topicID, blockID string) error {
	return svc.repo.DeleteBlock(ctx, subjectID, sectionID, topicID, blockID)
}

// Enroll enrolls a user in a published subject. Enrolling twice is a no-op
// returning the existing enrollment.
func (svc *service) Enroll(ctx context.Context, subjectID, userID string) (Enrollment, error) {
	sub, err := svc.repo.GetSubject(ctx, subjectID)
	if err != nil {
		return Enrollment{}, err
	}
	if !sub.IsPublished() {
		return Enrollment{}, core.NewValidationError(ErrNotPublished)
	}

	if enr, err := svc.repo.GetEnrollment(ctx, subjectID, userID); err == nil {
		return enr, nil
	}

	now := time.Now().UTC()
	enr := Enrollment{
		UserID:     userID,
		Progress:   0,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
	return svc.repo.UpsertEnrollment(ctx, subjectID, enr)
}

func (svc *service) Unenroll(ctx context.Context, subjectID, userID string) error {
	return svc.repo.DeleteEnrollment(ctx, subjectID, userID)
}

func (svc *service) SetProgress(ctx context.Context, subjectID, userID string, sp SetProgress) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, subjectID, userID)
	if err != nil {
		return Enrollment{}, err
	}
	enr.Progress = sp.Clamp()
	enr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpsertEnrollment(ctx, subjectID, enr)
}

func (svc *service) UserEnrollments(ctx context.Context, userID string) ([]UserEnrollment, error) {
	return svc.repo.QueryUserEnrollments(ctx, userID)
}

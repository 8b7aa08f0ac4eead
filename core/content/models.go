package content

import (
	"time"

	"github.com/mwinyimoha/darasa/core"
)

// Subject statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Content block types
const (
	BlockText  = "text"
	BlockCode  = "code"
	BlockImage = "image"
	BlockTable = "table"
)

var (
	AllStatuses   = []string{StatusDraft, StatusPublished}
	AllBlockTypes = []string{BlockText, BlockCode, BlockImage, BlockTable}
)

type ContentBlock struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Value     interface{} `json:"value"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at"` // UTC
}

type Topic struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ContentType string         `json:"content_type"`
	Order       int            `json:"order"`
	Blocks      []ContentBlock `json:"blocks"`
	CreatedAt   time.Time      `json:"created_at"` // UTC
	UpdatedAt   time.Time      `json:"updated_at"` // UTC
}

type Section struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	Topics      []Topic   `json:"topics"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Enrollment is a loose pointer to a User; no referential integrity is
// enforced with the users collection.
type Enrollment struct {
	UserID     string    `json:"user_id"`
	Progress   float64   `json:"progress"` // [0, 100]; 100 means complete
	EnrolledAt time.Time `json:"enrolled_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Subject struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Level       string       `json:"level"`
	Status      string       `json:"status"`
	Sections    []Section    `json:"sections"`
	Enrollments []Enrollment `json:"enrollments"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
}

func (s *Subject) IsPublished() bool {
	return s.Status == StatusPublished
}

// UserEnrollment pairs a Subject with the caller's enrollment in it.
type UserEnrollment struct {
	Subject    Subject    `json:"subject"`
	Enrollment Enrollment `json:"enrollment"`
}

// NewSubject contains information needed to create a new Subject.
type NewSubject struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Level       string `json:"level"`
	Status      string `json:"status" validate:"omitempty,subjectstatus"`
}

func (ns *NewSubject) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	ns.Description = core.CleanString(ns.Description)
	ns.Category = core.CleanString(ns.Category)
	ns.Level = core.CleanString(ns.Level)
	if ns.Status == "" {
		ns.Status = StatusDraft
	}
	return core.Validate.Struct(ns)
}

// UpdateSubject defines what information may be provided to modify an
// existing Subject. Empty fields are left untouched.
type UpdateSubject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Level       string `json:"level"`
	Status      string `json:"status" validate:"omitempty,subjectstatus"`
}

func (us *UpdateSubject) Validate() error {
	us.Name = core.CleanString(us.Name)
	us.Description = core.CleanString(us.Description)
	us.Category = core.CleanString(us.Category)
	us.Level = core.CleanString(us.Level)
	return core.Validate.Struct(us)
}

type NewSection struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Order       *int   `json:"order" validate:"omitempty,gte=0"`
}

func (ns *NewSection) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	ns.Description = core.CleanString(ns.Description)
	return core.Validate.Struct(ns)
}

type UpdateSection struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       *int   `json:"order" validate:"omitempty,gte=0"`
}

func (us *UpdateSection) Validate() error {
	us.Name = core.CleanString(us.Name)
	us.Description = core.CleanString(us.Description)
	return core.Validate.Struct(us)
}

type NewTopic struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	ContentType string `json:"content_type"`
	Order       *int   `json:"order" validate:"omitempty,gte=0"`
}

func (nt *NewTopic) Validate() error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	nt.ContentType = core.CleanString(nt.ContentType, true /* lower */)
	return core.Validate.Struct(nt)
}

type UpdateTopic struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ContentType string `json:"content_type"`
	Order       *int   `json:"order" validate:"omitempty,gte=0"`
}

func (ut *UpdateTopic) Validate() error {
	ut.Name = core.CleanString(ut.Name)
	ut.Description = core.CleanString(ut.Description)
	ut.ContentType = core.CleanString(ut.ContentType, true /* lower */)
	return core.Validate.Struct(ut)
}

type NewContentBlock struct {
	Type  string      `json:"type" validate:"required,blocktype"`
	Value interface{} `json:"value"`
}

func (nb *NewContentBlock) Validate() error {
	if err := core.Validate.Struct(nb); err != nil {
		return err
	}
	return validateBlockValue(nb.Type, nb.Value)
}

// UpdateContentBlock defines what information may be provided to modify an
// existing ContentBlock. A nil Value is left untouched; changing Type
// without providing a Value converts the stored value.
type UpdateContentBlock struct {
	Type  string      `json:"type" validate:"omitempty,blocktype"`
	Value interface{} `json:"value"`
}

func (ub *UpdateContentBlock) Validate(orig ContentBlock) error {
	if err := core.Validate.Struct(ub); err != nil {
		return err
	}
	if ub.Value != nil {
		btype := orig.Type
		if ub.Type != "" {
			btype = ub.Type
		}
		return validateBlockValue(btype, ub.Value)
	}
	return nil
}

// SetProgress is the enrollment progress payload.
type SetProgress struct {
	Progress float64 `json:"progress"`
}

func (sp SetProgress) Validate() error { return core.Validate.Struct(sp) }

// Clamp bounds progress to [0, 100].
func (sp SetProgress) Clamp() float64 {
	if sp.Progress < 0 {
		return 0
	}
	if sp.Progress > 100 {
		return 100
	}
	return sp.Progress
}

type QueryFilter struct {
	Search   string `query:"search"`
	Category string `query:"category"`
	Level    string `query:"level"`
	Status   string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Category == "" && qf.Level == "" && qf.Status == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category)
	qf.Level = core.CleanString(qf.Level)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

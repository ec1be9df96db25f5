package models

import "time"

// HireDateLayout is the canonical textual form of hire and leave dates (dd.MM.yyyy.).
const HireDateLayout = "02.01.2006."

// Person is the stored directory record. RoleName and DepartmentName are only
// populated by queries that join the referenced entities.
type Person struct {
	ID                string     `db:"id" json:"id"`
	FirstName         string     `db:"first_name" json:"first_name"`
	MiddleName        *string    `db:"middle_name" json:"middle_name,omitempty"`
	LastName          string     `db:"last_name" json:"last_name"`
	Email             string     `db:"email" json:"email"`
	PersonalPhone     string     `db:"personal_phone" json:"personal_phone"`
	BusinessPhone     *string    `db:"business_phone" json:"business_phone,omitempty"`
	Birthdate         *string    `db:"birthdate" json:"birthdate,omitempty"`
	HireDate          time.Time  `db:"hire_date" json:"hire_date"`
	LeaveDate         *time.Time `db:"leave_date" json:"leave_date,omitempty"`
	Photo             []byte     `db:"photo" json:"photo,omitempty"`
	RoleID            string     `db:"role_id" json:"role_id"`
	RoleName          string     `db:"role_name" json:"role"`
	DepartmentID      string     `db:"department_id" json:"department_id"`
	DepartmentName    string     `db:"department_name" json:"department"`
	SubjectGroup      *string    `db:"subject_group" json:"subject_group,omitempty"`
	Subject           *string    `db:"subject" json:"subject,omitempty"`
	IsDeleted         bool       `db:"is_deleted" json:"is_deleted"`
	CommentOnDeletion *string    `db:"comment_on_deletion" json:"comment_on_deletion,omitempty"`
	LastChangedAt     *time.Time `db:"last_changed_at" json:"last_changed_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// FormattedHireDate renders HireDate in HireDateLayout.
func (p Person) FormattedHireDate() string {
	return p.HireDate.Format(HireDateLayout)
}

// PersonEdit is a validated, normalised proposal for a person's new state.
// HireDate is already in HireDateLayout and Photo is the effective photo after
// the caller resolved keep/replace/remove; nil means no photo.
type PersonEdit struct {
	FirstName      string
	MiddleName     *string
	LastName       string
	Email          string
	PersonalPhone  string
	BusinessPhone  *string
	Birthdate      *string
	HireDate       string
	RoleID         string
	RoleName       string
	DepartmentID   string
	DepartmentName string
	SubjectGroup   *string
	Subject        *string
	Photo          []byte
}

// PersonFilter captures search and paging options for listing people.
type PersonFilter struct {
	Search   string
	Deleted  bool
	Page     int
	PageSize int
}

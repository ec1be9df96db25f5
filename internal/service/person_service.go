package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/phonebook-api/internal/models"
	appErrors "github.com/noah-isme/phonebook-api/pkg/errors"
)

const (
	actionCreate  = "create"
	actionUpdate  = "update"
	actionDelete  = "delete"
	actionRestore = "restore"
)

var birthdatePattern = regexp.MustCompile(`^\d{2}\.\d{2}\.?$`)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type personRepository interface {
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error)
	FindByID(ctx context.Context, id string) (*models.Person, error)
	LockWithRelations(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Person, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error
	Update(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, leaveDate time.Time, comment *string) error
	Restore(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type roleFinder interface {
	FindByName(ctx context.Context, name string) (*models.Role, error)
}

type departmentFinder interface {
	FindByName(ctx context.Context, name string) (*models.Department, error)
}

type changeLogAppender interface {
	Append(ctx context.Context, exec sqlx.ExtContext, entry *models.ChangeLog) error
}

type changeDescriber interface {
	GenerateChangeDescriptions(old models.Person, edit models.PersonEdit) ([]string, error)
}

type photoValidator interface {
	Validate(data []byte) (string, error)
}

type latestRecorder interface {
	RecordLatest(ctx context.Context, entry *models.ChangeLog)
}

// PersonRequest is the form payload for creating or editing a person.
type PersonRequest struct {
	FirstName     string `json:"first_name" form:"first_name" validate:"required,max=50"`
	MiddleName    string `json:"middle_name" form:"middle_name" validate:"omitempty,max=50"`
	LastName      string `json:"last_name" form:"last_name" validate:"required,max=50"`
	Email         string `json:"email" form:"email" validate:"required,email,max=100"`
	PersonalPhone string `json:"personal_phone" form:"personal_phone" validate:"required,min=7,max=20"`
	BusinessPhone string `json:"business_phone" form:"business_phone" validate:"omitempty,min=7,max=20"`
	Birthdate     string `json:"birthdate" form:"birthdate" validate:"omitempty,birthdate"`
	HireDate      string `json:"hire_date" form:"hire_date" validate:"required,hiredate"`
	Role          string `json:"role" form:"role" validate:"required,max=100"`
	Department    string `json:"department" form:"department" validate:"required,max=100"`
	SubjectGroup  string `json:"subject_group" form:"subject_group" validate:"omitempty,max=20"`
	Subject       string `json:"subject" form:"subject" validate:"omitempty,max=40"`
}

// PhotoChange describes what should happen to the stored photo on edit.
// Data replaces the photo; Remove clears it; neither keeps the current one.
type PhotoChange struct {
	Data   []byte
	Remove bool
}

// DeleteRequest carries the soft delete details.
type DeleteRequest struct {
	LeaveDate string `json:"leave_date" form:"leave_date" validate:"required,hiredate"`
	Comment   string `json:"comment" form:"comment" validate:"omitempty,max=150"`
}

// PersonServiceConfig governs directory specific rules.
type PersonServiceConfig struct {
	EmailDomain     string
	TeacherRoleName string
	MaxPhotoBytes   int64
}

// PersonService manages directory records and records every accepted change.
type PersonService struct {
	tx          txProvider
	people      personRepository
	roles       roleFinder
	departments departmentFinder
	changes     changeLogAppender
	describer   changeDescriber
	photos      photoValidator
	latest      latestRecorder
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         PersonServiceConfig
}

// NewPersonService wires person dependencies.
func NewPersonService(
	tx txProvider,
	people personRepository,
	roles roleFinder,
	departments departmentFinder,
	changes changeLogAppender,
	describer changeDescriber,
	photos photoValidator,
	latest latestRecorder,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PersonServiceConfig,
) *PersonService {
	if validate == nil {
		validate = validator.New()
	}
	registerDirectoryValidations(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPhotoBytes <= 0 {
		cfg.MaxPhotoBytes = 5 << 20
	}
	return &PersonService{
		tx:          tx,
		people:      people,
		roles:       roles,
		departments: departments,
		changes:     changes,
		describer:   describer,
		photos:      photos,
		latest:      latest,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

func registerDirectoryValidations(v *validator.Validate) {
	_ = v.RegisterValidation("birthdate", func(fl validator.FieldLevel) bool {
		return birthdatePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("hiredate", func(fl validator.FieldLevel) bool {
		_, err := parseDirectoryDate(fl.Field().String())
		return err == nil
	})
}

// List returns people and pagination metadata.
func (s *PersonService) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, *models.Pagination, error) {
	people, total, err := s.people.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list people")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return people, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a person with relation names and photo.
func (s *PersonService) Get(ctx context.Context, id string) (*models.Person, error) {
	if err := checkPersonID(id); err != nil {
		return nil, err
	}
	person, err := s.people.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return person, nil
}

// Create registers a new person and records the creation.
func (s *PersonService) Create(ctx context.Context, req PersonRequest, photo []byte, actor string) (*models.Person, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}
	edit, hireDate, err := s.prepare(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if err := s.checkPhoto(photo); err != nil {
		return nil, err
	}
	if len(photo) > 0 {
		edit.Photo = photo
	}

	person := &models.Person{}
	applyEdit(person, edit, hireDate)

	var entry *models.ChangeLog
	err = s.inTx(ctx, actionCreate, func(tx *sqlx.Tx) error {
		if err := s.people.Create(ctx, tx, person); err != nil {
			if isUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "email already used")
			}
			return appErrors.Persistence(err, "failed to create person")
		}
		var err error
		entry, err = s.appendEntry(ctx, tx, person.ID, models.Descriptions{models.ChangeDescriptionCreated}, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, actionCreate, entry)
	return person, nil
}

// Update applies an edit, computing and recording field level change
// descriptions in the same transaction. An edit with no differences writes
// nothing and returns the current record with an empty description list.
func (s *PersonService) Update(ctx context.Context, id string, req PersonRequest, photo PhotoChange, actor string) (*models.Person, []string, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}
	if err := checkPersonID(id); err != nil {
		return nil, nil, err
	}
	edit, hireDate, err := s.prepare(ctx, req, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkPhoto(photo.Data); err != nil {
		return nil, nil, err
	}

	var (
		person  *models.Person
		changes []string
		entry   *models.ChangeLog
	)
	err = s.inTx(ctx, actionUpdate, func(tx *sqlx.Tx) error {
		old, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if old.IsDeleted {
			return appErrors.Clone(appErrors.ErrConflict, "person is deleted")
		}

		edit.Photo = resolvePhoto(old.Photo, photo)
		changes, err = s.describer.GenerateChangeDescriptions(*old, edit)
		if err != nil {
			return err
		}
		person = old
		if len(changes) == 0 {
			return errNoChanges
		}

		applyEdit(person, edit, hireDate)
		if err := s.people.Update(ctx, tx, person); err != nil {
			if isUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "email already used")
			}
			return appErrors.Persistence(err, "failed to update person")
		}
		entry, err = s.appendEntry(ctx, tx, person.ID, models.Descriptions(changes), actor)
		return err
	})
	if errors.Is(err, errNoChanges) {
		s.logger.Debug("person edit without changes", zap.String("person_id", id))
		return person, changes, nil
	}
	if err != nil {
		return nil, nil, err
	}

	s.afterCommit(ctx, actionUpdate, entry)
	return person, changes, nil
}

// Delete soft deletes a person and records the deletion.
func (s *PersonService) Delete(ctx context.Context, id string, req DeleteRequest, actor string) error {
	if strings.TrimSpace(actor) == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}
	if err := checkPersonID(id); err != nil {
		return err
	}
	req.LeaveDate = strings.TrimSpace(req.LeaveDate)
	req.Comment = strings.TrimSpace(req.Comment)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid delete payload")
	}
	leaveDate, _ := parseDirectoryDate(req.LeaveDate)

	var entry *models.ChangeLog
	err := s.inTx(ctx, actionDelete, func(tx *sqlx.Tx) error {
		person, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if person.IsDeleted {
			return appErrors.Clone(appErrors.ErrConflict, "person already deleted")
		}
		if err := s.people.SoftDelete(ctx, tx, id, leaveDate, optional(req.Comment)); err != nil {
			return appErrors.Persistence(err, "failed to delete person")
		}
		entry, err = s.appendEntry(ctx, tx, id, models.Descriptions{models.ChangeDescriptionDeleted}, actor)
		return err
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, actionDelete, entry)
	return nil
}

// Restore reverses a soft delete and records the restoration.
func (s *PersonService) Restore(ctx context.Context, id string, actor string) (*models.Person, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}
	if err := checkPersonID(id); err != nil {
		return nil, err
	}

	var (
		person *models.Person
		entry  *models.ChangeLog
	)
	err := s.inTx(ctx, actionRestore, func(tx *sqlx.Tx) error {
		var err error
		person, err = s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if !person.IsDeleted {
			return appErrors.Clone(appErrors.ErrConflict, "person is not deleted")
		}
		if err := s.people.Restore(ctx, tx, id); err != nil {
			return appErrors.Persistence(err, "failed to restore person")
		}
		entry, err = s.appendEntry(ctx, tx, id, models.Descriptions{models.ChangeDescriptionRestored}, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	person.IsDeleted = false
	person.LeaveDate = nil
	person.CommentOnDeletion = nil
	s.afterCommit(ctx, actionRestore, entry)
	return person, nil
}

var errNoChanges = errors.New("no changes")

// inTx runs fn in a transaction, rolling back on any error including errNoChanges.
func (s *PersonService) inTx(ctx context.Context, action string, fn func(tx *sqlx.Tx) error) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	start := time.Now()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Persistence(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			outcome := TxRolledBack
			if errors.Is(err, errNoChanges) {
				outcome = TxNoop
			}
			s.metrics.ObserveTransaction(action, outcome, time.Since(start))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Persistence(err, "failed to commit transaction")
	}
	s.metrics.ObserveTransaction(action, TxCommitted, time.Since(start))
	return nil
}

func (s *PersonService) lock(ctx context.Context, tx *sqlx.Tx, id string) (*models.Person, error) {
	person, err := s.people.LockWithRelations(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Persistence(err, "failed to load person")
	}
	return person, nil
}

func (s *PersonService) appendEntry(ctx context.Context, tx *sqlx.Tx, personID string, descriptions models.Descriptions, actor string) (*models.ChangeLog, error) {
	entry := &models.ChangeLog{
		PersonID:     personID,
		Descriptions: descriptions,
		ChangedBy:    strings.TrimSpace(actor),
		ChangedAt:    time.Now().UTC(),
	}
	if err := s.changes.Append(ctx, tx, entry); err != nil {
		return nil, appErrors.Persistence(err, "failed to append change log")
	}
	return entry, nil
}

// afterCommit publishes the committed entry as the person's latest change.
func (s *PersonService) afterCommit(ctx context.Context, action string, entry *models.ChangeLog) {
	s.metrics.RecordChangeLogEntry(action, len(entry.Descriptions))
	if s.latest != nil {
		s.latest.RecordLatest(ctx, entry)
	}
	s.logger.Info("person change recorded",
		zap.String("action", action),
		zap.String("person_id", entry.PersonID),
		zap.Int("descriptions", len(entry.Descriptions)),
		zap.String("actor", entry.ChangedBy),
	)
}

// checkPersonID rejects identifiers that cannot name a stored person.
func checkPersonID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "person not found")
	}
	return nil
}

func (s *PersonService) checkPhoto(photo []byte) error {
	if len(photo) == 0 {
		return nil
	}
	if int64(len(photo)) > s.cfg.MaxPhotoBytes {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("photo exceeds %d bytes", s.cfg.MaxPhotoBytes))
	}
	if s.photos == nil {
		return nil
	}
	if _, err := s.photos.Validate(photo); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidImage.Code, appErrors.ErrInvalidImage.Status, "photo could not be decoded")
	}
	return nil
}

// prepare validates and normalises a request into an edit with resolved references.
func (s *PersonService) prepare(ctx context.Context, req PersonRequest, excludeID string) (models.PersonEdit, time.Time, error) {
	req = normaliseRequest(req)
	if err := s.validator.Struct(req); err != nil {
		return models.PersonEdit{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid person payload")
	}
	if domain := strings.ToLower(strings.TrimSpace(s.cfg.EmailDomain)); domain != "" && !strings.HasSuffix(strings.ToLower(req.Email), "@"+domain) {
		return models.PersonEdit{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("email must belong to %s", domain))
	}
	if s.cfg.TeacherRoleName != "" && req.Role == s.cfg.TeacherRoleName && (req.SubjectGroup == "" || req.Subject == "") {
		return models.PersonEdit{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "subject group and subject are required for teachers")
	}
	hireDate, _ := parseDirectoryDate(req.HireDate)

	role, err := s.roles.FindByName(ctx, req.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PersonEdit{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "unknown role")
		}
		return models.PersonEdit{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve role")
	}
	department, err := s.departments.FindByName(ctx, req.Department)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PersonEdit{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "unknown department")
		}
		return models.PersonEdit{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve department")
	}

	exists, err := s.people.ExistsByEmail(ctx, req.Email, excludeID)
	if err != nil {
		return models.PersonEdit{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return models.PersonEdit{}, time.Time{}, appErrors.Clone(appErrors.ErrConflict, "email already used")
	}

	return models.PersonEdit{
		FirstName:      req.FirstName,
		MiddleName:     optional(req.MiddleName),
		LastName:       req.LastName,
		Email:          req.Email,
		PersonalPhone:  req.PersonalPhone,
		BusinessPhone:  optional(req.BusinessPhone),
		Birthdate:      optional(req.Birthdate),
		HireDate:       hireDate.Format(models.HireDateLayout),
		RoleID:         role.ID,
		RoleName:       role.Name,
		DepartmentID:   department.ID,
		DepartmentName: department.Name,
		SubjectGroup:   optional(req.SubjectGroup),
		Subject:        optional(req.Subject),
	}, hireDate, nil
}

func normaliseRequest(req PersonRequest) PersonRequest {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.MiddleName = strings.TrimSpace(req.MiddleName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.PersonalPhone = normalisePhone(req.PersonalPhone)
	req.BusinessPhone = normalisePhone(req.BusinessPhone)
	req.Birthdate = strings.TrimSpace(req.Birthdate)
	if req.Birthdate != "" && !strings.HasSuffix(req.Birthdate, ".") {
		req.Birthdate += "."
	}
	req.HireDate = strings.TrimSpace(req.HireDate)
	req.Role = strings.TrimSpace(req.Role)
	req.Department = strings.TrimSpace(req.Department)
	req.SubjectGroup = strings.TrimSpace(req.SubjectGroup)
	req.Subject = strings.TrimSpace(req.Subject)
	return req
}

// normalisePhone drops spaces and rewrites the +359 country prefix to a local 0.
func normalisePhone(raw string) string {
	phone := strings.Join(strings.Fields(raw), "")
	if strings.HasPrefix(phone, "+359") {
		phone = "0" + strings.TrimPrefix(phone, "+359")
	}
	return phone
}

// parseDirectoryDate accepts dd.MM.yyyy with or without the trailing dot.
func parseDirectoryDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{models.HireDateLayout, "02.01.2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func resolvePhoto(current []byte, change PhotoChange) []byte {
	switch {
	case len(change.Data) > 0:
		return change.Data
	case change.Remove:
		return nil
	default:
		return current
	}
}

func applyEdit(person *models.Person, edit models.PersonEdit, hireDate time.Time) {
	person.FirstName = edit.FirstName
	person.MiddleName = edit.MiddleName
	person.LastName = edit.LastName
	person.Email = edit.Email
	person.PersonalPhone = edit.PersonalPhone
	person.BusinessPhone = edit.BusinessPhone
	person.Birthdate = edit.Birthdate
	person.HireDate = hireDate
	person.RoleID = edit.RoleID
	person.RoleName = edit.RoleName
	person.DepartmentID = edit.DepartmentID
	person.DepartmentName = edit.DepartmentName
	person.SubjectGroup = edit.SubjectGroup
	person.Subject = edit.Subject
	person.Photo = edit.Photo
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

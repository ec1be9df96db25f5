package service

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/phonebook-api/internal/models"
	appErrors "github.com/noah-isme/phonebook-api/pkg/errors"
	"github.com/noah-isme/phonebook-api/pkg/thumbnail"
)

// ReferencePolicy controls how role and department changes are detected.
type ReferencePolicy string

const (
	// ReferenceByLabel compares display names. Renaming a role without
	// reassigning the person produces no description.
	ReferenceByLabel ReferencePolicy = "label"
	// ReferenceByIdentity compares entity ids when both sides carry one and
	// falls back to display names otherwise.
	ReferenceByIdentity ReferencePolicy = "identity"
)

// ParseReferencePolicy maps a configuration value onto a ReferencePolicy.
func ParseReferencePolicy(raw string) (ReferencePolicy, error) {
	switch ReferencePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ReferenceByLabel:
		return ReferenceByLabel, nil
	case ReferenceByIdentity:
		return ReferenceByIdentity, nil
	default:
		return "", fmt.Errorf("unknown reference policy %q", raw)
	}
}

type thumbnailer interface {
	Make(data []byte) ([]byte, error)
}

type fieldLabels struct {
	added   string
	removed string
	edited  string
}

var (
	firstNameLabels     = fieldLabels{edited: "Редактирано първо име"}
	middleNameLabels    = fieldLabels{added: "Добавено второ име", removed: "Премахнато второ име", edited: "Редактирано второ име"}
	lastNameLabels      = fieldLabels{edited: "Редактирана фамилия"}
	personalPhoneLabels = fieldLabels{edited: "Редактиран личен телефон"}
	businessPhoneLabels = fieldLabels{added: "Добавен служебен телефон", removed: "Премахнат служебен телефон", edited: "Редактиран служебен телефон"}
	emailLabels         = fieldLabels{edited: "Редактиран служебен имейл"}
	roleLabels          = fieldLabels{edited: "Редактирана длъжност"}
	departmentLabels    = fieldLabels{edited: "Редактиран отдел"}
	subjectGroupLabels  = fieldLabels{added: "Добавена група предмети", removed: "Премахната група предмети", edited: "Редактирана група предмети"}
	subjectLabels       = fieldLabels{added: "Добавен предмет", removed: "Премахнат предмет", edited: "Редактиран предмет"}
	birthdateLabels     = fieldLabels{added: "Добавена рождена дата", removed: "Премахната рождена дата", edited: "Редактирана рождена дата"}
	hireDateLabels      = fieldLabels{edited: "Редактирана дата на постъпване"}
	photoLabels         = fieldLabels{added: "Добавена снимка", removed: "Премахната снимка", edited: "Редактирана снимка"}
)

const (
	photoAltOld = "Old Picture"
	photoAltNew = "Updated Picture"
)

// ChangeDescriber turns an old snapshot and a proposed edit into the ordered,
// human readable descriptions stored on change log entries.
type ChangeDescriber struct {
	thumbs     thumbnailer
	references ReferencePolicy
}

// NewChangeDescriber constructs a ChangeDescriber. A nil thumbnailer falls back
// to the default 100x130 stretch generator.
func NewChangeDescriber(thumbs thumbnailer, references ReferencePolicy) *ChangeDescriber {
	if thumbs == nil {
		thumbs = thumbnail.New(thumbnail.Options{})
	}
	if references == "" {
		references = ReferenceByLabel
	}
	return &ChangeDescriber{thumbs: thumbs, references: references}
}

// GenerateChangeDescriptions compares every tracked field in a fixed order and
// returns one description per difference. The result is empty, never nil, when
// nothing changed. Thumbnail failures abort the whole computation.
func (d *ChangeDescriber) GenerateChangeDescriptions(old models.Person, edit models.PersonEdit) ([]string, error) {
	changes := make([]string, 0)

	changes = appendRequired(changes, firstNameLabels, old.FirstName, edit.FirstName)
	changes = appendOptional(changes, middleNameLabels, old.MiddleName, edit.MiddleName)
	changes = appendRequired(changes, lastNameLabels, old.LastName, edit.LastName)
	changes = appendRequired(changes, personalPhoneLabels, old.PersonalPhone, edit.PersonalPhone)
	changes = appendOptional(changes, businessPhoneLabels, old.BusinessPhone, edit.BusinessPhone)
	changes = appendRequired(changes, emailLabels, old.Email, edit.Email)

	if d.referenceChanged(old.RoleID, old.RoleName, edit.RoleID, edit.RoleName) {
		changes = append(changes, edited(roleLabels, old.RoleName, edit.RoleName))
	}
	if d.referenceChanged(old.DepartmentID, old.DepartmentName, edit.DepartmentID, edit.DepartmentName) {
		changes = append(changes, edited(departmentLabels, old.DepartmentName, edit.DepartmentName))
	}

	changes = appendOptional(changes, subjectGroupLabels, old.SubjectGroup, edit.SubjectGroup)
	changes = appendOptional(changes, subjectLabels, old.Subject, edit.Subject)
	changes = appendOptional(changes, birthdateLabels, old.Birthdate, edit.Birthdate)
	changes = appendRequired(changes, hireDateLabels, old.FormattedHireDate(), edit.HireDate)

	photo, err := d.describePhoto(old.Photo, edit.Photo)
	if err != nil {
		return nil, err
	}
	if photo != "" {
		changes = append(changes, photo)
	}

	return changes, nil
}

func (d *ChangeDescriber) referenceChanged(oldID, oldName, newID, newName string) bool {
	if d.references == ReferenceByIdentity && oldID != "" && newID != "" {
		return oldID != newID
	}
	return oldName != newName
}

func (d *ChangeDescriber) describePhoto(oldPhoto, newPhoto []byte) (string, error) {
	if photosEqual(oldPhoto, newPhoto) {
		return "", nil
	}

	switch {
	case len(oldPhoto) == 0:
		img, err := d.embed(newPhoto, photoAltNew)
		if err != nil {
			return "", err
		}
		return added(photoLabels, img), nil
	case len(newPhoto) == 0:
		img, err := d.embed(oldPhoto, photoAltOld)
		if err != nil {
			return "", err
		}
		return removed(photoLabels, img), nil
	default:
		oldImg, err := d.embed(oldPhoto, photoAltOld)
		if err != nil {
			return "", err
		}
		newImg, err := d.embed(newPhoto, photoAltNew)
		if err != nil {
			return "", err
		}
		return edited(photoLabels, oldImg, newImg), nil
	}
}

func (d *ChangeDescriber) embed(photo []byte, alt string) (string, error) {
	thumb, err := d.thumbs.Make(photo)
	if err != nil {
		if errors.Is(err, thumbnail.ErrInvalidImage) {
			return "", appErrors.Wrap(err, appErrors.ErrInvalidImage.Code, appErrors.ErrInvalidImage.Status, "photo could not be decoded")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render photo thumbnail")
	}
	return fmt.Sprintf("<img src='data:%s;base64,%s' alt='%s' />", thumbnail.MediaType, base64.StdEncoding.EncodeToString(thumb), alt), nil
}

// photosEqual treats nil and empty slices as an absent photo.
func photosEqual(a, b []byte) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return bytes.Equal(a, b)
}

func appendRequired(changes []string, labels fieldLabels, oldValue, newValue string) []string {
	if oldValue == newValue {
		return changes
	}
	return append(changes, edited(labels, oldValue, newValue))
}

func appendOptional(changes []string, labels fieldLabels, oldValue, newValue *string) []string {
	switch {
	case oldValue == nil && newValue == nil:
		return changes
	case oldValue == nil:
		return append(changes, added(labels, *newValue))
	case newValue == nil:
		return append(changes, removed(labels, *oldValue))
	case *oldValue == *newValue:
		return changes
	default:
		return append(changes, edited(labels, *oldValue, *newValue))
	}
}

func added(labels fieldLabels, value string) string {
	return labels.added + ": " + value
}

func removed(labels fieldLabels, value string) string {
	return labels.removed + ": " + value
}

func edited(labels fieldLabels, oldValue, newValue string) string {
	return labels.edited + ": " + oldValue + " -> " + newValue
}

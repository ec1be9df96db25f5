package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/phonebook-api/internal/models"
	appErrors "github.com/noah-isme/phonebook-api/pkg/errors"
	"github.com/noah-isme/phonebook-api/pkg/thumbnail"
)

type thumbnailerStub struct {
	calls  int
	inputs [][]byte
	err    error
}

func (s *thumbnailerStub) Make(data []byte) ([]byte, error) {
	s.calls++
	s.inputs = append(s.inputs, data)
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte("thumb:"), data...), nil
}

const testPersonID = "5f0c3e2a-8b1d-4c6e-9a7f-2d3b4c5e6f70"

func strPtr(v string) *string { return &v }

func samplePerson() models.Person {
	return models.Person{
		ID:             testPersonID,
		FirstName:      "Ivan",
		LastName:       "Petrov",
		Email:          "ivan.petrov@buditel.bg",
		PersonalPhone:  "0888123456",
		HireDate:       time.Date(2020, time.September, 15, 0, 0, 0, 0, time.UTC),
		RoleID:         "r-1",
		RoleName:       "Учител",
		DepartmentID:   "d-1",
		DepartmentName: "Начален етап",
		SubjectGroup:   strPtr("Природни науки"),
		Subject:        strPtr("Физика"),
	}
}

func editFrom(p models.Person) models.PersonEdit {
	return models.PersonEdit{
		FirstName:      p.FirstName,
		MiddleName:     p.MiddleName,
		LastName:       p.LastName,
		Email:          p.Email,
		PersonalPhone:  p.PersonalPhone,
		BusinessPhone:  p.BusinessPhone,
		Birthdate:      p.Birthdate,
		HireDate:       p.FormattedHireDate(),
		RoleID:         p.RoleID,
		RoleName:       p.RoleName,
		DepartmentID:   p.DepartmentID,
		DepartmentName: p.DepartmentName,
		SubjectGroup:   p.SubjectGroup,
		Subject:        p.Subject,
		Photo:          p.Photo,
	}
}

func TestGenerateChangeDescriptionsIdentity(t *testing.T) {
	stub := &thumbnailerStub{}
	describer := NewChangeDescriber(stub, ReferenceByLabel)

	old := samplePerson()
	old.MiddleName = strPtr("Georgiev")
	old.Photo = []byte("photo")

	changes, err := describer.GenerateChangeDescriptions(old, editFrom(old))
	require.NoError(t, err)
	assert.NotNil(t, changes)
	assert.Empty(t, changes)
	assert.Zero(t, stub.calls)
}

func TestGenerateChangeDescriptionsSingleField(t *testing.T) {
	describer := NewChangeDescriber(&thumbnailerStub{}, ReferenceByLabel)

	old := samplePerson()
	edit := editFrom(old)
	edit.LastName = "Ivanov"

	changes, err := describer.GenerateChangeDescriptions(old, edit)
	require.NoError(t, err)
	assert.Equal(t, []string{"Редактирана фамилия: Petrov -> Ivanov"}, changes)
}

func TestGenerateChangeDescriptionsRequiredFields(t *testing.T) {
	describer := NewChangeDescriber(&thumbnailerStub{}, ReferenceByLabel)
	old := samplePerson()

	tests := []struct {
		name   string
		mutate func(*models.PersonEdit)
		want   string
	}{
		{"first name", func(e *models.PersonEdit) { e.FirstName = "Georgi" }, "Редактирано първо име: Ivan -> Georgi"},
		{"personal phone", func(e *models.PersonEdit) { e.PersonalPhone = "0899000111" }, "Редактиран личен телефон: 0888123456 -> 0899000111"},
		{"email", func(e *models.PersonEdit) { e.Email = "i.petrov@buditel.bg" }, "Редактиран служебен имейл: ivan.petrov@buditel.bg -> i.petrov@buditel.bg"},
		{"hire date", func(e *models.PersonEdit) { e.HireDate = "01.02.2021." }, "Редактирана дата на постъпване: 15.09.2020. -> 01.02.2021."},
		{"role", func(e *models.PersonEdit) { e.RoleID, e.RoleName = "r-2", "Директор" }, "Редактирана длъжност: Учител -> Директор"},
		{"department", func(e *models.PersonEdit) {
			e.DepartmentID, e.DepartmentName = "d-2", "Прогимназиален етап"
		}, "Редактиран отдел: Начален етап -> Прогимназиален етап"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edit := editFrom(old)
			tt.mutate(&edit)

			changes, err := describer.GenerateChangeDescriptions(old, edit)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, changes)
		})
	}
}

func TestGenerateChangeDescriptionsOptionalFields(t *testing.T) {
	describer := NewChangeDescriber(&thumbnailerStub{}, ReferenceByLabel)

	type field struct {
		name    string
		get     func(*models.Person) **string
		set     func(*models.PersonEdit, *string)
		added   string
		removed string
		edited  string
	}
	fields := []field{
		{
			name:    "middle name",
			get:     func(p *models.Person) **string { return &p.MiddleName },
			set:     func(e *models.PersonEdit, v *string) { e.MiddleName = v },
			added:   "Добавено второ име: B",
			removed: "Премахнато второ име: A",
			edited:  "Редактирано второ име: A -> B",
		},
		{
			name:    "business phone",
			get:     func(p *models.Person) **string { return &p.BusinessPhone },
			set:     func(e *models.PersonEdit, v *string) { e.BusinessPhone = v },
			added:   "Добавен служебен телефон: B",
			removed: "Премахнат служебен телефон: A",
			edited:  "Редактиран служебен телефон: A -> B",
		},
		{
			name:    "subject group",
			get:     func(p *models.Person) **string { return &p.SubjectGroup },
			set:     func(e *models.PersonEdit, v *string) { e.SubjectGroup = v },
			added:   "Добавена група предмети: B",
			removed: "Премахната група предмети: A",
			edited:  "Редактирана група предмети: A -> B",
		},
		{
			name:    "subject",
			get:     func(p *models.Person) **string { return &p.Subject },
			set:     func(e *models.PersonEdit, v *string) { e.Subject = v },
			added:   "Добавен предмет: B",
			removed: "Премахнат предмет: A",
			edited:  "Редактиран предмет: A -> B",
		},
		{
			name:    "birthdate",
			get:     func(p *models.Person) **string { return &p.Birthdate },
			set:     func(e *models.PersonEdit, v *string) { e.Birthdate = v },
			added:   "Добавена рождена дата: B",
			removed: "Премахната рождена дата: A",
			edited:  "Редактирана рождена дата: A -> B",
		},
	}

	cases := []struct {
		name     string
		oldValue *string
		newValue *string
		want     func(field) []string
	}{
		{"both absent", nil, nil, func(field) []string { return []string{} }},
		{"added", nil, strPtr("B"), func(f field) []string { return []string{f.added} }},
		{"removed", strPtr("A"), nil, func(f field) []string { return []string{f.removed} }},
		{"edited", strPtr("A"), strPtr("B"), func(f field) []string { return []string{f.edited} }},
		{"unchanged", strPtr("A"), strPtr("A"), func(field) []string { return []string{} }},
	}

	for _, f := range fields {
		for _, c := range cases {
			t.Run(fmt.Sprintf("%s/%s", f.name, c.name), func(t *testing.T) {
				old := samplePerson()
				*f.get(&old) = c.oldValue
				edit := editFrom(old)
				f.set(&edit, c.newValue)

				changes, err := describer.GenerateChangeDescriptions(old, edit)
				require.NoError(t, err)
				assert.Equal(t, c.want(f), changes)
			})
		}
	}
}

func TestGenerateChangeDescriptionsEmptyStringIsPresent(t *testing.T) {
	describer := NewChangeDescriber(&thumbnailerStub{}, ReferenceByLabel)

	old := samplePerson()
	edit := editFrom(old)
	edit.MiddleName = strPtr("")

	changes, err := describer.GenerateChangeDescriptions(old, edit)
	require.NoError(t, err)
	assert.Equal(t, []string{"Добавено второ име: "}, changes)
}

func TestGenerateChangeDescriptionsReferencePolicy(t *testing.T) {
	old := samplePerson()

	t.Run("label ignores id change with same name", func(t *testing.T) {
		describer := NewChangeDescriber(&thumbnailerStub{}, ReferenceByLabel)
		edit := editFrom(old)
		edit.RoleID = "r-other"

		changes, err := describer.GenerateChangeDescriptions(old, edit)
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("label reports name change", func(t *testing.T) {
		describer := NewChangeDescriber(&thumbnailerStub{}, ReferenceByLabel)
		edit := editFrom(old)
		edit.RoleName = "Старши учител"

		changes, err := describer.GenerateChangeDescriptions(old, edit)
		require.NoError(t, err)
		assert.Equal(t, []string{"Редактирана длъжност: Учител -> Старши учител"}, changes)
	})

	t.Run("identity reports id change with same name", func(t *testing.T) {
		describer := NewChangeDescriber(&thumbnailerStub{}, ReferenceByIdentity)
		edit := editFrom(old)
		edit.DepartmentID = "d-other"

		changes, err := describer.GenerateChangeDescriptions(old, edit)
		require.NoError(t, err)
		assert.Equal(t, []string{"Редактиран отдел: Начален етап -> Начален етап"}, changes)
	})

	t.Run("identity ignores rename of same entity", func(t *testing.T) {
		describer := NewChangeDescriber(&thumbnailerStub{}, ReferenceByIdentity)
		edit := editFrom(old)
		edit.RoleName = "Старши учител"

		changes, err := describer.GenerateChangeDescriptions(old, edit)
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("identity falls back to labels without ids", func(t *testing.T) {
		describer := NewChangeDescriber(&thumbnailerStub{}, ReferenceByIdentity)
		edit := editFrom(old)
		edit.RoleID = ""
		edit.RoleName = "Директор"

		changes, err := describer.GenerateChangeDescriptions(old, edit)
		require.NoError(t, err)
		assert.Equal(t, []string{"Редактирана длъжност: Учител -> Директор"}, changes)
	})
}

func TestGenerateChangeDescriptionsPhoto(t *testing.T) {
	tests := []struct {
		name      string
		oldPhoto  []byte
		newPhoto  []byte
		wantCalls int
		want      []string
	}{
		{name: "both absent", wantCalls: 0, want: []string{}},
		{name: "nil and empty are equal", oldPhoto: []byte{}, newPhoto: nil, wantCalls: 0, want: []string{}},
		{name: "identical bytes", oldPhoto: []byte("same"), newPhoto: []byte("same"), wantCalls: 0, want: []string{}},
		{
			name:      "added",
			newPhoto:  []byte("new"),
			wantCalls: 1,
			want:      []string{"Добавена снимка: <img src='data:image/png;base64,dGh1bWI6bmV3' alt='Updated Picture' />"},
		},
		{
			name:      "removed",
			oldPhoto:  []byte("old"),
			wantCalls: 1,
			want:      []string{"Премахната снимка: <img src='data:image/png;base64,dGh1bWI6b2xk' alt='Old Picture' />"},
		},
		{
			name:      "replaced",
			oldPhoto:  []byte("old"),
			newPhoto:  []byte("new"),
			wantCalls: 2,
			want: []string{
				"Редактирана снимка: <img src='data:image/png;base64,dGh1bWI6b2xk' alt='Old Picture' /> -> <img src='data:image/png;base64,dGh1bWI6bmV3' alt='Updated Picture' />",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &thumbnailerStub{}
			describer := NewChangeDescriber(stub, ReferenceByLabel)

			old := samplePerson()
			old.Photo = tt.oldPhoto
			edit := editFrom(old)
			edit.Photo = tt.newPhoto

			changes, err := describer.GenerateChangeDescriptions(old, edit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, changes)
			assert.Equal(t, tt.wantCalls, stub.calls)
		})
	}
}

func TestGenerateChangeDescriptionsPhotoOrderOldFirst(t *testing.T) {
	stub := &thumbnailerStub{}
	describer := NewChangeDescriber(stub, ReferenceByLabel)

	old := samplePerson()
	old.Photo = []byte("old")
	edit := editFrom(old)
	edit.Photo = []byte("new")

	_, err := describer.GenerateChangeDescriptions(old, edit)
	require.NoError(t, err)
	require.Len(t, stub.inputs, 2)
	assert.Equal(t, []byte("old"), stub.inputs[0])
	assert.Equal(t, []byte("new"), stub.inputs[1])
}

func TestGenerateChangeDescriptionsFieldOrder(t *testing.T) {
	describer := NewChangeDescriber(&thumbnailerStub{}, ReferenceByLabel)

	old := samplePerson()
	edit := editFrom(old)
	edit.Subject = strPtr("Химия")
	edit.Email = "ivan@buditel.bg"
	edit.Photo = []byte("new")
	edit.FirstName = "Georgi"
	edit.HireDate = "16.09.2020."

	changes, err := describer.GenerateChangeDescriptions(old, edit)
	require.NoError(t, err)
	require.Len(t, changes, 5)
	assert.True(t, strings.HasPrefix(changes[0], "Редактирано първо име"))
	assert.True(t, strings.HasPrefix(changes[1], "Редактиран служебен имейл"))
	assert.True(t, strings.HasPrefix(changes[2], "Редактиран предмет"))
	assert.True(t, strings.HasPrefix(changes[3], "Редактирана дата на постъпване"))
	assert.True(t, strings.HasPrefix(changes[4], "Добавена снимка"))
}

func TestGenerateChangeDescriptionsThumbnailFailure(t *testing.T) {
	old := samplePerson()
	edit := editFrom(old)
	edit.LastName = "Ivanov"
	edit.Photo = []byte("broken")

	t.Run("invalid image", func(t *testing.T) {
		stub := &thumbnailerStub{err: fmt.Errorf("%w: bad header", thumbnail.ErrInvalidImage)}
		describer := NewChangeDescriber(stub, ReferenceByLabel)

		changes, err := describer.GenerateChangeDescriptions(old, edit)
		require.Error(t, err)
		assert.Nil(t, changes)
		assert.ErrorIs(t, err, thumbnail.ErrInvalidImage)
		assert.Equal(t, appErrors.ErrInvalidImage.Code, appErrors.FromError(err).Code)
	})

	t.Run("encoder failure", func(t *testing.T) {
		stub := &thumbnailerStub{err: errors.New("encoder exploded")}
		describer := NewChangeDescriber(stub, ReferenceByLabel)

		_, err := describer.GenerateChangeDescriptions(old, edit)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	})
}

func TestGenerateChangeDescriptionsWithRealThumbnails(t *testing.T) {
	describer := NewChangeDescriber(nil, "")

	old := samplePerson()
	edit := editFrom(old)
	edit.Photo = []byte("not an image at all")

	_, err := describer.GenerateChangeDescriptions(old, edit)
	assert.ErrorIs(t, err, appErrors.ErrInvalidImage)
}

func TestParseReferencePolicy(t *testing.T) {
	policy, err := ParseReferencePolicy("")
	require.NoError(t, err)
	assert.Equal(t, ReferenceByLabel, policy)

	policy, err = ParseReferencePolicy("Identity")
	require.NoError(t, err)
	assert.Equal(t, ReferenceByIdentity, policy)

	_, err = ParseReferencePolicy("uuid")
	assert.Error(t, err)
}

package models

import "time"

// School groups students and teams under one headmaster.
type School struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Address      string    `db:"address" json:"address"`
	District     string    `db:"district" json:"district"`
	State        string    `db:"state" json:"state"`
	Pincode      string    `db:"pincode" json:"pincode"`
	HeadmasterID *string   `db:"headmaster_id" json:"headmaster_id,omitempty"`
	Active       bool      `db:"is_active" json:"is_active"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// OfficeType enumerates audited government entity kinds.
type OfficeType string

const (
	OfficeTypeMRO          OfficeType = "mro"
	OfficeTypeMunicipality OfficeType = "municipality"
	OfficeTypeHospital     OfficeType = "hospital"
	OfficeTypePolice       OfficeType = "police"
	OfficeTypeOther        OfficeType = "other"
)

// Valid reports whether the office type is known.
func (t OfficeType) Valid() bool {
	switch t {
	case OfficeTypeMRO, OfficeTypeMunicipality, OfficeTypeHospital, OfficeTypePolice, OfficeTypeOther:
		return true
	}
	return false
}

// Office is an audited government entity.
type Office struct {
	ID            string     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Type          OfficeType `db:"type" json:"type"`
	Address       string     `db:"address" json:"address"`
	District      string     `db:"district" json:"district"`
	State         string     `db:"state" json:"state"`
	Pincode       string     `db:"pincode" json:"pincode"`
	ContactPerson *string    `db:"contact_person" json:"contact_person,omitempty"`
	ContactPhone  *string    `db:"contact_phone" json:"contact_phone,omitempty"`
	Active        bool       `db:"is_active" json:"is_active"`
	CreatedBy     string     `db:"created_by" json:"created_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// DirectoryFilter constrains school and office listings.
type DirectoryFilter struct {
	Active   *bool
	Type     OfficeType
	District string
	Search   string
}

// Team is a group of students of one school with a designated leader.
type Team struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SchoolID     string    `json:"school_id"`
	StudentIDs   []string  `json:"student_ids"`
	TeamLeaderID string    `json:"team_leader_id"`
	Active       bool      `json:"is_active"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasMember reports whether the student belongs to the team.
func (t *Team) HasMember(studentID string) bool {
	for _, id := range t.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// TeamWorkload summarises assignments per team.
type TeamWorkload struct {
	TeamID         string  `db:"team_id" json:"team_id"`
	TeamName       string  `db:"team_name" json:"team_name"`
	TotalAssigned  int     `db:"total_assigned" json:"total_assigned"`
	Pending        int     `db:"pending" json:"pending"`
	Completed      int     `db:"completed" json:"completed"`
	CompletionRate float64 `db:"-" json:"completion_rate"`
}

// FieldType enumerates template form field kinds.
type FieldType string

const (
	FieldTypeRating    FieldType = "rating"
	FieldTypeText      FieldType = "text"
	FieldTypeMultiline FieldType = "multiline"
	FieldTypePhoto     FieldType = "photo"
	FieldTypeDropdown  FieldType = "dropdown"
)

// Valid reports whether the field type is known.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeRating, FieldTypeText, FieldTypeMultiline, FieldTypePhoto, FieldTypeDropdown:
		return true
	}
	return false
}

// FormField describes one input of an inspection template.
type FormField struct {
	FieldName  string    `json:"field_name" yaml:"field_name"`
	FieldType  FieldType `json:"field_type" yaml:"field_type"`
	IsRequired bool      `json:"is_required" yaml:"is_required"`
	Options    []string  `json:"options,omitempty" yaml:"options,omitempty"`
}

// Template defines the form a team fills when inspecting an office.
type Template struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	OfficeTypes []OfficeType `json:"office_types"`
	FormFields  []FormField  `json:"form_fields"`
	Active      bool         `json:"is_active"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

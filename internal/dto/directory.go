package dto

import "github.com/noah-isme/civica-api/internal/models"

// CreateSchoolRequest registers a school.
type CreateSchoolRequest struct {
	Name         string  `json:"name" validate:"required,max=200"`
	Address      string  `json:"address" validate:"max=500"`
	District     string  `json:"district" validate:"max=100"`
	State        string  `json:"state" validate:"max=100"`
	Pincode      string  `json:"pincode" validate:"omitempty,numeric,len=6"`
	HeadmasterID *string `json:"headmaster_id"`
}

// CreateOfficeRequest registers an audited office.
type CreateOfficeRequest struct {
	Name          string            `json:"name" validate:"required,max=200"`
	Type          models.OfficeType `json:"type" validate:"required,oneof=mro municipality hospital police other"`
	Address       string            `json:"address" validate:"max=500"`
	District      string            `json:"district" validate:"max=100"`
	State         string            `json:"state" validate:"max=100"`
	Pincode       string            `json:"pincode" validate:"omitempty,numeric,len=6"`
	ContactPerson *string           `json:"contact_person" validate:"omitempty,max=200"`
	ContactPhone  *string           `json:"contact_phone" validate:"omitempty,max=20"`
}

// TeamRequest creates or replaces a team.
type TeamRequest struct {
	Name         string   `json:"name" validate:"required,max=100"`
	SchoolID     string   `json:"school_id" validate:"required"`
	StudentIDs   []string `json:"student_ids" validate:"required,min=1,dive,required"`
	TeamLeaderID string   `json:"team_leader_id" validate:"required"`
}

// TemplateRequest creates or replaces an inspection template.
type TemplateRequest struct {
	Name        string              `json:"name" yaml:"name" validate:"required,max=200"`
	Description string              `json:"description" yaml:"description" validate:"max=2000"`
	OfficeTypes []models.OfficeType `json:"office_types" yaml:"office_types" validate:"dive,oneof=mro municipality hospital police other"`
	FormFields  []models.FormField  `json:"form_fields" yaml:"form_fields" validate:"required,min=1"`
}

// CloneTemplateRequest names the copy of a template.
type CloneTemplateRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// SetActiveRequest toggles the active flag of a directory entry.
type SetActiveRequest struct {
	Active *bool `json:"is_active"`
}

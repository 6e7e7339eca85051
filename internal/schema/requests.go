package schema

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"accounts/internal/models"
)

const dateLayout = "2006-01-02"

// PostalCode accepts either a JSON string or a JSON number.
type PostalCode string

func (p *PostalCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PostalCode(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fieldError("address.pincode", "type", "address.pincode must be a string or a number")
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fieldError("address.pincode", "type", "address.pincode must be a whole number")
	}
	*p = PostalCode(n.String())
	return nil
}

type AddressInput struct {
	StreetName string     `json:"street_name" validate:"omitempty,max=100"`
	Pincode    PostalCode `json:"pincode" validate:"omitempty,max=12"`
	State      string     `json:"state" validate:"omitempty,max=60"`
	Country    string     `json:"country" validate:"omitempty,max=60"`
}

func (a *AddressInput) model() *models.Address {
	if a == nil {
		return nil
	}
	return &models.Address{
		StreetName: a.StreetName,
		Pincode:    string(a.Pincode),
		State:      a.State,
		Country:    a.Country,
	}
}

type RegisterRequest struct {
	FirstName              string        `json:"first_name" validate:"required,min=3,max=40"`
	LastName               string        `json:"last_name" validate:"omitempty,min=3,max=40"`
	Email                  string        `json:"email" validate:"required,email,max=254"`
	Password               string        `json:"password" validate:"required,min=3,max=60"`
	About                  string        `json:"about" validate:"required,min=10,max=500"`
	Address                *AddressInput `json:"address"`
	IsAdmin                bool          `json:"is_admin"`
	Gender                 string        `json:"gender" validate:"required,oneof=male female"`
	DateOfBirth            string        `json:"date_of_birth" validate:"required,datetime=2006-01-02,pastdate"`
	EducationQualification string        `json:"education_qualification" validate:"omitempty,max=100"`
}

func (r *RegisterRequest) normalize() {
	r.FirstName = cleanText(r.FirstName)
	r.LastName = cleanText(r.LastName)
	r.Email = NormalizeEmail(r.Email)
	r.About = cleanText(r.About)
	r.Gender = strings.ToLower(strings.TrimSpace(r.Gender))
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.EducationQualification = cleanText(r.EducationQualification)
	r.Address.normalize()
}

// NewAccount returns the typed record. Call only after Validate succeeded.
func (r *RegisterRequest) NewAccount() models.NewAccount {
	dob, _ := time.Parse(dateLayout, r.DateOfBirth)
	return models.NewAccount{
		Email:                  r.Email,
		Password:               r.Password,
		FirstName:              r.FirstName,
		LastName:               r.LastName,
		About:                  r.About,
		Address:                r.Address.model(),
		IsAdmin:                r.IsAdmin,
		Gender:                 models.Gender(r.Gender),
		DateOfBirth:            dob,
		EducationQualification: r.EducationQualification,
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

func (r *LoginRequest) normalize() {
	r.Email = NormalizeEmail(r.Email)
}

// UpdateProfileRequest holds the self-service editable fields. Email,
// Password and IsAdmin exist only so that sending them is reported as a
// field error instead of an unknown field.
type UpdateProfileRequest struct {
	FirstName              *string       `json:"first_name" validate:"omitempty,min=3,max=40"`
	LastName               *string       `json:"last_name" validate:"omitempty,min=3,max=40"`
	About                  *string       `json:"about" validate:"omitempty,min=10,max=500"`
	Address                *AddressInput `json:"address"`
	Gender                 *string       `json:"gender" validate:"omitempty,oneof=male female"`
	DateOfBirth            *string       `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02,pastdate"`
	EducationQualification *string       `json:"education_qualification" validate:"omitempty,max=100"`

	Email    *string `json:"email" validate:"immutable"`
	Password *string `json:"password" validate:"immutable"`
	IsAdmin  *bool   `json:"is_admin" validate:"immutable"`

	// PhotoAttached is set by the handler when a profile_photo file part
	// came with the request.
	PhotoAttached bool `json:"-"`
}

func (r *UpdateProfileRequest) normalize() {
	cleanTextPtr(r.FirstName)
	cleanTextPtr(r.LastName)
	cleanTextPtr(r.About)
	cleanTextPtr(r.EducationQualification)
	if r.Gender != nil {
		*r.Gender = strings.ToLower(strings.TrimSpace(*r.Gender))
	}
	if r.DateOfBirth != nil {
		*r.DateOfBirth = strings.TrimSpace(*r.DateOfBirth)
	}
	r.Address.normalize()
}

// Patch returns the typed record. Call only after Validate succeeded.
func (r *UpdateProfileRequest) Patch() models.AccountPatch {
	patch := models.AccountPatch{
		FirstName:              r.FirstName,
		LastName:               r.LastName,
		About:                  r.About,
		Address:                r.Address.model(),
		EducationQualification: r.EducationQualification,
	}
	if r.Gender != nil {
		g := models.Gender(*r.Gender)
		patch.Gender = &g
	}
	if r.DateOfBirth != nil {
		if dob, err := time.Parse(dateLayout, *r.DateOfBirth); err == nil {
			patch.DateOfBirth = &dob
		}
	}
	return patch
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (r *PasswordResetRequest) normalize() {
	r.Email = NormalizeEmail(r.Email)
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=3,max=60"`
}

// ToggleRequest sets a boolean account flag from the admin surface.
type ToggleRequest struct {
	Value *bool `json:"value" validate:"required"`
}

func (a *AddressInput) normalize() {
	if a == nil {
		return
	}
	a.StreetName = cleanText(a.StreetName)
	a.State = cleanText(a.State)
	a.Country = cleanText(a.Country)
}

// NormalizeEmail is the single email canonicalisation used for storage and
// lookup. Emails compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

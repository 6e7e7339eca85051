package models

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Account is one registered identity. PasswordHash never leaves the process.
type Account struct {
	ID                     string    `json:"id"`
	Email                  string    `json:"email"`
	PasswordHash           string    `json:"-"`
	FirstName              string    `json:"first_name"`
	LastName               string    `json:"last_name,omitempty"`
	About                  string    `json:"about"`
	ProfilePhoto           *string   `json:"profile_photo,omitempty"`
	Address                *Address  `json:"address,omitempty"`
	IsAdmin                bool      `json:"is_admin"`
	IsActive               bool      `json:"is_active"`
	Gender                 Gender    `json:"gender"`
	DateOfBirth            time.Time `json:"date_of_birth"`
	EducationQualification string    `json:"education_qualification,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (a *Account) GetProfilePhoto() string {
	if a.ProfilePhoto != nil {
		return *a.ProfilePhoto
	}
	return ""
}

type Address struct {
	StreetName string `json:"street_name,omitempty"`
	Pincode    string `json:"pincode,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
}

// NewAccount is a validated registration. Password is plaintext and is
// hashed before the account is stored.
type NewAccount struct {
	Email                  string
	Password               string
	FirstName              string
	LastName               string
	About                  string
	Address                *Address
	IsAdmin                bool
	Gender                 Gender
	DateOfBirth            time.Time
	EducationQualification string
}

// Account builds the record to persist. New accounts start active.
func (n NewAccount) Account(passwordHash string) *Account {
	var addr *Address
	if n.Address != nil {
		a := *n.Address
		addr = &a
	}
	return &Account{
		Email:                  n.Email,
		PasswordHash:           passwordHash,
		FirstName:              n.FirstName,
		LastName:               n.LastName,
		About:                  n.About,
		Address:                addr,
		IsAdmin:                n.IsAdmin,
		IsActive:               true,
		Gender:                 n.Gender,
		DateOfBirth:            n.DateOfBirth,
		EducationQualification: n.EducationQualification,
	}
}

// AccountPatch carries the self-service editable fields. Nil means unchanged.
// Email, password and the admin flag are deliberately absent.
type AccountPatch struct {
	FirstName              *string
	LastName               *string
	About                  *string
	ProfilePhoto           *string
	Address                *Address
	Gender                 *Gender
	DateOfBirth            *time.Time
	EducationQualification *string
}

func (p AccountPatch) IsEmpty() bool {
	return p.FirstName == nil &&
		p.LastName == nil &&
		p.About == nil &&
		p.ProfilePhoto == nil &&
		p.Address == nil &&
		p.Gender == nil &&
		p.DateOfBirth == nil &&
		p.EducationQualification == nil
}

// Apply copies the set fields of p onto a.
func (p AccountPatch) Apply(a *Account) {
	if p.FirstName != nil {
		a.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		a.LastName = *p.LastName
	}
	if p.About != nil {
		a.About = *p.About
	}
	if p.ProfilePhoto != nil {
		photo := *p.ProfilePhoto
		a.ProfilePhoto = &photo
	}
	if p.Address != nil {
		addr := *p.Address
		a.Address = &addr
	}
	if p.Gender != nil {
		a.Gender = *p.Gender
	}
	if p.DateOfBirth != nil {
		a.DateOfBirth = *p.DateOfBirth
	}
	if p.EducationQualification != nil {
		a.EducationQualification = *p.EducationQualification
	}
}

// PasswordReset is a single-use reset secret. Only the SHA-256 of the
// token is kept.
type PasswordReset struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (r *PasswordReset) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

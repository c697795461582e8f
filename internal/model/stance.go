package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stance is the categorical position assigned to an entity
type Stance string

const (
	StancePro     Stance = "pro"     // Explicit support or ceasefire advocacy
	StanceNeutral Stance = "neutral" // Silence, vague or unverifiable statements
	StanceAgainst Stance = "against" // Support for military action or documented financial ties
)

// Valid reports whether s is one of the known stances
func (s Stance) Valid() bool {
	switch s {
	case StancePro, StanceNeutral, StanceAgainst:
		return true
	}
	return false
}

// Status is the moderation state of a record
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusPending, StatusRejected:
		return true
	}
	return false
}

// Variant tags which collection a record belongs to
type Variant string

const (
	VariantPerson       Variant = "person"
	VariantOrganization Variant = "organization"
)

// Variants lists every variant in lookup order (persons are checked first)
var Variants = []Variant{VariantPerson, VariantOrganization}

// Valid reports whether v is a known variant
func (v Variant) Valid() bool {
	return v == VariantPerson || v == VariantOrganization
}

// MinSources is the smallest number of sources a persisted record may carry
const MinSources = 2

// Record validation errors
var (
	ErrEmptyName          = errors.New("record: name is required")
	ErrInvalidVariant     = errors.New("record: unknown variant")
	ErrInvalidStance      = errors.New("record: stance must be pro, neutral or against")
	ErrInvalidStatus      = errors.New("record: status must be approved, pending or rejected")
	ErrConfidenceRange    = errors.New("record: confidence must be within 0-100")
	ErrTooFewSources      = errors.New("record: at least 2 sources required")
	ErrParentOnPersonOnly = errors.New("record: parent company is only valid for organizations")
)

// StanceRecord is a persisted stance entry for a person or organization.
// Person and organization records share this shape; Category holds the
// profession for persons and the industry for organizations.
type StanceRecord struct {
	ID            string    `json:"id" bson:"_id"`
	Variant       Variant   `json:"type" bson:"variant"`
	Name          string    `json:"name" bson:"name"`
	Category      string    `json:"category" bson:"category"`
	Stance        Stance    `json:"stance" bson:"stance"`
	Sources       []string  `json:"sources" bson:"sources"`
	Confidence    int       `json:"confidence" bson:"confidence"`
	Status        Status    `json:"status" bson:"status"`
	Featured      bool      `json:"featured" bson:"featured"`
	Summary       string    `json:"summary,omitempty" bson:"summary,omitempty"`
	ParentCompany string    `json:"parentCompany,omitempty" bson:"parentCompany,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}

// NameKey returns the case-insensitive comparison key for the record name
func (r *StanceRecord) NameKey() string {
	return NameKey(r.Name)
}

// NameKey folds a display name into its comparison key
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Validate checks the write-time invariants of a record
func (r *StanceRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if !r.Variant.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidVariant, r.Variant)
	}
	if !r.Stance.Valid() {
		return fmt.Errorf("%w: got %q", ErrInvalidStance, r.Stance)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: got %q", ErrInvalidStatus, r.Status)
	}
	if r.Confidence < 0 || r.Confidence > 100 {
		return fmt.Errorf("%w: got %d", ErrConfidenceRange, r.Confidence)
	}
	if len(r.Sources) < MinSources {
		return fmt.Errorf("%w: got %d", ErrTooFewSources, len(r.Sources))
	}
	if r.ParentCompany != "" && r.Variant != VariantOrganization {
		return ErrParentOnPersonOnly
	}
	return nil
}

// IsFeatured derives the featured flag from stance and confidence
func IsFeatured(stance Stance, confidence, floor int) bool {
	return stance == StancePro && confidence >= floor
}

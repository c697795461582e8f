// Package populate turns an accepted research result into a persisted stance
// record.
package populate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/stancedb/internal/model"
	"github.com/ppiankov/stancedb/internal/normalize"
	"github.com/ppiankov/stancedb/internal/research"
	"github.com/ppiankov/stancedb/internal/store"
)

// Rejection and persistence errors
var (
	ErrLowConfidence       = errors.New("populate: confidence below acceptance floor")
	ErrInsufficientSources = errors.New("populate: not enough sources")
	ErrPersist             = errors.New("populate: persist failed")
)

// Category defaults when the oracle names none
const (
	DefaultPersonCategory       = "Public Figure"
	DefaultOrganizationCategory = "Business"
)

// PersistError reports a store failure while saving an accepted result
type PersistError struct {
	Name    string
	Variant model.Variant
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("populate: persist %s %q: %v", e.Variant, e.Name, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersist) match any *PersistError
func (e *PersistError) Is(target error) bool { return target == ErrPersist }

// Policy holds the acceptance thresholds
type Policy struct {
	AcceptanceFloor int
	FeaturedFloor   int
	MinSources      int
}

// DefaultPolicy returns the standard thresholds
func DefaultPolicy() Policy {
	return Policy{AcceptanceFloor: 30, FeaturedFloor: 90, MinSources: model.MinSources}
}

// PolicyFromModel converts the config section, filling unset values
func PolicyFromModel(c model.PolicyConfig) Policy {
	p := DefaultPolicy()
	if c.AcceptanceFloor > 0 {
		p.AcceptanceFloor = c.AcceptanceFloor
	}
	if c.FeaturedFloor > 0 {
		p.FeaturedFloor = c.FeaturedFloor
	}
	// Records with fewer than model.MinSources never validate
	if c.MinSources > model.MinSources {
		p.MinSources = c.MinSources
	}
	return p
}

// Populator validates research results against Policy and writes them
type Populator struct {
	store  store.Store
	policy Policy
	logger *slog.Logger
}

// New creates a populator. A nil logger uses slog.Default().
func New(s store.Store, policy Policy, logger *slog.Logger) *Populator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Populator{store: s, policy: policy, logger: logger}
}

// Populate persists res under name's display form. It returns the stored
// record and whether it was newly created; when a record with the same
// variant and key already exists it is returned untouched.
func (p *Populator) Populate(ctx context.Context, name normalize.Name, res *research.Result) (*model.StanceRecord, bool, error) {
	if len(res.Sources) < p.policy.MinSources {
		return nil, false, fmt.Errorf("%w: got %d, need %d", ErrInsufficientSources, len(res.Sources), p.policy.MinSources)
	}
	if res.Confidence < p.policy.AcceptanceFloor {
		return nil, false, fmt.Errorf("%w: got %d, need %d", ErrLowConfidence, res.Confidence, p.policy.AcceptanceFloor)
	}

	rec := p.Build(name, res)

	stored, created, err := p.store.Insert(ctx, rec)
	if err != nil {
		p.logger.Error("persist research result failed",
			"name", rec.Name, "variant", rec.Variant, "error", err)
		return nil, false, &PersistError{Name: rec.Name, Variant: rec.Variant, Err: err}
	}

	if created {
		p.logger.Info("stance record created",
			"id", stored.ID, "name", stored.Name, "variant", stored.Variant,
			"stance", stored.Stance, "confidence", stored.Confidence, "featured", stored.Featured)
	} else {
		p.logger.Info("stance record already existed", "id", stored.ID, "name", stored.Name, "variant", stored.Variant)
	}

	return stored, created, nil
}

// Build maps an accepted result onto a new record without persisting it
func (p *Populator) Build(name normalize.Name, res *research.Result) *model.StanceRecord {
	variant := VariantFor(res.EntityType)

	category := res.Category
	if category == "" {
		category = DefaultPersonCategory
		if variant == model.VariantOrganization {
			category = DefaultOrganizationCategory
		}
	}

	rec := &model.StanceRecord{
		Variant:    variant,
		Name:       name.Display,
		Category:   category,
		Stance:     res.Stance,
		Sources:    append([]string(nil), res.Sources...),
		Confidence: res.Confidence,
		Status:     model.StatusApproved,
		Featured:   model.IsFeatured(res.Stance, res.Confidence, p.policy.FeaturedFloor),
		Summary:    res.Summary,
	}
	if variant == model.VariantOrganization {
		rec.ParentCompany = res.ParentCompany
	}
	return rec
}

// VariantFor maps the oracle's entity type to a variant
func VariantFor(entityType string) model.Variant {
	switch strings.ToLower(strings.TrimSpace(entityType)) {
	case "company", "organization", "organisation", "brand":
		return model.VariantOrganization
	default:
		return model.VariantPerson
	}
}

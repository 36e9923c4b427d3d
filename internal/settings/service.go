package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"scenestudio/internal/capability"
	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
	"scenestudio/internal/infra/geoip"
)

// restrictedCountries lists ISO codes where the NSFW rating is unavailable.
// A stored NSFW preference is downgraded on load for callers in these
// countries.
var restrictedCountries = map[string]bool{
	"KR": true,
	"JP": true,
	"DE": true,
}

// Service loads and saves per-owner workspace settings. Loaded model choices
// are validated against the current capability table; a stale choice is
// replaced by the computed default rather than surfaced as an error.
type Service struct {
	repo     domain.SettingsRepository
	resolver *capability.Resolver
	geo      geoip.CountryResolver
	logger   infra.Logger
}

// NewService wires the settings service. geo may be nil.
func NewService(repo domain.SettingsRepository, resolver *capability.Resolver, geo geoip.CountryResolver, logger infra.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, geo: geo, logger: logger}
}

// Load returns the owner's settings with every field usable. clientIP feeds
// the content-rating default for first-time owners.
func (s *Service) Load(ctx context.Context, ownerID, clientIP string) (*domain.WorkspaceSettings, error) {
	stored, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		defaults := s.defaults(ownerID, clientIP)
		return &defaults, nil
	}

	repaired := false
	if stored.ImageModelID == "" || !s.resolver.Known(ctx, stored.ImageModelID) {
		s.logger.Info().
			Str("owner_id", ownerID).
			Str("model_id", stored.ImageModelID).
			Msg("settings: stored image model no longer available, using default")
		stored.ImageModelID = domain.DefaultModelID
		repaired = true
	}
	if stored.VideoModelID != "" && !s.resolver.Known(ctx, stored.VideoModelID) {
		s.logger.Info().
			Str("owner_id", ownerID).
			Str("model_id", stored.VideoModelID).
			Msg("settings: stored video model no longer available, cleared")
		stored.VideoModelID = ""
		repaired = true
	}
	normalize(stored)
	if stored.ContentRating == domain.RatingNSFW && s.restricted(clientIP) {
		stored.ContentRating = domain.RatingSFW
	}
	if repaired {
		if err := s.repo.Put(ctx, stored); err != nil {
			s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("settings: failed to persist repaired settings")
		}
	}
	return stored, nil
}

// Save validates and persists the owner's settings.
func (s *Service) Save(ctx context.Context, settings *domain.WorkspaceSettings) error {
	if settings.OwnerID == "" {
		return domain.ErrInvalidRequest
	}
	if settings.ImageModelID != "" && !s.resolver.Known(ctx, settings.ImageModelID) {
		return domain.ErrUnknownModel
	}
	if settings.VideoModelID != "" && !s.resolver.Known(ctx, settings.VideoModelID) {
		return domain.ErrUnknownModel
	}
	normalize(settings)
	settings.UpdatedAt = time.Now()
	return s.repo.Put(ctx, settings)
}

func (s *Service) defaults(ownerID, clientIP string) domain.WorkspaceSettings {
	return domain.WorkspaceSettings{
		OwnerID:         ownerID,
		ImageModelID:    domain.DefaultModelID,
		Preservation:    0.7,
		AspectRatio:     "1:1",
		DurationSeconds: 5,
		ContentRating:   domain.RatingSFW,
	}
}

// restricted reports whether the caller's country disallows the NSFW
// rating. Unknown locations are not restricted.
func (s *Service) restricted(clientIP string) bool {
	if s.geo == nil || strings.TrimSpace(clientIP) == "" {
		return false
	}
	code, err := s.geo.CountryCode(clientIP)
	if err != nil || code == "" {
		return false
	}
	return restrictedCountries[strings.ToUpper(code)]
}

func normalize(settings *domain.WorkspaceSettings) {
	if settings.Preservation < 0 {
		settings.Preservation = 0
	}
	if settings.Preservation > 1 {
		settings.Preservation = 1
	}
	if settings.AspectRatio == "" {
		settings.AspectRatio = "1:1"
	}
	if settings.DurationSeconds <= 0 {
		settings.DurationSeconds = 5
	}
	if settings.ContentRating != domain.RatingNSFW {
		settings.ContentRating = domain.RatingSFW
	}
}

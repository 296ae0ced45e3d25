package filtering

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/applyflow/applyflow/internal/jobs"
	"go.uber.org/zap"
)

// significantWordShare is how many of a desired role's significant words
// must appear in the posting title for a partial title match.
const significantWordShare = 0.7

type rolesFilter struct {
	disabled      bool
	reason        string
	minMatchScore int
}

// NewRoles creates the role/title gate. Postings pass when their title
// matches one of the profile's desired roles; with no desired roles the gate
// falls back to the minimum match score from the preferences.
func NewRoles() Filter {
	return &rolesFilter{}
}

func (f *rolesFilter) Name() string { return "roles" }

func (f *rolesFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *rolesFilter) IsEnabled() bool { return !f.disabled }

func (f *rolesFilter) Validate(cfg *Config) error {
	if cfg == nil || cfg.Preferences == nil {
		return errors.New("preferences are required")
	}
	if err := cfg.Preferences.Validate(); err != nil {
		return err
	}
	f.minMatchScore = cfg.Preferences.MinMatchScore
	return nil
}

func (f *rolesFilter) Apply(_ context.Context, deps Deps, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if deps.Profile == nil {
		return p, Step{}, errors.New("candidate profile is required")
	}

	roles := deps.Profile.DesiredRoles
	var kept *jobs.Postings
	var dropped []string

	if len(roles) > 0 {
		kept, dropped = p.Keep(func(posting *jobs.JobPosting) bool {
			return matchesAnyRole(roles, posting)
		})
	} else {
		if deps.Engine == nil {
			return p, Step{}, errors.New("scoring engine is required for score-based filtering")
		}
		kept, dropped = p.Keep(func(posting *jobs.JobPosting) bool {
			return deps.Engine.Score(deps.Profile, posting).Overall >= f.minMatchScore
		})
	}

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding postings by role gate",
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", kept.Len()),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}

func (f *rolesFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min_match_score": strconv.Itoa(f.minMatchScore)},
	}
}

// matchesAnyRole checks desired roles in order and accepts on the first hit.
// Title matches are primary: the role verbatim, or enough of its significant
// words. The description is only consulted when no title matched.
func matchesAnyRole(roles []string, posting *jobs.JobPosting) bool {
	title := strings.ToLower(posting.Title)
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if strings.Contains(title, role) {
			return true
		}
		if significant := significantWords(role); len(significant) > 0 {
			found := 0
			for _, word := range significant {
				if strings.Contains(title, word) {
					found++
				}
			}
			if float64(found)/float64(len(significant)) >= significantWordShare {
				return true
			}
		}
	}

	description := strings.ToLower(posting.Description)
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role != "" && strings.Contains(description, role) {
			return true
		}
	}

	return false
}

func significantWords(role string) []string {
	var words []string
	for _, word := range strings.Fields(role) {
		if len(word) > 3 {
			words = append(words, word)
		}
	}
	return words
}

type locationsFilter struct {
	locations []string
}

// NewLocations creates a filter that keeps postings matching at least one of
// the preferred locations. An empty preference list keeps everything.
func NewLocations() Filter {
	return &locationsFilter{}
}

func (f *locationsFilter) Name() string { return "locations" }

func (f *locationsFilter) Disable(string) {}

func (f *locationsFilter) IsEnabled() bool { return true }

func (f *locationsFilter) Validate(cfg *Config) error {
	f.locations = nil
	if cfg != nil && cfg.Preferences != nil {
		f.locations = append(f.locations, cfg.Preferences.Locations...)
	}
	return nil
}

func (f *locationsFilter) Apply(_ context.Context, deps Deps, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if len(f.locations) == 0 {
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	kept, dropped := p.Keep(func(posting *jobs.JobPosting) bool {
		location := strings.ToLower(posting.Location)
		for _, wanted := range f.locations {
			if strings.Contains(location, strings.ToLower(strings.TrimSpace(wanted))) {
				return true
			}
		}
		return false
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding postings by location",
			zap.Strings("allowed_locations", f.locations),
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", kept.Len()),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}

func (f *locationsFilter) Status() Status {
	details := map[string]string{}
	if len(f.locations) > 0 {
		details["locations"] = strings.Join(f.locations, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type jobTypesFilter struct {
	allowed []string
}

// NewJobTypes creates a filter that keeps postings whose contract type is in
// the allowed set. Postings without a stated type count as full-time.
func NewJobTypes() Filter {
	return &jobTypesFilter{}
}

func (f *jobTypesFilter) Name() string { return "job_types" }

func (f *jobTypesFilter) Disable(string) {}

func (f *jobTypesFilter) IsEnabled() bool { return true }

func (f *jobTypesFilter) Validate(cfg *Config) error {
	f.allowed = nil
	if cfg != nil && cfg.Preferences != nil {
		f.allowed = append(f.allowed, cfg.Preferences.JobTypes...)
	}
	return nil
}

func (f *jobTypesFilter) Apply(_ context.Context, deps Deps, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if len(f.allowed) == 0 {
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	kept, dropped := p.Keep(func(posting *jobs.JobPosting) bool {
		ct := posting.NormalizedContractType()
		for _, allowed := range f.allowed {
			if ct == strings.ToLower(strings.TrimSpace(allowed)) {
				return true
			}
		}
		return false
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding postings by job type",
			zap.Strings("allowed_types", f.allowed),
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", kept.Len()),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}

func (f *jobTypesFilter) Status() Status {
	details := map[string]string{}
	if len(f.allowed) > 0 {
		details["job_types"] = strings.Join(f.allowed, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type excludedCompaniesFilter struct {
	companies []string
}

// NewExcludedCompanies creates a filter that drops postings whose company
// contains one of the excluded company names.
func NewExcludedCompanies() Filter {
	return &excludedCompaniesFilter{}
}

func (f *excludedCompaniesFilter) Name() string { return "excluded_companies" }

func (f *excludedCompaniesFilter) Disable(string) {}

func (f *excludedCompaniesFilter) IsEnabled() bool { return true }

func (f *excludedCompaniesFilter) Validate(cfg *Config) error {
	f.companies = nil
	if cfg != nil && cfg.Preferences != nil {
		f.companies = append(f.companies, cfg.Preferences.ExcludeCompanies...)
	}
	return nil
}

func (f *excludedCompaniesFilter) Apply(_ context.Context, deps Deps, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if len(f.companies) == 0 {
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	kept, dropped := p.Keep(func(posting *jobs.JobPosting) bool {
		company := strings.ToLower(posting.Company)
		for _, excluded := range f.companies {
			excluded = strings.ToLower(strings.TrimSpace(excluded))
			if excluded != "" && strings.Contains(company, excluded) {
				return false
			}
		}
		return true
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding postings by company",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", kept.Len()),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}

func (f *excludedCompaniesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type excludedIDsFilter struct {
	ids map[string]struct{}
}

// NewExcludedIDs creates a filter that drops postings whose ID was collected
// from the exclude file or from the persisted application history.
func NewExcludedIDs() Filter {
	return &excludedIDsFilter{}
}

func (f *excludedIDsFilter) Name() string { return "excluded_ids" }

func (f *excludedIDsFilter) Disable(string) {}

func (f *excludedIDsFilter) IsEnabled() bool { return true }

func (f *excludedIDsFilter) Validate(cfg *Config) error {
	f.ids = make(map[string]struct{})
	if cfg != nil {
		for _, id := range cfg.ExcludedIDs {
			if id = strings.TrimSpace(id); id != "" {
				f.ids[id] = struct{}{}
			}
		}
	}
	return nil
}

func (f *excludedIDsFilter) Apply(_ context.Context, deps Deps, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if len(f.ids) == 0 {
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	kept, dropped := p.Keep(func(posting *jobs.JobPosting) bool {
		_, excluded := f.ids[posting.ID]
		return !excluded
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding previously seen postings",
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", kept.Len()),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}

func (f *excludedIDsFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: true,
		Details: map[string]string{"excluded_ids": strconv.Itoa(len(f.ids))},
	}
}

package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// MaxProfileKeywords caps how many pre-extracted keywords a profile carries.
const MaxProfileKeywords = 100

// CandidateProfile is an immutable input to a scoring or filtering run.
type CandidateProfile struct {
	Skills          []string `json:"skills"`
	Keywords        []string `json:"keywords"`
	ExperienceYears float64  `json:"experience_years"`
	Education       []string `json:"education"`
	DesiredRoles    []string `json:"desired_roles"`
}

// RunPreferences constrain a single batch run. They are supplied once per
// run and must not change while the run is in flight.
type RunPreferences struct {
	MinMatchScore         int      `json:"min_match_score" mapstructure:"min-match-score"`
	Locations             []string `json:"locations" mapstructure:"locations"`
	JobTypes              []string `json:"job_types" mapstructure:"job-types"`
	ExcludeCompanies      []string `json:"exclude_companies" mapstructure:"exclude-companies"`
	MaxApplicationsPerDay int      `json:"max_applications_per_day" mapstructure:"max-applications-per-day"`
}

func (p *RunPreferences) Validate() error {
	if p == nil {
		return errors.New("preferences are required")
	}
	if p.MinMatchScore < 0 || p.MinMatchScore > 100 {
		return fmt.Errorf("min match score must be within [0,100], got %d", p.MinMatchScore)
	}
	if p.MaxApplicationsPerDay < 0 {
		return fmt.Errorf("max applications per day must not be negative, got %d", p.MaxApplicationsPerDay)
	}
	return nil
}

// LoadProfile reads a candidate profile from a JSON file. Keywords beyond
// MaxProfileKeywords are dropped.
func LoadProfile(path string) (*CandidateProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile file: %w", err)
	}

	var profile CandidateProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parsing profile file %q: %w", path, err)
	}

	if len(profile.Keywords) > MaxProfileKeywords {
		profile.Keywords = profile.Keywords[:MaxProfileKeywords]
	}

	return &profile, nil
}

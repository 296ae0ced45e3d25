package scoring

import (
	"testing"

	"github.com/applyflow/applyflow/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analystProfile() *jobs.CandidateProfile {
	return &jobs.CandidateProfile{
		Skills:          []string{"Python", "SQL"},
		Keywords:        []string{"data", "analysis"},
		ExperienceYears: 1,
		Education:       []string{"bachelor"},
		DesiredRoles:    []string{"Data Analyst"},
	}
}

func TestScoreJuniorAnalystScenario(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	posting := &jobs.JobPosting{
		ID:          "1",
		Title:       "Junior Data Analyst",
		Description: "Skills: Python, SQL, Excel. 1+ years experience. Bachelor's degree required.",
	}

	score := engine.Score(analystProfile(), posting)

	assert.Equal(t, 100, score.Breakdown.Skills)
	assert.Equal(t, 100, score.Breakdown.Experience)
	assert.Equal(t, 100, score.Breakdown.Education)
	assert.GreaterOrEqual(t, score.Overall, 90)
	assert.Equal(t, "Excellent Match", score.Recommendation.Message)
	assert.Equal(t, "Apply Now", score.Recommendation.Action)
}

func TestScoreIsDeterministic(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	profile := analystProfile()
	posting := &jobs.JobPosting{
		ID:          "2",
		Title:       "Data Engineer",
		Description: "We use Python, Kafka and SQL daily. 3+ years required. Master's degree preferred.",
	}

	first := engine.Score(profile, posting)
	second := engine.Score(profile, posting)
	require.Equal(t, first, second)
}

func TestScoreBoundsHold(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	postings := []*jobs.JobPosting{
		{Title: "Senior Principal Lead Architect", Description: "minimum 15 years. PhD required."},
		{Title: "", Description: ""},
		{Title: "Intern", Description: "entry level, graduate welcome"},
		{Title: "Backend Engineer", Description: "Skills: Go, PostgreSQL; Docker\nat least 4 years"},
	}
	profiles := []*jobs.CandidateProfile{
		analystProfile(),
		{},
		{Skills: []string{"go", "postgres", "k8s"}, ExperienceYears: 12, Education: []string{"PhD in CS"}},
	}

	for _, profile := range profiles {
		for _, posting := range postings {
			score := engine.Score(profile, posting)
			assert.GreaterOrEqual(t, score.Overall, 0)
			assert.LessOrEqual(t, score.Overall, 100)
			for _, sub := range []int{
				score.Breakdown.Skills,
				score.Breakdown.Keywords,
				score.Breakdown.Experience,
				score.Breakdown.Education,
			} {
				assert.GreaterOrEqual(t, sub, 0)
				assert.LessOrEqual(t, sub, 100)
			}
		}
	}
}

func TestSkillsSectionDrivesRequiredSkills(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	profile := &jobs.CandidateProfile{Skills: []string{"Go", "Docker"}}
	posting := &jobs.JobPosting{
		Title:       "Platform Engineer",
		Description: "Skills: golang, docker, terraform, ansible\nBuild our platform.",
	}

	score := engine.Score(profile, posting)
	// 2 of 4 required skills held, golang resolved via the synonym table.
	assert.Equal(t, 50, score.Breakdown.Skills)
}

func TestSkillsSectionSpansNewlineSeparatedLists(t *testing.T) {
	t.Parallel()

	engine := NewEngine()

	tests := []struct {
		name        string
		description string
		expect      []string
	}{
		{
			name:        "one skill per line",
			description: "Skills:\nPython\nSQL\nExcel\n\nGreat team culture.",
			expect:      []string{"python", "sql", "excel"},
		},
		{
			name:        "inline list continues on the next line",
			description: "Skills: Python, SQL\nExcel; Tableau\n\nApply today.",
			expect:      []string{"python", "sql", "excel", "tableau"},
		},
		{
			name:        "list ends at the next header",
			description: "Skills:\nPython\nSQL\nRequirements: a positive attitude",
			expect:      []string{"python", "sql"},
		},
		{
			name:        "list ends where requirement prose begins",
			description: "Skills: Go, PostgreSQL; Docker\nat least 4 years of experience",
			expect:      []string{"go", "postgresql", "docker"},
		},
		{
			name:        "trailing sentence is not a skill",
			description: "Skills: golang, docker\nBuild our platform.",
			expect:      []string{"go", "docker"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, engine.requiredSkills(tt.description))
		})
	}
}

func TestNewlineListKeepsProportionalDenominator(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	profile := &jobs.CandidateProfile{Skills: []string{"SQL", "Excel"}}
	posting := &jobs.JobPosting{
		Title:       "Data Analyst",
		Description: "Skills:\nPython\nSQL\nExcel\n\nGreat team culture.",
	}

	// Missing one of three listed skills must cost a third, not everything.
	score := engine.Score(profile, posting)
	assert.Equal(t, 67, score.Breakdown.Skills)
}

func TestSkillsFallbackUsesWholeWordMatches(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	profile := &jobs.CandidateProfile{Skills: []string{"Java", "Rust"}}
	posting := &jobs.JobPosting{
		Title:       "Backend Developer",
		Description: "You will write Java services. JavaScript experience is a plus.",
	}

	score := engine.Score(profile, posting)
	// "Java" matches as a whole word, "Rust" does not appear. "JavaScript"
	// must not count as a Java match.
	assert.Equal(t, 50, score.Breakdown.Skills)
}

func TestSeniorityPenaltyApplies(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	profile := &jobs.CandidateProfile{Skills: []string{"Python"}, ExperienceYears: 10}
	plain := &jobs.JobPosting{Title: "Python Developer", Description: "Python everywhere."}
	senior := &jobs.JobPosting{Title: "Senior Python Developer", Description: "Python everywhere."}

	assert.Equal(t, 100, engine.Score(profile, plain).Breakdown.Skills)
	assert.Equal(t, 95, engine.Score(profile, senior).Breakdown.Skills)
}

func TestKeywordPointsWeighPhrasesDouble(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	profile := &jobs.CandidateProfile{
		Keywords: []string{"machine learning", "python", "blockchain"},
	}
	posting := &jobs.JobPosting{
		Title:       "ML Engineer",
		Description: "Machine learning pipelines in Python.",
	}

	score := engine.Score(profile, posting)
	// 2 points for the phrase, 1 for python, 0 for blockchain: 3 of 4.
	assert.Equal(t, 75, score.Breakdown.Keywords)
}

func TestTermPatternsAreCachedPerEngine(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	profile := analystProfile()
	posting := &jobs.JobPosting{
		Title:       "Data Analyst",
		Description: "Python and SQL for data analysis.",
	}

	engine.Score(profile, posting)
	engine.mu.Lock()
	compiled := len(engine.terms)
	engine.mu.Unlock()
	require.NotZero(t, compiled)

	// Re-scoring the same inputs must reuse the compiled patterns.
	engine.Score(profile, posting)
	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, compiled, len(engine.terms))
}

func TestKeywordsEmptyProfileScoresZero(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	score := engine.Score(&jobs.CandidateProfile{Skills: []string{"go"}}, &jobs.JobPosting{
		Title:       "Go Developer",
		Description: "go go go",
	})
	assert.Equal(t, 0, score.Breakdown.Keywords)
}

func TestExperienceRequirementParsing(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	tests := []struct {
		name        string
		description string
		years       float64
		expect      int
	}{
		{"explicit plus years met", "5+ years of backend work", 6, 100},
		{"minimum phrasing", "minimum 10 years in the field", 8, 85},
		{"at least phrasing", "at least 5 years", 2, 50},
		{"far below requirement", "10+ years", 1, 20},
		{"no requirement senior wording", "senior position", 4, 85},
		{"no requirement junior wording", "junior role", 1, 100},
		{"no requirement default", "just a job", 2, 100},
		{"entry level with no experience", "entry level position", 0, 0},
		{"entry level with some experience", "entry level position", 3, 85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			profile := &jobs.CandidateProfile{ExperienceYears: tt.years}
			posting := &jobs.JobPosting{Title: "Role", Description: tt.description}
			assert.Equal(t, tt.expect, engine.Score(profile, posting).Breakdown.Experience)
		})
	}
}

func TestEducationScoring(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	tests := []struct {
		name        string
		description string
		education   []string
		expect      int
	}{
		{"no requirement mentioned", "great perks", nil, 100},
		{"held matching degree", "Bachelor's degree required", []string{"Bachelor of Science"}, 100},
		{"missing degree gets partial credit", "Master's degree required", []string{"bachelor"}, 65},
		{"phd wins priority over bachelor", "PhD preferred, bachelor accepted", []string{"phd"}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			profile := &jobs.CandidateProfile{Education: tt.education}
			posting := &jobs.JobPosting{Title: "Researcher", Description: tt.description}
			assert.Equal(t, tt.expect, engine.Score(profile, posting).Breakdown.Education)
		})
	}
}

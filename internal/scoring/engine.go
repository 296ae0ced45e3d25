package scoring

import (
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/applyflow/applyflow/internal/jobs"
)

const (
	weightSkills     = 0.4
	weightKeywords   = 0.3
	weightExperience = 0.2
	weightEducation  = 0.1

	// Postings pitched at senior/lead/principal level are a less likely
	// fit, so the skills sub-score gets a small haircut.
	seniorityPenalty = 0.95

	// Only the first keywords of the profile participate in scoring.
	maxScoredKeywords = 40
)

// synonyms maps common skill aliases to their canonical form.
var synonyms = map[string]string{
	"js":       "javascript",
	"nodejs":   "node",
	"node js":  "node",
	"ts":       "typescript",
	"golang":   "go",
	"py":       "python",
	"postgres": "postgresql",
	"k8s":      "kubernetes",
	"reactjs":  "react",
}

type Breakdown struct {
	Skills     int `json:"skills"`
	Keywords   int `json:"keywords"`
	Experience int `json:"experience"`
	Education  int `json:"education"`
}

type Recommendation struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// MatchScore is a pure derived value. It is computed fresh on every call and
// never cached across profile or posting changes.
type MatchScore struct {
	Overall        int            `json:"overall"`
	Breakdown      Breakdown      `json:"breakdown"`
	Recommendation Recommendation `json:"recommendation"`
}

// Engine scores candidate profiles against job postings. It holds compiled
// patterns plus a mutex-guarded term-pattern cache, so a single instance is
// safe for concurrent use.
type Engine struct {
	nonWord       *regexp.Regexp
	skillsSection *regexp.Regexp
	blankLine     *regexp.Regexp
	numberWord    *regexp.Regexp
	yearsPatterns []*regexp.Regexp
	seniority     *regexp.Regexp

	mu    sync.Mutex
	terms map[string]*regexp.Regexp
}

func NewEngine() *Engine {
	return &Engine{
		nonWord:       regexp.MustCompile(`[^a-z0-9+#]+`),
		skillsSection: regexp.MustCompile(`(?i)skills?[ \t]*:`),
		blankLine:     regexp.MustCompile(`\n[ \t]*\n`),
		numberWord:    regexp.MustCompile(`\b\d+\b`),
		yearsPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)minimum\s+(\d+)\s+years`),
			regexp.MustCompile(`(?i)at\s+least\s+(\d+)\s+years`),
			regexp.MustCompile(`(?i)(\d+)\s*\+?\s*years`),
		},
		seniority: regexp.MustCompile(`(?i)\b(senior|lead|principal)\b`),
		terms:     make(map[string]*regexp.Regexp),
	}
}

// Score computes the weighted match between a profile and a posting. It is
// deterministic and has no side effects: identical inputs always produce an
// identical result.
func (e *Engine) Score(profile *jobs.CandidateProfile, posting *jobs.JobPosting) MatchScore {
	text := strings.ToLower(posting.Title + "\n" + posting.Description)

	breakdown := Breakdown{
		Skills:     clampScore(e.skillsScore(profile, posting, text)),
		Keywords:   clampScore(e.keywordsScore(profile, text)),
		Experience: clampScore(e.experienceScore(profile, text)),
		Education:  clampScore(e.educationScore(profile, text)),
	}

	overall := clampInt(int(math.Round(
		weightSkills*float64(breakdown.Skills) +
			weightKeywords*float64(breakdown.Keywords) +
			weightExperience*float64(breakdown.Experience) +
			weightEducation*float64(breakdown.Education),
	)))

	return MatchScore{
		Overall:        overall,
		Breakdown:      breakdown,
		Recommendation: recommend(overall),
	}
}

func (e *Engine) skillsScore(profile *jobs.CandidateProfile, posting *jobs.JobPosting, text string) float64 {
	candidate := make(map[string]struct{}, len(profile.Skills))
	ordered := make([]string, 0, len(profile.Skills))
	for _, skill := range profile.Skills {
		normalized := e.normalizeTerm(skill)
		if normalized == "" {
			continue
		}
		if _, seen := candidate[normalized]; seen {
			continue
		}
		candidate[normalized] = struct{}{}
		ordered = append(ordered, normalized)
	}
	if len(ordered) == 0 {
		return 0
	}

	var score float64
	if required := e.requiredSkills(posting.Description); len(required) > 0 {
		matched := 0
		for _, req := range required {
			if _, ok := candidate[req]; ok {
				matched++
			}
		}
		score = float64(matched) / float64(len(required)) * 100
	} else {
		found := 0
		for _, skill := range ordered {
			if e.containsTerm(text, skill) {
				found++
			}
		}
		score = float64(found) / float64(len(ordered)) * 100
	}

	if e.seniority.MatchString(text) {
		score *= seniorityPenalty
	}

	return score
}

// requiredSkills extracts the explicit "skills:" list of a posting, when one
// exists. Tokens are comma, semicolon or newline separated. The list ends at
// a blank line, at the next "header:" line or where sentence prose begins.
func (e *Engine) requiredSkills(description string) []string {
	loc := e.skillsSection.FindStringIndex(description)
	if loc == nil {
		return nil
	}

	section := description[loc[1]:]
	if cut := e.blankLine.FindStringIndex(section); cut != nil {
		section = section[:cut[0]]
	}

	var required []string
	for _, raw := range strings.FieldsFunc(section, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	}) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.ContainsRune(raw, ':') {
			// The next "header:" section started.
			break
		}
		if e.numberWord.MatchString(raw) {
			// Standalone numbers mean requirement prose ("3+ years"), not
			// a skill.
			break
		}

		terminal := false
		if dot := strings.IndexByte(raw, '.'); dot >= 0 {
			if dot != len(raw)-1 {
				// A period inside a token means the list ended and the
				// rest of the sentence leaked into the section.
				break
			}
			// A trailing period closes the list; short tokens are still
			// the last skill, longer ones are a sentence.
			raw = raw[:dot]
			terminal = true
			if len(strings.Fields(raw)) > 2 {
				break
			}
		}

		normalized := e.normalizeTerm(raw)
		if normalized == "" || len(strings.Fields(normalized)) > 4 {
			break
		}
		required = append(required, normalized)

		if terminal {
			break
		}
	}

	return required
}

func (e *Engine) keywordsScore(profile *jobs.CandidateProfile, text string) float64 {
	keywords := profile.Keywords
	if len(keywords) > maxScoredKeywords {
		keywords = keywords[:maxScoredKeywords]
	}

	earned, possible := 0, 0
	for _, keyword := range keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			continue
		}

		if strings.Contains(normalized, " ") {
			possible += 2
			if e.containsTerm(text, normalized) {
				earned += 2
			}
			continue
		}

		possible++
		if e.containsStem(text, normalized) {
			earned++
		}
	}

	if possible == 0 {
		return 0
	}
	return float64(earned) / float64(possible) * 100
}

func (e *Engine) experienceScore(profile *jobs.CandidateProfile, text string) float64 {
	required, explicit := e.requiredYears(text)
	if !explicit {
		required = inferredYears(text)
	}

	years := profile.ExperienceYears
	if years < 0 {
		years = 0
	}

	if required == 0 {
		switch {
		case years >= 5:
			return 100
		case years >= 3:
			return 85
		case years >= 1:
			return 65
		default:
			return math.Min(50, years*50)
		}
	}

	ratio := years / float64(required)
	switch {
	case ratio >= 1:
		return 100
	case ratio >= 0.8:
		return 85
	case ratio >= 0.6:
		return 70
	case ratio >= 0.4:
		return 50
	default:
		return math.Max(20, ratio*100)
	}
}

func (e *Engine) requiredYears(text string) (int, bool) {
	for _, pattern := range e.yearsPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		years := 0
		for _, r := range m[1] {
			years = years*10 + int(r-'0')
		}
		return years, true
	}
	return 0, false
}

func inferredYears(text string) int {
	switch {
	case strings.Contains(text, "entry level") || strings.Contains(text, "graduate"):
		return 0
	case strings.Contains(text, "junior"):
		return 1
	case strings.Contains(text, "senior"):
		return 5
	default:
		return 2
	}
}

// educationLevels in priority order. The first one mentioned by the posting
// is treated as the requirement.
var educationLevels = []string{"phd", "master", "bachelor", "diploma", "certificate"}

func (e *Engine) educationScore(profile *jobs.CandidateProfile, text string) float64 {
	var required string
	for _, level := range educationLevels {
		if strings.Contains(text, level) {
			required = level
			break
		}
	}
	if required == "" {
		// No stated requirement, no constraint.
		return 100
	}

	for _, held := range profile.Education {
		held = strings.ToLower(strings.TrimSpace(held))
		if held == "" {
			continue
		}
		if strings.Contains(held, required) || strings.Contains(required, held) {
			return 100
		}
	}

	return 65
}

// normalizeTerm lowercases a term, collapses punctuation to spaces and
// resolves known synonyms. "+" and "#" survive so c++ and c# stay distinct.
func (e *Engine) normalizeTerm(term string) string {
	normalized := strings.ToLower(strings.TrimSpace(term))
	normalized = e.nonWord.ReplaceAllString(normalized, " ")
	normalized = strings.Join(strings.Fields(normalized), " ")
	if canonical, ok := synonyms[normalized]; ok {
		return canonical
	}
	return normalized
}

// termPattern returns the compiled pattern for a term, compiling it at most
// once per engine.
func (e *Engine) termPattern(key, expr string) *regexp.Regexp {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pattern, ok := e.terms[key]; ok {
		return pattern
	}
	pattern := regexp.MustCompile(expr)
	e.terms[key] = pattern
	return pattern
}

// containsTerm reports whether term occurs in text as a whole word or phrase.
func (e *Engine) containsTerm(text, term string) bool {
	pattern := e.termPattern("w:"+term, `(?i)(^|\W)`+regexp.QuoteMeta(term)+`($|\W)`)
	return pattern.MatchString(text)
}

// containsStem matches a single-word keyword with suffix tolerance, so
// "analysis" also hits "analyst" and "analytics".
func (e *Engine) containsStem(text, word string) bool {
	stem := word
	for _, suffix := range []string{"ing", "ed", "ies", "es", "is", "s"} {
		if strings.HasSuffix(word, suffix) && len(word)-len(suffix) >= 4 {
			stem = word[:len(word)-len(suffix)]
			break
		}
	}
	pattern := e.termPattern("s:"+stem, `(?i)(^|\W)`+regexp.QuoteMeta(stem)+`\w*`)
	return pattern.MatchString(text)
}

func recommend(overall int) Recommendation {
	switch {
	case overall >= 80:
		return Recommendation{Level: "excellent", Message: "Excellent Match", Action: "Apply Now"}
	case overall >= 60:
		return Recommendation{Level: "good", Message: "Good Match", Action: "Apply"}
	case overall >= 40:
		return Recommendation{Level: "fair", Message: "Fair Match", Action: "Review Job"}
	default:
		return Recommendation{Level: "low", Message: "Low Match", Action: "View Similar Jobs"}
	}
}

func clampScore(score float64) int {
	return clampInt(int(math.Round(score)))
}

func clampInt(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

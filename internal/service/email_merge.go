package service

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/noah-isme/coursecap-api/internal/models"
)

// Substitutions maps template tokens to values. A nil value is never substituted;
// several values are joined with a comma.
type Substitutions map[string][]string

// Token names understood by every template.
const (
	TokenCourseDays      = "course.days"
	TokenCourseFormat    = "course.format"
	TokenCourseName      = "course.name"
	TokenCourseRoom      = "course.room"
	TokenCourseSection   = "course.section"
	TokenCourseTimeEnd   = "course.time.end"
	TokenCourseTimeStart = "course.time.start"
	TokenCourseTitle     = "course.title"
	TokenRecordingType   = "recording.type"
	TokenSignupURL       = "signup.url"
	TokenTermName        = "term.name"
	TokenUserName        = "user.name"
)

var builtinTokens = []string{
	TokenCourseDays,
	TokenCourseFormat,
	TokenCourseName,
	TokenCourseRoom,
	TokenCourseSection,
	TokenCourseTimeEnd,
	TokenCourseTimeStart,
	TokenCourseTitle,
	TokenRecordingType,
	TokenSignupURL,
	TokenTermName,
	TokenUserName,
}

var seasonPerTermDigit = map[byte]string{
	'2': "Spring",
	'5': "Summer",
	'8': "Fall",
}

// TemplateCodes lists the built-in token names in sorted order.
func TemplateCodes() []string {
	codes := append([]string(nil), builtinTokens...)
	sort.Strings(codes)
	return codes
}

// TermNameForSISID converts a four digit SIS term id such as 2202 into "Spring 2020".
func TermNameForSISID(termID int) string {
	id := strconv.Itoa(termID)
	if len(id) != 4 {
		return id
	}
	season, ok := seasonPerTermDigit[id[3]]
	if !ok {
		return id
	}
	century := 1800 + 100*int(id[0]-'0')
	year, err := strconv.Atoi(id[1:3])
	if err != nil {
		return id
	}
	return fmt.Sprintf("%s %d", season, century+year)
}

// Interpolate replaces every <code>token</code> marker whose token has a value.
// Whitespace inside the marker is ignored. Unknown tokens stay verbatim.
func Interpolate(template string, tokens Substitutions) string {
	keys := make([]string, 0, len(tokens))
	for key := range tokens {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := template
	for _, key := range keys {
		value := tokens[key]
		if value == nil {
			continue
		}
		out = markerPattern(key).ReplaceAllLiteralString(out, strings.Join(value, ","))
	}
	return out
}

// markerPatterns caches one compiled pattern per token.
var markerPatterns sync.Map

func markerPattern(token string) *regexp.Regexp {
	if cached, ok := markerPatterns.Load(token); ok {
		return cached.(*regexp.Regexp)
	}
	pattern := regexp.MustCompile(`<code>[ \n\t]*` + regexp.QuoteMeta(token) + `[ \n\t]*</code>`)
	actual, _ := markerPatterns.LoadOrStore(token, pattern)
	return actual.(*regexp.Regexp)
}

// MergeInput carries the data a template may reference.
type MergeInput struct {
	RecipientName     string
	Course            *models.Course
	RecordingTypeName string
	TermID            int
	Extra             Substitutions
}

// EmailMerge builds substitutions and renders templates.
type EmailMerge struct {
	signupBaseURL string
	currentTerm   int
}

// NewEmailMerge constructs an EmailMerge. currentTerm is used when the input has neither course nor term.
func NewEmailMerge(signupBaseURL string, currentTerm int) *EmailMerge {
	return &EmailMerge{signupBaseURL: strings.TrimRight(signupBaseURL, "/"), currentTerm: currentTerm}
}

// SignupURL returns the approval page of a section.
func (m *EmailMerge) SignupURL(termID, sectionID int) string {
	return fmt.Sprintf("%s/approve/%d/%d", m.signupBaseURL, termID, sectionID)
}

// BuildSubstitutions yields the built-in token set plus extra pairs. Extra pairs
// never override a built-in token.
func (m *EmailMerge) BuildSubstitutions(in MergeInput) Substitutions {
	termID := in.TermID
	if in.Course != nil && in.Course.TermID != 0 {
		termID = in.Course.TermID
	}
	if termID == 0 {
		termID = m.currentTerm
	}

	subs := Substitutions{
		TokenRecordingType: optional(in.RecordingTypeName),
		TokenTermName:      single(TermNameForSISID(termID)),
		TokenUserName:      optional(in.RecipientName),
	}
	for _, key := range []string{TokenCourseDays, TokenCourseFormat, TokenCourseName, TokenCourseRoom, TokenCourseSection,
		TokenCourseTimeEnd, TokenCourseTimeStart, TokenCourseTitle, TokenSignupURL} {
		subs[key] = nil
	}
	if c := in.Course; c != nil {
		subs[TokenCourseDays] = single(c.MeetingDays)
		subs[TokenCourseFormat] = single(c.InstructionFormat)
		subs[TokenCourseName] = single(c.CourseName)
		subs[TokenCourseRoom] = single(c.MeetingLocation)
		subs[TokenCourseSection] = single(c.SectionNum)
		subs[TokenCourseTimeEnd] = single(c.MeetingEndTime)
		subs[TokenCourseTimeStart] = single(c.MeetingStartTime)
		subs[TokenCourseTitle] = single(c.CourseTitle)
		subs[TokenSignupURL] = single(m.SignupURL(termID, c.SectionID))
	}

	for key, value := range in.Extra {
		if _, builtin := subs[key]; builtin {
			continue
		}
		subs[key] = value
	}
	return subs
}

// Render interpolates subject and body of a template.
func (m *EmailMerge) Render(tpl models.EmailTemplate, in MergeInput) (subject, body string) {
	subs := m.BuildSubstitutions(in)
	return Interpolate(tpl.SubjectLine, subs), Interpolate(tpl.Message, subs)
}

func single(value string) []string {
	return []string{value}
}

func optional(value string) []string {
	if value == "" {
		return nil
	}
	return []string{value}
}

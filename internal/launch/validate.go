package launch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"launchspace/internal/week"
)

const (
	nameMin, nameMax           = 2, 60
	shortDescMin, shortDescMax = 10, 160
	fullDescMax                = 5000
	urlMax                     = 2048
	categoriesMin              = 1
	categoriesMax              = 3
	categoryMax                = 40
)

// SubmissionInput is the payload of a new submission.
type SubmissionInput struct {
	Name             string   `json:"name"`
	ShortDescription string   `json:"shortDescription"`
	FullDescription  string   `json:"fullDescription"`
	WebsiteURL       string   `json:"websiteUrl"`
	LogoURL          string   `json:"logoUrl"`
	Categories       []string `json:"categories"`
	Pricing          Pricing  `json:"pricing"`
	Plan             Plan     `json:"plan"`
	Slug             string   `json:"slug"`
	LaunchWeek       string   `json:"launchWeek"`
}

// Normalize trims text fields, lower-cases and de-duplicates categories and
// defaults the plan.
func (in SubmissionInput) Normalize() SubmissionInput {
	in.Name = strings.TrimSpace(in.Name)
	in.ShortDescription = strings.TrimSpace(in.ShortDescription)
	in.FullDescription = strings.TrimSpace(in.FullDescription)
	in.WebsiteURL = strings.TrimSpace(in.WebsiteURL)
	in.LogoURL = strings.TrimSpace(in.LogoURL)
	in.Slug = strings.TrimSpace(in.Slug)
	in.LaunchWeek = strings.TrimSpace(in.LaunchWeek)
	in.Categories = normalizeCategories(in.Categories)
	if in.Plan == "" {
		in.Plan = PlanStandard
	}
	return in
}

// Validate checks a normalized input.
func (in SubmissionInput) Validate() error {
	v := &ValidationError{}
	checkName(v, in.Name)
	checkShortDescription(v, in.ShortDescription)
	checkFullDescription(v, in.FullDescription)
	checkURL(v, "websiteUrl", in.WebsiteURL, true)
	checkURL(v, "logoUrl", in.LogoURL, false)
	checkCategories(v, in.Categories)
	checkPricing(v, in.Pricing)
	if !in.Plan.Valid() {
		v.add("plan", "must be one of standard, premium, support")
	}
	if in.Slug != "" && !ValidSlug(in.Slug) {
		v.add("slug", "must be lowercase letters, digits and single hyphens")
	}
	if in.LaunchWeek != "" && !week.Valid(in.LaunchWeek) {
		v.add("launchWeek", "must look like 2024-W07")
	}
	return v.orNil()
}

// SubmissionPatch is an owner-initiated edit. Nil fields are left alone.
type SubmissionPatch struct {
	Name             *string   `json:"name"`
	ShortDescription *string   `json:"shortDescription"`
	FullDescription  *string   `json:"fullDescription"`
	WebsiteURL       *string   `json:"websiteUrl"`
	LogoURL          *string   `json:"logoUrl"`
	Categories       *[]string `json:"categories"`
	Pricing          *Pricing  `json:"pricing"`
}

var patchable = map[string]bool{
	"name":             true,
	"shortDescription": true,
	"fullDescription":  true,
	"websiteUrl":       true,
	"logoUrl":          true,
	"categories":       true,
	"pricing":          true,
}

// DecodePatch parses an owner patch, rejecting any key that is not owner
// editable (vote tallies, score, status, featured, plan, slug, ...).
func DecodePatch(raw []byte) (SubmissionPatch, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return SubmissionPatch{}, &ValidationError{Fields: map[string]string{"body": "must be a JSON object"}}
	}
	v := &ValidationError{}
	for k := range keys {
		if !patchable[k] {
			v.add(k, "cannot be changed")
		}
	}
	if err := v.orNil(); err != nil {
		return SubmissionPatch{}, err
	}

	var p SubmissionPatch
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&p); err != nil {
		return SubmissionPatch{}, &ValidationError{Fields: map[string]string{"body": fmt.Sprintf("invalid field type: %v", err)}}
	}
	return p, nil
}

// Empty reports whether the patch changes nothing.
func (p SubmissionPatch) Empty() bool {
	return p.Name == nil && p.ShortDescription == nil && p.FullDescription == nil &&
		p.WebsiteURL == nil && p.LogoURL == nil && p.Categories == nil && p.Pricing == nil
}

// Apply validates the patch against s and writes the changes into it.
func (p SubmissionPatch) Apply(s *Submission) error {
	v := &ValidationError{}
	next := *s
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
		checkName(v, next.Name)
	}
	if p.ShortDescription != nil {
		next.ShortDescription = strings.TrimSpace(*p.ShortDescription)
		checkShortDescription(v, next.ShortDescription)
	}
	if p.FullDescription != nil {
		next.FullDescription = strings.TrimSpace(*p.FullDescription)
		checkFullDescription(v, next.FullDescription)
	}
	if p.WebsiteURL != nil {
		next.WebsiteURL = strings.TrimSpace(*p.WebsiteURL)
		checkURL(v, "websiteUrl", next.WebsiteURL, true)
	}
	if p.LogoURL != nil {
		next.LogoURL = strings.TrimSpace(*p.LogoURL)
		checkURL(v, "logoUrl", next.LogoURL, false)
	}
	if p.Categories != nil {
		next.Categories = normalizeCategories(*p.Categories)
		checkCategories(v, next.Categories)
	}
	if p.Pricing != nil {
		next.Pricing = *p.Pricing
		checkPricing(v, next.Pricing)
	}
	if err := v.orNil(); err != nil {
		return err
	}
	*s = next
	return nil
}

func (p Plan) Valid() bool {
	return p == PlanStandard || p == PlanPremium || p == PlanSupport
}

func (p Pricing) Valid() bool {
	return p == PricingFree || p == PricingFreemium || p == PricingPaid
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusLive, StatusArchived, StatusRejected:
		return true
	}
	return false
}

func checkName(v *ValidationError, s string) {
	checkLen(v, "name", s, nameMin, nameMax)
}

func checkShortDescription(v *ValidationError, s string) {
	checkLen(v, "shortDescription", s, shortDescMin, shortDescMax)
}

func checkFullDescription(v *ValidationError, s string) {
	checkLen(v, "fullDescription", s, 0, fullDescMax)
}

func checkLen(v *ValidationError, field, s string, min, max int) {
	n := utf8.RuneCountInString(s)
	switch {
	case n == 0 && min > 0:
		v.add(field, "is required")
	case n < min:
		v.add(field, fmt.Sprintf("must be at least %d characters", min))
	case n > max:
		v.add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

func checkURL(v *ValidationError, field, raw string, required bool) {
	if raw == "" {
		if required {
			v.add(field, "is required")
		}
		return
	}
	if len(raw) > urlMax {
		v.add(field, fmt.Sprintf("must be at most %d characters", urlMax))
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.add(field, "must be an absolute http(s) URL")
	}
}

func checkCategories(v *ValidationError, cats []string) {
	if len(cats) < categoriesMin || len(cats) > categoriesMax {
		v.add("categories", fmt.Sprintf("must have between %d and %d entries", categoriesMin, categoriesMax))
		return
	}
	for _, c := range cats {
		if utf8.RuneCountInString(c) > categoryMax {
			v.add("categories", fmt.Sprintf("entries must be at most %d characters", categoryMax))
			return
		}
	}
}

func checkPricing(v *ValidationError, p Pricing) {
	if !p.Valid() {
		v.add("pricing", "must be one of Free, Freemium, Paid")
	}
}

func normalizeCategories(in []string) []string {
	if in == nil {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

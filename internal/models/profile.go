package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RuleType tags the variant of a Rule.
type RuleType string

const (
	RuleTicker  RuleType = "ticker"
	RuleCA      RuleType = "ca"
	RuleKeyword RuleType = "keyword"
	RuleCustom  RuleType = "custom"
)

const (
	DefaultMentionThreshold = 3
	DefaultGroupThreshold   = 1
)

// Rule is a validated profile rule. Custom rules carry no thresholds.
type Rule struct {
	ID               string   `json:"id,omitempty"`
	Type             RuleType `json:"type"`
	Value            string   `json:"value"`
	MentionThreshold int      `json:"mentionThreshold,omitempty"`
	GroupThreshold   int      `json:"groupThreshold,omitempty"`
}

// IsCustom reports whether the rule is advisory only.
func (r Rule) IsCustom() bool { return r.Type == RuleCustom }

// RuleInput is a rule as received from a client, before validation.
type RuleInput struct {
	ID               string   `json:"id"`
	Type             RuleType `json:"type"`
	Value            string   `json:"value"`
	MentionThreshold *int     `json:"mentionThreshold"`
	GroupThreshold   *int     `json:"groupThreshold"`
}

var (
	ErrRuleType        = errors.New("rule type must be ticker, ca, keyword or custom")
	ErrRuleValue       = errors.New("rule value must not be empty")
	ErrRuleThreshold   = errors.New("rule thresholds must be at least 1")
	ErrCustomThreshold = errors.New("custom rules do not take thresholds")
)

// Rule converts the input into a Rule, applying threshold defaults.
func (in RuleInput) Rule() (Rule, error) {
	r := Rule{ID: in.ID, Type: in.Type, Value: strings.TrimSpace(in.Value)}
	if r.Value == "" {
		return Rule{}, ErrRuleValue
	}
	switch in.Type {
	case RuleCustom:
		if in.MentionThreshold != nil || in.GroupThreshold != nil {
			return Rule{}, ErrCustomThreshold
		}
		return r, nil
	case RuleTicker, RuleCA, RuleKeyword:
	default:
		return Rule{}, ErrRuleType
	}

	r.MentionThreshold = DefaultMentionThreshold
	if in.MentionThreshold != nil {
		r.MentionThreshold = *in.MentionThreshold
	}
	r.GroupThreshold = DefaultGroupThreshold
	if in.GroupThreshold != nil {
		r.GroupThreshold = *in.GroupThreshold
	}
	if r.MentionThreshold < 1 || r.GroupThreshold < 1 {
		return Rule{}, ErrRuleThreshold
	}
	return r, nil
}

// ParseRules validates a list of rule inputs, keeping their order.
func ParseRules(in []RuleInput) ([]Rule, error) {
	rules := make([]Rule, 0, len(in))
	for i, ri := range in {
		r, err := ri.Rule()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Profile is a named set of rules evaluated over several topics.
type Profile struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"userId"`
	Name           string    `json:"name"`
	Rules          []Rule    `json:"rules"`
	TopicIDs       []string  `json:"topicIds"`
	TrackedSenders []string  `json:"trackedSenders,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ProfileRequest is the create/update payload for a profile.
type ProfileRequest struct {
	Name           string      `json:"name"`
	Rules          []RuleInput `json:"rules"`
	TopicIDs       []string    `json:"topicIds"`
	TrackedSenders []string    `json:"trackedSenders"`
}

var ErrProfileName = errors.New("profile name must not be empty")

// Validate returns the profile described by the request, minus identity.
func (r ProfileRequest) Validate() (*Profile, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, ErrProfileName
	}
	rules, err := ParseRules(r.Rules)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Name:           name,
		Rules:          rules,
		TopicIDs:       r.TopicIDs,
		TrackedSenders: CleanSenders(r.TrackedSenders),
	}, nil
}

// Finding is one evaluated rule outcome. Custom rules are always present
// as advisory findings; other rules appear only when triggered.
type Finding struct {
	Rule     Rule   `json:"rule"`
	Text     string `json:"text"`
	Mentions int    `json:"mentions,omitempty"`
	Groups   int    `json:"groups,omitempty"`
	Advisory bool   `json:"advisory"`
}

// ProfileSummary is the derived, never stored, result of evaluating a profile.
type ProfileSummary struct {
	ProfileID   string    `json:"profileId"`
	Narrative   string    `json:"narrative"`
	Findings    []Finding `json:"findings"`
	GeneratedAt time.Time `json:"generatedAt"`
}

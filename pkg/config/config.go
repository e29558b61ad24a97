package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/dkalashnik/survey-rewards-bot/pkg/equivalence"
	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

const defaultCurrency = "UZS"

// CatalogConfig is the static survey catalog configuration: equivalence
// groups and advertised rewards.
type CatalogConfig struct {
	Groups  []GroupConfig `yaml:"groups"`
	Rewards RewardsConfig `yaml:"rewards"`
}

type GroupConfig struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

type RewardsConfig struct {
	Default  int64            `yaml:"default"`
	Currency string           `yaml:"currency"`
	Surveys  map[string]int64 `yaml:"surveys,omitempty"`
}

func (cc *CatalogConfig) Validate() error {
	if cc == nil {
		return fmt.Errorf("config is nil")
	}

	groupIDs := make(map[string]bool)
	memberOf := make(map[string]string)

	for i, group := range cc.Groups {
		id := strings.TrimSpace(group.ID)
		if id == "" {
			return fmt.Errorf("config validation failed: group #%d has no id", i+1)
		}
		if groupIDs[id] {
			return fmt.Errorf("config validation failed: duplicate group id '%s'", id)
		}
		groupIDs[id] = true

		if len(group.Members) == 0 {
			return fmt.Errorf("config validation failed: group '%s' has no members", id)
		}
		if len(group.Members) == 1 {
			log.Printf("Warning: group '%s' has a single member and hides nothing", id)
		}

		for j, member := range group.Members {
			member = strings.TrimSpace(member)
			if member == "" {
				return fmt.Errorf("config validation failed: member #%d of group '%s' is empty", j+1, id)
			}
			if other, ok := memberOf[member]; ok {
				if other == id {
					return fmt.Errorf("config validation failed: survey '%s' listed twice in group '%s'", member, id)
				}
				return fmt.Errorf("config validation failed: survey '%s' is in both group '%s' and group '%s'", member, other, id)
			}
			memberOf[member] = id
		}
	}

	if cc.Rewards.Default < 0 {
		return fmt.Errorf("config validation failed: rewards.default is negative")
	}
	for surveyID, amount := range cc.Rewards.Surveys {
		if strings.TrimSpace(surveyID) == "" {
			return fmt.Errorf("config validation failed: rewards.surveys has an empty survey id")
		}
		if amount < 0 {
			return fmt.Errorf("config validation failed: reward for survey '%s' is negative", surveyID)
		}
	}
	return nil
}

// EquivalenceGroups converts the group section for equivalence.NewRegistry.
func (cc *CatalogConfig) EquivalenceGroups() []equivalence.Group {
	if cc == nil {
		return nil
	}
	out := make([]equivalence.Group, 0, len(cc.Groups))
	for _, g := range cc.Groups {
		members := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, strings.TrimSpace(m))
		}
		out = append(out, equivalence.Group{ID: strings.TrimSpace(g.ID), Name: g.Name, Members: members})
	}
	return out
}

// SurveyRewards converts the rewards section, defaulting the currency to UZS.
func (cc *CatalogConfig) SurveyRewards() survey.Rewards {
	if cc == nil {
		return survey.Rewards{Currency: defaultCurrency}
	}
	currency := strings.TrimSpace(cc.Rewards.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	perSurvey := make(map[string]int64, len(cc.Rewards.Surveys))
	for id, amount := range cc.Rewards.Surveys {
		perSurvey[strings.TrimSpace(id)] = amount
	}
	return survey.Rewards{
		Default:   cc.Rewards.Default,
		Currency:  currency,
		PerSurvey: perSurvey,
	}
}

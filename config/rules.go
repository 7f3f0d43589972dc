/*
rules.go - Notification rule file loading

PURPOSE:
  Parses the YAML rule file into a sched.RuleSet and validates each rule.
  Invalid rules are dropped with a log line rather than failing the load:
  one bad rule must never take down the pass (configuration errors degrade
  to "rule skipped").

FILE FORMAT:
  rules:
    - schedule: "17:00 Fri"
      recipient: ops@example.com
      state: unsubmitted
      spaces: ["AAAA1234"]
      departments: ["Engineering"]
      notify_individuals: true
      notify_by_email: true
  statistics:
    schedule: "18:00 EOM"
    recipient: ops@example.com
    state: unsubmitted
  excluded_customers: ["Internal"]
*/
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/warp/compliance-engine/compliance"
	"github.com/warp/compliance-engine/sched"
)

// RuleFile loads a sched.RuleSet from a YAML file on every call.
// Implements sched.RuleSource.
type RuleFile struct {
	Path string
	Log  *logrus.Logger

	validate *validator.Validate
}

var _ sched.RuleSource = (*RuleFile)(nil)

func NewRuleFile(path string, log *logrus.Logger) *RuleFile {
	return &RuleFile{Path: path, Log: log, validate: validator.New()}
}

// Load reads and validates the rule file. Rules that fail validation are
// dropped and logged; an unreadable or unparsable file is an error.
func (f *RuleFile) Load() (sched.RuleSet, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return sched.RuleSet{}, fmt.Errorf("read rules file: %w", err)
	}

	var ruleSet sched.RuleSet
	if err := yaml.Unmarshal(data, &ruleSet); err != nil {
		return sched.RuleSet{}, fmt.Errorf("parse rules file: %w", err)
	}

	valid := ruleSet.Rules[:0]
	for i, rule := range ruleSet.Rules {
		if err := f.checkRule(rule); err != nil {
			f.log().Warnf("dropping rule %d: %v", i, err)
			continue
		}
		valid = append(valid, rule)
	}
	ruleSet.Rules = valid

	if stats := ruleSet.Statistics; stats != nil {
		if err := f.validate.Struct(stats); err != nil {
			f.log().Warnf("dropping statistics rule: %v", err)
			ruleSet.Statistics = nil
		}
	}
	return ruleSet, nil
}

func (f *RuleFile) checkRule(rule sched.Rule) error {
	if err := f.validate.Struct(rule); err != nil {
		return err
	}
	if _, err := compliance.ParseReportState(rule.State); err != nil {
		return err
	}
	return nil
}

func (f *RuleFile) log() *logrus.Logger {
	if f.Log != nil {
		return f.Log
	}
	return logrus.StandardLogger()
}

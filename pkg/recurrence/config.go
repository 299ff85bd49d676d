package recurrence

import (
	"encoding/json"
	"fmt"
)

// RuleFromConfig builds a validated rule from a trigger instance's stored
// configuration. Start is an RFC 3339 string, weekdays are integers with
// Sunday as zero.
func RuleFromConfig(config map[string]any) (*Rule, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	var rule Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}

	return &rule, nil
}

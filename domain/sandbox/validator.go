package sandbox

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// dangerousPatterns are byte patterns that never belong in a lesson
// playbook. Matching is advisory; the container is the real barrier.
var dangerousPatterns = []string{
	"rm -rf",
	"dd if=",
	"mkfs",
	":(){ :|:& };:",
	"/dev/sda",
	"shutdown",
	"reboot",
	"halt",
}

// restrictedModules run arbitrary commands on managed nodes. Their use is
// flagged, not blocked, since some lessons legitimately teach them.
var restrictedModules = []string{"shell", "command", "raw", "script"}

// ValidationResult is the outcome of static playbook validation
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Safe     bool     `json:"safe"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validator statically checks submitted playbooks before they reach a
// container.
type Validator struct{}

// NewValidator creates a new playbook validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate parses the playbook and scans it for dangerous patterns and
// restricted modules. A parse failure or a non-list document makes the
// result invalid; pattern and module hits only produce warnings.
func (v *Validator) Validate(code string) ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Safe:     true,
		Errors:   []string{},
		Warnings: []string{},
	}

	var plays []map[string]interface{}
	if err := yaml.Unmarshal([]byte(code), &plays); err != nil {
		// Distinguish "not a list" from a plain syntax error
		var anyDoc interface{}
		if yamlErr := yaml.Unmarshal([]byte(code), &anyDoc); yamlErr == nil {
			result.Valid = false
			result.Errors = append(result.Errors, "playbook must be a YAML list of plays")
			return result
		}
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("YAML syntax error: %v", err))
		return result
	}

	// An empty or null document decodes to a nil slice without error;
	// that is not a list of plays either.
	if plays == nil {
		result.Valid = false
		result.Errors = append(result.Errors, "playbook must be a YAML list of plays")
		return result
	}

	// Scan the raw text, not the parsed tree, so patterns hidden in any
	// string field are caught.
	for _, pattern := range dangerousPatterns {
		if strings.Contains(code, pattern) {
			result.Safe = false
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("potentially dangerous pattern detected: %q", pattern))
		}
	}

	for _, play := range plays {
		tasks, ok := play["tasks"].([]interface{})
		if !ok {
			continue
		}
		for _, raw := range tasks {
			task, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			name := "unnamed"
			if n, ok := task["name"].(string); ok && n != "" {
				name = n
			}
			for _, module := range restrictedModules {
				if _, present := task[module]; present {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("task %q uses restricted module %q", name, module))
				}
			}
		}
	}

	return result
}

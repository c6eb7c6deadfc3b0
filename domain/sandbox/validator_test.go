package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const validPlaybook = `---
- hosts: all
  become: true
  tasks:
    - name: Install nginx
      apt:
        name: nginx
        state: present
`

func TestValidator_ValidPlaybook(t *testing.T) {
	v := NewValidator()

	result := v.Validate(validPlaybook)

	assert.True(t, result.Valid)
	assert.True(t, result.Safe)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidator_SyntaxError(t *testing.T) {
	v := NewValidator()

	result := v.Validate("---\n- hosts: all\n  tasks:\n   - name: broken\n  bad_indent: [")

	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidator_NotAList(t *testing.T) {
	v := NewValidator()

	result := v.Validate("hosts: all\ntasks: []\n")

	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "must be a YAML list")
}

func TestValidator_DangerousPatterns(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		snippet string
	}{
		{"recursive delete", "rm -rf /"},
		{"disk overwrite", "dd if=/dev/zero"},
		{"mkfs", "mkfs.ext4 /dev/sdb"},
		{"fork bomb", ":(){ :|:& };:"},
		{"raw device", "/dev/sda"},
		{"shutdown", "shutdown now"},
		{"reboot", "reboot"},
		{"halt", "halt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := "---\n- hosts: all\n  tasks:\n    - name: t\n      shell: \"" + tt.snippet + "\"\n"
			result := v.Validate(code)

			assert.True(t, result.Valid, "pattern hits stay advisory")
			assert.False(t, result.Safe)
			assert.NotEmpty(t, result.Warnings)
		})
	}
}

func TestValidator_RestrictedModules(t *testing.T) {
	v := NewValidator()

	code := `---
- hosts: all
  tasks:
    - name: List files
      command: ls /tmp
    - shell: echo hi
`
	result := v.Validate(code)

	assert.True(t, result.Valid)
	assert.True(t, result.Safe)
	assert.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], `"List files"`)
	assert.Contains(t, result.Warnings[0], `"command"`)
	assert.Contains(t, result.Warnings[1], `"unnamed"`)
	assert.Contains(t, result.Warnings[1], `"shell"`)
}

func TestValidator_PatternInsideStringField(t *testing.T) {
	v := NewValidator()

	// The scan runs over raw text, so a pattern buried in a copy module's
	// content field is still flagged.
	code := `---
- hosts: all
  tasks:
    - name: Write script
      copy:
        dest: /tmp/x.sh
        content: "rm -rf /data"
`
	result := v.Validate(code)

	assert.True(t, result.Valid)
	assert.False(t, result.Safe)
}

func TestValidator_EmptyInput(t *testing.T) {
	v := NewValidator()

	// Empty and null documents decode to nil, which is not a list of plays
	for _, code := range []string{"", "---\n", "null\n"} {
		result := v.Validate(code)

		assert.False(t, result.Valid, "input %q", code)
		assert.Contains(t, result.Errors[0], "must be a YAML list")
	}
}

func TestValidator_EmptyList(t *testing.T) {
	v := NewValidator()

	// A present but empty list is still a list; no plays, no findings
	result := v.Validate("[]\n")

	assert.True(t, result.Valid)
	assert.True(t, result.Safe)
	assert.Empty(t, result.Errors)
}

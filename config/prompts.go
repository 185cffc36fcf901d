package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrMissingPromptKey is returned when the prompt file lacks a template the
// conversation needs.
var ErrMissingPromptKey = errors.New("missing prompt key")

const (
	DefaultTaskHeader = "\nТекст задачи:\n"
	DefaultCodeHeader = "\nРеализация задачи в коде:\n"
)

// Prompts holds the templates used to assemble every conversation turn.
// JSON keys match the prompt files already in use; TOML files use the
// snake_case names.
type Prompts struct {
	SystemMessage       string `json:"systemMessageProgTxt" toml:"system_message"`
	LanguageDescription string `json:"systemLanguageDescription" toml:"language_description"`
	FunctionsList       string `json:"functionsListTxt" toml:"functions_list"`
	ExistingVarsPrompt  string `json:"existingVarsPromptTxt" toml:"existing_vars_prompt"`
	ExistingVars        string `json:"existingVarsProgTxt" toml:"existing_vars"`
	UserPrompt          string `json:"userPromptProgTxt" toml:"user_prompt"`

	CorrectionSystemMessage string   `json:"systemMessageCorrectionTxt" toml:"correction_system_message"`
	CorrectionPrompts       []string `json:"userCorrectionPromptProgArray" toml:"correction_prompts"`
	CorrectionPreamble      string   `json:"correctionProgBaseMsgTxt" toml:"correction_preamble"`

	ConvertSystemMessage string `json:"ProgToJsonConvertSysTxt" toml:"convert_system_message"`
	ConvertUserPrompt    string `json:"progToJsonUsrPromptTxt" toml:"convert_user_prompt"`

	TaskHeader       string `json:"taskHeaderTxt,omitempty" toml:"task_header"`
	CodeHeader       string `json:"codeHeaderTxt,omitempty" toml:"code_header"`
	UseRequestAsTask bool   `json:"useRequestAsTask,omitempty" toml:"use_request_as_task"`
}

// ExistingVarsSection is the variables description appended to system
// turns, or "" when no variables are declared.
func (p *Prompts) ExistingVarsSection() string {
	if p.ExistingVars == "" {
		return ""
	}
	return p.ExistingVarsPrompt + p.ExistingVars
}

// promptKey names one template in both file formats.
type promptKey struct {
	json string
	toml string
}

var (
	keyExistingVarsPrompt = promptKey{"existingVarsPromptTxt", "existing_vars_prompt"}

	// requiredPromptKeys must be present in every prompt file. Their values
	// may be empty.
	requiredPromptKeys = []promptKey{
		{"systemMessageProgTxt", "system_message"},
		{"systemLanguageDescription", "language_description"},
		{"functionsListTxt", "functions_list"},
		{"existingVarsProgTxt", "existing_vars"},
		{"userPromptProgTxt", "user_prompt"},
		{"systemMessageCorrectionTxt", "correction_system_message"},
		{"userCorrectionPromptProgArray", "correction_prompts"},
		{"correctionProgBaseMsgTxt", "correction_preamble"},
		{"ProgToJsonConvertSysTxt", "convert_system_message"},
		{"progToJsonUsrPromptTxt", "convert_user_prompt"},
	}
)

// missingKeys reports the required templates absent from the file. The
// variables prompt is only needed when variables are declared.
func (p *Prompts) missingKeys(defined func(promptKey) bool) error {
	var missing []string
	for _, k := range requiredPromptKeys {
		if !defined(k) {
			missing = append(missing, k.json)
		}
	}
	if p.ExistingVars != "" && !defined(keyExistingVarsPrompt) {
		missing = append(missing, keyExistingVarsPrompt.json)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingPromptKey, strings.Join(missing, ", "))
	}
	return nil
}

// LoadPrompts reads the prompt file (JSON, or TOML when the extension is
// .toml) and validates it. Callers reload it for every request.
func LoadPrompts(path string) (*Prompts, error) {
	p := &Prompts{}
	var defined func(promptKey) bool

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.DecodeFile(path, p)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
		}
		defined = func(k promptKey) bool { return md.IsDefined(k.toml) }
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file: %w", err)
		}
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
		}
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(data, &keys); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
		}
		defined = func(k promptKey) bool {
			_, ok := keys[k.json]
			return ok
		}
	}

	if err := p.missingKeys(defined); err != nil {
		return nil, fmt.Errorf("invalid prompt file %s: %w", path, err)
	}

	if p.CorrectionPrompts == nil {
		p.CorrectionPrompts = []string{}
	}
	if p.TaskHeader == "" {
		p.TaskHeader = DefaultTaskHeader
	}
	if p.CodeHeader == "" {
		p.CodeHeader = DefaultCodeHeader
	}

	return p, nil
}

package testcase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const schemaID = "https://github.com/devicelab-dev/replay-runner/schemas/testcase.json"

// ValidationError is a single validation finding with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // e.g. actions[2].target
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// GenerateJSONSchema reflects the TestCase types into a JSON Schema document.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&TestCase{})
	s.ID = schemaID
	s.Title = "Replay test case"
	s.Description = "Recorded UI test case: ordered, platform-tagged actions with element locators"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal test case schema: %w", err)
	}
	return data, nil
}

// ValidateFile runs the full pipeline on a test case file:
// strict decode, JSON Schema validation, then domain rules.
func ValidateFile(path string) (*TestCase, []*ValidationError) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided test case file
	if err != nil {
		return nil, []*ValidationError{structural(err.Error())}
	}

	tc, err := decodeStrict(data, path)
	if err != nil {
		return nil, []*ValidationError{structural(err.Error())}
	}

	var all []*ValidationError
	all = append(all, validateSemantic(tc)...)
	all = append(all, tc.Validate()...)
	if len(all) > 0 {
		return tc, all
	}
	return tc, nil
}

func structural(msg string) *ValidationError {
	return &ValidationError{Phase: "structural", Message: msg, Severity: "error"}
}

// decodeStrict rejects unknown fields, unlike Parse.
func decodeStrict(data []byte, path string) (*TestCase, error) {
	var tc TestCase
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&tc); err != nil {
			return nil, fmt.Errorf("structural decode: %w", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&tc); err != nil {
			return nil, fmt.Errorf("structural decode: %w", err)
		}
	}
	if tc.Actions == nil {
		tc.Actions = []TestAction{}
	}
	tc.SourcePath = path
	return &tc, nil
}

func validateSemantic(tc *TestCase) []*ValidationError {
	semantic := func(path, msg string) []*ValidationError {
		return []*ValidationError{{Phase: "semantic", Path: path, Message: msg, Severity: "error"}}
	}

	data, err := json.Marshal(tc)
	if err != nil {
		return semantic("", fmt.Sprintf("marshal for schema validation: %v", err))
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semantic("", fmt.Sprintf("generate schema: %v", err))
	}

	schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return semantic("", fmt.Sprintf("unmarshal schema: %v", err))
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource(schemaID, schemaDoc); err != nil {
		return semantic("", fmt.Sprintf("add schema resource: %v", err))
	}
	sch, err := c.Compile(schemaID)
	if err != nil {
		return semantic("", fmt.Sprintf("compile schema: %v", err))
	}

	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return semantic("", fmt.Sprintf("unmarshal document: %v", err))
	}
	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semantic("", err.Error())
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// Validate applies the domain rules to a decoded test case.
func (tc *TestCase) Validate() []*ValidationError {
	var errs []*ValidationError
	add := func(path, severity, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	if tc.ID == "" {
		add("id", "error", "test case id is required")
	}
	if !tc.Platform.Valid() {
		add("platform", "error", "unknown platform %q", tc.Platform)
	}

	seen := make(map[string]int)
	for i := range tc.Actions {
		a := &tc.Actions[i]
		path := fmt.Sprintf("actions[%d]", i)

		if a.ID != "" {
			if prev, dup := seen[a.ID]; dup {
				add(path+".id", "warning", "duplicate action id %q (also actions[%d])", a.ID, prev)
			}
			seen[a.ID] = i
		}
		if !a.Type.Valid() {
			add(path+".type", "error", "unknown action type %q", a.Type)
			continue
		}
		if a.Platform != "" && tc.Platform.Valid() && a.Platform != tc.Platform {
			add(path+".platform", "warning", "action platform %q differs from test case platform %q", a.Platform, tc.Platform)
		}
		if a.Type.RequiresTarget() && a.Target == nil {
			add(path+".target", "error", "%s requires a target locator", a.Type)
		}
		if a.Target != nil {
			errs = append(errs, validateLocator(a.Target, path+".target")...)
		}
		if a.Type == ActionWait {
			if _, err := a.ValueMillis(); err != nil {
				add(path+".value", "error", "wait requires a millisecond value: %v", err)
			}
		}
	}
	return errs
}

func validateLocator(l *ElementLocator, path string) []*ValidationError {
	var errs []*ValidationError
	if d := l.depth(); d > MaxLocatorDepth {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf("fallback chain nests %d levels, limit is %d", d, MaxLocatorDepth),
			Severity: "error",
		})
		return errs
	}
	var walk func(l *ElementLocator, path string)
	walk = func(l *ElementLocator, path string) {
		if !l.Type.Valid() {
			errs = append(errs, &ValidationError{Phase: "domain", Path: path + ".type", Message: fmt.Sprintf("unknown locator type %q", l.Type), Severity: "error"})
		}
		if strings.TrimSpace(l.Value) == "" {
			errs = append(errs, &ValidationError{Phase: "domain", Path: path + ".value", Message: "locator value is empty", Severity: "error"})
		}
		if l.Type == LocatorCoordinates {
			if _, err := ParsePoint(l.Value); err != nil {
				errs = append(errs, &ValidationError{Phase: "domain", Path: path + ".value", Message: err.Error(), Severity: "error"})
			}
		}
		for i := range l.Fallbacks {
			walk(&l.Fallbacks[i], fmt.Sprintf("%s.fallbacks[%d]", path, i))
		}
	}
	walk(l, path)
	return errs
}

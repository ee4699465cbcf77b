// Package dispatch holds the dispatch table: routing rules (intent -> agent)
// and per-agent profiles (model + persona). Missing persisted files are
// synthesized from built-in defaults and written out verbatim.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/harun/fsdispatch/pkg/fsutil"
	"github.com/spf13/afero"
	"github.com/xeipuuv/gojsonschema"
)

// Rules maps an intent to the agent that handles it.
type Rules map[Intent]string

// Assignments maps an agent identifier to its model identifier.
type Assignments map[string]string

// ProfileSource records where a profile attribute came from.
type ProfileSource string

const (
	SourceExplicit ProfileSource = "explicit"
	SourceBuiltin  ProfileSource = "builtin"
	SourceGeneric  ProfileSource = "generic"
)

// Profile is what an agent worker needs to run.
type Profile struct {
	AgentID       string
	Model         string
	Persona       string
	ModelSource   ProfileSource
	PersonaSource ProfileSource

	// BlankPersonaFile is set when the persisted persona exists but holds
	// only whitespace. The file is left as is and a default persona is used.
	BlankPersonaFile bool
}

// Paths locates the persisted configuration.
type Paths struct {
	RulesFile       string
	AssignmentsFile string
	PromptsDir      string
}

// Options tunes route resolution.
type Options struct {
	FallbackIntent Intent
	DefaultAgent   string
}

// Table is the loaded dispatch table. It is read-only after Load except for
// persona files materialized on first use.
type Table struct {
	fs           afero.Fs
	paths        Paths
	rules        Rules
	assignments  Assignments
	fallback     Intent
	defaultAgent string
}

var identifierRe = regexp.MustCompile(identifierPattern)

// Load reads the routing rules and model assignments, writing the defaults
// for whichever file is absent.
func Load(fsys afero.Fs, paths Paths, opts Options) (*Table, error) {
	if opts.FallbackIntent == "" {
		opts.FallbackIntent = DefaultFallbackIntent
	}
	if opts.DefaultAgent == "" {
		opts.DefaultAgent = DefaultAgent
	}

	rules := Rules{}
	if err := loadOrSynthesize(fsys, paths.RulesFile, rulesSchema, DefaultRules(), &rules); err != nil {
		return nil, err
	}

	assignments := Assignments{}
	if err := loadOrSynthesize(fsys, paths.AssignmentsFile, assignmentsSchema, DefaultAssignments(), &assignments); err != nil {
		return nil, err
	}

	return &Table{
		fs:           fsys,
		paths:        paths,
		rules:        rules,
		assignments:  assignments,
		fallback:     opts.FallbackIntent,
		defaultAgent: opts.DefaultAgent,
	}, nil
}

// EncodeDefaults renders v the way synthesized files are persisted.
func EncodeDefaults(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func loadOrSynthesize(fsys afero.Fs, path string, schema gojsonschema.JSONLoader, defaults interface{}, out interface{}) error {
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = EncodeDefaults(defaults)
		if err != nil {
			return &ConfigError{Op: "encode defaults", Path: path, Err: err}
		}
		if err := fsutil.WriteFileAtomic(fsys, path, data, 0644); err != nil {
			return &ConfigError{Op: "write defaults", Path: path, Err: err}
		}
	} else if err != nil {
		return &ConfigError{Op: "read", Path: path, Err: err}
	}

	if err := validateDocument(schema, data); err != nil {
		return &ConfigError{Op: "validate", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ConfigError{Op: "decode", Path: path, Err: err}
	}
	return nil
}

// Intents returns the closed intent enumeration, sorted.
func (t *Table) Intents() []Intent {
	intents := make([]Intent, 0, len(t.rules))
	for intent := range t.rules {
		intents = append(intents, intent)
	}
	return SortIntents(intents)
}

// Fallback returns the intent used when classification is unavailable.
func (t *Table) Fallback() Intent {
	return t.fallback
}

// Rules returns a copy of the routing rules.
func (t *Table) Rules() Rules {
	out := make(Rules, len(t.rules))
	for k, v := range t.rules {
		out[k] = v
	}
	return out
}

// Agents returns every agent the router can target, sorted: the rule targets
// plus the default agent.
func (t *Table) Agents() []string {
	seen := map[string]bool{t.defaultAgent: true}
	for _, agentID := range t.rules {
		seen[agentID] = true
	}
	agents := make([]string, 0, len(seen))
	for agentID := range seen {
		agents = append(agents, agentID)
	}
	sort.Strings(agents)
	return agents
}

// ResolveRoute returns the agent for intent, or the default agent when the
// intent has no rule.
func (t *Table) ResolveRoute(intent Intent) string {
	if agentID, ok := t.rules[intent]; ok {
		return agentID
	}
	return t.defaultAgent
}

// Assignment returns the model for agentID. An agent with neither an explicit
// assignment nor a built-in default is a configuration error.
func (t *Table) Assignment(agentID string) (string, ProfileSource, error) {
	if !identifierRe.MatchString(agentID) {
		return "", "", &ConfigError{Op: "resolve agent", Err: fmt.Errorf("invalid agent identifier %q", agentID)}
	}
	if model, ok := t.assignments[agentID]; ok {
		return model, SourceExplicit, nil
	}
	if model, ok := DefaultAssignments()[agentID]; ok {
		return model, SourceBuiltin, nil
	}
	return "", "", &ConfigError{
		Op:   "resolve agent",
		Path: t.paths.AssignmentsFile,
		Err:  fmt.Errorf("agent %q has no model assignment", agentID),
	}
}

// ResolveProfile returns the model and persona for agentID. A persona that is
// not persisted yet is synthesized (built-in or generic) and written out.
func (t *Table) ResolveProfile(agentID string) (Profile, error) {
	model, modelSource, err := t.Assignment(agentID)
	if err != nil {
		return Profile{}, err
	}

	persona, personaSource, blank, err := t.persona(agentID)
	if err != nil {
		return Profile{}, err
	}

	return Profile{
		AgentID:          agentID,
		Model:            model,
		Persona:          persona,
		ModelSource:      modelSource,
		PersonaSource:    personaSource,
		BlankPersonaFile: blank,
	}, nil
}

// PersonaPath returns where the persona of agentID is persisted.
func (t *Table) PersonaPath(agentID string) string {
	return filepath.Join(t.paths.PromptsDir, agentID+".txt")
}

func (t *Table) persona(agentID string) (string, ProfileSource, bool, error) {
	path := t.PersonaPath(agentID)

	persona, source := GenericPersona(agentID), SourceGeneric
	if builtin, ok := BuiltinPersona(agentID); ok {
		persona, source = builtin, SourceBuiltin
	}

	data, err := afero.ReadFile(t.fs, path)
	switch {
	case err == nil:
		if explicit := strings.TrimSpace(string(data)); explicit != "" {
			return explicit, SourceExplicit, false, nil
		}
		// Never overwrite an operator's file, even an empty one.
		return persona, source, true, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", "", false, &ConfigError{Op: "read persona", Path: path, Err: err}
	}

	if err := fsutil.WriteFileAtomic(t.fs, path, []byte(persona+"\n"), 0644); err != nil {
		return "", "", false, &ConfigError{Op: "write persona", Path: path, Err: err}
	}
	return persona, source, false, nil
}

// Validate checks that the fallback intent has a rule and that every agent
// the router can target has a model.
func (t *Table) Validate() error {
	if _, ok := t.rules[t.fallback]; !ok {
		return &ConfigError{
			Op:   "validate",
			Path: t.paths.RulesFile,
			Err:  fmt.Errorf("fallback intent %q has no routing rule", t.fallback),
		}
	}

	if _, _, err := t.Assignment(t.defaultAgent); err != nil {
		return err
	}
	for _, intent := range t.Intents() {
		if _, _, err := t.Assignment(t.rules[intent]); err != nil {
			return err
		}
	}
	return nil
}

// Package wizard drives linear multi-step forms. Each step validates its own
// fields before the wizard advances, and a wizard in progress can be saved as
// a draft and resumed later.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/microloan/pkg/validation"
)

var (
	// ErrIncomplete is returned by Submit when any step has errors.
	ErrIncomplete = errors.New("form has validation errors")
	// ErrNoDraft is returned by Resume when no draft is stored under the key.
	ErrNoDraft = errors.New("no saved draft")
	// ErrDefinitionMismatch is returned when a draft belongs to another form.
	ErrDefinitionMismatch = errors.New("draft belongs to a different form")
)

// Field is one input on a step.
type Field struct {
	Name     string
	Label    string
	Required bool
	Validate validation.Validator
}

// Step is one page of a wizard. Check, when set, runs after the per-field
// validators and returns cross-field errors keyed by field name.
type Step struct {
	Title  string
	Fields []Field
	Check  func(values map[string]string) map[string]string
}

// Definition describes a wizard.
type Definition struct {
	Name  string
	Steps []Step
}

// Wizard is the state of one user working through a Definition.
type Wizard struct {
	def         Definition
	CurrentStep int               `json:"currentStep"`
	Values      map[string]string `json:"values"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// New starts def at step 1.
func New(def Definition) *Wizard {
	return &Wizard{
		def:         def,
		CurrentStep: 1,
		Values:      make(map[string]string),
		Errors:      make(map[string]string),
	}
}

// Definition returns the wizard's form definition.
func (w *Wizard) Definition() Definition {
	return w.def
}

// TotalSteps is the number of steps in the form.
func (w *Wizard) TotalSteps() int {
	return len(w.def.Steps)
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return w.def.Steps[w.CurrentStep-1]
}

// Set records a field value and clears its error.
func (w *Wizard) Set(field, value string) {
	w.Values[field] = value
	delete(w.Errors, field)
}

// SetAll records several values at once.
func (w *Wizard) SetAll(values map[string]string) {
	for k, v := range values {
		w.Set(k, v)
	}
}

// ValidateStep returns the errors of step number (1-based).
func (w *Wizard) ValidateStep(number int) map[string]string {
	errs := make(map[string]string)
	if number < 1 || number > len(w.def.Steps) {
		return errs
	}
	step := w.def.Steps[number-1]
	for _, f := range step.Fields {
		value := strings.TrimSpace(w.Values[f.Name])
		if value == "" {
			if f.Required {
				errs[f.Name] = validation.ErrRequired.Error()
			}
			continue
		}
		if f.Validate != nil {
			if err := f.Validate(value); err != nil {
				errs[f.Name] = err.Error()
			}
		}
	}
	if step.Check != nil && len(errs) == 0 {
		for k, v := range step.Check(w.Values) {
			errs[k] = v
		}
	}
	return errs
}

// Next validates the current step and advances when it has no errors. It
// reports whether the step was valid. On the last step a valid Next leaves
// the wizard in place; call Submit to finish.
func (w *Wizard) Next() bool {
	errs := w.ValidateStep(w.CurrentStep)
	w.Errors = errs
	if len(errs) > 0 {
		return false
	}
	if w.CurrentStep < len(w.def.Steps) {
		w.CurrentStep++
	}
	return true
}

// Back returns to the previous step. It never goes below step 1 and never
// validates.
func (w *Wizard) Back() {
	if w.CurrentStep > 1 {
		w.CurrentStep--
	}
	w.Errors = make(map[string]string)
}

// Submit validates every step. On failure the wizard moves to the first
// invalid step with its errors populated.
func (w *Wizard) Submit() (map[string]string, error) {
	for number := 1; number <= len(w.def.Steps); number++ {
		if errs := w.ValidateStep(number); len(errs) > 0 {
			w.CurrentStep = number
			w.Errors = errs
			return nil, fmt.Errorf("%w on step %d (%s)", ErrIncomplete, number, w.def.Steps[number-1].Title)
		}
	}
	w.Errors = make(map[string]string)
	values := make(map[string]string, len(w.Values))
	for k, v := range w.Values {
		values[k] = v
	}
	return values, nil
}

// DraftStore is the subset of the cache used for drafts.
type DraftStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type draft struct {
	Form        string            `json:"form"`
	CurrentStep int               `json:"currentStep"`
	Values      map[string]string `json:"values"`
	SavedAt     time.Time         `json:"savedAt"`
}

// DraftKey namespaces a draft key by form.
func DraftKey(form, owner string) string {
	return "draft:" + form + ":" + owner
}

// SaveDraft stores the current step and values under key.
func (w *Wizard) SaveDraft(ctx context.Context, store DraftStore, key string, ttl time.Duration) error {
	data, err := json.Marshal(draft{
		Form:        w.def.Name,
		CurrentStep: w.CurrentStep,
		Values:      w.Values,
		SavedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := store.Set(ctx, key, string(data), ttl); err != nil {
		return fmt.Errorf("saving draft %s: %w", key, err)
	}
	return nil
}

// Resume restores a draft saved for def. The step is clamped to the form's
// range in case the definition has changed since it was saved.
func Resume(ctx context.Context, store DraftStore, key string, def Definition) (*Wizard, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading draft %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNoDraft
	}
	var d draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decoding draft %s: %w", key, err)
	}
	if d.Form != def.Name {
		return nil, fmt.Errorf("%w: %q", ErrDefinitionMismatch, d.Form)
	}

	w := New(def)
	w.SetAll(d.Values)
	w.CurrentStep = min(max(d.CurrentStep, 1), max(len(def.Steps), 1))
	return w, nil
}

// DiscardDraft removes a stored draft.
func DiscardDraft(ctx context.Context, store DraftStore, key string) error {
	return store.Delete(ctx, key)
}

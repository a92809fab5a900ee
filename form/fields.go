// Package form holds the scraper form state that drives request payloads.
package form

import (
	"strings"

	"github.com/google/uuid"
	"github.com/use-agent/scrapedesk/models"
)

// Fields is the ordered list of user-authored field specs. It always holds
// at least one entry.
type Fields []models.FieldSpec

// NewFields returns a list holding one blank field.
func NewFields() Fields {
	return Fields{blankField()}
}

func blankField() models.FieldSpec {
	return models.FieldSpec{ID: uuid.NewString()}
}

// Add appends a blank field and returns it.
func (f *Fields) Add() models.FieldSpec {
	spec := blankField()
	*f = append(*f, spec)
	return spec
}

// Remove deletes the field with id. Removing the last remaining field or an
// unknown id is a no-op; the return value reports whether anything changed.
func (f *Fields) Remove(id string) bool {
	if len(*f) <= 1 {
		return false
	}
	i := f.index(id)
	if i < 0 {
		return false
	}
	*f = append((*f)[:i], (*f)[i+1:]...)
	return true
}

// Update replaces the name and selector of the field with id.
func (f Fields) Update(id, name, selector string) bool {
	i := f.index(id)
	if i < 0 {
		return false
	}
	f[i].Name = name
	f[i].Selector = selector
	return true
}

// Move relocates the field with id to position to, shifting the others.
// An out-of-range destination is clamped to the list bounds.
func (f Fields) Move(id string, to int) bool {
	from := f.index(id)
	if from < 0 {
		return false
	}
	if to < 0 {
		to = 0
	}
	if to >= len(f) {
		to = len(f) - 1
	}
	if from == to {
		return true
	}

	moved := f[from]
	if from < to {
		copy(f[from:to], f[from+1:to+1])
	} else {
		copy(f[to+1:from+1], f[to:from])
	}
	f[to] = moved
	return true
}

// Order returns the trimmed names of complete fields, in list order.
func (f Fields) Order() []string {
	order := make([]string, 0, len(f))
	for _, spec := range f {
		if name, ok := spec.Complete(); ok {
			order = append(order, name)
		}
	}
	return order
}

// CustomFields returns the wire form of complete fields, names trimmed.
func (f Fields) CustomFields() []models.CustomField {
	out := make([]models.CustomField, 0, len(f))
	for _, spec := range f {
		if name, ok := spec.Complete(); ok {
			out = append(out, models.CustomField{
				Name:     name,
				Selector: strings.TrimSpace(spec.Selector),
			})
		}
	}
	return out
}

// normalize backfills missing ids and guarantees a non-empty list.
func (f *Fields) normalize() {
	if len(*f) == 0 {
		*f = NewFields()
		return
	}
	seen := make(map[string]struct{}, len(*f))
	for i := range *f {
		id := (*f)[i].ID
		if _, dup := seen[id]; id == "" || dup {
			id = uuid.NewString()
			(*f)[i].ID = id
		}
		seen[id] = struct{}{}
	}
}

func (f Fields) index(id string) int {
	for i, spec := range f {
		if spec.ID == id {
			return i
		}
	}
	return -1
}

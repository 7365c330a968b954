package annotation

import (
	"fmt"
	"sort"
)

// Class is a reusable label definition
type Class struct {
	ID           string `json:"id" mapstructure:"id"`
	Name         string `json:"name" mapstructure:"name"`
	DisplayLabel string `json:"displayLabel" mapstructure:"display_label"`
	Color        string `json:"color" mapstructure:"color"`
	Description  string `json:"description,omitempty" mapstructure:"description"`
	Deleted      bool   `json:"deleted,omitempty" mapstructure:"deleted"`
}

// Stamp copies the class reference onto an annotation
func (c Class) Stamp(a *Annotation) {
	a.ClassID = c.ID
	a.ClassName = c.Name
	a.ClassDisplayLabel = c.DisplayLabel
	a.ClassColor = c.Color
}

// Catalog holds the annotation classes known to a workspace
type Catalog struct {
	byID   map[string]Class
	byName map[string]string
}

// NewCatalog creates a catalog from the given classes
func NewCatalog(classes ...Class) (*Catalog, error) {
	c := &Catalog{
		byID:   make(map[string]Class),
		byName: make(map[string]string),
	}
	for _, cls := range classes {
		if err := c.Add(cls); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a class. Names and ids must be unique.
func (c *Catalog) Add(cls Class) error {
	if cls.ID == "" {
		return &ValidationError{Field: "classId", Message: "must not be empty"}
	}
	if cls.Name == "" {
		return &ValidationError{Field: "className", Value: cls.ID, Message: "must not be empty"}
	}
	if _, exists := c.byID[cls.ID]; exists {
		return &ValidationError{Field: "classId", Value: cls.ID, Message: "already defined"}
	}
	if _, exists := c.byName[cls.Name]; exists {
		return &ValidationError{Field: "className", Value: cls.Name, Message: "already defined"}
	}
	if cls.DisplayLabel == "" {
		cls.DisplayLabel = cls.Name
	}
	c.byID[cls.ID] = cls
	c.byName[cls.Name] = cls.ID
	return nil
}

// Lookup returns the class with the given id, deleted or not
func (c *Catalog) Lookup(id string) (Class, error) {
	cls, ok := c.byID[id]
	if !ok {
		return Class{}, &ValidationError{Field: "classId", Value: id, Message: "unknown class"}
	}
	return cls, nil
}

// Assignable returns the class if it may be used for a new annotation
func (c *Catalog) Assignable(id string) (Class, error) {
	cls, err := c.Lookup(id)
	if err != nil {
		return Class{}, err
	}
	if cls.Deleted {
		return Class{}, &ValidationError{Field: "classId", Value: id, Message: "class has been deleted"}
	}
	return cls, nil
}

// ByName finds a class by its name
func (c *Catalog) ByName(name string) (Class, bool) {
	id, ok := c.byName[name]
	if !ok {
		return Class{}, false
	}
	return c.byID[id], true
}

// SoftDelete marks a class deleted. Existing annotations keep their snapshot.
func (c *Catalog) SoftDelete(id string) error {
	cls, err := c.Lookup(id)
	if err != nil {
		return err
	}
	cls.Deleted = true
	c.byID[id] = cls
	return nil
}

// List returns all classes ordered by name
func (c *Catalog) List() []Class {
	out := make([]Class, 0, len(c.byID))
	for _, cls := range c.byID {
		out = append(out, cls)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultClasses is the seed catalog for a fresh workspace
func DefaultClasses() []Class {
	seed := []struct{ name, label, color string }{
		{"email", "Email", "#E53E3E"},
		{"first_name_person", "First Name (Person)", "#DD6B20"},
		{"last_name_person", "Last Name (Person)", "#D69E2E"},
		{"phone", "Phone", "#38A169"},
		{"address", "Address", "#3182CE"},
		{"city", "City", "#805AD5"},
		{"state", "State", "#D53F8C"},
		{"zip_code", "Zip Code", "#718096"},
		{"card_number", "Card Number", "#E53E3E"},
		{"account_number", "Account Number", "#2B6CB0"},
		{"full_name_person", "Full Name (Person)", "#B7791F"},
	}

	classes := make([]Class, len(seed))
	for i, s := range seed {
		classes[i] = Class{ID: s.name, Name: s.name, DisplayLabel: s.label, Color: s.color}
	}
	return classes
}

// MustDefaultCatalog builds the seed catalog
func MustDefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultClasses()...)
	if err != nil {
		panic(fmt.Sprintf("default catalog: %v", err))
	}
	return c
}

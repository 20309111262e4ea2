package model

import "fmt"

// TemplateSlot is one fillable slot declared by a render template.
type TemplateSlot struct {
	Name     string    `json:"name"`
	Type     AssetType `json:"type"`
	Required bool      `json:"required"`
}

// RenderTemplate describes the provider template a generation renders into.
type RenderTemplate struct {
	ID    string         `json:"id"`
	Name  string         `json:"name,omitempty"`
	Slots []TemplateSlot `json:"slots"`
}

// Modifications maps template slot names to asset URLs or text values. Only
// slot names declared by the template may appear.
type Modifications map[string]string

// BuildModifications resolves a combination against the template's declared
// slots. Required slots without a matching assignment are an error; optional
// slots without one are simply omitted.
func BuildModifications(tpl *RenderTemplate, combo Combination) (Modifications, error) {
	mods := make(Modifications, len(tpl.Slots))
	for _, slot := range tpl.Slots {
		ref := combo.Assignments[slot.Type]
		if ref == nil {
			if slot.Required {
				return nil, fmt.Errorf("template %s: required slot %q has no %s assignment", tpl.ID, slot.Name, slot.Type)
			}
			continue
		}
		if slot.Type == AssetTypeText {
			// Text slots carry the copy itself; the catalog stores it in Name.
			mods[slot.Name] = ref.Name
		} else {
			mods[slot.Name] = ref.URL
		}
	}
	return mods, nil
}

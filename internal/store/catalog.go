package store

import "strings"

// AddCategory creates a category.
type AddCategory struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon,omitempty"`
}

func (r AddCategory) apply(st *State, e *env) error {
	id := r.ID
	if id == "" {
		id = e.newID()
	}
	st.Categories = append(st.Categories, Category{
		ID:    id,
		Name:  r.Name,
		Color: r.Color,
		Icon:  r.Icon,
	})
	return nil
}

// EditCategory changes the non-empty fields of a category.
type EditCategory struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

func (r EditCategory) apply(st *State, _ *env) error {
	for i := range st.Categories {
		c := &st.Categories[i]
		if c.ID != r.ID {
			continue
		}
		if r.Name != "" {
			c.Name = r.Name
		}
		if r.Color != "" {
			c.Color = r.Color
		}
		if r.Icon != "" {
			c.Icon = r.Icon
		}
		return nil
	}
	return nil
}

// DeleteCategory removes a category and clears it from every task.
type DeleteCategory struct {
	ID string `json:"id"`
}

func (r DeleteCategory) apply(st *State, _ *env) error {
	kept := make([]Category, 0, len(st.Categories))
	for _, c := range st.Categories {
		if c.ID != r.ID {
			kept = append(kept, c)
		}
	}
	st.Categories = kept
	for i := range st.Items {
		if st.Items[i].Category == r.ID {
			st.Items[i].Category = ""
		}
	}
	for i := range st.Templates {
		if st.Templates[i].Category == r.ID {
			st.Templates[i].Category = ""
		}
	}
	return nil
}

// FindCategory returns the category with the given id or name.
func (st *State) FindCategory(idOrName string) (Category, bool) {
	for _, c := range st.Categories {
		if c.ID == idOrName {
			return c, true
		}
	}
	for _, c := range st.Categories {
		if strings.EqualFold(c.Name, idOrName) {
			return c, true
		}
	}
	return Category{}, false
}

// SaveAsTemplate stores a reusable copy of a task.
type SaveAsTemplate struct {
	ID           string `json:"id"`
	TemplateName string `json:"templateName"`
}

func (r SaveAsTemplate) apply(st *State, e *env) error {
	src := st.find(r.ID)
	if src == nil {
		return nil
	}
	tpl := src.clone()
	tpl.ID = e.newID()
	tpl.IsTemplate = true
	tpl.TemplateName = r.TemplateName
	tpl.Completed = false
	tpl.Date = ""
	tpl.Backlog = false
	tpl.normalize()
	st.Templates = append(st.Templates, tpl)
	return nil
}

// DeleteTemplate removes a template.
type DeleteTemplate struct {
	ID string `json:"id"`
}

func (r DeleteTemplate) apply(st *State, _ *env) error {
	kept := make([]Task, 0, len(st.Templates))
	for _, t := range st.Templates {
		if t.ID != r.ID {
			kept = append(kept, t)
		}
	}
	st.Templates = kept
	return nil
}

// InstantiateTemplate creates a live task from a template, optionally dated.
type InstantiateTemplate struct {
	TemplateID string `json:"templateId"`
	ID         string `json:"id,omitempty"`
	Date       string `json:"date,omitempty"`
}

func (r InstantiateTemplate) apply(st *State, e *env) error {
	var tpl *Task
	for i := range st.Templates {
		if st.Templates[i].ID == r.TemplateID {
			tpl = &st.Templates[i]
			break
		}
	}
	if tpl == nil {
		return nil
	}
	t := tpl.clone()
	t.ID = r.ID
	if t.ID == "" {
		t.ID = e.newID()
	}
	t.IsTemplate = false
	t.TemplateName = ""
	t.Completed = false
	t.CreatedAt = e.now
	t.Order = nextOrder(st, e.now)
	t.DependsOn = nil
	t.AvailableAt = nil
	t.ReminderAt = nil
	t.OriginID = ""
	t.ExcludedDates = nil
	t.Subtasks = cloneSubtasksReset(tpl.Subtasks, e.newID)
	assignDate(&t, r.Date)
	t.normalize()
	st.Items = append(st.Items, t)
	return nil
}

// FindTemplate returns the template with the given id or name.
func (st *State) FindTemplate(idOrName string) (Task, bool) {
	for _, t := range st.Templates {
		if t.ID == idOrName || strings.EqualFold(t.TemplateName, idOrName) {
			return t.clone(), true
		}
	}
	return Task{}, false
}

// SettingsPatch lists the preferences UpdateSettings may change.
type SettingsPatch struct {
	Theme              *string `json:"theme,omitempty"`
	SoundEnabled       *bool   `json:"soundEnabled,omitempty"`
	ConfettiEnabled    *bool   `json:"confettiEnabled,omitempty"`
	EmailNotifications *bool   `json:"emailNotifications,omitempty"`
	WeeklyDigest       *bool   `json:"weeklyDigest,omitempty"`
}

// UpdateSettings shallow-merges a settings patch.
type UpdateSettings struct {
	Changes SettingsPatch `json:"changes"`
}

func (r UpdateSettings) apply(st *State, _ *env) error {
	c := r.Changes
	s := &st.Settings
	if c.Theme != nil {
		s.Theme = *c.Theme
	}
	if c.SoundEnabled != nil {
		s.SoundEnabled = *c.SoundEnabled
	}
	if c.ConfettiEnabled != nil {
		s.ConfettiEnabled = *c.ConfettiEnabled
	}
	if c.EmailNotifications != nil {
		s.EmailNotifications = *c.EmailNotifications
	}
	if c.WeeklyDigest != nil {
		s.WeeklyDigest = *c.WeeklyDigest
	}
	return nil
}

// SetDailyGoal sets the number of completions considered a full day.
type SetDailyGoal struct {
	Goal int `json:"goal"`
}

func (r SetDailyGoal) apply(st *State, _ *env) error {
	st.Productivity.DailyGoal = r.Goal
	return nil
}

// SetThresholds replaces the productivity banding thresholds.
type SetThresholds struct {
	Thresholds Thresholds `json:"thresholds"`
}

func (r SetThresholds) apply(st *State, _ *env) error {
	st.Productivity.Thresholds = r.Thresholds
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"daybucket/internal/store"
	"daybucket/internal/utils"
)

// DefaultCategoryColor is used when a category is added without --color.
const DefaultCategoryColor = "#1976d2"

func newCategoryCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var color, icon string
	add := &cobra.Command{
		Use:   "add <name...>",
		Short: "Add a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				name, err := utils.ValidateTitle(strings.Join(args, " "))
				if err != nil {
					return err
				}
				st := a.store.State()
				if _, exists := st.FindCategory(name); exists {
					return fmt.Errorf("category already exists: %s", name)
				}
				c := color
				if c == "" {
					c = DefaultCategoryColor
				}
				if err := a.dispatch(store.AddCategory{Name: name, Color: c, Icon: icon}); err != nil {
					return err
				}
				return a.completed("category-add", fmt.Sprintf("Created category: %s", name), nil)
			})
		},
	}
	add.Flags().StringVar(&color, "color", "", "Display colour")
	add.Flags().StringVar(&icon, "icon", "", "Icon name")

	var newName, newColor, newIcon string
	edit := &cobra.Command{
		Use:   "edit <category>",
		Short: "Rename or recolour a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				st := a.store.State()
				c, ok := st.FindCategory(args[0])
				if !ok {
					return utils.ErrCategoryNotFound(args[0])
				}
				req := store.EditCategory{ID: c.ID, Name: strings.TrimSpace(newName), Color: newColor, Icon: newIcon}
				if err := a.dispatch(req); err != nil {
					return err
				}
				return a.completed("category-edit", fmt.Sprintf("Updated category: %s", c.Name), nil)
			})
		},
	}
	edit.Flags().StringVar(&newName, "name", "", "New name")
	edit.Flags().StringVar(&newColor, "color", "", "New colour")
	edit.Flags().StringVar(&newIcon, "icon", "", "New icon")

	rm := &cobra.Command{
		Use:   "rm <category>",
		Short: "Delete a category and clear it from its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				st := a.store.State()
				c, ok := st.FindCategory(args[0])
				if !ok {
					return utils.ErrCategoryNotFound(args[0])
				}
				if err := a.dispatch(store.DeleteCategory{ID: c.ID}); err != nil {
					return err
				}
				return a.completed("category-delete", fmt.Sprintf("Deleted category: %s", c.Name), nil)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				cats := a.store.State().Categories
				if cats == nil {
					cats = []store.Category{}
				}
				return a.info(cats, func(w io.Writer) {
					if len(cats) == 0 {
						_, _ = fmt.Fprintln(w, "No categories")
						return
					}
					for _, c := range cats {
						_, _ = fmt.Fprintf(w, "%s  %s  (%s)\n", c.Color, c.Name, shortID(c.ID))
					}
				})
			})
		},
	}

	cmd.AddCommand(add, edit, rm, list)
	return cmd
}

func findTemplate(st store.State, ref string) (store.Task, error) {
	if t, ok := st.FindTemplate(ref); ok {
		return t, nil
	}
	return store.Task{}, utils.ErrTemplateNotFound(ref)
}

func newTemplateCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"tpl"},
		Short:   "Save tasks as templates and reuse them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	save := &cobra.Command{
		Use:   "save <task> <name...>",
		Short: "Save a task as a template",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				st := a.store.State()
				t, err := a.resolve(args[0])
				if err != nil {
					return err
				}
				name, err := utils.ValidateTitle(strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				if _, exists := st.FindTemplate(name); exists {
					return fmt.Errorf("template already exists: %s", name)
				}
				if err := a.dispatch(store.SaveAsTemplate{ID: t.ID, TemplateName: name}); err != nil {
					return err
				}
				return a.completed("template-save", fmt.Sprintf("Saved template: %s", name), nil)
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <template>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				tpl, err := findTemplate(a.store.State(), args[0])
				if err != nil {
					return err
				}
				if err := a.dispatch(store.DeleteTemplate{ID: tpl.ID}); err != nil {
					return err
				}
				return a.completed("template-delete", fmt.Sprintf("Deleted template: %s", tpl.TemplateName), nil)
			})
		},
	}

	var date string
	use := &cobra.Command{
		Use:   "use <template>",
		Short: "Create a task from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				tpl, err := findTemplate(a.store.State(), args[0])
				if err != nil {
					return err
				}
				day, err := a.parseDate(date)
				if err != nil {
					return err
				}
				if err := a.dispatch(store.InstantiateTemplate{TemplateID: tpl.ID, Date: day}); err != nil {
					return err
				}
				created := a.lastTask()
				return a.completed("template-use", fmt.Sprintf("Created task from template %s: %s", tpl.TemplateName, created.Title), created)
			})
		},
	}
	use.Flags().StringVarP(&date, "date", "d", "", "Date for the new task; empty puts it in the bucket")

	list := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, stdout, func(ctx context.Context, a *app) error {
				tpls := a.store.State().Templates
				if tpls == nil {
					tpls = []store.Task{}
				}
				return a.info(tpls, func(w io.Writer) {
					if len(tpls) == 0 {
						_, _ = fmt.Fprintln(w, "No templates")
						return
					}
					for _, t := range tpls {
						_, _ = fmt.Fprintf(w, "%s: %s  (%s)\n", t.TemplateName, t.Title, shortID(t.ID))
					}
				})
			})
		},
	}

	cmd.AddCommand(save, rm, use, list)
	return cmd
}

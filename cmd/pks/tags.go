package main

import (
	"fmt"
	"io"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/spf13/cobra"
)

func (c *cli) tagsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List and edit tags",
	}
	cmd.AddCommand(
		c.tagsListCommand(),
		c.tagsTreeCommand(),
		c.tagsCreateCommand(),
		c.tagsUpdateCommand(),
		c.tagsDeleteCommand(),
	)
	return cmd
}

func (c *cli) tagsListCommand() *cobra.Command {
	var parentID int64
	cmd := &cobra.Command{
		Use:         "list",
		Short:       "List tags",
		Args:        cobra.NoArgs,
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query api.TagQuery
			if parentID > 0 {
				query.ParentID = &parentID
			}
			list, err := c.app.Tags.Fetch(cmd.Context(), query)
			if err != nil {
				return err
			}
			return c.emit(cmd, list, func(w io.Writer) { writeTags(w, list) })
		},
	}
	cmd.Flags().Int64Var(&parentID, "parent", 0, "Only children of this tag id")
	return cmd
}

func (c *cli) tagsTreeCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "tree",
		Short:       "Show the tag hierarchy",
		Args:        cobra.NoArgs,
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.app.Tags.Fetch(cmd.Context(), api.TagQuery{}); err != nil {
				return err
			}
			tree := c.app.Tags.Tree()
			return c.emit(cmd, tree, func(w io.Writer) { writeTree(w, tree) })
		},
	}
}

func (c *cli) tagsCreateCommand() *cobra.Command {
	var (
		input    api.TagInput
		parentID int64
	)
	cmd := &cobra.Command{
		Use:         "create NAME",
		Short:       "Create a tag",
		Args:        cobra.ExactArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Name = args[0]
			if parentID > 0 {
				input.ParentID = &parentID
			}
			tag, err := c.app.Tags.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			return c.emit(cmd, tag, func(w io.Writer) {
				fmt.Fprintf(w, "created tag %d\n", tag.ID)
			})
		},
	}
	cmd.Flags().StringVar(&input.Color, "color", "", "Color as #rrggbb")
	cmd.Flags().Int64Var(&parentID, "parent", 0, "Parent tag id")
	return cmd
}

func (c *cli) tagsUpdateCommand() *cobra.Command {
	var name, color string
	cmd := &cobra.Command{
		Use:         "update TAG_ID",
		Short:       "Rename or recolor a tag",
		Args:        cobra.ExactArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch api.TagPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("color") {
				patch.Color = &color
			}
			tag, err := c.app.Tags.Update(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			return c.emit(cmd, tag, func(w io.Writer) { writeTags(w, []api.Tag{tag}) })
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&color, "color", "", "New color as #rrggbb")
	return cmd
}

func (c *cli) tagsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "delete TAG_ID",
		Short:       "Delete a tag",
		Args:        cobra.ExactArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.app.Tags.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted tag %d\n", id)
			return nil
		},
	}
}

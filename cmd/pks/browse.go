package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/spf13/cobra"
)

func (c *cli) searchCommand() *cobra.Command {
	var (
		scope     string
		page      int
		pageSize  int
		cardTypes []string
		tagIDs    []int64
		advanced  bool
	)
	cmd := &cobra.Command{
		Use:         "search QUERY...",
		Short:       "Search cards and tags",
		Args:        cobra.MinimumNArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			var (
				result api.SearchResult
				err    error
			)
			if advanced {
				query := api.AdvancedSearch{Keywords: text, TagIDs: tagIDs, Page: page, PageSize: pageSize}
				for _, cardType := range cardTypes {
					query.CardTypes = append(query.CardTypes, api.CardType(cardType))
				}
				result, err = c.app.Search.Advanced(cmd.Context(), query)
			} else {
				result, err = c.app.Search.Search(cmd.Context(), api.SearchQuery{
					Q:        text,
					Type:     api.SearchScope(scope),
					Page:     page,
					PageSize: pageSize,
				})
			}
			if err != nil {
				return err
			}
			return c.emit(cmd, result, func(w io.Writer) { writeSearch(w, result) })
		},
	}
	cmd.Flags().StringVar(&scope, "type", string(api.SearchAll), "What to search (all, cards, tags)")
	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Results per page")
	cmd.Flags().BoolVar(&advanced, "advanced", false, "Search cards with the structured filters below")
	cmd.Flags().StringSliceVar(&cardTypes, "card-type", nil, "Card types for --advanced")
	cmd.Flags().Int64SliceVar(&tagIDs, "tag", nil, "Tag ids for --advanced")
	return cmd
}

func writeSearch(w io.Writer, result api.SearchResult) {
	if result.Cards != nil {
		fmt.Fprintf(w, "CARDS (%d)\n", result.Cards.Total)
		for _, hit := range result.Cards.Items {
			fmt.Fprintf(w, "%d\t%s\t%s\n", hit.ID, hit.CardType, hit.Title)
		}
	}
	if result.Tags != nil {
		fmt.Fprintf(w, "TAGS (%d)\n", result.Tags.Total)
		for _, hit := range result.Tags.Items {
			fmt.Fprintf(w, "%d\t%s\t%d cards\n", hit.ID, hit.Name, hit.CardsCount)
		}
	}
}

func (c *cli) kanbanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kanban",
		Short: "Work with the kanban board",
	}

	board := &cobra.Command{
		Use:         "board",
		Short:       "Show the board",
		Args:        cobra.NoArgs,
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := c.app.Kanban.Board(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(cmd, board, func(w io.Writer) {
				for _, column := range board.Columns {
					fmt.Fprintf(w, "[%d] %s (%d)\n", column.ID, column.Name, column.CardsCount)
					for _, card := range column.Cards {
						fmt.Fprintf(w, "  %d\t%s\n", card.ID, card.Title)
					}
				}
			})
		},
	}

	var position int
	addColumn := &cobra.Command{
		Use:         "add-column NAME",
		Short:       "Add a column",
		Args:        cobra.ExactArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			column, err := c.app.Kanban.CreateColumn(cmd.Context(), api.ColumnInput{Name: args[0], Position: position})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created column %d\n", column.ID)
			return nil
		},
	}
	addColumn.Flags().IntVar(&position, "position", 0, "Column position")

	removeColumn := &cobra.Command{
		Use:         "remove-column COLUMN_ID",
		Short:       "Delete a column",
		Args:        cobra.ExactArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.app.Kanban.DeleteColumn(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted column %d\n", id)
			return nil
		},
	}

	var cardPosition int
	move := &cobra.Command{
		Use:         "move COLUMN_ID CARD_ID...",
		Short:       "Move cards into a column",
		Args:        cobra.MinimumNArgs(2),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			columnID, cardIDs := ids[0], ids[1:]
			if len(cardIDs) == 1 {
				if _, err := c.app.Kanban.MoveCard(cmd.Context(), api.MoveCard{CardID: cardIDs[0], ColumnID: columnID, Position: cardPosition}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "moved card %d\n", cardIDs[0])
				return nil
			}
			result, err := c.app.Kanban.BatchMove(cmd.Context(), api.BatchMove{CardIDs: cardIDs, TargetColumnID: columnID})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %d cards\n", result.MovedCount)
			return nil
		},
	}
	move.Flags().IntVar(&cardPosition, "position", 0, "Position in the column for a single card")

	cmd.AddCommand(board, addColumn, removeColumn, move)
	return cmd
}

func (c *cli) linksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Link cards to each other",
	}

	var listType string
	list := &cobra.Command{
		Use:         "list CARD_ID",
		Short:       "Show a card's links",
		Args:        cobra.ExactArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			links, err := c.app.Links.List(cmd.Context(), id, api.LinkType(listType))
			if err != nil {
				return err
			}
			return c.emit(cmd, links, func(w io.Writer) {
				fmt.Fprintln(w, "DIRECTION\tID\tTYPE\tTITLE")
				for _, link := range links.Outgoing {
					fmt.Fprintf(w, "out\t%d\t%s\t%s\n", link.ID, link.LinkType, link.Title)
				}
				for _, link := range links.Incoming {
					fmt.Fprintf(w, "in\t%d\t%s\t%s\n", link.ID, link.LinkType, link.Title)
				}
			})
		},
	}
	list.Flags().StringVar(&listType, "type", "", "Only links of this type")

	var addType string
	add := &cobra.Command{
		Use:         "add CARD_ID TARGET_ID",
		Short:       "Link a card to another",
		Args:        cobra.ExactArgs(2),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			linked, err := c.app.Links.Create(cmd.Context(), ids[0], api.LinkInput{TargetCardID: ids[1], LinkType: api.LinkType(addType)})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "linked %d -> %d (%s)\n", ids[0], linked.ID, linked.LinkType)
			return nil
		},
	}
	add.Flags().StringVar(&addType, "type", string(api.LinkTypeReference), "Link type (reference, related, parent)")

	remove := &cobra.Command{
		Use:         "remove CARD_ID TARGET_ID",
		Short:       "Remove a link",
		Args:        cobra.ExactArgs(2),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if err := c.app.Links.Delete(cmd.Context(), ids[0], ids[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unlinked %d -> %d\n", ids[0], ids[1])
			return nil
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

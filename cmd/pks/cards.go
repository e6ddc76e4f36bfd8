package main

import (
	"fmt"
	"io"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/MarcoPoloResearchLab/pks/internal/cards"
	"github.com/spf13/cobra"
)

func (c *cli) cardsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "List and edit cards",
	}
	cmd.AddCommand(
		c.cardsListCommand(),
		c.cardsShowCommand(),
		c.cardsCreateCommand(),
		c.cardsUpdateCommand(),
		c.cardsDeleteCommand(),
		c.cardsBatchDeleteCommand(),
		c.cardsBatchTagCommand(),
	)
	return cmd
}

type cardListing struct {
	Items      []api.Card `json:"items"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	Total      int        `json:"total"`
	TotalPages int        `json:"total_pages"`
}

func (c *cli) cardsListCommand() *cobra.Command {
	var (
		page     int
		cardType string
		tagID    int64
		pinned   string
		text     string
		sortBy   string
		order    string
	)
	cmd := &cobra.Command{
		Use:         "list",
		Short:       "List one page of cards",
		Args:        cobra.NoArgs,
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []cards.FilterOption{
				cards.WithCardType(api.CardType(cardType)),
				cards.WithSearch(text),
				cards.WithSort(api.SortField(sortBy), api.SortOrder(order)),
			}
			if tagID > 0 {
				opts = append(opts, cards.WithTagID(tagID))
			}
			switch pinned {
			case "":
			case "true", "false":
				opts = append(opts, cards.WithPinned(pinned == "true"))
			default:
				return fmt.Errorf("--pinned must be true or false, got %q", pinned)
			}
			c.app.Cards.SetFilter(opts...)
			c.app.Cards.Seek(page)
			if _, err := c.app.Cards.Fetch(cmd.Context()); err != nil {
				return err
			}
			state := c.app.Cards.Pagination()
			listing := cardListing{
				Items:      c.app.Cards.Cards(),
				Page:       state.CurrentPage,
				PageSize:   state.PageSize,
				Total:      state.Total,
				TotalPages: state.TotalPages(),
			}
			return c.emit(cmd, listing, func(w io.Writer) {
				writeCards(w, listing.Items)
				fmt.Fprintf(w, "\npage %d of %d (%d cards)\n", listing.Page, listing.TotalPages, listing.Total)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page to show")
	cmd.Flags().StringVar(&cardType, "type", "", "Only cards of this type (note, link, image, code)")
	cmd.Flags().Int64Var(&tagID, "tag", 0, "Only cards carrying this tag id")
	cmd.Flags().StringVar(&pinned, "pinned", "", "Only pinned (true) or unpinned (false) cards")
	cmd.Flags().StringVar(&text, "search", "", "Only cards whose title or content contains this text")
	cmd.Flags().StringVar(&sortBy, "sort", string(api.SortByCreatedAt), "Sort field (created_at, updated_at, view_count)")
	cmd.Flags().StringVar(&order, "order", string(api.OrderDesc), "Sort order (asc, desc)")
	return cmd
}

func (c *cli) cardsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show CARD_ID",
		Short:       "Show one card",
		Args:        cobra.ExactArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			card, err := c.app.Cards.FetchDetail(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.emit(cmd, card, func(w io.Writer) { writeCard(w, card) })
		},
	}
}

func (c *cli) cardsCreateCommand() *cobra.Command {
	var (
		input    api.CardInput
		cardType string
	)
	cmd := &cobra.Command{
		Use:         "create",
		Short:       "Create a card",
		Args:        cobra.NoArgs,
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.CardType = api.CardType(cardType)
			card, err := c.app.Cards.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			return c.emit(cmd, card, func(w io.Writer) {
				fmt.Fprintf(w, "created card %d\n", card.ID)
			})
		},
	}
	cmd.Flags().StringVar(&input.Title, "title", "", "Title")
	cmd.Flags().StringVar(&input.Content, "content", "", "Content")
	cmd.Flags().StringVar(&cardType, "type", string(api.CardTypeNote), "Card type (note, link, image, code)")
	cmd.Flags().StringVar(&input.URL, "url", "", "URL, required for link cards")
	cmd.Flags().Int64SliceVar(&input.TagIDs, "tag", nil, "Tag ids to attach")
	return cmd
}

func (c *cli) cardsUpdateCommand() *cobra.Command {
	var (
		title    string
		content  string
		cardType string
		link     string
		pinned   bool
		tagIDs   []int64
	)
	cmd := &cobra.Command{
		Use:         "update CARD_ID",
		Short:       "Change fields of a card",
		Args:        cobra.ExactArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch api.CardPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("content") {
				patch.Content = &content
			}
			if flags.Changed("type") {
				value := api.CardType(cardType)
				patch.CardType = &value
			}
			if flags.Changed("url") {
				patch.URL = &link
			}
			if flags.Changed("pinned") {
				patch.IsPinned = &pinned
			}
			if flags.Changed("tag") {
				patch.TagIDs = &tagIDs
			}
			card, err := c.app.Cards.Update(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			return c.emit(cmd, card, func(w io.Writer) { writeCard(w, card) })
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&content, "content", "", "New content")
	cmd.Flags().StringVar(&cardType, "type", "", "New card type")
	cmd.Flags().StringVar(&link, "url", "", "New URL")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "Pin or unpin the card")
	cmd.Flags().Int64SliceVar(&tagIDs, "tag", nil, "Replace the card's tags")
	return cmd
}

func (c *cli) cardsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "delete CARD_ID",
		Short:       "Delete a card",
		Args:        cobra.ExactArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.app.Cards.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted card %d\n", id)
			return nil
		},
	}
}

func (c *cli) cardsBatchDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "batch-delete CARD_ID...",
		Short:       "Delete several cards in one request",
		Args:        cobra.MinimumNArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			deleted, err := c.app.Cards.BatchRemove(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d cards\n", deleted)
			return nil
		},
	}
}

func (c *cli) cardsBatchTagCommand() *cobra.Command {
	var tagIDs []int64
	cmd := &cobra.Command{
		Use:         "batch-tag CARD_ID...",
		Short:       "Attach tags to several cards",
		Args:        cobra.MinimumNArgs(1),
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			affected, err := c.app.Cards.BatchTag(cmd.Context(), ids, tagIDs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tagged %d cards\n", affected)
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&tagIDs, "tag", nil, "Tag ids to attach")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

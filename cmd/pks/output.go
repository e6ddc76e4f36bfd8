package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/MarcoPoloResearchLab/pks/internal/tags"
	"github.com/spf13/cobra"
)

// emit prints value as JSON when --json is set and falls back to table otherwise.
func (c *cli) emit(cmd *cobra.Command, value any, table func(io.Writer)) error {
	out := cmd.OutOrStdout()
	if c.asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	table(writer)
	return writer.Flush()
}

func writeCards(w io.Writer, cards []api.Card) {
	fmt.Fprintln(w, "ID\tTYPE\tPINNED\tTITLE\tTAGS")
	for _, card := range cards {
		pinned := ""
		if card.IsPinned {
			pinned = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", card.ID, card.CardType, pinned, card.Title, tagNames(card.Tags))
	}
}

func writeCard(w io.Writer, card api.Card) {
	fmt.Fprintf(w, "ID:\t%d\n", card.ID)
	fmt.Fprintf(w, "Title:\t%s\n", card.Title)
	fmt.Fprintf(w, "Type:\t%s\n", card.CardType)
	if card.URL != nil {
		fmt.Fprintf(w, "URL:\t%s\n", *card.URL)
	}
	fmt.Fprintf(w, "Pinned:\t%t\n", card.IsPinned)
	fmt.Fprintf(w, "Views:\t%d\n", card.ViewCount)
	fmt.Fprintf(w, "Tags:\t%s\n", tagNames(card.Tags))
	fmt.Fprintf(w, "Updated:\t%s\n", card.UpdatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "\n%s\n", card.Content)
}

func tagNames(refs []api.TagRef) string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return strings.Join(names, ",")
}

func writeTags(w io.Writer, list []api.Tag) {
	fmt.Fprintln(w, "ID\tNAME\tPARENT\tCOLOR")
	for _, tag := range list {
		parent := "-"
		if tag.ParentID != nil {
			parent = strconv.FormatInt(*tag.ParentID, 10)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", tag.ID, tag.Name, parent, tag.Color)
	}
}

type treeLine struct {
	node  *tags.TreeNode
	depth int
}

func writeTree(w io.Writer, roots []*tags.TreeNode) {
	pending := make([]treeLine, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		pending = append(pending, treeLine{node: roots[i]})
	}
	for len(pending) > 0 {
		line := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		fmt.Fprintf(w, "%s%s (%d)\n", strings.Repeat("  ", line.depth), line.node.Name, line.node.ID)
		for i := len(line.node.Children) - 1; i >= 0; i-- {
			pending = append(pending, treeLine{node: line.node.Children[i], depth: line.depth + 1})
		}
	}
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

func parseIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := parseID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bilyardvmetro/posts-feed-sync/internal/feed"
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
)

func reactionsLine(r model.Reactions) string {
	if r.Total == 0 {
		return "no reactions"
	}
	kinds := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		mark := ""
		if r.Has(k) {
			mark = "*"
		}
		parts = append(parts, fmt.Sprintf("%s%s %d", k, mark, r.Counts[k]))
	}
	return strings.Join(parts, ", ")
}

func printPost(w io.Writer, p *model.Post) {
	saved := ""
	if p.Saved {
		saved = " [saved]"
	}
	fmt.Fprintf(w, "%s  %s  by %s%s\n", p.ID, p.Title, p.Author, saved)
	fmt.Fprintf(w, "    %s | %d comments\n", reactionsLine(p.Reactions), p.CommentsCount)
}

func printPostDetail(w io.Writer, p *model.Post) {
	printPost(w, p)
	if p.CommunityID != "" {
		fmt.Fprintf(w, "    community: %s\n", p.CommunityID)
	}
	if p.CommentsClosed {
		fmt.Fprintln(w, "    comments are closed")
	}
	fmt.Fprintf(w, "\n%s\n", p.Body)
}

func printComment(w io.Writer, c *model.Comment) {
	indent := strings.Repeat("  ", c.Depth)
	body := c.Body
	if c.Deleted {
		body = "[deleted]"
	}
	fmt.Fprintf(w, "%s%s  %s: %s\n", indent, c.ID, c.Author, body)
	fmt.Fprintf(w, "%s    %s\n", indent, reactionsLine(c.Reactions))
}

func printFooter(w io.Writer, st feed.State) {
	fmt.Fprintf(w, "-- page %d/%d, %d total", st.CurrentPage, st.TotalPages, st.TotalCount)
	if st.SessionToken != "" {
		fmt.Fprintf(w, ", session %s", st.SessionToken)
	}
	fmt.Fprintln(w)
}

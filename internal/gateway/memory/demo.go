package memory

import (
	"context"

	"github.com/fruitsalade/swalang/internal/models"
)

// Demo returns a gateway preloaded with a small lesson tree and a few
// suggestions, so a fresh in-memory session has something to show.
func Demo(userID string) *Gateway {
	g := New(userID)
	ctx := context.Background()

	mkdir := func(parent *string, name string) *string {
		n, err := g.CreateNode(ctx, models.CreateDetails{Name: name, IsFolder: true, ParentID: parent})
		if err != nil {
			panic(err)
		}
		return &n.ID
	}
	touch := func(parent *string, name, content string) {
		_, err := g.CreateNode(ctx, models.CreateDetails{Name: name, ParentID: parent, Content: &content})
		if err != nil {
			panic(err)
		}
	}

	basics := mkdir(nil, "basics")
	touch(basics, "salamu.swa", `andika("Habari dunia")`)
	touch(basics, "namba.swa", "x = 2 + 3\nandika(x)")
	loops := mkdir(basics, "loops")
	touch(loops, "kwa.swa", "kwa i ktk [1, 2, 3] {\n  andika(i)\n}")
	mkdir(nil, "projects")
	touch(nil, "README.swa", "# karibu")

	g.SeedSuggestion(models.Suggestion{Word: "kazi", Description: "keyword for function definitions", SubmittedBy: "amina", Score: 7})
	g.SeedSuggestion(models.Suggestion{Word: "rudisha", Description: "return keyword", SubmittedBy: "juma", Score: 3, UserVote: models.VoteUp})
	g.SeedSuggestion(models.Suggestion{Word: "kweli", Description: "boolean true", SubmittedBy: "neema", Score: -1})
	return g
}

package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rpggio/hq/internal/domain/budget"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `hq is a personal headquarters with three stores: thoughts, projects and a budget ledger.

- Thoughts: short notes. #hashtags become tags at creation and never change. Pinned thoughts list first.
- Projects: active, frozen or done. Each has stages, tasks, notes and links. Progress is the share of done tasks over all tasks, stage or not.
- Budget: income and expense transactions per category, monthly limits per expense category.

Writes go to the remote store. When a write fails the local view still changes (except creates), so call recent_activity with failed_only=true if results look stale.
Budget categories are listed in the hq://budget/categories resource.`

const categoriesURI = "hq://budget/categories"

type categoryDoc struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func categoryTable(table []budget.Category) []categoryDoc {
	out := make([]categoryDoc, 0, len(table))
	for _, c := range table {
		out = append(out, categoryDoc{ID: c.ID, Label: c.Label})
	}
	return out
}

func categoriesJSON() string {
	data, _ := json.MarshalIndent(map[string]any{
		"expense": categoryTable(budget.ExpenseCategories),
		"income":  categoryTable(budget.IncomeCategories),
	}, "", "  ")
	return string(data)
}

var docResources = []struct {
	URI         string
	Name        string
	Title       string
	Description string
	MIMEType    string
	Content     string
}{
	{
		URI:         "hq://docs/overview",
		Name:        "overview",
		Title:       "hq overview",
		Description: "What each store holds and how writes behave",
		MIMEType:    "text/markdown",
		Content:     strings.TrimSpace(serverInstructions),
	},
	{
		URI:         categoriesURI,
		Name:        "budget-categories",
		Title:       "Budget categories",
		Description: "Category ids accepted for income and expense transactions",
		MIMEType:    "application/json",
		Content:     categoriesJSON(),
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    doc.MIMEType,
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: doc.MIMEType,
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}

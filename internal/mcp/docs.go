package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `lineage evaluates genealogy filters over a family tree database.

Core concepts:
- Record types: Person, Family, Event, Place, Source, Citation, Repository, Note, Media.
- Rule: one predicate over one record type with a fixed list of labelled values.
- Filter: an ordered list of rules combined with and / or / one, optionally inverted.
- System filters are read-only; custom filters are saved to the custom filter file.
- A filter may reference another filter by name (MatchesFilter and friends); cycles are rejected.

Default workflow:
1) list_rules for the record type to learn rule names and their labels.
2) list_filters to reuse an existing filter, or build a definition.
3) apply_filter with a name or an ad-hoc definition. Pass handles to restrict candidates,
   or visibility filters to hide people, events or notes from the whole evaluation.
4) define_filter to keep a definition; delete_filter to drop it.
5) reload_filters after editing the filter files by hand.

Docs:
- lineage://docs/index
- lineage://docs/filter-format
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "lineage://docs/index",
		Name:        "docs_index",
		Title:       "lineage docs index",
		Description: "Entry point: tools, evaluation semantics and known limitations.",
		Content: `# lineage: Agent Docs Index

## Tools

- ` + "`list_rules`" + ` returns rule names, categories, labels and whether values may be regular expressions.
- ` + "`list_filters`" + ` / ` + "`get_filter`" + ` browse named filters. System filters come first.
- ` + "`apply_filter`" + ` evaluates and returns matching handles in candidate order.
- ` + "`define_filter`" + ` / ` + "`delete_filter`" + ` edit the custom list and save it.
- ` + "`reload_filters`" + ` re-reads both files and lists skipped entries.

## Evaluation

- ` + "`and`" + ` needs every rule, ` + "`or`" + ` any rule, ` + "`one`" + ` exactly one rule.
  With no rules, ` + "`and`" + ` matches everything and the others match nothing.
- ` + "`invert`" + ` flips the result per record.
- ` + "`params`" + ` replaces the values of every rule before evaluation; the stored filter is not changed.
- A missing referenced record or filter makes the rule fail; it is not an error.
- Evaluation can be cancelled; a cancelled run returns ABORTED, never a partial list.

## Limitations

- One evaluation runs at a time per server.
- Dates compare at day resolution with before/after/about/between qualifiers.
`,
	},
	{
		URI:         "lineage://docs/filter-format",
		Name:        "docs_filter_format",
		Title:       "Filter definition format",
		Description: "The YAML layout of the system and custom filter files and the matching JSON definition.",
		Content: `# Filter definition format

Filter files are YAML. Each record type has its own section:

` + "```yaml" + `
version: 1
objects:
  - type: Person
    filters:
      - name: Smithson men
        comment: optional
        function: and      # and | or | one
        invert: false
        rules:
          - class: IsMale
            values: []
          - class: HasNameOf
            use_regex: false
            use_case: false
            values: ["", "Smithson", "", "", "", ""]
` + "```" + `

- ` + "`values`" + ` holds one entry per rule label, in label order.
- Unknown rule classes, wrong value counts, duplicate or missing names are skipped on load and reported.
- An unknown ` + "`function`" + ` falls back to ` + "`and`" + `.
- An invalid regular expression is matched literally.

The JSON ` + "`definition`" + ` accepted by ` + "`apply_filter`" + ` and ` + "`define_filter`" + ` uses the same keys.
`,
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
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}

package retrieval

import (
	"encoding/json"

	"github.com/hupe1980/chatmesh/core"
	"github.com/tidwall/gjson"
)

const (
	// PreviewLength is the maximum number of characters kept from a document.
	PreviewLength = 200
	// UnknownFilename labels documents without a filename.
	UnknownFilename = "未知文档"
)

// Normalize extracts documents from knowledge_base.results and graph nodes
// from graph_base.results.nodes. Malformed or missing sections are skipped;
// the result is never nil.
func Normalize(refs core.References) []core.RetrievedItem {
	items := []core.RetrievedItem{}
	if len(refs) == 0 {
		return items
	}

	// refs may come from JSON decoding or be built in Go with typed slices;
	// one JSON round trip lets gjson walk both shapes the same way.
	raw, err := json.Marshal(refs)
	if err != nil {
		return items
	}
	doc := gjson.ParseBytes(raw)

	doc.Get("knowledge_base.results").ForEach(func(_, r gjson.Result) bool {
		text := r.Get("entity.text")
		if text.Type != gjson.String {
			return true
		}
		filename := UnknownFilename
		if f := r.Get("entity.metadata.filename"); f.Exists() {
			filename = f.String()
		}
		items = append(items, core.RetrievedItem{
			Type:     core.ItemDocument,
			ID:       r.Get("id").String(),
			Filename: filename,
			Content:  Preview(text.String()),
		})
		return true
	})

	doc.Get("graph_base.results.nodes").ForEach(func(_, n gjson.Result) bool {
		items = append(items, core.RetrievedItem{
			Type:  core.ItemGraphNode,
			ID:    n.Get("id").String(),
			Name:  n.Get("name").String(),
			Label: n.Get("label").String(),
		})
		return true
	})

	return items
}

// Preview truncates text to PreviewLength characters, marking the cut with "...".
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLength {
		return text
	}
	return string(runes[:PreviewLength]) + "..."
}

package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"

	"github.com/pfrederiksen/poitiers-events/internal/logger"
)

// linkedEvent is the subset of a schema.org Event read from JSON-LD.
type linkedEvent struct {
	Name          string
	StartDate     string
	Image         string
	Description   string
	URL           string
	StreetAddress string
}

// linkedEvents decodes every ld+json block of doc and returns the objects whose @type
// names an Event (Event, MusicEvent, TheaterEvent, ...). @graph containers and top-level
// arrays are flattened. CMS output often has trailing commas, so blocks are read as JSON5.
func linkedEvents(doc *goquery.Document) []linkedEvent {
	var found []linkedEvent
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		var data interface{}
		if err := json5.Unmarshal([]byte(s.Text()), &data); err != nil {
			logger.Debug("Skipping unreadable JSON-LD block", logger.Fields{"index": i, "error": err.Error()})
			return
		}
		walkLinkedData(data, &found)
	})
	return found
}

func walkLinkedData(node interface{}, found *[]linkedEvent) {
	switch v := node.(type) {
	case []interface{}:
		for _, item := range v {
			walkLinkedData(item, found)
		}
	case map[string]interface{}:
		if graph, ok := v["@graph"]; ok {
			walkLinkedData(graph, found)
		}
		if isEventType(v["@type"]) {
			*found = append(*found, linkedEvent{
				Name:          stringOf(v["name"]),
				StartDate:     stringOf(v["startDate"]),
				Image:         stringOf(v["image"]),
				Description:   stringOf(v["description"]),
				URL:           stringOf(v["url"]),
				StreetAddress: streetAddress(v["location"]),
			})
		}
	}
}

func isEventType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return strings.HasSuffix(v, "Event")
	case []interface{}:
		for _, item := range v {
			if isEventType(item) {
				return true
			}
		}
	}
	return false
}

// stringOf reads a JSON-LD value that may be a string, a list or an object with a url.
func stringOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		for _, item := range t {
			if s := stringOf(item); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		if s := stringOf(t["url"]); s != "" {
			return s
		}
		return stringOf(t["@id"])
	}
	return ""
}

func streetAddress(location interface{}) string {
	switch t := location.(type) {
	case []interface{}:
		for _, item := range t {
			if s := streetAddress(item); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		switch addr := t["address"].(type) {
		case string:
			return strings.TrimSpace(addr)
		case map[string]interface{}:
			if s, ok := addr["streetAddress"].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

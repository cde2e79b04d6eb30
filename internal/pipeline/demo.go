package pipeline

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"pulsedash.app/harvester/internal/model"
)

// Demo and fallback records are fabricated from the requested field names
// so the dashboard and export path can be exercised without spending
// extraction-service credits. Matching is on the field *name*, not its
// declared type, mirroring how users actually label their fields.

var sampleAmounts = []string{
	"$1.2M", "$3.5M", "$500K", "$10M", "$25M", "$750K", "$5M", "$2.8M",
}

type sampleOptions struct {
	// Label tags every textual placeholder; "Sample" for demo runs,
	// "Fallback" for the degraded post-failure simulation.
	Label     string
	SourceURL string
}

func synthesizeRecord(fields []model.FieldDescriptor, index int, opts sampleOptions) model.ResultRecord {
	label := opts.Label
	if label == "" {
		label = "Sample"
	}
	slug := strings.ToLower(label)
	host := sourceHost(opts.SourceURL)

	record := model.ResultRecord{
		"sourceUrl": opts.SourceURL,
		"scrapedAt": time.Now().UTC().Format(time.RFC3339),
	}

	for _, f := range fields {
		name := strings.ToLower(f.Name)
		switch {
		case strings.Contains(name, "title") || strings.Contains(name, "headline"):
			record[f.Name] = fmt.Sprintf("%s Article Title %d", label, index)
		case strings.Contains(name, "company") && strings.Contains(name, "website"):
			record[f.Name] = fmt.Sprintf("https://www.%s-company-%d.com", slug, index)
		case strings.Contains(name, "company") || strings.Contains(name, "organization"):
			record[f.Name] = fmt.Sprintf("%s Company %d", label, index)
		case strings.Contains(name, "article") && strings.Contains(name, "url"):
			record[f.Name] = fmt.Sprintf("https://%s/articles/%s-%d", host, slug, index)
		case strings.Contains(name, "url"):
			record[f.Name] = fmt.Sprintf("https://%s/%s-page-%d", host, slug, index)
		case strings.Contains(name, "funding") || strings.Contains(name, "amount") || strings.Contains(name, "investment"):
			record[f.Name] = sampleAmounts[(index-1)%len(sampleAmounts)]
		case strings.Contains(name, "date") || strings.Contains(name, "published"):
			record[f.Name] = time.Now().UTC().AddDate(0, 0, -index).Format("2006-01-02")
		case strings.Contains(name, "description") || strings.Contains(name, "summary"):
			record[f.Name] = fmt.Sprintf("%s description for item %d covering the captured page content.", label, index)
		default:
			record[f.Name] = fmt.Sprintf("%s %s value %d", label, f.Name, index)
		}
	}

	return record
}

func sourceHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "example.com"
	}
	return u.Host
}

package content

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/umputun/postkit/pkg/domain"
)

// Markdown renders extracted article content as a markdown document headed by title and source link.
// Content markup is converted when the winning strategy kept it, plain text is used otherwise.
func Markdown(res domain.ExtractionResult, title, link string) string {
	body := res.Text
	if res.HTML != "" {
		host := ""
		if u, err := url.Parse(link); err == nil {
			host = u.Host
		}
		if converted, err := md.NewConverter(host, true, nil).ConvertString(res.HTML); err == nil && strings.TrimSpace(converted) != "" {
			body = converted
		}
	}

	var sb strings.Builder
	if title != "" {
		sb.WriteString("# ")
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}
	if link != "" {
		sb.WriteString("Source: ")
		sb.WriteString(link)
		sb.WriteString("\n\n")
	}
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n")
	return sb.String()
}

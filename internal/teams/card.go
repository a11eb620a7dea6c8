package teams

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/itsmrshow/teamsreport/internal/notification"
)

const (
	messageType       = "message"
	cardContentType   = "application/vnd.microsoft.card.adaptive"
	cardType          = "AdaptiveCard"
	cardSchema        = "http://adaptivecards.io/schemas/adaptive-card.json"
	cardVersion       = "1.0"
	openURLAction     = "Action.OpenUrl"
	exploreTitle      = "Explore in Superset"
	imageDataURIStart = "data:image/png;base64,"
)

// Message is the envelope posted to an incoming webhook.
type Message struct {
	Type        string       `json:"type"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment wraps an Adaptive Card.
type Attachment struct {
	ContentType string `json:"contentType"`
	Content     Card   `json:"content"`
}

// Card is an Adaptive Card.
type Card struct {
	Type    string         `json:"type"`
	Body    []Element      `json:"body"`
	MSTeams MSTeamsOptions `json:"msteams"`
	Schema  string         `json:"$schema"`
	Version string         `json:"version"`
	Actions []Action       `json:"actions"`
}

// MSTeamsOptions holds Teams-specific card settings.
type MSTeamsOptions struct {
	AllowExpand bool `json:"allowExpand"`
}

// Action is a card action button.
type Action struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Element is a card body block: *TextBlock, *TableBlock or *ImageBlock.
type Element interface {
	ElementType() string
}

// TextBlock renders text.
type TextBlock struct {
	Type   string `json:"type"`
	Size   string `json:"size,omitempty"`
	Weight string `json:"weight,omitempty"`
	Text   string `json:"text"`
	Wrap   bool   `json:"wrap,omitempty"`
}

func (b *TextBlock) ElementType() string { return b.Type }

// TableBlock renders a grid of cells.
type TableBlock struct {
	Type    string        `json:"type"`
	Columns []TableColumn `json:"columns"`
	Rows    []TableRow    `json:"rows"`
}

func (b *TableBlock) ElementType() string { return b.Type }

// TableColumn is a column width definition.
type TableColumn struct {
	Width int `json:"width"`
}

// TableRow is one row of cells.
type TableRow struct {
	Type  string      `json:"type"`
	Cells []TableCell `json:"cells"`
}

// TableCell holds the blocks rendered in one cell.
type TableCell struct {
	Type  string      `json:"type"`
	Items []TextBlock `json:"items"`
}

// ImageBlock renders an image from a URL.
type ImageBlock struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func (b *ImageBlock) ElementType() string { return b.Type }

// BuildPayload assembles the webhook message for content. files are the
// inline attachments chosen by the sender; embedded tabular data is taken
// from content directly. Build failures are reported as ErrUnprocessable.
func BuildPayload(content notification.Content, files []notification.Source) (*Message, error) {
	components, err := fileComponents(content, files)
	if err != nil {
		return nil, notification.NewError(notification.ErrUnprocessable, "build card body", err)
	}

	body := make([]Element, 0, len(components)+2)
	body = append(body, &TextBlock{
		Type:   "TextBlock",
		Size:   "Medium",
		Weight: "Bolder",
		Text:   content.Name,
	})
	body = append(body, components...)
	body = append(body, &TextBlock{
		Type: "TextBlock",
		Text: content.Description,
		Wrap: true,
	})

	return &Message{
		Type: messageType,
		Attachments: []Attachment{{
			ContentType: cardContentType,
			Content: Card{
				Type:    cardType,
				Body:    body,
				MSTeams: MSTeamsOptions{AllowExpand: true},
				Schema:  cardSchema,
				Version: cardVersion,
				Actions: []Action{{
					Type:  openURLAction,
					Title: exploreTitle,
					URL:   content.URL,
				}},
			},
		}},
	}, nil
}

// MarshalPayload builds the payload and encodes it as JSON.
func MarshalPayload(content notification.Content, files []notification.Source) ([]byte, error) {
	msg, err := BuildPayload(content, files)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, notification.NewError(notification.ErrUnprocessable, "encode card", err)
	}
	return body, nil
}

func fileComponents(content notification.Content, files []notification.Source) ([]Element, error) {
	components := []Element{}

	switch content.Kind() {
	case notification.KindCSV:
		for i, file := range files {
			data, err := file.Bytes()
			if err != nil {
				return nil, err
			}
			table, err := notification.ParseCSV(data)
			if err != nil {
				return nil, fmt.Errorf("csv attachment %d: %w", i+1, err)
			}
			block, err := tableBlock(table)
			if err != nil {
				return nil, fmt.Errorf("csv attachment %d: %w", i+1, err)
			}
			components = append(components, block)
		}
	case notification.KindScreenshots:
		for i, file := range files {
			data, err := file.Bytes()
			if err != nil {
				return nil, fmt.Errorf("screenshot %d: %w", i+1, err)
			}
			components = append(components, imageBlock(data))
		}
	case notification.KindEmbeddedData:
		block, err := tableBlock(content.EmbeddedData)
		if err != nil {
			return nil, fmt.Errorf("embedded data: %w", err)
		}
		components = append(components, block)
	}

	return components, nil
}

func tableBlock(table *notification.Table) (*TableBlock, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	columns := make([]TableColumn, len(table.Columns))
	for i := range columns {
		columns[i] = TableColumn{Width: 1}
	}

	rows := make([]TableRow, 0, len(table.Rows)+1)
	header := TableRow{Type: "TableRow", Cells: make([]TableCell, len(table.Columns))}
	for i, name := range table.Columns {
		header.Cells[i] = textCell(TextBlock{Type: "TextBlock", Text: name, Wrap: true, Weight: "Bolder"})
	}
	rows = append(rows, header)

	for _, values := range table.Rows {
		row := TableRow{Type: "TableRow", Cells: make([]TableCell, len(values))}
		for i, value := range values {
			row.Cells[i] = textCell(TextBlock{Type: "TextBlock", Text: value, Wrap: true})
		}
		rows = append(rows, row)
	}

	return &TableBlock{Type: "Table", Columns: columns, Rows: rows}, nil
}

func textCell(block TextBlock) TableCell {
	return TableCell{Type: "TableCell", Items: []TextBlock{block}}
}

func imageBlock(data []byte) *ImageBlock {
	return &ImageBlock{
		Type: "Image",
		URL:  imageDataURIStart + base64.StdEncoding.EncodeToString(data),
	}
}

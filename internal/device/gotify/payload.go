package gotify

import (
	"bytes"
	"encoding/json"
)

const (
	// DefaultTitle is used when a notification is sent without a title.
	DefaultTitle = "restate"
	// DefaultPriority is used when no priority is given or it is not an integer.
	DefaultPriority = 5
	// ContentTypeMarkdown is the display content type applied unless overridden.
	ContentTypeMarkdown = "text/markdown"
)

// Data holds the optional fields of a notification request.
// A nil field is treated as absent.
type Data struct {
	Priority         json.Number    `json:"priority,omitempty" schema:"priority"`
	ContentType      *string        `json:"content_type,omitempty" schema:"content_type"`
	Image            *string        `json:"image,omitempty" schema:"image"`
	ClickURL         *string        `json:"click_url,omitempty" schema:"click_url"`
	AndroidIntentURL *string        `json:"android_intentUrl,omitempty" schema:"android_intentUrl"`
	Extras           map[string]any `json:"extras,omitempty" schema:"-"`
}

// Options carries the title and data of a notification request.
type Options struct {
	Title *string
	Data  *Data
}

// Payload is the body POSTed to the gotify message endpoint.
type Payload struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
	Extras   any    `json:"extras"`
}

// Extras is the extras object derived from Data. Empty sections are sent as {}.
type Extras struct {
	Display      display      `json:"client::display"`
	Notification notification `json:"client::notification"`
	Action       action       `json:"android::action"`
}

type display struct {
	ContentType string `json:"contentType"`
}

type notification struct {
	BigImageURL *string `json:"bigImageUrl,omitempty"`
	Click       *click  `json:"click,omitempty"`
}

type click struct {
	URL string `json:"url"`
}

type action struct {
	OnReceive *onReceive `json:"onReceive,omitempty"`
}

type onReceive struct {
	IntentURL string `json:"intentUrl"`
}

// UnmarshalJSON decodes a data object leniently. A field holding a value of
// the wrong type is treated as absent rather than failing the whole request.
func (d *Data) UnmarshalJSON(b []byte) error {
	raw := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*d = Data{}
	switch p := raw["priority"].(type) {
	case json.Number:
		d.Priority = p
	case string:
		d.Priority = json.Number(p)
	}
	d.ContentType = stringField(raw, "content_type")
	d.Image = stringField(raw, "image")
	d.ClickURL = stringField(raw, "click_url")
	d.AndroidIntentURL = stringField(raw, "android_intentUrl")
	if extras, ok := raw["extras"].(map[string]any); ok {
		d.Extras = extras
	}
	return nil
}

func stringField(raw map[string]any, key string) *string {
	if s, ok := raw[key].(string); ok {
		return &s
	}
	return nil
}

func (d *Data) priority() int {
	if d.Priority == "" {
		return DefaultPriority
	}
	if p, err := d.Priority.Int64(); err == nil {
		return int(p)
	}
	if f, err := d.Priority.Float64(); err == nil && f == float64(int64(f)) {
		return int(f)
	}
	return DefaultPriority
}

// BuildPayload maps a message and its options onto a gotify payload.
// Every combination of options yields a payload.
//
// A caller supplied Extras map replaces the derived extras wholesale, but the
// markdown image appended to the message is kept.
func BuildPayload(message string, opts Options) Payload {
	title := DefaultTitle
	if opts.Title != nil {
		title = *opts.Title
	}

	data := opts.Data
	if data == nil {
		data = &Data{}
	}

	extras := &Extras{
		Display: display{ContentType: ContentTypeMarkdown},
	}
	payload := Payload{
		Title:    title,
		Message:  message,
		Priority: data.priority(),
		Extras:   extras,
	}

	if data.ContentType != nil {
		extras.Display.ContentType = *data.ContentType
	}

	if data.Image != nil {
		image := *data.Image
		extras.Notification.BigImageURL = &image
		if extras.Display.ContentType == ContentTypeMarkdown {
			payload.Message = message + " ![](" + image + ")"
		}
	}

	if data.ClickURL != nil {
		extras.Notification.Click = &click{URL: *data.ClickURL}
	}

	if data.AndroidIntentURL != nil {
		extras.Action.OnReceive = &onReceive{IntentURL: *data.AndroidIntentURL}
	}

	if data.Extras != nil {
		payload.Extras = data.Extras
	}

	return payload
}

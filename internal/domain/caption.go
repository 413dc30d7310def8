package domain

// Environment describes where the scene takes place.
type Environment struct {
	LocationType string `json:"location_type"`
	Setting      string `json:"setting"`
	Weather      string `json:"weather"`
	Lighting     string `json:"lighting"`
}

// VisualTone describes the overall look and feel of the image.
type VisualTone struct {
	Mood         string `json:"mood"`
	ColorPalette string `json:"color_palette"`
	Aesthetic    string `json:"aesthetic"`
}

// Object is a single detected object with free-form attribute strings.
type Object struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes"`
}

// Person is a single detected person.
type Person struct {
	Role       string `json:"role"`
	Clothing   string `json:"clothing"`
	Expression string `json:"expression"`
	Activity   string `json:"activity"`
}

// Caption is the structured description generated for one image.
//
// When the model response cannot be parsed as JSON the structured fields are
// left zero and RawText carries the verbatim model output instead. The raw
// variant is kept rather than discarded so the result is still inspectable.
type Caption struct {
	SceneOverview string      `json:"scene_overview"`
	Environment   Environment `json:"environment"`
	VisualTone    VisualTone  `json:"visual_tone"`
	Objects       []Object    `json:"objects"`
	People        []Person    `json:"people"`

	// RawText is set only when structured parsing failed.
	RawText string `json:"raw_text,omitempty"`
}

// Structured reports whether the caption carries a parsed JSON payload
// rather than the raw-text fallback.
func (c *Caption) Structured() bool {
	return c.RawText == ""
}

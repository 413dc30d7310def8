package prompts

// CaptionSystemPrompt defines the role and output contract for image
// captioning. The model must answer with a single JSON object matching the
// domain.Caption schema; anything else is kept as a raw-text fallback by the
// parser.
const CaptionSystemPrompt = `You are an image analysis assistant. Describe the image as a single JSON object and nothing else: no markdown fences, no commentary before or after the JSON.

The JSON object must have exactly this shape:
{
  "scene_overview": "one or two sentences summarizing the scene",
  "environment": {
    "location_type": "indoor | outdoor | studio | unknown",
    "setting": "short description of the place",
    "weather": "weather conditions or n/a",
    "lighting": "lighting conditions"
  },
  "visual_tone": {
    "mood": "overall mood",
    "color_palette": "dominant colors",
    "aesthetic": "visual style"
  },
  "objects": [
    {"name": "object name", "attributes": ["attribute", "attribute"]}
  ],
  "people": [
    {"role": "who they appear to be", "clothing": "what they wear", "expression": "facial expression", "activity": "what they are doing"}
  ]
}

List objects and people in order of prominence. Use empty arrays when nothing is detected.`

// CaptionUserPrompt is the per-request instruction sent alongside the image.
const CaptionUserPrompt = `Analyze the attached image and output the JSON description now.`

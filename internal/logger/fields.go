package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields propagated through the call chain.
const (
	// FieldJobID is the batch run job ID (UUID)
	FieldJobID = "job_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the image source identifier
	FieldSource = "source"

	// FieldImageKey is the caption key of the image being processed
	FieldImageKey = "image_key"

	// FieldModel is the vision-language model identifier
	FieldModel = "model"
)

// Standard metric fields used for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"
)

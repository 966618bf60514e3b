package types

// TaskInfo describes one task slot and its current adapter.
type TaskInfo struct {
	// Task identifier.
	// example: Translation
	Task string `json:"task" example:"Translation"`
	// Display name of the adapter currently serving the task.
	// example: EN→French Translator
	DisplayName string `json:"display_name" example:"EN→French Translator"`
	// Inference kind behind the task.
	// example: translation
	Kind string `json:"kind" example:"translation"`
}

// TasksResponse is returned by GET /tasks.
type TasksResponse struct {
	Tasks []TaskInfo `json:"tasks"`
	// Currently selected task.
	// example: Text Generation
	Active string `json:"active" example:"Text Generation"`
}

// ModelsResponse wraps the display names returned by GET /models.
type ModelsResponse struct {
	// Distinct adapter display names in catalog order.
	Models []string `json:"models"`
}

// SelectRequest selects a task directly or through a model display name.
// Exactly one field should be set; Task wins when both are.
type SelectRequest struct {
	// example: Summarization
	Task string `json:"task,omitempty" example:"Summarization"`
	// example: BART Summarizer
	Model string `json:"model,omitempty" example:"BART Summarizer"`
}

// SelectResponse reports the active task after a selection.
type SelectResponse struct {
	// example: Summarization
	Task string `json:"task" example:"Summarization"`
	// example: BART Summarizer
	DisplayName string `json:"display_name" example:"BART Summarizer"`
}

// Language is one supported translation target.
type Language struct {
	// example: German
	Name string `json:"name" example:"German"`
	// example: Helsinki-NLP/opus-mt-en-de
	Model string `json:"model" example:"Helsinki-NLP/opus-mt-en-de"`
}

// LanguagesResponse is returned by GET /languages.
type LanguagesResponse struct {
	Languages []Language `json:"languages"`
}

// LanguageRequest switches the translation target.
type LanguageRequest struct {
	// example: German
	Language string `json:"language" example:"German"`
}

// LanguageResponse reports the translation adapter after a switch.
type LanguageResponse struct {
	// example: German
	Language string `json:"language" example:"German"`
	// example: EN→German Translator
	DisplayName string `json:"display_name" example:"EN→German Translator"`
}

// RunOptions tunes one run. Zero values keep adapter defaults.
type RunOptions struct {
	// Maximum output length in tokens.
	// example: 150
	MaxLength int `json:"max_length,omitempty" example:"150"`
	// Minimum output length (summarization only).
	// example: 40
	MinLength int `json:"min_length,omitempty" example:"40"`
	// Sampling temperature (text generation only).
	// example: 0.7
	Temperature float32 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability (text generation only).
	// example: 0.9
	TopP float32 `json:"top_p,omitempty" example:"0.9"`
}

// RunRequest submits one job. Task defaults to the active task.
type RunRequest struct {
	// example: Translation
	Task string `json:"task,omitempty" example:"Translation"`
	// Input text for text tasks.
	// example: The weather is lovely today.
	Input string `json:"input,omitempty" example:"The weather is lovely today."`
	// Path of an image readable by the server (image classification).
	// example: /data/cat.jpg
	ImagePath string     `json:"image_path,omitempty" example:"/data/cat.jpg"`
	Options   RunOptions `json:"options,omitempty"`
	// Translation target for this and later translation runs.
	// example: German
	Language string `json:"language,omitempty" example:"German"`
	// Append a successful result to an output file.
	// example: true
	Save bool `json:"save,omitempty" example:"true"`
	// Output file relative to the outputs dir; defaults per task.
	// example: notes.txt
	Destination string `json:"destination,omitempty" example:"notes.txt"`
}

// RunResponse is returned with 202 by POST /run.
type RunResponse struct {
	// example: 4f0c2a8e-5d7b-4d1e-9c77-2b4a8f1d6e3a
	JobID string `json:"job_id" example:"4f0c2a8e-5d7b-4d1e-9c77-2b4a8f1d6e3a"`
}

// JobResponse is returned by GET /jobs/{id}.
type JobResponse struct {
	// example: 4f0c2a8e-5d7b-4d1e-9c77-2b4a8f1d6e3a
	ID string `json:"id" example:"4f0c2a8e-5d7b-4d1e-9c77-2b4a8f1d6e3a"`
	// example: Summarization
	Task string `json:"task" example:"Summarization"`
	// One of submitted, running, succeeded, failed.
	// example: succeeded
	State  string `json:"state" example:"succeeded"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	// Unix milliseconds; zero when not reached yet.
	SubmittedUnixMS int64 `json:"submitted_unix_ms"`
	StartedUnixMS   int64 `json:"started_unix_ms,omitempty"`
	FinishedUnixMS  int64 `json:"finished_unix_ms,omitempty"`
}

// CompletionEvent is pushed on GET /events when a job finishes.
type CompletionEvent struct {
	// example: 4f0c2a8e-5d7b-4d1e-9c77-2b4a8f1d6e3a
	JobID string `json:"job_id" example:"4f0c2a8e-5d7b-4d1e-9c77-2b4a8f1d6e3a"`
	// example: Translation
	Task string `json:"task" example:"Translation"`
	// example: EN→French Translator
	Model string `json:"model,omitempty" example:"EN→French Translator"`
	// example: true
	Success bool `json:"success" example:"true"`
	// Output on success, error message on failure.
	// example: Il fait beau aujourd'hui.
	Payload   string `json:"payload" example:"Il fait beau aujourd'hui."`
	ElapsedMS int64  `json:"elapsed_ms"`
	SavedTo   string `json:"saved_to,omitempty"`
	SaveError string `json:"save_error,omitempty"`
}

// ActivityEntry is one item of the recent activity feed.
type ActivityEntry struct {
	TimeUnixMS int64 `json:"time_unix_ms"`
	// One of select, language, submit, complete.
	// example: complete
	Kind    string `json:"kind" example:"complete"`
	Task    string `json:"task"`
	Detail  string `json:"detail"`
	Success bool   `json:"success"`
}

// ActivityResponse is returned by GET /activity.
type ActivityResponse struct {
	Activity []ActivityEntry `json:"activity"`
	// Jobs queued behind the one in flight.
	// example: 0
	Pending int `json:"pending" example:"0"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

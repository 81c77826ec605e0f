package gemini

// analysisSchema is the JSON document the model is instructed to return
// for full analysis and summary requests. Absent fields are tolerated; the
// processor only persists what is present.
type analysisSchema struct {
	Summary          string   `json:"summary"`
	KeyPoints        []string `json:"key_points"`
	Difficulty       string   `json:"difficulty"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// promptData is the input to the prompt templates.
type promptData struct {
	Title   string
	Content string
}

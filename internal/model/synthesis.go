package model

// Citation references a Finding by identity (source + URL).
type Citation struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// SynthesisResult is the model-produced narrative with citations and a
// confidence score in [0,1].
type SynthesisResult struct {
	Narrative     string     `json:"narrative"`
	Citations     []Citation `json:"citations"`
	Confidence    float64    `json:"confidence"`
	LowConfidence bool       `json:"low_confidence,omitempty"`
	CacheHit      bool       `json:"cache_hit,omitempty"`
}

// CitedURLs returns the cited URLs in citation order.
func (r *SynthesisResult) CitedURLs() []string {
	urls := make([]string, len(r.Citations))
	for i, c := range r.Citations {
		urls[i] = c.URL
	}
	return urls
}

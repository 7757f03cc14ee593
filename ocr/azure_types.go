package ocr

// azureOperation is the body returned when polling an analyze operation.
// Only the word level output of the read model is decoded.
type azureOperation struct {
	Status        string          `json:"status"`
	Error         *azureError     `json:"error,omitempty"`
	AnalyzeResult azureReadResult `json:"analyzeResult"`
}

type azureError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type azureReadResult struct {
	APIVersion string      `json:"apiVersion"`
	ModelID    string      `json:"modelId"`
	Content    string      `json:"content"`
	Pages      []azurePage `json:"pages"`
}

// azurePage dimensions are in pixels for image input
type azurePage struct {
	PageNumber int         `json:"pageNumber"`
	Angle      float64     `json:"angle"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Unit       string      `json:"unit"`
	Words      []azureWord `json:"words"`
}

// azureWord carries its location as a polygon of x,y pairs, clockwise from the top left corner
type azureWord struct {
	Content    string    `json:"content"`
	Polygon    []float64 `json:"polygon"`
	Confidence float64   `json:"confidence"`
}

package types

type RequestNormalize struct {
	Identifier string `json:"identifier"`
}

type RequestFormat struct {
	Identifier string `json:"identifier"`
}

type RequestStatusUpdate struct {
	State  string                 `json:"state"`
	Fields map[string]interface{} `json:"fields"`
}

type RequestSubscribe struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

package qase

import "encoding/json"

// --- Qase Response Types (hand-written, aligned with the v1 API) ---

// envelope is the wrapper every Qase v1 response uses.
type envelope struct {
	Status       bool            `json:"status"`
	Result       json.RawMessage `json:"result"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	ErrorFields  []ErrorField    `json:"errorFields,omitempty"`
}

// ErrorField is one per-field validation error in an error response.
type ErrorField struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Case is a test case as returned by the case endpoints. Only the fields the
// sync needs are typed; Raw keeps the full record so identifier extraction can
// look at fields whose location and type vary between workspaces.
type Case struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	SuiteID     int    `json:"suite_id"`
	Steps       []Step `json:"steps"`

	Raw map[string]any `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the full record in Raw.
func (c *Case) UnmarshalJSON(data []byte) error {
	type plain Case
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Case(p)
	c.Raw = raw
	return nil
}

// Step is one ordered step of a case. Position is 1-based.
type Step struct {
	Position       int    `json:"position"`
	Action         string `json:"action"`
	ExpectedResult string `json:"expected_result"`
}

// CasePayload is the body of case create and update requests.
type CasePayload struct {
	Title       string `json:"title"`
	ExternalID  string `json:"external_id,omitempty"`
	SuiteID     int    `json:"suite_id,omitempty"`
	Description string `json:"description"`
	Steps       []Step `json:"steps"`
	Automation  bool   `json:"automation"`
}

// Suite is a named group of cases.
type Suite struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// SuitePayload is the body of a suite create request.
type SuitePayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// RunPayload is the body of a run create request.
type RunPayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Cases       []int  `json:"cases"`
}

// --- Paginated response wrappers ---

// Page is the paginated response shape shared by list and search endpoints.
type Page[T any] struct {
	Total    int `json:"total"`
	Filtered int `json:"filtered"`
	Count    int `json:"count"`
	Entities []T `json:"entities"`
}

// idResult is the result of create/update/delete calls.
type idResult struct {
	ID int `json:"id"`
}

package bpm

// Response code the middleware uses for a successful sync-process-info call.
const codeOK = "0"

// processInfoRequest is the body of POST /api/bpm/sync-process-info.
type processInfoRequest struct {
	ProcessSerialNo string `json:"processSerialNo"`
	ProcessCode     string `json:"processCode"`
	Environment     string `json:"environment"`
}

// processInfoResponse is the envelope returned by sync-process-info.
type processInfoResponse struct {
	Code        string       `json:"code"`
	Msg         string       `json:"msg"`
	ProcessInfo *ProcessInfo `json:"processInfo"`
}

// ProcessInfo is the authoritative remote representation of one process
// instance. FormData carries the template-specific fields as opaque strings;
// mapping them into typed sub-forms is the sync engine's job.
type ProcessInfo struct {
	ProcessSerialNo string            `json:"processSerialNo"`
	ProcessCode     string            `json:"processCode"`
	Status          string            `json:"status"`
	ApplicantID     string            `json:"applicantId"`
	CompanyID       string            `json:"companyId"`
	ApplyDate       string            `json:"applyDate"`
	FormData        map[string]string `json:"formData"`
	SignRecords     []SignRecord      `json:"signRecords"`
}

// SignRecord is one approval event reported by the middleware.
type SignRecord struct {
	ApproverID string `json:"approverId"`
	Action     string `json:"action"`
	Comment    string `json:"comment"`
	ActionTime string `json:"actionTime"`
}

// InvokeRequest starts a new process instance.
type InvokeRequest struct {
	ProcessCode    string            `json:"processCode"`
	FormDataMap    map[string]string `json:"formDataMap"`
	UserID         string            `json:"userId"`
	Subject        string            `json:"subject"`
	SourceSystem   string            `json:"sourceSystem"`
	Environment    string            `json:"environment"`
	HasAttachments bool              `json:"hasAttachments"`
}

// invokeResponse is the raw invoke-process reply. Success is determined solely
// by Status; the identifiers are informational.
type invokeResponse struct {
	Status          string `json:"status"`
	BpmProcessOid   string `json:"bpmProcessOid"`
	ProcessSerialNo string `json:"processSerialNo"`
	Message         string `json:"message"`
}

// InvokeResult is the normalized outcome of InvokeProcess.
type InvokeResult struct {
	ProcessOid      string
	ProcessSerialNo string
	Message         string
}

// AbortItem is one entry in a batch abort request.
type AbortItem struct {
	ProcessInstanceSerialNo string `json:"processInstanceSerialNo"`
	UserID                  string `json:"userId"`
	AbortComment            string `json:"abortComment"`
	Environment             string `json:"environment"`
}

type abortRequest struct {
	Items []AbortItem `json:"items"`
}

// abortResponse covers both reply shapes the middleware produces: a per-item
// results array, or a single top-level status/message pair.
type abortResponse struct {
	Results []AbortResult `json:"results"`
	Status  string        `json:"status"`
	Message string        `json:"message"`
}

// AbortResult is the outcome for one aborted process.
type AbortResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WorkItem is one pending item from the middleware's work list.
type WorkItem struct {
	ProcessSerialNumber string `json:"processSerialNumber"`
	ProcessCode         string `json:"processCode"`
	Subject             string `json:"subject"`
	CreatedTime         string `json:"createdTime"`
}

type workItemsResponse struct {
	WorkItems []WorkItem `json:"workItems"`
}
